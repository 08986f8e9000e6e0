package kafka

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
)

// Envelope is the metadata block every choreography event carries.
type Envelope struct {
	EventID        string    `json:"eventId"`
	EventTimestamp time.Time `json:"eventTimestamp"`
	EventSource    string    `json:"eventSource"`
}

func NewEnvelope(source string) Envelope {
	return NewEnvelopeWithID(uuid.NewString(), source)
}

func NewEnvelopeWithID(eventID, source string) Envelope {
	return Envelope{
		EventID:        eventID,
		EventTimestamp: time.Now().UTC(),
		EventSource:    source,
	}
}

// DeterministicEventID derives a stable id so that re-emitting the same fact
// yields the same eventId.
func DeterministicEventID(parts ...string) string {
	joined := strings.Join(parts, "|")
	if joined == "" {
		return uuid.Nil.String()
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(joined)).String()
}

func (e Envelope) Validate() error {
	if strings.TrimSpace(e.EventID) == "" {
		return fmt.Errorf("eventId is required")
	}
	if e.EventTimestamp.IsZero() {
		return fmt.Errorf("eventTimestamp is required")
	}
	if strings.TrimSpace(e.EventSource) == "" {
		return fmt.Errorf("eventSource is required")
	}
	return nil
}

type validatable interface {
	Validate() error
}

// Decode unmarshals msg into v and validates it. Malformed or invalid
// payloads can never succeed on redelivery, so they are marked for the
// dead-letter topic.
func Decode(msg *sarama.ConsumerMessage, v validatable) error {
	if msg == nil || len(msg.Value) == 0 {
		return DLQ(fmt.Errorf("empty kafka message"), "empty")
	}
	if err := json.Unmarshal(msg.Value, v); err != nil {
		return DLQ(fmt.Errorf("decode %s: %w", msg.Topic, err), "decode")
	}
	if err := v.Validate(); err != nil {
		return DLQ(fmt.Errorf("validate %s: %w", msg.Topic, err), "validation")
	}
	return nil
}
