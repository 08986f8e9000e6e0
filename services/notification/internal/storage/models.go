package storage

import "time"

const (
	StatusPending   = "PENDING"
	StatusCompleted = "COMPLETED"

	TypeAccountCreated = "ACCOUNT_CREATED"
)

type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Contact is the notification service's copy of a customer's addresses.
type Contact struct {
	CustomerID  int64
	FirstName   string
	LastName    string
	Email       string
	PhoneNumber string
	UpdatedAt   time.Time
}

// Audit records one notification event and the outcome of each channel.
type Audit struct {
	ID               int64
	EventID          string
	CustomerID       int64
	AccountNumber    int64
	NotificationType string
	Status           string
	EmailAddress     string
	EmailSent        bool
	EmailError       string
	MobileNumber     string
	SMSSent          bool
	SMSError         string
	Attempts         int
	CreatedAt        time.Time
	SentAt           *time.Time
}

func (a Audit) Completed() bool { return a.Status == StatusCompleted }

// Sent reports whether ch already delivered.
func (a Audit) Sent(ch Channel) bool {
	if ch == ChannelEmail {
		return a.EmailSent
	}
	return a.SMSSent
}
