// Package lifecycle is the account-opening application state machine.
package lifecycle

import (
	"errors"
	"fmt"
	"strings"

	"github.com/AfshinJalili/bankflow/libs/banking"
)

var ErrInvalidTransition = errors.New("invalid application transition")

type Status string

const (
	StatusPending     Status = "PENDING"
	StatusSubmitted   Status = "SUBMITTED"
	StatusUnderReview Status = "UNDER_REVIEW"
	StatusApproved    Status = "APPROVED"
	StatusRejected    Status = "REJECTED"
	StatusCancelled   Status = "CANCELLED"
)

var statuses = []Status{StatusPending, StatusSubmitted, StatusUnderReview, StatusApproved, StatusRejected, StatusCancelled}

func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	for _, known := range statuses {
		if s == known {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: application status %q", banking.ErrInvalidEnumValue, raw)
}

func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusCancelled
}

type Action string

const (
	ActionSubmit  Action = "submit"
	ActionReview  Action = "review"
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	ActionCancel  Action = "cancel"
)

// Next returns the status reached by applying action, or ErrInvalidTransition.
func Next(current Status, kyc banking.KYCStatus, action Action) (Status, error) {
	switch action {
	case ActionSubmit:
		if current == StatusPending {
			return StatusSubmitted, nil
		}
	case ActionReview:
		if current == StatusSubmitted {
			return StatusUnderReview, nil
		}
	case ActionApprove:
		if current == StatusUnderReview && kyc == banking.KYCVerified {
			return StatusApproved, nil
		}
	case ActionReject:
		if current == StatusUnderReview && kyc == banking.KYCRejected {
			return StatusRejected, nil
		}
	case ActionCancel:
		if !current.Terminal() {
			return StatusCancelled, nil
		}
	}
	return current, fmt.Errorf("%w: cannot %s application in %s (kyc %s)", ErrInvalidTransition, action, current, kyc)
}

// CheckKYCUpdate reports whether the KYC outcome may still change.
func CheckKYCUpdate(current Status) error {
	if current.Terminal() {
		return fmt.Errorf("%w: kyc is frozen once application is %s", ErrInvalidTransition, current)
	}
	return nil
}
