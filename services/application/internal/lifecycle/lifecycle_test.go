package lifecycle

import (
	"errors"
	"testing"

	"github.com/AfshinJalili/bankflow/libs/banking"
)

var kycStatuses = []banking.KYCStatus{banking.KYCPending, banking.KYCVerified, banking.KYCRejected}

func TestApproveOnlyFromUnderReviewWithVerifiedKYC(t *testing.T) {
	for _, status := range statuses {
		for _, kyc := range kycStatuses {
			next, err := Next(status, kyc, ActionApprove)
			if status == StatusUnderReview && kyc == banking.KYCVerified {
				if err != nil || next != StatusApproved {
					t.Fatalf("expected approval, got %s (%v)", next, err)
				}
				continue
			}
			if !errors.Is(err, ErrInvalidTransition) {
				t.Fatalf("approve from %s/%s: expected ErrInvalidTransition, got %v", status, kyc, err)
			}
			if next != status {
				t.Fatalf("failed transition must keep status %s, got %s", status, next)
			}
		}
	}
}

func TestRejectOnlyFromUnderReviewWithRejectedKYC(t *testing.T) {
	for _, status := range statuses {
		for _, kyc := range kycStatuses {
			_, err := Next(status, kyc, ActionReject)
			allowed := status == StatusUnderReview && kyc == banking.KYCRejected
			if allowed != (err == nil) {
				t.Fatalf("reject from %s/%s: allowed=%v err=%v", status, kyc, allowed, err)
			}
		}
	}
}

func TestForwardPath(t *testing.T) {
	steps := []struct {
		from   Status
		action Action
		to     Status
	}{
		{StatusPending, ActionSubmit, StatusSubmitted},
		{StatusSubmitted, ActionReview, StatusUnderReview},
	}
	for _, step := range steps {
		got, err := Next(step.from, banking.KYCPending, step.action)
		if err != nil || got != step.to {
			t.Fatalf("%s from %s: got %s (%v)", step.action, step.from, got, err)
		}
	}

	if _, err := Next(StatusSubmitted, banking.KYCPending, ActionSubmit); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("double submit must fail")
	}
	if _, err := Next(StatusPending, banking.KYCPending, ActionReview); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("review before submit must fail")
	}
}

func TestCancelOnlyFromOpenStates(t *testing.T) {
	for _, status := range statuses {
		_, err := Next(status, banking.KYCPending, ActionCancel)
		if status.Terminal() != (err != nil) {
			t.Fatalf("cancel from %s: err=%v", status, err)
		}
	}
}

func TestKYCFrozenInTerminalStates(t *testing.T) {
	for _, status := range statuses {
		err := CheckKYCUpdate(status)
		if status.Terminal() && !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("expected kyc update to fail in %s", status)
		}
		if !status.Terminal() && err != nil {
			t.Fatalf("expected kyc update allowed in %s: %v", status, err)
		}
	}
}

func TestParseStatus(t *testing.T) {
	if s, err := ParseStatus("under_review"); err != nil || s != StatusUnderReview {
		t.Fatalf("unexpected %s %v", s, err)
	}
	if _, err := ParseStatus("ARCHIVED"); !errors.Is(err, banking.ErrInvalidEnumValue) {
		t.Fatalf("expected enum error, got %v", err)
	}
}
