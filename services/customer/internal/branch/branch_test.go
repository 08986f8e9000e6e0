package branch

import (
	"context"
	"errors"
	"testing"

	"github.com/AfshinJalili/bankflow/libs/events"
	"github.com/AfshinJalili/bankflow/libs/logging"
)

type fakeDirectory struct {
	branches map[string]Status
	errs     map[string]error
	calls    []string
}

func (f *fakeDirectory) Status(_ context.Context, code string) (Status, error) {
	f.calls = append(f.calls, code)
	if err := f.errs[code]; err != nil {
		return Status{}, err
	}
	st, ok := f.branches[code]
	if !ok {
		return Status{}, ErrBranchNotFound
	}
	return st, nil
}

func active(code string) Status   { return Status{BranchCode: code, Status: StatusActive} }
func inactive(code string) Status { return Status{BranchCode: code, Status: StatusUnderMaintenance} }

func TestAssignPicksFirstActiveCandidate(t *testing.T) {
	dir := &fakeDirectory{branches: map[string]Status{
		"BR001": inactive("BR001"),
		"BR002": active("BR002"),
		"BR003": active("BR003"),
	}}
	r := NewResolver(dir, DefaultCandidates, logging.Discard())

	got, err := r.Assign(context.Background(), 5001)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if got.BranchCode != "BR002" || got.Reason != ReasonAuto {
		t.Fatalf("unexpected assignment %+v", got)
	}
	if len(dir.calls) != 2 {
		t.Fatalf("expected iteration to stop at first active, calls=%v", dir.calls)
	}
}

func TestAssignFallsBackToFirstCandidate(t *testing.T) {
	dir := &fakeDirectory{
		branches: map[string]Status{"BR002": inactive("BR002")},
		errs:     map[string]error{"BR001": errors.New("connection refused")},
	}
	r := NewResolver(dir, DefaultCandidates, logging.Discard())

	for i := 0; i < 3; i++ {
		got, err := r.Assign(context.Background(), 5001)
		if err != nil {
			t.Fatalf("assign: %v", err)
		}
		if got.BranchCode != "BR001" || got.Reason != ReasonFallback {
			t.Fatalf("fallback must be deterministic, got %+v", got)
		}
	}
}

func TestAssignWithoutCandidates(t *testing.T) {
	r := NewResolver(&fakeDirectory{}, nil, logging.Discard())
	if _, err := r.Assign(context.Background(), 5001); !errors.Is(err, ErrNoCandidates) {
		t.Fatalf("expected ErrNoCandidates, got %v", err)
	}
}

func TestReassign(t *testing.T) {
	dir := &fakeDirectory{
		branches: map[string]Status{"BR010": active("BR010"), "BR011": {BranchCode: "BR011", Status: StatusClosed}},
		errs:     map[string]error{"BR099": errors.New("timeout")},
	}
	r := NewResolver(dir, DefaultCandidates, logging.Discard())
	ctx := context.Background()

	got, err := r.Reassign(ctx, 5001, " br010 ")
	if err != nil || got.BranchCode != "BR010" || got.Reason != ReasonManual {
		t.Fatalf("unexpected reassignment %+v (%v)", got, err)
	}

	for _, target := range []string{"XX001", "BR1", "BR011", "BR404"} {
		if _, err := r.Reassign(ctx, 5001, target); !errors.Is(err, ErrInvalidBranch) {
			t.Fatalf("%s: expected ErrInvalidBranch, got %v", target, err)
		}
	}

	_, err = r.Reassign(ctx, 5001, "BR099")
	if err == nil || errors.Is(err, ErrInvalidBranch) {
		t.Fatalf("directory outage must not be reported as invalid branch, got %v", err)
	}
}

func TestEventIsKeyedByCustomer(t *testing.T) {
	evt := Event(5001, 1001, Assignment{BranchCode: "BR001", Reason: ReasonAuto})
	if err := evt.Validate(); err != nil {
		t.Fatalf("invalid event: %v", err)
	}
	if evt.Key() != "5001" || evt.AssignmentReason != "AUTO_ASSIGNMENT" || evt.EventSource != events.SourceCustomerAccount {
		t.Fatalf("unexpected event %+v", evt)
	}
	again := Event(5001, 1001, Assignment{BranchCode: "BR001", Reason: ReasonAuto})
	if again.EventID != evt.EventID {
		t.Fatalf("event id must be stable")
	}
}

func TestStaticDirectory(t *testing.T) {
	dir := NewStaticDirectory(active("BR001"), inactive("BR002"))
	r := NewResolver(dir, []string{"BR002", "BR001"}, logging.Discard())

	got, err := r.Assign(context.Background(), 5001)
	if err != nil || got.BranchCode != "BR001" || got.Reason != ReasonAuto {
		t.Fatalf("unexpected assignment %+v (%v)", got, err)
	}
	if _, err := dir.Status(context.Background(), "BR003"); !errors.Is(err, ErrBranchNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
