// Package branch assigns customers to a home branch using an external branch
// directory, falling back deterministically when no branch can be confirmed.
package branch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/AfshinJalili/bankflow/libs/events"
	"github.com/AfshinJalili/bankflow/libs/kafka"
)

var (
	ErrBranchNotFound = errors.New("branch not found")
	ErrInvalidBranch  = errors.New("invalid branch")
	ErrNoCandidates   = errors.New("no branch candidates configured")
)

// DefaultCandidates is the assignment order used when none is configured.
var DefaultCandidates = []string{"BR001", "BR002", "BR003", "BR004", "BR005"}

var codePattern = regexp.MustCompile(`^BR\d{3,6}$`)

type BranchStatus string

const (
	StatusActive           BranchStatus = "ACTIVE"
	StatusInactive         BranchStatus = "INACTIVE"
	StatusUnderMaintenance BranchStatus = "UNDER_MAINTENANCE"
	StatusClosed           BranchStatus = "CLOSED"
)

type Reason string

const (
	ReasonAuto     Reason = "AUTO_ASSIGNMENT"
	ReasonFallback Reason = "FALLBACK_ASSIGNMENT"
	ReasonManual   Reason = "MANUAL_REASSIGNMENT"
)

// Status is what the directory knows about a branch.
type Status struct {
	BranchCode    string       `json:"branchCode"`
	BranchName    string       `json:"branchName"`
	Region        string       `json:"region,omitempty"`
	Province      string       `json:"province,omitempty"`
	City          string       `json:"city,omitempty"`
	Address       string       `json:"address,omitempty"`
	ContactNumber string       `json:"contactNumber,omitempty"`
	Status        BranchStatus `json:"status"`
}

func (s Status) Active() bool {
	return strings.EqualFold(string(s.Status), string(StatusActive))
}

type Directory interface {
	// Status returns ErrBranchNotFound for an unknown code.
	Status(ctx context.Context, code string) (Status, error)
}

type Assignment struct {
	BranchCode string
	Reason     Reason
}

type Resolver struct {
	directory  Directory
	candidates []string
	logger     *slog.Logger
}

func NewResolver(directory Directory, candidates []string, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{directory: directory, candidates: candidates, logger: logger}
}

func ValidCode(code string) bool {
	return codePattern.MatchString(code)
}

// Assign picks the first candidate the directory confirms ACTIVE. Lookup
// errors count as not active. When nothing is confirmed the first candidate
// is used as a fallback, so Assign only fails when no candidates exist.
func (r *Resolver) Assign(ctx context.Context, customerID int64) (Assignment, error) {
	if len(r.candidates) == 0 {
		return Assignment{}, ErrNoCandidates
	}
	for _, code := range r.candidates {
		st, err := r.directory.Status(ctx, code)
		if err != nil {
			r.logger.Debug("branch lookup failed", "branch_code", code, "customer_id", customerID, "error", err)
			continue
		}
		if st.Active() {
			return Assignment{BranchCode: code, Reason: ReasonAuto}, nil
		}
	}
	fallback := r.candidates[0]
	r.logger.Warn("no active branch confirmed, using fallback", "customer_id", customerID, "branch_code", fallback)
	return Assignment{BranchCode: fallback, Reason: ReasonFallback}, nil
}

// Reassign validates an operator-chosen branch.
func (r *Resolver) Reassign(ctx context.Context, customerID int64, target string) (Assignment, error) {
	target = strings.ToUpper(strings.TrimSpace(target))
	if !ValidCode(target) {
		return Assignment{}, fmt.Errorf("%w: bad code format %q", ErrInvalidBranch, target)
	}
	st, err := r.directory.Status(ctx, target)
	if errors.Is(err, ErrBranchNotFound) {
		return Assignment{}, fmt.Errorf("%w: %s not found", ErrInvalidBranch, target)
	}
	if err != nil {
		return Assignment{}, fmt.Errorf("lookup branch %s: %w", target, err)
	}
	if !st.Active() {
		return Assignment{}, fmt.Errorf("%w: %s is %s", ErrInvalidBranch, target, st.Status)
	}
	r.logger.Info("customer branch reassigned", "customer_id", customerID, "branch_code", target)
	return Assignment{BranchCode: target, Reason: ReasonManual}, nil
}

// Lookup returns directory details for code.
func (r *Resolver) Lookup(ctx context.Context, code string) (Status, error) {
	return r.directory.Status(ctx, code)
}

// Event builds the branch-assignment-events payload for an assignment.
func Event(customerID, applicationID int64, a Assignment) events.BranchAssignment {
	return events.BranchAssignment{
		CustomerID:       customerID,
		ApplicationID:    applicationID,
		BranchCode:       a.BranchCode,
		AssignmentReason: string(a.Reason),
		Envelope: kafka.NewEnvelopeWithID(
			kafka.DeterministicEventID(events.TopicBranchAssignment, strconv.FormatInt(customerID, 10), a.BranchCode, string(a.Reason)),
			events.SourceCustomerAccount,
		),
	}
}

// StaticDirectory answers from a fixed set of branches. It backs local runs
// where no branch directory is deployed.
type StaticDirectory map[string]Status

func NewStaticDirectory(branches ...Status) StaticDirectory {
	d := make(StaticDirectory, len(branches))
	for _, b := range branches {
		d[b.BranchCode] = b
	}
	return d
}

func (d StaticDirectory) Status(_ context.Context, code string) (Status, error) {
	st, ok := d[code]
	if !ok {
		return Status{}, ErrBranchNotFound
	}
	return st, nil
}
