package testutil

import (
	"time"

	"github.com/AfshinJalili/bankflow/libs/auth"
)

const (
	TestJWTSecret = "test-secret"
	DemoStaffID   = "staff-0001"
)

// OperatorToken signs a staff token accepted by auth.RequireRole(secret, "operator").
func OperatorToken(secret []byte) (string, error) {
	return auth.IssueJWT(DemoStaffID, []string{auth.RoleOperator}, secret, time.Hour, time.Now())
}

// ViewerToken is valid but lacks the operator role.
func ViewerToken(secret []byte) (string, error) {
	return auth.IssueJWT(DemoStaffID, []string{"viewer"}, secret, time.Hour, time.Now())
}
