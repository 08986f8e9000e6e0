package banking

import "testing"

func TestValidPhone(t *testing.T) {
	for _, ok := range []string{"+639171234567", "639171234567", " +15551234 "} {
		if !ValidPhone(ok) {
			t.Fatalf("expected %q to be valid", ok)
		}
	}
	for _, bad := range []string{"", "+0123", "09-17-123", "+1234567890123456"} {
		if ValidPhone(bad) {
			t.Fatalf("expected %q to be invalid", bad)
		}
	}
}

func TestValidEmail(t *testing.T) {
	if !ValidEmail("ana.reyes@example.com") {
		t.Fatalf("expected plain address to be valid")
	}
	for _, bad := range []string{"", "ana", "Ana <ana@example.com>", "ana@"} {
		if ValidEmail(bad) {
			t.Fatalf("expected %q to be invalid", bad)
		}
	}
}
