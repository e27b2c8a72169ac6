package normalize

import "testing"

func TestUsername(t *testing.T) {
	if got := Username("  Alice "); got != "alice" {
		t.Fatalf("expected normalized username, got %q", got)
	}
	if got := Username("bob"); got != "bob" {
		t.Fatalf("expected unchanged username, got %q", got)
	}
}
