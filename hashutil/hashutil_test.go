package hashutil

import "testing"

func TestString_MatchesSHA256Hex(t *testing.T) {
	const empty = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := String(); got != empty {
		t.Fatalf("expected empty digest %s, got %s", empty, got)
	}
	if got := String(""); got != empty {
		t.Fatalf("expected empty digest for an empty string, got %s", got)
	}
	if String("ab", "c") != SHA256Hex([]byte("abc")) {
		t.Fatalf("String must hash the concatenation of its parts")
	}
	if len(String("x")) != Size {
		t.Fatalf("expected %d hex characters", Size)
	}
}
