package utils

import "testing"

func TestSafeEnv(t *testing.T) {
	const key = "XCYBER_TEST_SAFEENV"
	t.Setenv(key, "")
	if got := SafeEnv(key, "fallback"); got != "fallback" {
		t.Fatalf("got %q, want fallback", got)
	}
	t.Setenv(key, "  ")
	if got := SafeEnv(key, "fallback"); got != "fallback" {
		t.Fatalf("blank value: got %q, want fallback", got)
	}
	t.Setenv(key, "value")
	if got := SafeEnv(key, "fallback"); got != "value" {
		t.Fatalf("got %q, want value", got)
	}
}
