package room

import (
	"errors"
	"testing"
)

func TestGenerateCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code := GenerateCode()
		if !ValidCode(code) {
			t.Fatalf("generated invalid code %q", code)
		}
		seen[code] = true
	}
	if len(seen) < 45 {
		t.Fatalf("codes are not random enough: %d distinct of 50", len(seen))
	}
}

func TestValidCode(t *testing.T) {
	cases := map[string]bool{
		"ABCDE":  true,
		"A1B2C":  true,
		"abcde":  false,
		"ABCD":   false,
		"ABCDEF": false,
		"AB-DE":  false,
	}
	for code, want := range cases {
		if got := ValidCode(code); got != want {
			t.Errorf("ValidCode(%q) = %v, want %v", code, got, want)
		}
	}
}

func TestManagerLifecycle(t *testing.T) {
	m := NewManager()
	first := newFakeTransport()

	r, err := m.Create("ABCDE", testOptions(ModeHost, first))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Create("ABCDE", testOptions(ModeHost, newFakeTransport())); !errors.Is(err, ErrRoomExists) {
		t.Fatalf("expected ErrRoomExists, got %v", err)
	}
	if _, err := m.Create("FGHIJ", testOptions(ModeBroadcast, newFakeTransport())); err != nil {
		t.Fatal(err)
	}

	got, err := m.Get("ABCDE")
	if err != nil || got != r {
		t.Fatalf("get returned %v, %v", got, err)
	}
	if codes := m.Codes(); len(codes) != 2 || codes[0] != "ABCDE" || codes[1] != "FGHIJ" {
		t.Fatalf("unexpected codes %v", codes)
	}

	if err := m.Remove("ABCDE"); err != nil {
		t.Fatal(err)
	}
	if !first.closed {
		t.Fatal("removed room should close its transport")
	}
	if _, err := m.Get("ABCDE"); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
	if len(m.Codes()) != 0 {
		t.Fatal("manager should be empty after close")
	}
}
