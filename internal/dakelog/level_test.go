package dakelog

import "testing"

func TestLevelFromStringRoundTrips(t *testing.T) {
	cases := []struct {
		s    string
		want Level
	}{
		{"debug", DEBUG},
		{"info", INFO},
		{"warn", WARN},
		{"error", ERROR},
		{"fatal", FATAL},
	}
	for _, c := range cases {
		got, err := LevelFromString(c.s)
		if err != nil {
			t.Fatalf("LevelFromString(%q): %v", c.s, err)
		}
		if got != c.want {
			t.Fatalf("LevelFromString(%q) = %v, want %v", c.s, got, c.want)
		}
		if got.String() == "" {
			t.Fatalf("String() for %q returned empty", c.s)
		}
	}
}

func TestLevelFromStringRejectsUnknown(t *testing.T) {
	if _, err := LevelFromString("verbose"); err == nil {
		t.Fatalf("expected an error for an unknown level name")
	}
}
