package pathenc

import (
	"strings"
	"testing"
)

func TestEscape(t *testing.T) {
	tests := []struct {
		name    string
		segment string
		want    string
	}{
		{"plain", "calendar", "calendar"},
		{"empty", "", "%-"},
		{"slash", "a/b", "a%2Fb"},
		{"backslash", `a\b`, "a%5Cb"},
		{"percent", "100%", "100%25"},
		{"leading dot", ".hidden", "%2Ehidden"},
		{"inner dot kept", "a.b", "a.b"},
		{"windows reserved", `a:*?"<>|`, "a%3A%2A%3F%22%3C%3E%7C"},
		{"control char", "a\nb", "a%0Ab"},
		{"unicode untouched", "café ☺", "café ☺"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Escape(tt.segment)
			if got != tt.want {
				t.Errorf("Escape(%q) = %q, want %q", tt.segment, got, tt.want)
			}
			back, err := Unescape(got)
			if err != nil {
				t.Fatalf("Unescape(%q) failed: %v", got, err)
			}
			if back != tt.segment {
				t.Errorf("round trip %q -> %q -> %q", tt.segment, got, back)
			}
		})
	}
}

func TestEscapeNeverHidden(t *testing.T) {
	// Encoded names must never start with a dot, so reserved dot-directories
	// cannot collide with user paths.
	for _, segment := range []string{".", "..", ".decsync-local", ".a"} {
		if got := Escape(segment); strings.HasPrefix(got, ".") {
			t.Errorf("Escape(%q) = %q starts with a dot", segment, got)
		}
	}
}

func TestUnescapeInvalid(t *testing.T) {
	tests := []string{"%", "%2", "%zz", "a%G0", "trailing%2"}
	for _, name := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Unescape(name); err == nil {
				t.Errorf("Unescape(%q) succeeded, want error", name)
			}
		})
	}
}

func TestEscapeInjective(t *testing.T) {
	segments := []string{"", "%", "%-", "%25", "a", "a/b", "a%2Fb", ".", "%2E"}
	seen := map[string]string{}
	for _, s := range segments {
		e := Escape(s)
		if prev, ok := seen[e]; ok {
			t.Errorf("Escape collision: %q and %q both map to %q", prev, s, e)
		}
		seen[e] = s
	}
}
