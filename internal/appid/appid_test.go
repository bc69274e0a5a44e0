package appid

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGenerate(t *testing.T) {
	t.Run("deterministic", func(t *testing.T) {
		a, err := Generate("myapp")
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		b, err := Generate("myapp")
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		if a != b {
			t.Errorf("Generate not deterministic: %q != %q", a, b)
		}
		if !strings.HasSuffix(a, "-myapp") {
			t.Errorf("Generate = %q, want app name suffix", a)
		}
	})

	t.Run("with id", func(t *testing.T) {
		plain, err := Generate("myapp")
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		withID, err := GenerateWithID("myapp", 3)
		if err != nil {
			t.Fatalf("GenerateWithID failed: %v", err)
		}
		if plain == withID {
			t.Errorf("Generate and GenerateWithID returned the same id %q", plain)
		}
		if !strings.HasSuffix(withID, "-00003") {
			t.Errorf("GenerateWithID = %q, want zero-padded suffix", withID)
		}
		again, err := GenerateWithID("myapp", 3)
		if err != nil {
			t.Fatalf("GenerateWithID failed: %v", err)
		}
		if withID != again {
			t.Errorf("GenerateWithID not deterministic: %q != %q", withID, again)
		}
	})

	t.Run("id out of range", func(t *testing.T) {
		for _, id := range []int{-1, MaxInstanceID, MaxInstanceID + 7} {
			if _, err := GenerateWithID("myapp", id); err == nil {
				t.Errorf("GenerateWithID(%d) succeeded, want error", id)
			}
		}
	})
}

func TestCheckInfo(t *testing.T) {
	t.Run("creates missing marker", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "fresh")
		if err := CheckInfo(dir); err != nil {
			t.Fatalf("CheckInfo on fresh dir failed: %v", err)
		}
		data, err := os.ReadFile(filepath.Join(dir, InfoFileName))
		if err != nil {
			t.Fatalf("marker not created: %v", err)
		}
		if !strings.Contains(string(data), `"version":1`) {
			t.Errorf("marker content = %q", data)
		}
		// A second check accepts the file it just wrote.
		if err := CheckInfo(dir); err != nil {
			t.Fatalf("CheckInfo on initialized dir failed: %v", err)
		}
	})

	t.Run("malformed", func(t *testing.T) {
		tests := []struct {
			name    string
			content string
		}{
			{"not json", "hello"},
			{"missing version", `{"foo": 1}`},
			{"non-numeric version", `{"version": "x"}`},
			{"zero version", `{"version": 0}`},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				dir := t.TempDir()
				if err := os.WriteFile(filepath.Join(dir, InfoFileName), []byte(tt.content), 0o644); err != nil {
					t.Fatalf("write failed: %v", err)
				}
				if err := CheckInfo(dir); !errors.Is(err, ErrInvalidInfo) {
					t.Errorf("CheckInfo = %v, want ErrInvalidInfo", err)
				}
			})
		}
	})

	t.Run("newer version", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, InfoFileName), []byte(`{"version": 2}`), 0o644); err != nil {
			t.Fatalf("write failed: %v", err)
		}
		if err := CheckInfo(dir); !errors.Is(err, ErrUnsupportedVersion) {
			t.Errorf("CheckInfo = %v, want ErrUnsupportedVersion", err)
		}
	})
}
