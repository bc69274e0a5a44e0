package appid

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

var (
	// ErrInvalidInfo indicates a missing or malformed .decsync-info file.
	ErrInvalidInfo = errors.New("invalid .decsync-info")
	// ErrUnsupportedVersion indicates the directory was written by a newer
	// engine than this one.
	ErrUnsupportedVersion = errors.New("unsupported DecSync version")
)

// InfoFileName is the configuration marker at the root of a sync directory.
const InfoFileName = ".decsync-info"

// SupportedVersion is the newest directory format this engine understands.
const SupportedVersion = 1

type info struct {
	Version int `json:"version"`
}

// CheckInfo validates the .decsync-info marker in dir. A missing file is not
// an error: a fresh marker with the current version is created, so a new
// directory can be initialized by any instance.
func CheckInfo(dir string) error {
	file := filepath.Join(dir, InfoFileName)
	data, err := os.ReadFile(file)
	if errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create sync directory %s: %w", dir, err)
		}
		data, _ := json.Marshal(info{Version: SupportedVersion})
		if err := os.WriteFile(file, append(data, '\n'), 0o644); err != nil {
			return fmt.Errorf("failed to create %s: %w", file, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", file, err)
	}
	var parsed info
	if err := json.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInfo, err)
	}
	if parsed.Version <= 0 {
		return fmt.Errorf("%w: missing or invalid version field", ErrInvalidInfo)
	}
	if parsed.Version > SupportedVersion {
		return fmt.Errorf("%w: directory uses version %d, this engine supports up to %d",
			ErrUnsupportedVersion, parsed.Version, SupportedVersion)
	}
	return nil
}
