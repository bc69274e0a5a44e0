// Package appid derives writer identities and validates the sync directory
// configuration marker.
package appid

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// MaxInstanceID bounds the optional numeric suffix distinguishing multiple
// instances of the same application on one device.
const MaxInstanceID = 100000

// Generate returns the app id for this device and application. The same
// inputs on the same device always produce the same id.
func Generate(appName string) (string, error) {
	device, err := deviceID()
	if err != nil {
		return "", err
	}
	return device + "-" + appName, nil
}

// GenerateWithID is like Generate but appends a zero-padded instance number,
// for applications running several instances on one device.
func GenerateWithID(appName string, id int) (string, error) {
	if id < 0 || id >= MaxInstanceID {
		return "", fmt.Errorf("instance id %d out of range [0, %d)", id, MaxInstanceID)
	}
	base, err := Generate(appName)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%05d", base, id), nil
}

// deviceID identifies this device. The hostname is used when available;
// otherwise a random identifier is generated once and persisted in the user
// configuration directory so it stays stable across runs.
func deviceID() (string, error) {
	if host, err := os.Hostname(); err == nil {
		if host = strings.TrimSpace(host); host != "" {
			return host, nil
		}
	}
	cfgDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine device identifier: %w", err)
	}
	file := filepath.Join(cfgDir, "decsync", "device-id")
	if data, err := os.ReadFile(file); err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return id, nil
		}
	}
	id := uuid.NewString()
	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return "", fmt.Errorf("failed to create device id directory: %w", err)
	}
	if err := os.WriteFile(file, []byte(id+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("failed to persist device id: %w", err)
	}
	return id, nil
}

// DefaultDir returns the default DecSync directory: $DECSYNC_DIR when set,
// otherwise ~/.local/share/decsync.
func DefaultDir() string {
	if dir := os.Getenv("DECSYNC_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "decsync"
	}
	return filepath.Join(home, ".local", "share", "decsync")
}
