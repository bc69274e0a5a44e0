package decsync

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/localfirst/decsync/internal/appid"
	"github.com/localfirst/decsync/internal/logstore"
	"github.com/localfirst/decsync/internal/pathenc"
	"github.com/localfirst/decsync/jsonval"
)

// Exported configuration errors, checked with errors.Is.
var (
	ErrInvalidInfo        = appid.ErrInvalidInfo
	ErrUnsupportedVersion = appid.ErrUnsupportedVersion
)

// staticInfoMaxLen caps the serialized size of static info values. Callers
// must not store larger values at the reserved ["info"] path.
const staticInfoMaxLen = 256

// infoPath is the reserved path for collection metadata.
var infoPath = []string{"info"}

// GetDefaultDir returns the default DecSync directory: $DECSYNC_DIR when
// set, otherwise ~/.local/share/decsync.
func GetDefaultDir() string {
	return appid.DefaultDir()
}

// CheckDecsyncInfo validates the .decsync-info marker in dir, creating one
// with the current version when missing. It returns [ErrInvalidInfo] or
// [ErrUnsupportedVersion] on failure.
func CheckDecsyncInfo(dir string) error {
	if dir == "" {
		dir = appid.DefaultDir()
	}
	return appid.CheckInfo(dir)
}

// GetAppID returns the app id for this device and application. The same
// inputs on the same device always yield the same id.
func GetAppID(appName string) (string, error) {
	return appid.Generate(appName)
}

// GetAppIDWithID is like [GetAppID] with an instance number (0 inclusive to
// 100000 exclusive) distinguishing multiple instances of the same
// application on one device.
func GetAppIDWithID(appName string, id int) (string, error) {
	return appid.GenerateWithID(appName, id)
}

// GetStaticInfo returns the current value for key at the reserved ["info"]
// path of a collection, without constructing a full instance. A key that was
// never written yields JSON null. Values are truncated to 256 serialized
// bytes; a value that no longer parses after truncation also yields null.
func GetStaticInfo(dir, syncType, collection string, key jsonval.Value) (jsonval.Value, error) {
	if dir == "" {
		dir = appid.DefaultDir()
	}
	store := logstore.New(storeRoot(dir, syncType, collection))
	res, ok, err := store.Latest("", infoPath, key.String())
	if err != nil {
		return jsonval.NewNull(), err
	}
	if !ok {
		return jsonval.NewNull(), nil
	}
	serialized := res.Value.String()
	if len(serialized) <= staticInfoMaxLen {
		return res.Value, nil
	}
	truncated, err := jsonval.ParseString(serialized[:staticInfoMaxLen])
	if err != nil {
		return jsonval.NewNull(), nil
	}
	return truncated, nil
}

// ListCollections enumerates the collections of a sync type, at most maxLen
// of them. A non-positive maxLen yields none. The order is stable but
// unspecified.
func ListCollections(dir, syncType string, maxLen int) ([]string, error) {
	if dir == "" {
		dir = appid.DefaultDir()
	}
	entries, err := os.ReadDir(storeRoot(dir, syncType, ""))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	var collections []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		name, err := pathenc.Unescape(e.Name())
		if err != nil {
			continue
		}
		collections = append(collections, name)
	}
	sort.Strings(collections)
	if maxLen < 0 {
		maxLen = 0
	}
	if len(collections) > maxLen {
		collections = collections[:maxLen]
	}
	return collections, nil
}
