// Package pathenc maps arbitrary path segments to file-system-safe names.
//
// The encoding is stable and reversible: a segment always escapes to the same
// name, and every escaped name decodes back to exactly one segment. Bytes
// that are unsafe on common file systems are replaced by "%XX" hex escapes.
// A leading dot is escaped so that encoded names never collide with the
// hidden directories the engine reserves for local state.
package pathenc

import (
	"fmt"
	"strings"
)

// emptyMarker encodes the empty segment. '-' is not a hex digit, so it cannot
// be produced by a "%XX" escape of a non-empty segment.
const emptyMarker = "%-"

const hexDigits = "0123456789ABCDEF"

func needsEscape(b byte) bool {
	switch b {
	case '%', '/', '\\', ':', '*', '?', '"', '<', '>', '|':
		return true
	}
	return b < 0x20 || b == 0x7F
}

// Escape converts a path segment to a file name.
func Escape(segment string) string {
	if segment == "" {
		return emptyMarker
	}
	var sb strings.Builder
	for i := 0; i < len(segment); i++ {
		b := segment[i]
		if needsEscape(b) || (i == 0 && b == '.') {
			sb.WriteByte('%')
			sb.WriteByte(hexDigits[b>>4])
			sb.WriteByte(hexDigits[b&0x0F])
		} else {
			sb.WriteByte(b)
		}
	}
	return sb.String()
}

// Unescape converts a file name back to the path segment it encodes.
func Unescape(name string) (string, error) {
	if name == emptyMarker {
		return "", nil
	}
	var sb strings.Builder
	for i := 0; i < len(name); i++ {
		b := name[i]
		if b != '%' {
			sb.WriteByte(b)
			continue
		}
		if i+3 > len(name) {
			return "", fmt.Errorf("truncated escape in %q", name)
		}
		hi := hexValue(name[i+1])
		lo := hexValue(name[i+2])
		if hi < 0 || lo < 0 {
			return "", fmt.Errorf("invalid escape %q in %q", name[i:i+3], name)
		}
		sb.WriteByte(byte(hi<<4 | lo))
		i += 2
	}
	return sb.String(), nil
}

func hexValue(b byte) int {
	switch {
	case b >= '0' && b <= '9':
		return int(b - '0')
	case b >= 'A' && b <= 'F':
		return int(b-'A') + 10
	case b >= 'a' && b <= 'f':
		return int(b-'a') + 10
	}
	return -1
}
