package media

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// maxBaseNameLength caps the sanitized part of a storage filename so paths
// stay well under filesystem limits even with the timestamp prefix.
const maxBaseNameLength = 120

// StorageFileName builds a collision-resistant on-disk name for a downloaded
// attachment: a unix-nano timestamp prefix followed by the sanitized display
// name. The extension is preserved when the base name has to be truncated.
func StorageFileName(displayName string, now time.Time) string {
	name := SanitizeFileName(displayName)
	if name == "" {
		name = "attachment"
	}
	return fmt.Sprintf("%d-%s", now.UnixNano(), name)
}

// SanitizeFileName strips path separators and special characters from a
// remote-supplied filename and caps its length.
func SanitizeFileName(name string) string {
	name = filepath.Base(name)

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), "._-")
	if out == "" {
		return ""
	}

	if len(out) > maxBaseNameLength {
		ext := filepath.Ext(out)
		if len(ext) > 16 {
			ext = ""
		}
		out = out[:maxBaseNameLength-len(ext)] + ext
	}
	return out
}
