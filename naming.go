package lockerd

import (
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// The object namespace is partitioned by key prefix: every key belonging to
// a user starts with "<username>/". Usernames cannot contain the separator,
// so the listing prefix for user A can never match a key owned by user B.

// KeyForUpload builds the storage key for a new upload. The millisecond
// timestamp prefix reduces the chance of two uploads with the same filename
// colliding; it does not make collisions impossible within one millisecond.
func KeyForUpload(username, filename string, now time.Time) string {
	return fmt.Sprintf("%s/%d-%s", username, now.UnixMilli(), filename)
}

// KeyForFile builds the storage key for an already-stored file. The filename
// must be the exact stored name including the timestamp prefix, typically
// obtained from a prior list.
func KeyForFile(username, filename string) string {
	return username + "/" + filename
}

// ListPrefix returns the key prefix that encloses all of a user's objects.
func ListPrefix(username string) string {
	return username + "/"
}

// DisplayName strips the username prefix from a key, returning the stored
// filename for client display. Keys without a separator are returned as-is.
func DisplayName(key string) string {
	if i := strings.Index(key, "/"); i >= 0 {
		return key[i+1:]
	}
	return key
}

// IsValidUsername reports whether a username is usable as a key prefix
// segment. It must be non-empty, at most 64 bytes, valid UTF-8, and free of
// separators, dots, control characters, and whitespace.
func IsValidUsername(name string) bool {
	if name == "" || len(name) > 64 {
		return false
	}

	if !utf8.ValidString(name) {
		return false
	}

	if strings.ContainsAny(name, `/\?#~.`) {
		return false
	}

	for _, r := range name {
		if r < 0x20 || r == 0x7f || unicode.IsSpace(r) {
			return false
		}
	}

	return true
}

// IsValidFilename reports whether a client-supplied filename is usable as
// the final key segment. Separators and traversal sequences are rejected so
// a filename can never escape the owner's prefix.
func IsValidFilename(name string) bool {
	if name == "" || len(name) > 512 {
		return false
	}

	if !utf8.ValidString(name) {
		return false
	}

	if name == "." || name == ".." {
		return false
	}

	if strings.ContainsAny(name, `/\?#~`) {
		return false
	}

	for _, r := range name {
		if r == 0 || r < 0x20 || r == 0x7f {
			return false
		}
	}

	return true
}
