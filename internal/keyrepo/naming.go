package keyrepo

import (
	"strings"
	"unicode"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/keyrepo/internal/common"
)

// newName is a seam for tests.
var newName = uuid.NewString

// SafeName returns name unchanged when it can be used inside a storage key.
// Otherwise it returns a freshly generated UUID and false.
//
// A usable name is valid UTF-8, not blank, does not start with '.', has no
// control characters and is at most common.MaxNameLength UTF-16 code units
// long, so characters outside the Basic Multilingual Plane count twice.
func SafeName(name string) (string, bool) {
	if IsSuitableName(name) {
		return name, true
	}
	return newName(), false
}

// IsSuitableName reports whether name satisfies the object naming rules.
func IsSuitableName(name string) bool {
	if !utf8.ValidString(name) || strings.TrimSpace(name) == "" {
		return false
	}
	if name[0] == '.' {
		return false
	}
	if utf16Len(name) > common.MaxNameLength {
		return false
	}
	return strings.IndexFunc(name, unicode.IsControl) < 0
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

// StorageKey composes the object key for a document name.
func StorageKey(prefix, name string) string {
	return prefix + name + common.DocumentSuffix
}

// IsDocumentKey reports whether an object key holds a document.
func IsDocumentKey(key string) bool {
	return strings.HasSuffix(key, common.DocumentSuffix)
}
