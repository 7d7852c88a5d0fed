package common

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NameKey is the uniqueness key of a document name within a category:
// trimmed and NFC-normalized, so visually identical names collide.
func NameKey(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}
