// Package covers implements cover image resolution: canonical key
// derivation, the cache/provider fallback state machine, the pure
// selection engine, and background refresh.
package covers

import (
	"strings"

	"github.com/readhaven/cover-services/models/service"
)

// Resolve returns the canonical cache key for a book. Identifier
// priority is fixed: ISBN-13, then ISBN-10, then the provider-native
// catalog id. ISBNs are normalized (hyphens and spaces stripped)
// before use, so the same edition always yields the same key. The
// second return is false when the book carries no identifier at all.
//
// The key doubles as the book's tag in logs and provenance records,
// so everything downstream agrees on what "this book" means.
func Resolve(book *service.Book) (string, bool) {
	if book == nil {
		return "", false
	}
	if isbn := service.NormalizeISBN(book.ISBN13); isbn != "" {
		return isbn, true
	}
	if isbn := service.NormalizeISBN(book.ISBN10); isbn != "" {
		return isbn, true
	}
	if sourceID := strings.TrimSpace(book.SourceID); sourceID != "" {
		return sourceID, true
	}
	return "", false
}

// BookFromKey reconstructs a minimal Book from a canonical cache
// key, inverting Resolve as far as that is possible. Thirteen digits
// read as an ISBN-13, ten characters ending in a digit or X read as
// an ISBN-10, anything else is a catalog id. Refresh requests carry
// only the key, so this is how a refresh gets identifiers to query
// providers with.
func BookFromKey(bookKey string) *service.Book {
	key := strings.TrimSpace(bookKey)
	if len(key) == 13 && allDigits(key) {
		return &service.Book{ISBN13: key}
	}
	if len(key) == 10 && allDigits(key[:9]) && isISBNCheckChar(key[9]) {
		return &service.Book{ISBN10: key}
	}
	return &service.Book{SourceID: key}
}

func allDigits(value string) bool {
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isISBNCheckChar(c byte) bool {
	return (c >= '0' && c <= '9') || c == 'X' || c == 'x'
}
