package service

import (
	"encoding/json"
	"strings"
)

// Book carries the identifiers the cover engine needs to look up and
// cache a cover image. It is a projection of the catalog record, not
// the record itself; anything beyond identifiers and display strings
// belongs to the metadata layer.
type Book struct {
	// ISBN13 is the preferred identifier when present.
	ISBN13 string `json:"isbn13"`

	// ISBN10 is consulted when ISBN13 is blank.
	ISBN10 string `json:"isbn10"`

	// SourceID is the provider-native catalog ID (for example, a
	// Google Books volume ID). Last-resort identifier.
	SourceID string `json:"sourceId"`

	// Title is used only for logging. Never used as a lookup key.
	Title string `json:"title"`
}

func NewBook(isbn13, isbn10, sourceID string) *Book {
	return &Book{
		ISBN13:   isbn13,
		ISBN10:   isbn10,
		SourceID: sourceID,
	}
}

// PreferredISBN returns the best ISBN for provider lookups: ISBN-13
// if present, else ISBN-10, else empty. Hyphens and spaces are
// stripped, since providers want bare digits.
func (b *Book) PreferredISBN() string {
	if isbn := NormalizeISBN(b.ISBN13); isbn != "" {
		return isbn
	}
	return NormalizeISBN(b.ISBN10)
}

// NormalizeISBN strips hyphens and whitespace from an ISBN string.
// It does no checksum validation; garbage in is garbage out, and the
// provider will say so.
func NormalizeISBN(isbn string) string {
	isbn = strings.TrimSpace(isbn)
	isbn = strings.ReplaceAll(isbn, "-", "")
	isbn = strings.ReplaceAll(isbn, " ", "")
	return isbn
}

func BookFromJSON(jsonData string) (*Book, error) {
	book := &Book{}
	err := json.Unmarshal([]byte(jsonData), book)
	if err != nil {
		return nil, err
	}
	return book, nil
}

func (b *Book) ToJSON() (string, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
