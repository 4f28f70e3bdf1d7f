package util

import (
	"path"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/readhaven/cover-services/constants"
)

// StringListContains returns true if the list of strings contains item.
func StringListContains(list []string, item string) bool {
	if list != nil {
		for i := range list {
			if list[i] == item {
				return true
			}
		}
	}
	return false
}

// LooksLikeURL returns true if url looks like an http or https URL.
func LooksLikeURL(url string) bool {
	return strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://")
}

// LooksLikeImageKey returns true if the file name or storage key ends
// with one of the extensions we store covers under. The check is
// case-insensitive.
func LooksLikeImageKey(key string) bool {
	return StringListContains(constants.ImageExtensions, KeyExtension(key))
}

// KeyExtension returns the lowercased extension of a file name or
// storage key, including the leading dot. Returns an empty string if
// the key has no extension.
func KeyExtension(key string) string {
	return strings.ToLower(path.Ext(key))
}

// ProjectRoot returns the project root directory. Config files and
// test fixtures are resolved relative to this.
func ProjectRoot() string {
	_, thisFile, _, _ := runtime.Caller(0)
	absPath, _ := filepath.Abs(path.Join(thisFile, "..", ".."))
	return absPath
}
