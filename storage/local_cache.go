package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/readhaven/cover-services/constants"
	"github.com/readhaven/cover-services/models/service"
	"github.com/readhaven/cover-services/util"
)

// LocalCache is the fast disk tier. Covers are stored as
// <baseDir>/<bookKey><ext>, one file per key, where ext is whatever
// the cover arrived as. Writes go to a temp file first and are
// renamed into place, so a reader never sees a half-written cover.
type LocalCache struct {
	baseDir string
}

func NewLocalCache(baseDir string) (*LocalCache, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("local cache requires a base directory")
	}
	err := os.MkdirAll(baseDir, 0755)
	if err != nil {
		return nil, err
	}
	return &LocalCache{baseDir: baseDir}, nil
}

func (cache *LocalCache) BaseDir() string {
	return cache.baseDir
}

// PathFor returns the absolute path a cover with this key and
// extension lives at.
func (cache *LocalCache) PathFor(bookKey, extension string) string {
	return filepath.Join(cache.baseDir, bookKey+extension)
}

// Find returns a candidate for the cached cover, or nil when the key
// is not cached. It probes the standard image extensions in order and
// measures dimensions from the file itself. A cached file that no
// longer decodes is treated as a miss, not an error, so one corrupt
// file can't take down the lookup path.
func (cache *LocalCache) Find(bookKey string) (*service.ImageCandidate, error) {
	if err := validateKey(bookKey); err != nil {
		return nil, err
	}
	for _, extension := range constants.ImageExtensions {
		path := cache.PathFor(bookKey, extension)
		file, err := os.Open(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		width, height, _, probeErr := util.ProbeImage(file)
		file.Close()
		if probeErr != nil {
			continue
		}
		candidate := service.NewImageCandidate(path, constants.SourceLocalCache, bookKey+extension)
		candidate.StorageLocation = constants.StorageLocationLocal
		candidate.Width = width
		candidate.Height = height
		return candidate, nil
	}
	return nil, nil
}

// Put writes cover bytes for the key and returns the final path. The
// write is atomic: bytes land in a temp file in the same directory,
// then rename into place. Any renditions of the same key under a
// different extension are removed afterward, so a key never resolves
// to a stale format.
func (cache *LocalCache) Put(bookKey, extension string, data []byte) (string, error) {
	if err := validateKey(bookKey); err != nil {
		return "", err
	}
	finalPath := cache.PathFor(bookKey, extension)
	tempFile, err := os.CreateTemp(cache.baseDir, bookKey+".tmp-*")
	if err != nil {
		return "", err
	}
	tempPath := tempFile.Name()
	_, err = tempFile.Write(data)
	if err == nil {
		err = tempFile.Close()
	} else {
		tempFile.Close()
	}
	if err != nil {
		os.Remove(tempPath)
		return "", err
	}
	err = os.Rename(tempPath, finalPath)
	if err != nil {
		os.Remove(tempPath)
		return "", err
	}
	cache.removeSiblings(bookKey, extension)
	return finalPath, nil
}

// Delete removes every rendition of the key. Missing files are fine.
func (cache *LocalCache) Delete(bookKey string) error {
	if err := validateKey(bookKey); err != nil {
		return err
	}
	for _, extension := range constants.ImageExtensions {
		err := os.Remove(cache.PathFor(bookKey, extension))
		if err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

func (cache *LocalCache) removeSiblings(bookKey, keepExtension string) {
	for _, extension := range constants.ImageExtensions {
		if extension == keepExtension {
			continue
		}
		os.Remove(cache.PathFor(bookKey, extension))
	}
}

// Book keys come from the identifier resolver and are plain ISBNs or
// catalog ids, but this tier joins them into paths, so reject
// anything that could escape the cache directory.
func validateKey(bookKey string) error {
	if bookKey == "" {
		return fmt.Errorf("book key cannot be empty")
	}
	if strings.ContainsAny(bookKey, `/\`) || strings.Contains(bookKey, "..") {
		return fmt.Errorf("book key %q is not a valid cache key", bookKey)
	}
	return nil
}
