package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/readhaven/cover-services/constants"
	"github.com/readhaven/cover-services/models/service"
	"github.com/readhaven/cover-services/network"
	"github.com/readhaven/cover-services/util"
)

// ObjectStore is the durable cache tier, backed by an S3-compatible
// bucket through minio. Cover dimensions travel as user metadata so
// the lookup path can rank a stored cover without downloading it.
//
// Request-path operations (FindCover, PutCover) run behind a circuit
// breaker; a flapping store degrades to cache misses instead of
// stalling every resolution. Batch operations used by the cleanup
// workflow (List, GetBytes, Move) talk to the store directly.
//
// There is no public Delete. Objects leave the store two ways only:
// replaced by a newer rendition of the same cover, or quarantined by
// the cleanup workflow, which copies first and removes only a
// verified copy.
type ObjectStore struct {
	client  *minio.Client
	bucket  string
	breaker *network.CircuitBreaker
}

func NewObjectStore(client *minio.Client, bucket string, breaker *network.CircuitBreaker) *ObjectStore {
	return &ObjectStore{
		client:  client,
		bucket:  bucket,
		breaker: breaker,
	}
}

func (store *ObjectStore) Bucket() string {
	return store.bucket
}

// FindCover probes the standard image extensions under keyBase
// (typically prefix + book key) and returns a candidate for the first
// object present, or nil when the cover is not in the store. The
// candidate's dimensions come from object metadata and are unknown
// for objects stored without it.
func (store *ObjectStore) FindCover(ctx context.Context, keyBase string) (*service.ImageCandidate, error) {
	var candidate *service.ImageCandidate
	err := store.breaker.Execute(func() error {
		for _, extension := range constants.ImageExtensions {
			key := keyBase + extension
			info, err := store.client.StatObject(ctx, store.bucket, key, minio.StatObjectOptions{})
			if isNotFound(err) {
				continue
			}
			if err != nil {
				return fmt.Errorf("HEAD %s/%s: %v", store.bucket, key, err)
			}
			candidate = store.candidateFor(key, info)
			return nil
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return candidate, nil
}

// PutCover writes cover bytes under key with the measured dimensions
// attached as user metadata. Whole-object PUT, last writer wins.
// Renditions of the same cover under a different image extension are
// removed after a successful write; otherwise a stale .jpg would
// shadow a fresh .png forever, since FindCover probes extensions in
// a fixed order.
func (store *ObjectStore) PutCover(ctx context.Context, key string, data []byte, contentType string, width, height int) error {
	return store.breaker.Execute(func() error {
		_, err := store.client.PutObject(
			ctx,
			store.bucket,
			key,
			bytes.NewReader(data),
			int64(len(data)),
			minio.PutObjectOptions{
				ContentType: contentType,
				UserMetadata: map[string]string{
					"width":  strconv.Itoa(width),
					"height": strconv.Itoa(height),
				},
			})
		if err != nil {
			return fmt.Errorf("PUT %s/%s: %v", store.bucket, key, err)
		}
		store.removeSiblings(ctx, key)
		return nil
	})
}

func (store *ObjectStore) removeSiblings(ctx context.Context, key string) {
	keepExtension := util.KeyExtension(key)
	if !util.StringListContains(constants.ImageExtensions, keepExtension) {
		return
	}
	keyBase := strings.TrimSuffix(key, keepExtension)
	for _, extension := range constants.ImageExtensions {
		if extension == keepExtension {
			continue
		}
		store.client.RemoveObject(ctx, store.bucket, keyBase+extension, minio.RemoveObjectOptions{})
	}
}

// Stat returns object info for one key.
func (store *ObjectStore) Stat(ctx context.Context, key string) (minio.ObjectInfo, error) {
	return store.client.StatObject(ctx, store.bucket, key, minio.StatObjectOptions{})
}

// GetBytes downloads at most maxBytes of the object. Objects larger
// than the cap come back truncated; callers that care about the full
// content should check the size from List or Stat first. A cap <= 0
// means no cap.
func (store *ObjectStore) GetBytes(ctx context.Context, key string, maxBytes int64) ([]byte, error) {
	object, err := store.client.GetObject(ctx, store.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("GET %s/%s: %v", store.bucket, key, err)
	}
	defer object.Close()
	var reader io.Reader = object
	if maxBytes > 0 {
		reader = io.LimitReader(object, maxBytes)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("GET %s/%s: %v", store.bucket, key, err)
	}
	return data, nil
}

// List streams info for every object under prefix. Check the Err
// field on each entry; cancel the context to stop a partial listing.
func (store *ObjectStore) List(ctx context.Context, prefix string) <-chan minio.ObjectInfo {
	return store.client.ListObjects(ctx, store.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})
}

// Move copies the object to destKey, then removes the original. The
// copy must succeed before anything is deleted; a failed copy leaves
// the original untouched.
func (store *ObjectStore) Move(ctx context.Context, srcKey, destKey string) error {
	_, err := store.client.CopyObject(
		ctx,
		minio.CopyDestOptions{Bucket: store.bucket, Object: destKey},
		minio.CopySrcOptions{Bucket: store.bucket, Object: srcKey})
	if err != nil {
		return fmt.Errorf("copy %s/%s to %s: %v", store.bucket, srcKey, destKey, err)
	}
	err = store.client.RemoveObject(ctx, store.bucket, srcKey, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("remove %s/%s after copy: %v", store.bucket, srcKey, err)
	}
	return nil
}

func (store *ObjectStore) candidateFor(key string, info minio.ObjectInfo) *service.ImageCandidate {
	candidate := service.NewImageCandidate(key, constants.SourceS3Cache, key)
	candidate.StorageLocation = constants.StorageLocationS3
	candidate.Width = metadataInt(info, "width")
	candidate.Height = metadataInt(info, "height")
	return candidate
}

// metadataInt reads an int from user metadata. Minio canonicalizes
// metadata keys on the way back, so match case-insensitively.
func metadataInt(info minio.ObjectInfo, name string) int {
	for key, value := range info.UserMetadata {
		if strings.EqualFold(key, name) {
			n, err := strconv.Atoi(value)
			if err != nil {
				return 0
			}
			return n
		}
	}
	return 0
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	return minio.ToErrorResponse(err).StatusCode == http.StatusNotFound
}
