package network

import (
	"fmt"
	"time"

	"github.com/go-redis/redis/v7"
	"github.com/readhaven/cover-services/models/service"
)

// RedisClient wraps the interim state we keep in Redis: the latest
// resolution trace and refresh result per book key, plus the
// short-lived locks that keep two workers from refreshing the same
// key at once.
type RedisClient struct {
	client *redis.Client
}

func NewRedisClient(address, password string, db int) *RedisClient {
	return &RedisClient{
		client: redis.NewClient(&redis.Options{
			Addr:     address,
			Password: password,
			DB:       db,
		}),
	}
}

func (c *RedisClient) Ping() (string, error) {
	return c.client.Ping().Result()
}

func coverKey(bookKey string) string {
	return fmt.Sprintf("cover:%s", bookKey)
}

func refreshLockKey(bookKey string) string {
	return fmt.Sprintf("refresh-lock:%s", bookKey)
}

// RefreshLockAcquire takes the refresh lock for a book key. Returns
// true if this caller got the lock, false if someone else holds it.
// The lock expires on its own after ttl, so a crashed worker cannot
// wedge a key forever.
func (c *RedisClient) RefreshLockAcquire(bookKey string, ttl time.Duration) (bool, error) {
	acquired, err := c.client.SetNX(refreshLockKey(bookKey), time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("RefreshLockAcquire (%s): %s", bookKey, err.Error())
	}
	return acquired, nil
}

// RefreshLockRelease drops the refresh lock for a book key. Safe to
// call when the lock has already expired.
func (c *RedisClient) RefreshLockRelease(bookKey string) error {
	_, err := c.client.Del(refreshLockKey(bookKey)).Result()
	if err != nil {
		return fmt.Errorf("RefreshLockRelease (%s): %s", bookKey, err.Error())
	}
	return nil
}

// TraceSave stores a resolution trace as the latest for its book key.
func (c *RedisClient) TraceSave(trace *service.ResolutionTrace) error {
	jsonData, err := trace.ToJSON()
	if err != nil {
		return err
	}
	_, err = c.client.HSet(coverKey(trace.BookKey), "trace:latest", jsonData).Result()
	return err
}

// TraceGet returns the latest resolution trace for a book key.
func (c *RedisClient) TraceGet(bookKey string) (*service.ResolutionTrace, error) {
	data, err := c.client.HGet(coverKey(bookKey), "trace:latest").Result()
	if err != nil {
		return nil, fmt.Errorf("TraceGet (%s): %s", bookKey, err.Error())
	}
	return service.ResolutionTraceFromJSON(data)
}

// TraceDelete removes the stored trace for a book key.
func (c *RedisClient) TraceDelete(bookKey string) error {
	_, err := c.client.HDel(coverKey(bookKey), "trace:latest").Result()
	return err
}

// RefreshResultSave stores the latest background refresh outcome for
// a book key.
func (c *RedisClient) RefreshResultSave(result *service.RefreshResult) error {
	jsonData, err := result.ToJSON()
	if err != nil {
		return err
	}
	_, err = c.client.HSet(coverKey(result.BookKey), "refresh:latest", jsonData).Result()
	return err
}

// RefreshResultGet returns the latest background refresh outcome for
// a book key.
func (c *RedisClient) RefreshResultGet(bookKey string) (*service.RefreshResult, error) {
	data, err := c.client.HGet(coverKey(bookKey), "refresh:latest").Result()
	if err != nil {
		return nil, fmt.Errorf("RefreshResultGet (%s): %s", bookKey, err.Error())
	}
	return service.RefreshResultFromJSON(data)
}
