package testutil

import (
	"os"

	"github.com/readhaven/cover-services/models/common"
	"github.com/readhaven/cover-services/util"
)

// EnsureTestEnv points the config loader at the repo's .env.test when
// the caller's environment hasn't chosen a config. TestMain funcs
// call this before anything touches common.NewConfig.
func EnsureTestEnv() {
	if os.Getenv("COVER_CONFIG_DIR") == "" {
		os.Setenv("COVER_CONFIG_DIR", util.ProjectRoot())
	}
	if os.Getenv("COVER_SERVICES_CONFIG") == "" {
		os.Setenv("COVER_SERVICES_CONFIG", "test")
	}
}

// TestContext bundles a fully wired Context with the throwaway
// servers behind it, so tests can reach into Redis and S3 directly.
type TestContext struct {
	Context     *common.Context
	RedisServer *RedisServer
	S3Server    *S3Server
}

// NewTestContext builds a Context whose Redis and S3 clients point at
// fresh in-process fakes, and whose local cache lives in a fresh temp
// dir. Everything else comes from .env.test.
func NewTestContext() *TestContext {
	EnsureTestEnv()
	s3Server := NewS3Server()
	redisServer := NewRedisServer()

	config := common.NewConfig()
	config.RedisURL = redisServer.Addr()
	for target, creds := range config.S3Credentials {
		creds.Host = s3Server.Host()
		config.S3Credentials[target] = creds
	}
	cacheDir, err := os.MkdirTemp("", "cover-cache-test")
	if err != nil {
		panic(err)
	}
	config.LocalCacheDir = cacheDir

	return &TestContext{
		Context:     common.NewContextFromConfig(config),
		RedisServer: redisServer,
		S3Server:    s3Server,
	}
}

func (tc *TestContext) Close() {
	tc.RedisServer.Close()
	tc.S3Server.Close()
	os.RemoveAll(tc.Context.Config.LocalCacheDir)
}
