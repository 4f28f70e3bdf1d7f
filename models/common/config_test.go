package common_test

import (
	"strings"
	"testing"
	"time"

	"github.com/readhaven/cover-services/constants"
	"github.com/readhaven/cover-services/models/common"
	"github.com/readhaven/cover-services/util/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig(t *testing.T) {
	testutil.EnsureTestEnv()
	config := common.NewConfig()
	assert.Equal(t, "test", config.ConfigName)
	assert.True(t, config.IsTestOrDev())

	assert.Equal(t, "covers", config.CoverBucket)
	assert.Equal(t, "covers/", config.StorageKeyPrefix)
	assert.Equal(t, "quarantine/", config.QuarantinePrefix)
	assert.Equal(t, 8898, config.AdminServicePort)
	assert.Equal(t, 2*time.Second, config.CacheReadTimeout)
	assert.Equal(t, 10*time.Second, config.ResolveTimeout)
	assert.Equal(t, 5*time.Minute, config.RefreshLockTTL)
	assert.EqualValues(t, 600, config.MinPlausibleCoverBytes)
	assert.Equal(t, 2, len(config.PlaceholderETags))

	assert.True(t, strings.HasPrefix(config.GoogleBooksURL, "http://localhost"))
	assert.True(t, strings.HasPrefix(config.LongitoodURL, "http://localhost"))
	assert.True(t, strings.HasPrefix(config.OpenLibraryURL, "http://localhost"))

	// Tildes in paths should be expanded.
	assert.False(t, strings.HasPrefix(config.BaseWorkingDir, "~"))
	assert.False(t, strings.HasPrefix(config.LocalCacheDir, "~"))
	assert.False(t, strings.HasPrefix(config.LogDir, "~"))
	assert.False(t, strings.HasPrefix(config.PlaceholderPath, "~"))
}

func TestActiveS3Credentials(t *testing.T) {
	testutil.EnsureTestEnv()
	config := common.NewConfig()
	active := config.ActiveS3Credentials()
	require.Equal(t, 2, len(active))
	assert.NotEmpty(t, active[constants.S3TargetPrimary].Host)
	assert.NotEmpty(t, active[constants.S3TargetArchive].Host)

	creds := config.S3Credentials[constants.S3TargetArchive]
	creds.Host = ""
	config.S3Credentials[constants.S3TargetArchive] = creds
	active = config.ActiveS3Credentials()
	require.Equal(t, 1, len(active))
	assert.NotEmpty(t, active[constants.S3TargetPrimary].Host)
}
