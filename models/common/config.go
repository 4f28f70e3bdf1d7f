package common

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/op/go-logging"
	"github.com/readhaven/cover-services/constants"
	"github.com/readhaven/cover-services/util"
	"github.com/spf13/viper"
)

type Config struct {
	AdminServicePort       int
	BaseWorkingDir         string
	CacheReadTimeout       time.Duration
	ConfigName             string
	CoverBucket            string
	GoogleBooksURL         string
	LocalCacheDir          string
	LogDir                 string
	LogLevel               logging.Level
	LongitoodURL           string
	MaxObjectScanBytes     int64
	MinPlausibleCoverBytes int64
	MinioTrace             bool
	NsqLookupd             string
	NsqURL                 string
	OpenLibraryURL         string
	PlaceholderETags       []string
	PlaceholderPath        string
	ProviderCooldown       time.Duration
	ProviderFailThreshold  int
	ProviderTimeout        time.Duration
	QuarantinePrefix       string
	RedisDefaultDB         int
	RedisPassword          string
	RedisRetries           int
	RedisRetryMs           time.Duration
	RedisURL               string
	RefreshLockTTL         time.Duration
	ResolveTimeout         time.Duration
	S3Credentials          map[string]S3Credentials
	SiegfriedSignature     string
	StorageKeyPrefix       string
}

var logLevels = map[string]logging.Level{
	"CRITICAL": logging.CRITICAL,
	"ERROR":    logging.ERROR,
	"WARNING":  logging.WARNING,
	"NOTICE":   logging.NOTICE,
	"INFO":     logging.INFO,
	"DEBUG":    logging.DEBUG,
}

// Returns a new config based on ENV var COVER_SERVICES_CONFIG
func NewConfig() *Config {
	config := loadConfig()
	config.expandPaths()
	config.sanityCheck()
	config.makeDirs()
	return config
}

func loadConfig() *Config {
	configDir, envName := getEnvVars()
	v := viper.New()
	v.AddConfigPath(configDir)
	v.SetConfigName(".env." + envName)
	v.SetConfigType("env")
	err := v.ReadInConfig()
	if err != nil {
		panic(fmt.Errorf("Fatal error config file: %s \n", err))
	}
	return &Config{
		AdminServicePort:       v.GetInt("ADMIN_SERVICE_PORT"),
		BaseWorkingDir:         v.GetString("BASE_WORKING_DIR"),
		CacheReadTimeout:       v.GetDuration("CACHE_READ_TIMEOUT"),
		ConfigName:             envName,
		CoverBucket:            v.GetString("COVER_BUCKET"),
		GoogleBooksURL:         v.GetString("GOOGLE_BOOKS_URL"),
		LocalCacheDir:          v.GetString("LOCAL_CACHE_DIR"),
		LogDir:                 v.GetString("LOG_DIR"),
		LogLevel:               logLevels[v.GetString("LOG_LEVEL")],
		LongitoodURL:           v.GetString("LONGITOOD_URL"),
		MaxObjectScanBytes:     v.GetInt64("MAX_OBJECT_SCAN_BYTES"),
		MinPlausibleCoverBytes: v.GetInt64("MIN_PLAUSIBLE_COVER_BYTES"),
		MinioTrace:             v.GetBool("MINIO_TRACE"),
		NsqLookupd:             v.GetString("NSQ_LOOKUPD"),
		NsqURL:                 v.GetString("NSQ_URL"),
		OpenLibraryURL:         v.GetString("OPEN_LIBRARY_URL"),
		PlaceholderETags:       strings.Fields(v.GetString("PLACEHOLDER_ETAGS")),
		PlaceholderPath:        v.GetString("PLACEHOLDER_PATH"),
		ProviderCooldown:       v.GetDuration("PROVIDER_COOLDOWN"),
		ProviderFailThreshold:  v.GetInt("PROVIDER_FAIL_THRESHOLD"),
		ProviderTimeout:        v.GetDuration("PROVIDER_TIMEOUT"),
		QuarantinePrefix:       v.GetString("QUARANTINE_PREFIX"),
		RedisDefaultDB:         v.GetInt("REDIS_DEFAULT_DB"),
		RedisPassword:          v.GetString("REDIS_PASSWORD"),
		RedisRetries:           v.GetInt("REDIS_RETRIES"),
		RedisRetryMs:           v.GetDuration("REDIS_RETRY_MS"),
		RedisURL:               v.GetString("REDIS_URL"),
		RefreshLockTTL:         v.GetDuration("REFRESH_LOCK_TTL"),
		ResolveTimeout:         v.GetDuration("RESOLVE_TIMEOUT"),
		S3Credentials: map[string]S3Credentials{
			constants.S3TargetPrimary: S3Credentials{
				Host:      v.GetString("S3_PRIMARY_HOST"),
				KeyID:     v.GetString("S3_PRIMARY_KEY"),
				SecretKey: v.GetString("S3_PRIMARY_SECRET"),
			},
			constants.S3TargetArchive: S3Credentials{
				Host:      v.GetString("S3_ARCHIVE_HOST"),
				KeyID:     v.GetString("S3_ARCHIVE_KEY"),
				SecretKey: v.GetString("S3_ARCHIVE_SECRET"),
			},
		},
		SiegfriedSignature: v.GetString("SIEGFRIED_SIGNATURE"),
		StorageKeyPrefix:   v.GetString("STORAGE_KEY_PREFIX"),
	}
}

func getEnvVars() (string, string) {
	configDir := getRequiredEnvVar("COVER_CONFIG_DIR")
	envName := getRequiredEnvVar("COVER_SERVICES_CONFIG")
	return configDir, envName
}

func getRequiredEnvVar(varName string) string {
	value := os.Getenv(varName)
	if value == "" {
		panic(fmt.Sprintf("Required env var %s not set", varName))
	}
	return value
}

// IsTestOrDev returns true when running under the test or dev
// profile.
func (c *Config) IsTestOrDev() bool {
	return c.ConfigName == "dev" || c.ConfigName == "test"
}

// ToJSON returns the config as JSON for the startup log, with
// credentials blanked out. S3 hosts stay visible because they are
// the first thing to check when storage misbehaves.
func (c *Config) ToJSON() string {
	redacted := *c
	redacted.RedisPassword = ""
	creds := make(map[string]S3Credentials, len(c.S3Credentials))
	for target, s3 := range c.S3Credentials {
		creds[target] = S3Credentials{Host: s3.Host}
	}
	redacted.S3Credentials = creds
	data, _ := json.Marshal(redacted)
	return string(data)
}

// ActiveS3Credentials returns the credentials entries that have a
// host configured. The Archive target is optional and most profiles
// leave it blank.
func (c *Config) ActiveS3Credentials() map[string]S3Credentials {
	active := make(map[string]S3Credentials)
	for target, creds := range c.S3Credentials {
		if creds.Host != "" {
			active[target] = creds
		}
	}
	return active
}

// Expand ~ to home dir in path settings.
func (c *Config) expandPaths() {
	c.BaseWorkingDir = expandPath(c.BaseWorkingDir)
	c.LocalCacheDir = expandPath(c.LocalCacheDir)
	c.LogDir = expandPath(c.LogDir)
	c.PlaceholderPath = expandPath(c.PlaceholderPath)
}

func expandPath(dirName string) string {
	dir, err := util.ExpandTilde(dirName)
	if err != nil {
		panic(err)
	}
	return dir
}

func isLocalHost(host string) bool {
	return strings.Contains(host, "localhost") ||
		strings.Contains(host, "127.0.0.1")
}

// If this is dev or test env, don't let config point to any external
// services. This prevents a dev/test installation from touching data
// in demo and prod systems.
func (c *Config) sanityCheck() {
	if c.IsTestOrDev() {
		if !isLocalHost(c.RedisURL) {
			panic(fmt.Sprintf("Dev/Test setup cannot use remote Redis instance %s", c.RedisURL))
		}
		for target, creds := range c.ActiveS3Credentials() {
			if !isLocalHost(creds.Host) {
				panic(fmt.Sprintf("Dev/Test setup cannot use remote S3 target %s (%s)", target, creds.Host))
			}
		}
	}
}

func (c *Config) makeDirs() error {
	dirs := []string{
		c.BaseWorkingDir,
		c.LocalCacheDir,
		c.LogDir,
	}
	for _, dir := range dirs {
		err := os.MkdirAll(dir, 0755)
		if err != nil {
			panic(err)
		}
	}
	return nil
}
