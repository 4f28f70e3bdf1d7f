package common

import (
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/op/go-logging"
	"github.com/readhaven/cover-services/constants"
	"github.com/readhaven/cover-services/network"
	"github.com/readhaven/cover-services/storage"
	"github.com/readhaven/cover-services/util/logger"
)

// Context is the composition root for the cover services. It owns the
// config, the logger, the long-lived clients (Redis, NSQ, S3), the
// two cache tiers, and the provider registry. Every service receives
// a *Context; nothing constructs its own shared clients.
type Context struct {
	Config       *Config
	ImageClient  *network.ImageClient
	LocalCache   *storage.LocalCache
	Logger       *logging.Logger
	NSQClient    *network.NSQClient
	ObjectStores map[string]*storage.ObjectStore
	Providers    *network.ProviderRegistry
	RedisClient  *network.RedisClient
	S3Clients    map[string]*minio.Client
}

func NewContext() *Context {
	return NewContextFromConfig(NewConfig())
}

// NewContextFromConfig builds a Context around an explicit config.
// Tests use this to point the clients at throwaway local servers.
func NewContextFromConfig(config *Config) *Context {
	_logger := getLogger(config)
	s3Clients := getS3Clients(config, _logger)
	return &Context{
		Config:       config,
		ImageClient:  network.NewImageClient(config.MaxObjectScanBytes, _logger),
		LocalCache:   getLocalCache(config),
		Logger:       _logger,
		NSQClient:    getNsqClient(config),
		ObjectStores: getObjectStores(config, s3Clients),
		Providers:    getProviders(config, _logger),
		RedisClient:  getRedisClient(config),
		S3Clients:    s3Clients,
	}
}

func getLogger(config *Config) *logging.Logger {
	log, _ := logger.InitLogger(config.LogDir, config.LogLevel)
	return log
}

func getNsqClient(config *Config) *network.NSQClient {
	return network.NewNSQClient(config.NsqURL)
}

func getRedisClient(config *Config) *network.RedisClient {
	return network.NewRedisClient(
		config.RedisURL,
		config.RedisPassword,
		config.RedisDefaultDB)
}

func getLocalCache(config *Config) *storage.LocalCache {
	cache, err := storage.NewLocalCache(config.LocalCacheDir)
	if err != nil {
		panic(fmt.Sprintf("Could not initialize local cover cache at %s: %v",
			config.LocalCacheDir, err))
	}
	return cache
}

func getS3Clients(config *Config, logger *logging.Logger) map[string]*minio.Client {
	creds := config.ActiveS3Credentials()
	s3Clients := make(map[string]*minio.Client, len(creds))
	// Dev and test talk to localhost over plain HTTP.
	useSSL := !config.IsTestOrDev()
	for target, cred := range creds {
		client, err := minio.New(
			cred.Host,
			&minio.Options{
				Creds:  credentials.NewStaticV4(cred.KeyID, cred.SecretKey, ""),
				Secure: useSSL,
			})
		if err != nil {
			panic(err)
		}
		if config.MinioTrace {
			client.TraceOn(NewTracer(target, logger))
		}
		s3Clients[target] = client
	}
	return s3Clients
}

func getObjectStores(config *Config, s3Clients map[string]*minio.Client) map[string]*storage.ObjectStore {
	stores := make(map[string]*storage.ObjectStore, len(s3Clients))
	for target, client := range s3Clients {
		stores[target] = storage.NewObjectStore(
			client,
			config.CoverBucket,
			network.NewCircuitBreaker(config.ProviderFailThreshold, config.ProviderCooldown))
	}
	return stores
}

func getProviders(config *Config, logger *logging.Logger) *network.ProviderRegistry {
	breaker := func() *network.CircuitBreaker {
		return network.NewCircuitBreaker(config.ProviderFailThreshold, config.ProviderCooldown)
	}
	return network.NewProviderRegistry(
		network.NewGoogleBooksClient(config.GoogleBooksURL, logger, breaker()),
		network.NewLongitoodClient(config.LongitoodURL, logger, breaker()),
		network.NewOpenLibraryClient(config.OpenLibraryURL, logger, breaker()),
	)
}

// PrimaryObjectStore returns the store for the primary cover bucket.
// This is the store the request path reads from and the cleanup
// workflow operates on.
func (context *Context) PrimaryObjectStore() *storage.ObjectStore {
	return context.ObjectStores[constants.S3TargetPrimary]
}

// S3ClientFor returns the raw minio client for the given storage
// target, or an error if none is configured.
func (context *Context) S3ClientFor(target string) (*minio.Client, error) {
	client := context.S3Clients[target]
	if client == nil {
		return nil, fmt.Errorf("No S3 client for target %s", target)
	}
	return client, nil
}
