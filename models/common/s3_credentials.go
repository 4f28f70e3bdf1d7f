package common

// S3Credentials holds connection info for one object storage target.
// Host is host:port without a scheme; TLS use is decided by the
// config profile, since dev and test talk to localhost over plain
// HTTP.
type S3Credentials struct {
	Host      string
	KeyID     string
	SecretKey string
}
