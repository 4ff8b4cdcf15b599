package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/passvault/internal/flagx"
	"github.com/dmitrijs2005/passvault/internal/timex"
)

// JsonConfig is the on-disk shape of the optional JSON config file. Durations
// accept both "1h" strings and integer nanoseconds. Encryption material is
// deliberately absent: it is read from the environment only.
type JsonConfig struct {
	EndpointAddrHTTP      *string         `json:"endpoint_addr_http"`
	EndpointAddrGRPC      *string         `json:"endpoint_addr_grpc"`
	TrustedProxies        []string        `json:"trusted_proxies"`
	DatabaseDSN           *string         `json:"database_dsn"`
	SecretKey             *string         `json:"secret_key"`
	CipherMode            *string         `json:"cipher_mode"`
	TokenValidityDuration *timex.Duration `json:"token_validity_duration"`
	Production            *bool           `json:"production"`
	BcryptCost            *int            `json:"bcrypt_cost"`
	MaxConcurrentHashes   *int64          `json:"max_concurrent_hashes"`
	ImageBackend          *string         `json:"image_backend"`
	UploadDir             *string         `json:"upload_dir"`
	MaxImageSize          *int64          `json:"max_image_size"`
	S3RootUser            *string         `json:"s3_root_user"`
	S3RootPassword        *string         `json:"s3_root_password"`
	S3Bucket              *string         `json:"s3_bucket"`
	S3Region              *string         `json:"s3_region"`
	S3BaseEndpoint        *string         `json:"s3_base_endpoint"`
	LogLevel              *string         `json:"log_level"`
}

// parseJson loads the file named by -c/-config, if any, and copies every
// field present in it onto config. An unreadable file or invalid JSON panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setIf(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setIf(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	if c.TrustedProxies != nil {
		config.TrustedProxies = c.TrustedProxies
	}
	setIf(&config.DatabaseDSN, c.DatabaseDSN)
	setIf(&config.SecretKey, c.SecretKey)
	setIf(&config.CipherMode, c.CipherMode)
	if c.TokenValidityDuration != nil {
		config.TokenValidityDuration = c.TokenValidityDuration.Duration
	}
	setIf(&config.Production, c.Production)
	setIf(&config.BcryptCost, c.BcryptCost)
	setIf(&config.MaxConcurrentHashes, c.MaxConcurrentHashes)
	setIf(&config.ImageBackend, c.ImageBackend)
	setIf(&config.UploadDir, c.UploadDir)
	setIf(&config.MaxImageSize, c.MaxImageSize)
	setIf(&config.S3RootUser, c.S3RootUser)
	setIf(&config.S3RootPassword, c.S3RootPassword)
	setIf(&config.S3Bucket, c.S3Bucket)
	setIf(&config.S3Region, c.S3Region)
	setIf(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setIf(&config.LogLevel, c.LogLevel)
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
