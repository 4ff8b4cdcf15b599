package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/passvault/internal/flagx"
)

var knownFlags = []string{
	"-a", "-grpc", "-trusted-proxies", "-d", "-s", "-t", "-production", "-cipher", "-images", "-uploads",
	"-u", "-p", "-b", "-region", "-e", "-log-level",
}

// parseFlags overlays command-line flags onto config.
//
//	-a string          HTTP bind address (":8080")
//	-grpc string       gRPC health bind address (":50051")
//	-trusted-proxies   comma-separated proxy IPs/CIDRs allowed to set X-Forwarded-For
//	-d string          PostgreSQL DSN
//	-s string          session token signing secret
//	-t int             session token validity, minutes
//	-production        secure cookies
//	-cipher string     cbc|gcm
//	-images string     disk|s3
//	-uploads string    upload directory for the disk image backend
//	-u, -p string      S3 user and password
//	-b string          S3 bucket
//	-region string     S3 region
//	-e string          S3 base endpoint
//	-log-level string  debug|info|warn|error
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], knownFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "HTTP address and port")
	fs.StringVar(&config.EndpointAddrGRPC, "grpc", config.EndpointAddrGRPC, "gRPC health address and port")
	fs.Func("trusted-proxies", "comma-separated trusted proxy IPs or CIDRs", func(v string) error {
		config.TrustedProxies = splitList(v)
		return nil
	})
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "session token secret")
	tokenValidity := fs.Int("t", int(config.TokenValidityDuration.Minutes()), "session token validity (in minutes)")
	fs.BoolVar(&config.Production, "production", config.Production, "production mode (secure cookies)")
	fs.StringVar(&config.CipherMode, "cipher", config.CipherMode, "secret cipher mode: cbc|gcm")
	fs.StringVar(&config.ImageBackend, "images", config.ImageBackend, "image backend: disk|s3")
	fs.StringVar(&config.UploadDir, "uploads", config.UploadDir, "upload directory")
	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "region", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.LogLevel, "log-level", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.TokenValidityDuration = time.Duration(*tokenValidity) * time.Minute
}
