package retrieve

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/danieljhkim/voltron/internal/metrics"
)

// Options configures Open.
type Options struct {
	// HTTPClient is used for http(s) depots (default http.DefaultClient)
	HTTPClient *http.Client

	// S3Client overrides the client built from S3Region/S3Endpoint
	S3Client S3API

	// S3Region and S3Endpoint configure the default S3 client
	S3Region   string
	S3Endpoint string

	// Retry configures retries; Attempts <= 1 disables the retry wrapper
	Retry RetryOptions

	Logger  logrus.FieldLogger
	Metrics *metrics.Metrics
}

// Open returns the Retriever for a depot location:
//   - a filesystem path or file:// URL reads a local depot directory
//   - http:// or https:// talks to a depot server
//   - s3://bucket/prefix reads a depot mirrored into S3
func Open(location string, opts Options) (Retriever, error) {
	base, err := open(location, opts)
	if err != nil {
		return nil, err
	}
	if opts.Retry.Attempts <= 1 {
		return base, nil
	}
	return NewRetrying(base, opts.Retry, opts.Logger, opts.Metrics), nil
}

func open(location string, opts Options) (Retriever, error) {
	if location == "" {
		return nil, fmt.Errorf("depot location is required")
	}

	u, err := url.Parse(location)
	if err != nil || u.Scheme == "" {
		return NewLocal(location), nil
	}

	switch u.Scheme {
	case "file":
		return NewLocal(u.Path), nil
	case "http", "https":
		return NewHTTP(location, opts.HTTPClient)
	case "s3":
		if u.Host == "" {
			return nil, fmt.Errorf("invalid depot location %q: missing bucket", location)
		}
		client := opts.S3Client
		if client == nil {
			client = NewS3Client(opts.S3Region, opts.S3Endpoint)
		}
		return NewS3(client, u.Host, strings.Trim(u.Path, "/")), nil
	default:
		return nil, fmt.Errorf("unsupported depot location scheme %q", u.Scheme)
	}
}
