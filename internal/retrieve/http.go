package retrieve

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// HTTP reads references from a depot served over HTTP, such as the one
// started by "voltron depot serve".
type HTTP struct {
	BaseURL *url.URL
	Client  *http.Client
}

// NewHTTP creates an HTTP retriever for base. A nil client uses
// http.DefaultClient.
func NewHTTP(base string, client *http.Client) (*HTTP, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid depot URL %q: %w", base, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid depot URL %q: scheme must be http or https", base)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTP{BaseURL: u, Client: client}, nil
}

// Retrieve issues GET <base>/<ref>. 404 maps to ErrNotFound; 5xx, 429 and
// transport failures are transient; any other status is permanent.
func (h *HTTP) Retrieve(ctx context.Context, ref string) (io.ReadCloser, error) {
	if err := ValidateRef(ref); err != nil {
		return nil, err
	}

	target := h.BaseURL.JoinPath(strings.Split(ref, "/")...)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, Permanent(fmt.Errorf("failed to build request for %s: %w", ref, err))
	}

	resp, err := h.Client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("failed to fetch %s: %w", ref, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return resp.Body, nil
	case resp.StatusCode == http.StatusNotFound:
		_ = resp.Body.Close()
		return nil, notFound(ref)
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		_ = resp.Body.Close()
		return nil, fmt.Errorf("failed to fetch %s: server returned %s", ref, resp.Status)
	default:
		_ = resp.Body.Close()
		return nil, Permanent(fmt.Errorf("failed to fetch %s: server returned %s", ref, resp.Status))
	}
}
