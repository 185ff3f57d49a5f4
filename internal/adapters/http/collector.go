package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cyface-de/cyup/internal/domain"
	"github.com/cyface-de/cyup/internal/ports"
	"github.com/cyface-de/cyup/pkg/ccyf"
)

const measurementsEndpoint = "/measurements"

// maxBodyBytes bounds how much of a response body is kept for diagnostics.
const maxBodyBytes = 4 << 10

// Collector implements ports.Collector using HTTP.
type Collector struct {
	client   ports.HTTPClient
	endpoint *url.URL
	logger   ports.Logger
}

// NewCollector creates a collector client for the given base endpoint,
// e.g. "https://collector.example.org/api/v4". The endpoint must be an
// absolute http or https URL.
func NewCollector(client ports.HTTPClient, endpoint string, logger ports.Logger) (*Collector, error) {
	u, err := ParseEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	return &Collector{
		client:   client,
		endpoint: u,
		logger:   logger,
	}, nil
}

// NewHTTPClient returns an *http.Client suitable for the collector. Redirect
// following is disabled because 308 means "resume incomplete" in the upload
// protocol, not a redirect.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// ParseEndpoint validates a collector base URL.
func ParseEndpoint(endpoint string) (*url.URL, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidEndpoint, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q is not an absolute http(s) URL", domain.ErrInvalidEndpoint, endpoint)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	return u, nil
}

// PreRequest posts the measurement metadata and announces the payload size.
func (c *Collector) PreRequest(ctx context.Context, pre ports.PreRequest) (ports.Response, error) {
	body, err := json.Marshal(pre.Metadata)
	if err != nil {
		return ports.Response{}, fmt.Errorf("marshal metadata: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.measurements().String(), bytes.NewReader(body))
	if err != nil {
		return ports.Response{}, fmt.Errorf("%w: %v", domain.ErrInvalidEndpoint, err)
	}
	req.Header.Set("Authorization", "Bearer "+pre.Token)
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	req.Header.Set("x-upload-content-length", strconv.Itoa(pre.PayloadSize))
	req.Header.Set("x-upload-content-type", ccyf.ContentType)

	return c.do(req)
}

// Transfer puts the complete payload to the session location.
func (c *Collector) Transfer(ctx context.Context, tr ports.Transfer) (ports.Response, error) {
	target, err := c.resolve(tr.Location)
	if err != nil {
		return ports.Response{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, bytes.NewReader(tr.Payload))
	if err != nil {
		return ports.Response{}, fmt.Errorf("%w: %v", domain.ErrInvalidEndpoint, err)
	}
	size := len(tr.Payload)
	req.Header.Set("Authorization", "Bearer "+tr.Token)
	req.Header.Set("Content-Type", ccyf.ContentType)
	if size > 0 {
		req.Header.Set("Content-Range", fmt.Sprintf("bytes 0-%d/%d", size-1, size))
	} else {
		req.Header.Set("Content-Range", "bytes */0")
	}

	return c.do(req)
}

// StatusCheck sends an empty put asking for the received range.
func (c *Collector) StatusCheck(ctx context.Context, st ports.StatusCheck) (ports.Response, error) {
	target, err := c.resolve(st.Location)
	if err != nil {
		return ports.Response{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, http.NoBody)
	if err != nil {
		return ports.Response{}, fmt.Errorf("%w: %v", domain.ErrInvalidEndpoint, err)
	}
	req.ContentLength = 0
	req.Header.Set("Authorization", "Bearer "+st.Token)
	req.Header.Set("Content-Range", fmt.Sprintf("bytes */%d", st.PayloadSize))

	return c.do(req)
}

// measurements returns the URL pre-requests are posted to.
func (c *Collector) measurements() *url.URL {
	target := *c.endpoint
	target.Path += measurementsEndpoint
	return &target
}

// resolve turns a server supplied location, which may be relative, into an
// absolute URL. Relative locations refer to the pre-request URL, not to the
// configured endpoint.
func (c *Collector) resolve(location string) (string, error) {
	ref, err := url.Parse(location)
	if err != nil || location == "" {
		return "", fmt.Errorf("%w: bad location %q", domain.ErrInvalidEndpoint, location)
	}
	return c.measurements().ResolveReference(ref).String(), nil
}

func (c *Collector) do(req *http.Request) (ports.Response, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return ports.Response{}, fmt.Errorf("send %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	// Drain the rest so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)

	c.logger.Debug("collector response",
		ports.String("method", req.Method),
		ports.String("path", req.URL.Path),
		ports.Int("status", resp.StatusCode),
	)

	return ports.Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}
