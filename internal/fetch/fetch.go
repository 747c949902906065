// Package fetch retrieves documents from the upstream content service and
// normalizes every outcome, including network failure, into a single
// response shape the store layer can act on.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yourorg/doc-publisher/internal/mount"
)

// DefaultTimeout bounds the upstream call when Config.Timeout is zero.
const DefaultTimeout = 20 * time.Second

// errorCacheControl is served with non-success responses so failures are
// cached briefly rather than hammering the upstream.
const errorCacheControl = "public, max-age=30"

// Config is explicit construction-time state; there are no package-level
// overrides.
type Config struct {
	// BaseURL of the upstream content-retrieval service.
	BaseURL string
	// Token, when set, is forwarded as a bearer credential.
	Token     string
	UserAgent string
	Timeout   time.Duration
	// HTTPClient overrides the default client; its Timeout is still set
	// from Config.Timeout.
	HTTPClient *http.Client
}

// Request names one document.
type Request struct {
	Owner string
	Repo  string
	Ref   string
	Path  string
	// Mount, when set, tells the upstream which origin backs Path.
	Mount *mount.Match
	// RequestID is forwarded for cross-service correlation.
	RequestID string
	// LastModified, when set, turns the call into a conditional fetch.
	LastModified string
}

// Response is the normalized upstream answer. Status is always a protocol
// status; network-level failures are folded into it.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Client calls the upstream service. Construct with New.
type Client struct {
	base      string
	token     string
	userAgent string
	http      *http.Client
}

func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	hc.Timeout = timeout
	return &Client{
		base:      strings.TrimRight(cfg.BaseURL, "/"),
		token:     cfg.Token,
		userAgent: cfg.UserAgent,
		http:      hc,
	}
}

// Fetch retrieves one document. The returned error is reserved for local
// programming mistakes (bad base URL); upstream and network failures come
// back as a Response with the mapped status.
func (c *Client) Fetch(ctx context.Context, r Request) (*Response, error) {
	u, err := c.buildURL(r)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build fetch request: %w", err)
	}
	req.Header.Set("X-Request-Id", r.RequestID)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if r.LastModified != "" {
		req.Header.Set("If-Modified-Since", r.LastModified)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return gatewayResponse(err), nil
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return gatewayResponse(err), nil
	}
	return normalize(resp.StatusCode, resp.Header, body), nil
}

// FetchRaw retrieves a repository file without any mount descriptor, for
// callers that only need status and bytes (fstab loading).
func (c *Client) FetchRaw(ctx context.Context, owner, repo, ref, path string) (int, []byte, error) {
	resp, err := c.Fetch(ctx, Request{Owner: owner, Repo: repo, Ref: ref, Path: path})
	if err != nil {
		return 0, nil, err
	}
	return resp.Status, resp.Body, nil
}

func (c *Client) buildURL(r Request) (string, error) {
	u, err := url.Parse(c.base)
	if err != nil {
		return "", fmt.Errorf("parse upstream base url: %w", err)
	}
	u = u.JoinPath("raw", r.Owner, r.Repo, r.Ref, strings.TrimPrefix(r.Path, "/"))
	if r.Mount != nil {
		q := u.Query()
		q.Set("mountType", r.Mount.Mount.Type)
		q.Set("mountURL", r.Mount.Mount.URL)
		q.Set("relPath", r.RelOrPath())
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// RelOrPath returns the mount-relative path when a mount matched, else the
// full document path.
func (r Request) RelOrPath() string {
	if r.Mount != nil {
		return r.Mount.RelPath
	}
	return r.Path
}

// normalize applies the status propagation policy: success and 304 pass
// through with their headers; 4xx and 502 pass through; any other failure
// becomes a plain 502. Non-success responses carry the upstream error text
// in X-Error and a short-lived cache-control.
func normalize(status int, header http.Header, body []byte) *Response {
	if status < 400 {
		return &Response{Status: status, Header: cloneHeader(header), Body: body}
	}
	if status >= 500 && status != http.StatusBadGateway {
		status = http.StatusBadGateway
	}
	h := cloneHeader(header)
	h.Set("X-Error", errorText(body))
	h.Set("Cache-Control", errorCacheControl)
	return &Response{Status: status, Header: h, Body: body}
}

// gatewayResponse folds timeouts and connection resets into a synthetic 504
// so a slow upstream never hangs the invocation.
func gatewayResponse(err error) *Response {
	h := http.Header{}
	h.Set("X-Error", err.Error())
	h.Set("Cache-Control", errorCacheControl)
	status := http.StatusGatewayTimeout
	var ne net.Error
	if !errors.Is(err, context.DeadlineExceeded) && !errors.As(err, &ne) {
		// Not a timeout-shaped failure; still an upstream problem.
		status = http.StatusBadGateway
	}
	return &Response{Status: status, Header: h}
}

func errorText(body []byte) string {
	const max = 512
	s := strings.TrimSpace(string(body))
	if s == "" {
		s = "upstream error"
	}
	if len(s) > max {
		s = s[:max]
	}
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' {
			return ' '
		}
		return r
	}, s)
}

func cloneHeader(h http.Header) http.Header {
	out := http.Header{}
	for k, vals := range h {
		for _, v := range vals {
			out.Add(k, v)
		}
	}
	return out
}
