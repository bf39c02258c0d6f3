package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"

	"m3uplay/internal/source"
)

const DefaultTimeout = 15 * time.Second

// maxBodySize caps a playlist download. A var so tests can shrink it.
var maxBodySize = 32 << 20

type HTTPSource struct {
	client    *http.Client
	userAgent string
}

type Option func(*HTTPSource)

func WithTimeout(d time.Duration) Option {
	return func(s *HTTPSource) {
		if d > 0 {
			s.client.Timeout = d
		}
	}
}

func WithUserAgent(ua string) Option {
	return func(s *HTTPSource) {
		if ua != "" {
			s.userAgent = ua
		}
	}
}

func WithClient(c *http.Client) Option {
	return func(s *HTTPSource) {
		if c != nil {
			cp := *c
			if cp.Timeout == 0 {
				cp.Timeout = s.client.Timeout
			}
			s.client = &cp
		}
	}
}

func New(opts ...Option) *HTTPSource {
	s := &HTTPSource{
		client:    &http.Client{Timeout: DefaultTimeout},
		userAgent: source.DefaultUserAgent,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *HTTPSource) Name() string { return "http" }

func (s *HTTPSource) Accepts(location string) bool {
	l := strings.ToLower(location)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}

// Fetch downloads the playlist and decodes it to text. Failures are wrapped
// in one of source.ErrTimeout, source.ErrHTTPStatus, source.ErrNetwork,
// source.ErrTooLarge or source.ErrDecode so the caller can word its message
// per category.
func (s *HTTPSource) Fetch(ctx context.Context, location string) (string, error) {
	if !s.Accepts(location) {
		return "", fmt.Errorf("%w: %q is not an http(s) url", source.ErrInvalidLocation, location)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", source.ErrInvalidLocation, err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", classify(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: %s", source.ErrHTTPStatus, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, int64(maxBodySize)+1))
	if err != nil {
		return "", classify(err)
	}
	if len(body) > maxBodySize {
		return "", fmt.Errorf("%w: playlist larger than %d bytes", source.ErrTooLarge, maxBodySize)
	}
	return decode(body, resp.Header.Get("Content-Type"))
}

func classify(err error) error {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return fmt.Errorf("%w: %w", source.ErrTimeout, err)
	}
	return fmt.Errorf("%w: %w", source.ErrNetwork, err)
}

// decode honours a declared non-UTF-8 charset, then tries UTF-8, then falls
// back to ISO-8859-1.
func decode(body []byte, contentType string) (string, error) {
	if cs := charsetOf(contentType); cs != "" {
		if enc, err := htmlindex.Get(cs); err == nil {
			if name, _ := htmlindex.Name(enc); name != "utf-8" {
				if out, err := enc.NewDecoder().Bytes(body); err == nil {
					return string(out), nil
				}
			}
		}
	}
	if utf8.Valid(body) {
		return string(body), nil
	}
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(body)
	if err != nil {
		return "", fmt.Errorf("%w: %w", source.ErrDecode, err)
	}
	return string(out), nil
}

func charsetOf(contentType string) string {
	if contentType == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return strings.ToLower(params["charset"])
}
