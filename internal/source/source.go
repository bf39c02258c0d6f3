package source

import (
	"context"
	"errors"
)

// DefaultUserAgent is sent for playlist fetches and HTTP media alike; some
// IPTV servers refuse requests that do not look like a desktop browser.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/90.0.4430.212 Safari/537.36"

var (
	ErrInvalidLocation = errors.New("invalid playlist location")
	ErrFile            = errors.New("playlist file error")
	ErrTimeout         = errors.New("playlist request timed out")
	ErrHTTPStatus      = errors.New("playlist server returned an error status")
	ErrNetwork         = errors.New("playlist network error")
	ErrTooLarge        = errors.New("playlist too large")
	ErrDecode          = errors.New("playlist content could not be decoded")
)

// Source fetches raw playlist text from one kind of location.
type Source interface {
	Name() string
	Accepts(location string) bool
	Fetch(ctx context.Context, location string) (string, error)
}
