package tui

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"m3uplay/internal/source"
)

func TestFormatClock(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "00:00"},
		{-time.Second, "00:00"},
		{59 * time.Second, "00:59"},
		{83*time.Second + 900*time.Millisecond, "01:23"},
		{61 * time.Minute, "01:00"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatClock(tt.in), tt.in.String())
	}
}

func TestProgressBar(t *testing.T) {
	assert.Equal(t, "░░░░", ProgressBar(0, 0, 4))
	assert.Equal(t, "██░░", ProgressBar(30*time.Second, time.Minute, 4))
	assert.Equal(t, "████", ProgressBar(2*time.Minute, time.Minute, 4))
	assert.Equal(t, "", ProgressBar(time.Second, time.Minute, 0))
	assert.Equal(t, "Vol █████░░░░░  50%", VolumeBar(50))
}

func TestDescribeLoadError(t *testing.T) {
	tests := []struct {
		err    error
		title  string
		status string
	}{
		{fmt.Errorf("%w: x", source.ErrInvalidLocation), "Invalid location", "Load failed: invalid location"},
		{fmt.Errorf("%w: denied", source.ErrFile), "File error", "Load failed"},
		{fmt.Errorf("%w: slow", source.ErrTimeout), "Network error", "Load timed out"},
		{fmt.Errorf("%w: 404", source.ErrHTTPStatus), "Network error", "Load failed: HTTP error"},
		{fmt.Errorf("%w: refused", source.ErrNetwork), "Network error", "Load failed: network error"},
		{fmt.Errorf("%w: 40 MiB", source.ErrTooLarge), "Content error", "Load failed: playlist too large"},
		{fmt.Errorf("%w: bad bytes", source.ErrDecode), "Content error", "Load failed: content decode error"},
		{errors.New("boom"), "Unknown error", "Load failed: unknown error"},
	}

	for _, tt := range tests {
		f := DescribeLoadError("http://example.com/tv.m3u", tt.err)
		assert.Equal(t, tt.title, f.Title)
		assert.Equal(t, tt.status, f.Status)
		assert.NotEmpty(t, f.Text)
	}
}
