// Package playlist resolves a user-supplied location to a playlist source,
// parses the fetched text and keeps the result for the channel list.
package playlist

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"m3uplay/internal/m3u"
	"m3uplay/internal/source"
)

type Playlist struct {
	Location string        `json:"location"`
	Source   string        `json:"source"`
	Channels []m3u.Channel `json:"channels"`
	Count    int           `json:"count"`
	Dropped  []m3u.Dropped `json:"dropped,omitempty"`
}

// Match is a channel together with its index in Playlist.Channels.
type Match struct {
	Index   int
	Channel m3u.Channel
}

// Search returns channels whose name or group contains query, ignoring case.
// An empty query matches everything.
func (p *Playlist) Search(query string) []Match {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]Match, 0, len(p.Channels))
	for i, ch := range p.Channels {
		if q == "" ||
			strings.Contains(strings.ToLower(ch.Name), q) ||
			strings.Contains(strings.ToLower(ch.Group), q) {
			out = append(out, Match{Index: i, Channel: ch})
		}
	}
	return out
}

// Groups lists the distinct groups in order of first appearance.
func (p *Playlist) Groups() []string {
	seen := map[string]bool{}
	var groups []string
	for _, ch := range p.Channels {
		if !seen[ch.Group] {
			seen[ch.Group] = true
			groups = append(groups, ch.Group)
		}
	}
	return groups
}

type Loader struct {
	sources []source.Source
	log     *zap.Logger
}

// NewLoader tries sources in the given order; the first that accepts a
// location fetches it.
func NewLoader(log *zap.Logger, sources ...source.Source) *Loader {
	return &Loader{sources: sources, log: log}
}

func (l *Loader) Load(ctx context.Context, location string) (*Playlist, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, fmt.Errorf("%w: empty location", source.ErrInvalidLocation)
	}
	src := l.pick(location)
	if src == nil {
		return nil, fmt.Errorf("%w: %q", source.ErrInvalidLocation, location)
	}

	l.log.Info("loading playlist", zap.String("location", location), zap.String("source", src.Name()))
	text, err := src.Fetch(ctx, location)
	if err != nil {
		l.log.Warn("playlist load failed", zap.String("location", location), zap.Error(err))
		return nil, err
	}

	res := m3u.Parse(text)
	for _, d := range res.Dropped {
		l.log.Debug("directive dropped", zap.Int("line", d.Line), zap.String("reason", d.Reason))
	}
	l.log.Info("playlist parsed",
		zap.String("location", location),
		zap.Int("channels", res.Count),
		zap.Int("dropped", len(res.Dropped)),
	)
	return &Playlist{
		Location: location,
		Source:   src.Name(),
		Channels: res.Channels,
		Count:    res.Count,
		Dropped:  res.Dropped,
	}, nil
}

func (l *Loader) pick(location string) source.Source {
	for _, s := range l.sources {
		if s.Accepts(location) {
			return s
		}
	}
	return nil
}
