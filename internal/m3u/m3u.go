// Package m3u parses extended M3U/M3U8 playlists into channel records.
package m3u

import (
	"regexp"
	"strings"
)

const (
	// DefaultName is used when a directive carries no usable name.
	DefaultName = "Unknown"
	// DefaultGroup is used when a directive declares no group-title.
	DefaultGroup = "Default"

	directivePrefix = "#EXTINF:"
)

var (
	durationRe  = regexp.MustCompile(`^-?\d+`)
	attributeRe = regexp.MustCompile(`([a-zA-Z0-9_-]+)=("[^"]*"|\S+)`)
)

// Channel is one playlist entry. A zero Logo means the entry declared none.
type Channel struct {
	Name  string `json:"name"`
	URL   string `json:"url"`
	Group string `json:"group"`
	Logo  string `json:"logo,omitempty"`
}

// HasLogo reports whether the entry declared a tvg-logo.
func (c Channel) HasLogo() bool { return c.Logo != "" }

// Drop reasons reported in Dropped.
const (
	ReasonEndOfInput = "no following line"
	ReasonEmptyLine  = "empty following line"
	ReasonDirective  = "following line is a directive or comment"
)

// Dropped describes an #EXTINF directive that did not produce a channel.
type Dropped struct {
	Line      int    `json:"line"`
	Directive string `json:"directive"`
	Reason    string `json:"reason"`
}

type Result struct {
	Channels []Channel `json:"channels"`
	Count    int       `json:"count"`
	Dropped  []Dropped `json:"dropped,omitempty"`
}

// Parse scans playlist text and returns its channels in source order.
// A directive is only emitted when the line right after it is a URL; every
// other directive is dropped and listed in Result.Dropped. Parse never fails.
func Parse(content string) *Result {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	lines := strings.Split(content, "\n")

	res := &Result{Channels: []Channel{}}
	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if !strings.HasPrefix(line, directivePrefix) {
			continue
		}
		ch := parseDirective(line)

		if i+1 >= len(lines) {
			res.Dropped = append(res.Dropped, Dropped{Line: i + 1, Directive: line, Reason: ReasonEndOfInput})
			continue
		}
		next := strings.TrimSpace(lines[i+1])
		switch {
		case next == "":
			res.Dropped = append(res.Dropped, Dropped{Line: i + 1, Directive: line, Reason: ReasonEmptyLine})
		case strings.HasPrefix(next, "#"):
			res.Dropped = append(res.Dropped, Dropped{Line: i + 1, Directive: line, Reason: ReasonDirective})
		default:
			ch.URL = next
			res.Channels = append(res.Channels, ch)
		}
	}
	res.Count = len(res.Channels)
	return res
}

// parseDirective builds the pending record for an #EXTINF line. Lines that
// do not follow `#EXTINF:<duration>[attrs],<name>` keep the placeholders.
func parseDirective(line string) Channel {
	ch := Channel{Name: DefaultName, Group: DefaultGroup}

	rest := strings.TrimPrefix(line, directivePrefix)
	dur := durationRe.FindString(rest)
	if dur == "" {
		return ch
	}
	rest = rest[len(dur):]

	comma := separatorIndex(rest)
	if comma < 0 {
		return ch
	}
	if name := strings.TrimSpace(rest[comma+1:]); name != "" {
		ch.Name = name
	}

	attrs := parseAttributes(rest[:comma])
	if v := attrs["tvg-name"]; v != "" {
		ch.Name = v
	}
	if v := attrs["group-title"]; v != "" {
		ch.Group = v
	}
	ch.Logo = attrs["tvg-logo"]
	return ch
}

// separatorIndex returns the last comma outside double quotes. Unquoted
// attribute values may themselves contain commas.
func separatorIndex(s string) int {
	quoted := false
	last := -1
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			quoted = !quoted
		case ',':
			if !quoted {
				last = i
			}
		}
	}
	return last
}

func parseAttributes(s string) map[string]string {
	attrs := map[string]string{}
	for _, m := range attributeRe.FindAllStringSubmatch(s, -1) {
		attrs[strings.ToLower(m[1])] = strings.Trim(m[2], `"`)
	}
	return attrs
}
