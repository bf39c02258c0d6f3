package local

import (
	"context"
	"fmt"
	"os"
	"strings"

	"m3uplay/internal/source"
)

type FileSource struct{}

func New() *FileSource { return &FileSource{} }

func (f *FileSource) Name() string { return "file" }

// Accepts takes anything without a URL scheme; the loader routes schemes first.
func (f *FileSource) Accepts(location string) bool {
	return location != "" && !strings.Contains(location, "://")
}

// Fetch reads the whole file. Bytes that are not valid UTF-8 are dropped
// rather than failing the load.
func (f *FileSource) Fetch(ctx context.Context, location string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(location)
	if err != nil {
		return "", fmt.Errorf("%w: %w", source.ErrFile, err)
	}
	return strings.ToValidUTF8(string(data), ""), nil
}
