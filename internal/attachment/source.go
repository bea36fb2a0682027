// Package attachment retrieves the raw bytes of an image a chat user sent.
//
// The chat host hands the orchestrator an opaque attachment reference. A
// Source turns that reference into bytes or reports ErrUnavailable.
package attachment

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"

	"github.com/Iron-Ham/image2video/internal/errors"
)

// ErrUnavailable is returned when a Source cannot produce bytes for a
// reference.
var ErrUnavailable = errors.New("attachment unavailable")

// Source produces the bytes behind an attachment reference.
type Source interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, ref string) ([]byte, error)

// Fetch calls f.
func (f SourceFunc) Fetch(ctx context.Context, ref string) ([]byte, error) {
	return f(ctx, ref)
}

// Inline decodes references that carry the image as base64, optionally as a
// data URL ("data:image/png;base64,....").
type Inline struct{}

// Fetch decodes ref.
func (Inline) Fetch(_ context.Context, ref string) ([]byte, error) {
	data := strings.TrimSpace(ref)
	if i := strings.Index(data, "base64,"); i >= 0 {
		data = data[i+len("base64,"):]
	}
	if data == "" {
		return nil, ErrUnavailable
	}

	b, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		b, err = base64.RawStdEncoding.DecodeString(data)
	}
	if err != nil || len(b) == 0 {
		return nil, errors.Join(ErrUnavailable, err)
	}
	return b, nil
}

// TempFile reads a file the chat host downloaded and removes it afterwards.
// Relative references resolve under Dir.
type TempFile struct {
	Dir string
}

// Fetch reads and deletes the referenced file. Failing to delete is not an
// error.
func (s TempFile) Fetch(ctx context.Context, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if ref == "" {
		return nil, ErrUnavailable
	}

	path := ref
	if !filepath.IsAbs(path) && s.Dir != "" {
		path = filepath.Join(s.Dir, path)
	}

	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return nil, ErrUnavailable
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Join(ErrUnavailable, err)
	}
	_ = os.Remove(path)

	if len(b) == 0 {
		return nil, ErrUnavailable
	}
	return b, nil
}

// Chain tries each Source in order and returns the first non-empty result.
type Chain []Source

// Fetch returns the first successful Fetch. If every source fails the
// result is ErrUnavailable joined with their errors.
func (c Chain) Fetch(ctx context.Context, ref string) ([]byte, error) {
	errs := []error{ErrUnavailable}
	for _, src := range c {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b, err := src.Fetch(ctx, ref)
		if err == nil && len(b) > 0 {
			return b, nil
		}
		if err != nil && !errors.Is(err, ErrUnavailable) {
			errs = append(errs, err)
		}
	}
	return nil, errors.Join(errs...)
}

// Default returns the retrieval order used by the chat host adapter: a
// downloaded file under dir first, then inline base64 content.
func Default(dir string) Source {
	return Chain{TempFile{Dir: dir}, Inline{}}
}
