package logging

import (
	"bytes"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

const mb = 1024 * 1024

func newTestWriter(t *testing.T, cfg RotationConfig) (*RotatingWriter, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "logs", "image2video.log")
	w, err := NewRotatingWriter(path, cfg)
	if err != nil {
		t.Fatalf("NewRotatingWriter failed: %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })
	return w, path
}

func write(t *testing.T, w io.Writer, p []byte) {
	t.Helper()
	if _, err := w.Write(p); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestRotatingWriter_AppendsToExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	if err := os.WriteFile(path, []byte("old\n"), 0644); err != nil {
		t.Fatal(err)
	}

	w, err := NewRotatingWriter(path, RotationConfig{})
	if err != nil {
		t.Fatalf("NewRotatingWriter failed: %v", err)
	}
	write(t, w, []byte("new\n"))
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	got, _ := os.ReadFile(path)
	if string(got) != "old\nnew\n" {
		t.Errorf("content = %q, want %q", got, "old\nnew\n")
	}
}

func TestRotatingWriter_Rotation(t *testing.T) {
	tests := []struct {
		name       string
		maxBackups int
		writes     int
		want       []string
		wantGone   []string
	}{
		{
			name:       "keeps backups up to the limit",
			maxBackups: 2,
			writes:     4,
			want:       []string{".1", ".2"},
			wantGone:   []string{".3"},
		},
		{
			name:       "no backups truncates in place",
			maxBackups: 0,
			writes:     3,
			wantGone:   []string{".1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, path := newTestWriter(t, RotationConfig{MaxSizeMB: 1, MaxBackups: tt.maxBackups})

			chunk := bytes.Repeat([]byte("x"), 600*1024)
			for i := 0; i < tt.writes; i++ {
				write(t, w, chunk)
			}

			info, err := os.Stat(path)
			if err != nil {
				t.Fatalf("current log missing: %v", err)
			}
			if info.Size() != int64(len(chunk)) {
				t.Errorf("current size = %d, want %d", info.Size(), len(chunk))
			}
			for _, ext := range tt.want {
				if !exists(path + ext) {
					t.Errorf("expected backup %s", ext)
				}
			}
			for _, ext := range tt.wantGone {
				if exists(path + ext) {
					t.Errorf("backup %s should not exist", ext)
				}
			}
		})
	}
}

func TestRotatingWriter_NoRotationWhenDisabled(t *testing.T) {
	w, path := newTestWriter(t, RotationConfig{MaxBackups: 3})

	chunk := bytes.Repeat([]byte("y"), mb)
	write(t, w, chunk)
	write(t, w, chunk)

	if exists(path + ".1") {
		t.Error("rotation should be disabled with MaxSizeMB = 0")
	}
	if info, _ := os.Stat(path); info.Size() != 2*mb {
		t.Errorf("size = %d, want %d", info.Size(), 2*mb)
	}
}

func TestRotatingWriter_OversizedFirstWriteIsKept(t *testing.T) {
	w, path := newTestWriter(t, RotationConfig{MaxSizeMB: 1, MaxBackups: 1})

	write(t, w, bytes.Repeat([]byte("z"), 2*mb))

	if exists(path + ".1") {
		t.Error("an empty file should not be rotated")
	}
}

func TestRotatingWriter_Compress(t *testing.T) {
	w, path := newTestWriter(t, RotationConfig{MaxSizeMB: 1, MaxBackups: 2, Compress: true})

	first := bytes.Repeat([]byte("a"), 700*1024)
	write(t, w, first)
	write(t, w, bytes.Repeat([]byte("b"), 700*1024))

	if exists(path + ".1") {
		t.Error("uncompressed backup should be removed")
	}
	f, err := os.Open(path + ".1.gz")
	if err != nil {
		t.Fatalf("compressed backup missing: %v", err)
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("gzip.NewReader failed: %v", err)
	}
	got, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if !bytes.Equal(got, first) {
		t.Errorf("decompressed backup has %d bytes, want %d", len(got), len(first))
	}

	// A second rotation shifts the compressed backup.
	write(t, w, bytes.Repeat([]byte("c"), 700*1024))
	if !exists(path+".2.gz") || !exists(path+".1.gz") {
		t.Error("expected .1.gz and .2.gz after two rotations")
	}
}

func TestRotatingWriter_Concurrent(t *testing.T) {
	w, path := newTestWriter(t, RotationConfig{MaxSizeMB: 1, MaxBackups: 5})

	line := []byte(strings.Repeat("l", 1023) + "\n")
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				_, _ = w.Write(line)
			}
		}()
	}
	wg.Wait()
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	var total int64
	for _, p := range []string{path, path + ".1", path + ".2"} {
		if info, err := os.Stat(p); err == nil {
			total += info.Size()
			if info.Size() > mb {
				t.Errorf("%s is %d bytes, over the limit", p, info.Size())
			}
		}
	}
	if want := int64(8 * 200 * len(line)); total != want {
		t.Errorf("total bytes = %d, want %d", total, want)
	}
}

func TestRotatingWriter_Close(t *testing.T) {
	w, _ := newTestWriter(t, RotationConfig{})

	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close = %v, want nil", err)
	}
	if _, err := w.Write([]byte("late")); err == nil {
		t.Error("Write after Close should fail")
	}
}

func TestNewRotatingLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "image2video.log")

	logger, err := NewRotatingLogger(path, LevelInfo, RotationConfig{MaxSizeMB: 1, MaxBackups: 1})
	if err != nil {
		t.Fatalf("NewRotatingLogger failed: %v", err)
	}
	big := strings.Repeat("p", 300*1024)
	for i := 0; i < 5; i++ {
		logger.Info("payload", "data", big)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if !exists(path + ".1") {
		t.Error("expected the logger to rotate its file")
	}
}
