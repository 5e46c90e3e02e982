package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/datarhei/p1203/encoding/json"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Marshal returns the report as JSON with sorted keys, indented by four spaces
// and with a trailing newline.
func Marshal(r Report) ([]byte, error) {
	return json.MarshalSorted(r, "    ")
}

// Write writes the report as JSON to w.
func Write(w io.Writer, r Report) error {
	data, err := Marshal(r)
	if err != nil {
		return err
	}

	_, err = w.Write(data)

	return err
}

// Compression is the compression of a report file.
type Compression string

const (
	CompressionNone   Compression = ""
	CompressionGzip   Compression = "gzip"
	CompressionZstd   Compression = "zstd"
	CompressionBrotli Compression = "br"
)

// CompressionFor returns the compression for the extension of the path.
func CompressionFor(path string) Compression {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		return CompressionGzip
	case ".zst":
		return CompressionZstd
	case ".br":
		return CompressionBrotli
	}

	return CompressionNone
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// NewCompressor returns a writer that compresses into w. The returned writer must
// be closed in order to flush the compressed data.
func NewCompressor(w io.Writer, c Compression) (io.WriteCloser, error) {
	switch c {
	case CompressionNone:
		return nopCloser{w}, nil
	case CompressionGzip:
		return gzip.NewWriterLevel(w, gzip.BestCompression)
	case CompressionZstd:
		return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	case CompressionBrotli:
		return brotli.NewWriterLevel(w, brotli.BestCompression), nil
	}

	return nil, fmt.Errorf("unknown compression '%s'", c)
}

// WriteFile writes the report to the file. The file is compressed if its extension
// is .gz, .zst, or .br. The file is replaced only after the report has been
// written completely.
func WriteFile(path string, r Report) error {
	data, err := Marshal(r)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".p1203-report-*")
	if err != nil {
		return fmt.Errorf("creating temporary file: %w", err)
	}

	defer os.Remove(tmp.Name())

	w, err := NewCompressor(tmp, CompressionFor(path))
	if err != nil {
		tmp.Close()
		return err
	}

	if _, err := w.Write(data); err != nil {
		w.Close()
		tmp.Close()
		return fmt.Errorf("writing report: %w", err)
	}

	if err := w.Close(); err != nil {
		tmp.Close()
		return fmt.Errorf("writing report: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}

	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}

	return nil
}
