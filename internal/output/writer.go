package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Format is an output encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Encode renders v in the given format. An indent of zero gives compact JSON;
// YAML always uses block style.
func Encode(v interface{}, format Format, indent int) ([]byte, error) {
	switch format {
	case FormatJSON, "":
		if indent > 0 {
			return DeterministicEncodeIndented(v, strings.Repeat(" ", indent))
		}
		return DeterministicEncode(v)
	case FormatYAML:
		return DeterministicEncodeYAML(v, indent)
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

// Compression is the codec chosen from an output path.
type Compression string

const (
	CompressionNone Compression = ""
	CompressionZstd Compression = "zstd"
	CompressionGzip Compression = "gzip"
)

// CompressionFor picks the codec from the path's extension.
func CompressionFor(path string) Compression {
	switch {
	case strings.HasSuffix(path, ".zst"):
		return CompressionZstd
	case strings.HasSuffix(path, ".gz"):
		return CompressionGzip
	default:
		return CompressionNone
	}
}

// NewWriter wraps w with the codec c. Closing the result flushes the codec but
// does not close w.
func NewWriter(w io.Writer, c Compression) (io.WriteCloser, error) {
	switch c {
	case CompressionZstd:
		return zstd.NewWriter(w)
	case CompressionGzip:
		return gzip.NewWriter(w), nil
	default:
		return nopWriteCloser{w}, nil
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// Write sends data to path, or to stdout when path is empty or "-".
func Write(path string, data []byte, stdout io.Writer) error {
	if path == "" || path == "-" {
		if _, err := stdout.Write(data); err != nil {
			return err
		}
		_, err := io.WriteString(stdout, "\n")
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	w, err := NewWriter(f, CompressionFor(path))
	if err != nil {
		_ = f.Close()
		return err
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		_ = f.Close()
		return fmt.Errorf("flush %s: %w", path, err)
	}
	return f.Close()
}
