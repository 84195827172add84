// Package input validates and reads the narrative text files given to the
// narrata CLI.
package input

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// DefaultMaxFileSize is the largest input accepted when no limit is
// configured.
const DefaultMaxFileSize = 10_000_000

// ErrValidation is wrapped by every error that rejects an input file.
var ErrValidation = errors.New("input: validation failed")

// Validate checks that path names an existing, non-empty, regular .txt file
// no larger than maxSize bytes. maxSize <= 0 means [DefaultMaxFileSize].
func Validate(path string, maxSize int64) error {
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: file does not exist: %s", ErrValidation, path)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: permission denied: %s", ErrValidation, path)
	case err != nil:
		return fmt.Errorf("%w: stat %s: %w", ErrValidation, path, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: path is not a file: %s", ErrValidation, path)
	}
	if info.Size() == 0 {
		return fmt.Errorf("%w: file is empty: %s", ErrValidation, path)
	}
	if !strings.EqualFold(filepath.Ext(path), ".txt") {
		return fmt.Errorf("%w: file must be a .txt file: %s", ErrValidation, path)
	}
	if info.Size() > maxSize {
		return fmt.Errorf("%w: file size %d exceeds maximum of %d bytes: %s", ErrValidation, info.Size(), maxSize, path)
	}
	return nil
}

// ReadFile validates path and returns its contents as text. The file must
// be valid UTF-8; a leading byte order mark is stripped.
func ReadFile(path string, maxSize int64) (string, error) {
	if err := Validate(path, maxSize); err != nil {
		return "", err
	}
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("input: open %s: %w", path, err)
	}
	defer f.Close()

	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	return ReadText(f, maxSize)
}

// ReadText reads at most maxSize bytes of UTF-8 text from r. Longer input
// and invalid encodings are validation errors.
func ReadText(r io.Reader, maxSize int64) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxSize+1))
	if err != nil {
		return "", fmt.Errorf("input: read: %w", err)
	}
	if int64(len(data)) > maxSize {
		return "", fmt.Errorf("%w: text exceeds maximum of %d bytes", ErrValidation, maxSize)
	}
	data = trimBOM(data)
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: text is not valid UTF-8", ErrValidation)
	}
	return string(data), nil
}

func trimBOM(b []byte) []byte {
	if len(b) >= 3 && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		return b[3:]
	}
	return b
}
