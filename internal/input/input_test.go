package input

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestValidate(t *testing.T) {
	t.Parallel()

	good := writeFile(t, "story.txt", []byte("Once upon a time."))
	upper := writeFile(t, "STORY.TXT", []byte("Once."))
	empty := writeFile(t, "empty.txt", nil)
	markdown := writeFile(t, "story.md", []byte("# Once"))
	big := writeFile(t, "big.txt", []byte(strings.Repeat("a", 64)))
	dir := t.TempDir()

	tests := []struct {
		name    string
		path    string
		maxSize int64
		wantErr string
	}{
		{name: "valid", path: good},
		{name: "uppercase suffix", path: upper},
		{name: "missing", path: filepath.Join(dir, "nope.txt"), wantErr: "does not exist"},
		{name: "directory", path: dir, wantErr: "not a file"},
		{name: "empty", path: empty, wantErr: "empty"},
		{name: "wrong suffix", path: markdown, wantErr: ".txt"},
		{name: "too large", path: big, maxSize: 32, wantErr: "exceeds maximum"},
		{name: "at limit", path: big, maxSize: 64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := Validate(tt.path, tt.maxSize)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("err = %v, want ErrValidation", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %q, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestReadFile(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "bom.txt", append([]byte{0xEF, 0xBB, 0xBF}, "Hello."...))

	text, err := ReadFile(path, 0)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if text != "Hello." {
		t.Errorf("text = %q, want %q", text, "Hello.")
	}
}

func TestReadFile_InvalidUTF8(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "latin1.txt", []byte{'c', 'a', 'f', 0xE9})

	_, err := ReadFile(path, 0)
	if !errors.Is(err, ErrValidation) || !strings.Contains(err.Error(), "UTF-8") {
		t.Errorf("err = %v, want UTF-8 validation error", err)
	}
}

func TestReadText_Limit(t *testing.T) {
	t.Parallel()
	if _, err := ReadText(strings.NewReader("12345"), 4); !errors.Is(err, ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
	if got, err := ReadText(strings.NewReader("1234"), 4); err != nil || got != "1234" {
		t.Errorf("ReadText = %q, %v", got, err)
	}
}
