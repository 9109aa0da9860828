package pdf

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrNotFound is returned when the PDF path does not exist.
	ErrNotFound = errors.New("PDF file not found")
	// ErrInvalidFormat is returned when the path does not end in ".pdf".
	ErrInvalidFormat = errors.New("file is not a PDF")
)

// ValidatePath checks that path exists and has a ".pdf" extension (any case)
// and returns it as a cleaned absolute path. The file is not opened and its
// content is never sniffed.
func ValidatePath(path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return "", fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if !strings.EqualFold(filepath.Ext(path), ".pdf") {
		return "", fmt.Errorf("%w: %s", ErrInvalidFormat, path)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	return abs, nil
}

// ReadBase64 validates path, reads the whole file and returns its standard
// base64 encoding (padded, no line wrapping).
func ReadBase64(path string) (string, error) {
	abs, err := ValidatePath(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return "", fmt.Errorf("failed to read PDF %s: %w", abs, err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// Size validates path and returns the file length in bytes from its metadata.
func Size(path string) (int64, error) {
	abs, err := ValidatePath(path)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return 0, fmt.Errorf("failed to stat PDF %s: %w", abs, err)
	}
	return info.Size(), nil
}
