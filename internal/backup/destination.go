package backup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Destination is where an export is written to or read from
type Destination interface {
	Write(ctx context.Context, data []byte) error
	Read(ctx context.Context) ([]byte, error)
	String() string
}

// File is a destination on the local filesystem
type File struct {
	Path string
}

func (f File) String() string { return f.Path }

// Write replaces the file through a temporary sibling
func (f File) Write(_ context.Context, data []byte) error {
	if dir := filepath.Dir(f.Path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	tmp := f.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", f.Path, err)
	}
	if err := os.Rename(tmp, f.Path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write %s: %w", f.Path, err)
	}
	return nil
}

func (f File) Read(context.Context) ([]byte, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f.Path, err)
	}
	return data, nil
}

// ParseS3URL splits s3://bucket/key
func ParseS3URL(raw string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(raw, "s3://")
	if !ok {
		return "", "", fmt.Errorf("invalid s3 url %q", raw)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return "", "", errors.New("s3 url needs both bucket and key: s3://bucket/key")
	}
	return bucket, key, nil
}

// DefaultExportName names an export file after its date
func DefaultExportName(date string) string {
	return "ironledger-export-" + date + ".json"
}
