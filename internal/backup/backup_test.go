package backup

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestSealUnseal(t *testing.T) {
	plain := []byte(`{"clients":[],"projects":[],"payments":[]}`)

	sealed, err := Seal(plain, "correct horse")
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	if bytes.Contains(sealed, []byte("clients")) {
		t.Error("sealed output leaks plaintext")
	}
	if !IsSealed(sealed) {
		t.Error("IsSealed() = false for a sealed export")
	}
	if IsSealed(plain) {
		t.Error("IsSealed() = true for a plain export")
	}

	got, err := Unseal(sealed, "correct horse")
	if err != nil {
		t.Fatalf("Unseal() error = %v", err)
	}
	if !bytes.Equal(got, plain) {
		t.Errorf("Unseal() = %s", got)
	}

	if _, err := Unseal(sealed, "wrong"); !errors.Is(err, ErrDecrypt) {
		t.Errorf("expected ErrDecrypt, got %v", err)
	}
}

func TestSealUsesFreshSalt(t *testing.T) {
	a, _ := Seal([]byte("x"), "pw")
	b, _ := Seal([]byte("x"), "pw")
	if bytes.Equal(a, b) {
		t.Error("two seals of the same input are identical")
	}
}

func TestSealRequiresPassphrase(t *testing.T) {
	if _, err := Seal([]byte("x"), ""); err == nil {
		t.Error("expected error for empty passphrase")
	}
}

func TestUnsealRejectsUnknownVersion(t *testing.T) {
	_, err := Unseal([]byte(`{"version":9,"salt":"","data":""}`), "pw")
	if err == nil || !strings.Contains(err.Error(), "version") {
		t.Errorf("expected version error, got %v", err)
	}
}

func TestFileDestination(t *testing.T) {
	ctx := context.Background()
	f := File{Path: filepath.Join(t.TempDir(), "sub", "export.json")}

	if err := f.Write(ctx, []byte("first")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := f.Write(ctx, []byte("second")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	got, err := f.Read(ctx)
	if err != nil || string(got) != "second" {
		t.Errorf("Read() = %q, %v", got, err)
	}

	if _, err := (File{Path: filepath.Join(t.TempDir(), "missing.json")}).Read(ctx); err == nil {
		t.Error("expected error reading a missing file")
	}
}

func TestParseS3URL(t *testing.T) {
	tests := []struct {
		in      string
		bucket  string
		key     string
		wantErr bool
	}{
		{"s3://ledger/backups/2026.json", "ledger", "backups/2026.json", false},
		{"s3://ledger", "", "", true},
		{"s3:///key", "", "", true},
		{"/tmp/file.json", "", "", true},
	}
	for _, tt := range tests {
		bucket, key, err := ParseS3URL(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseS3URL(%q) error = %v", tt.in, err)
			continue
		}
		if bucket != tt.bucket || key != tt.key {
			t.Errorf("ParseS3URL(%q) = %q %q", tt.in, bucket, key)
		}
	}
}

// fakeS3 answers path-style PUT and GET requests from memory
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *fakeS3) RoundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := strings.TrimPrefix(req.URL.Path, "/")
	switch req.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(req.Body)
		f.objects[key] = body
		return &http.Response{StatusCode: http.StatusOK, Header: http.Header{"Etag": {`"etag"`}},
			Body: io.NopCloser(bytes.NewReader(nil))}, nil
	case http.MethodGet:
		body, ok := f.objects[key]
		if !ok {
			return &http.Response{StatusCode: http.StatusNotFound, Header: http.Header{},
				Body: io.NopCloser(strings.NewReader("<Error><Code>NoSuchKey</Code></Error>"))}, nil
		}
		return &http.Response{StatusCode: http.StatusOK, Header: http.Header{"Content-Type": {"application/json"}},
			ContentLength: int64(len(body)), Body: io.NopCloser(bytes.NewReader(body))}, nil
	}
	return &http.Response{StatusCode: http.StatusNotImplemented, Header: http.Header{},
		Body: io.NopCloser(bytes.NewReader(nil))}, nil
}

func TestS3ObjectRoundTrip(t *testing.T) {
	ctx := context.Background()
	fake := &fakeS3{objects: map[string][]byte{}}
	cfg := S3Config{
		Endpoint:        "https://s3.test.local",
		PathStyle:       true,
		AccessKeyID:     "AKIA",
		SecretAccessKey: "SECRET",
		HTTPClient:      &http.Client{Transport: fake},
	}

	obj, err := NewS3Object(ctx, cfg, "ledger", "exports/latest.json")
	if err != nil {
		t.Fatalf("NewS3Object() error = %v", err)
	}
	if obj.String() != "s3://ledger/exports/latest.json" {
		t.Errorf("String() = %s", obj)
	}

	if err := obj.Write(ctx, []byte(`{"ok":true}`)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if _, ok := fake.objects["ledger/exports/latest.json"]; !ok {
		t.Fatalf("object not stored, have %v", fake.objects)
	}

	got, err := obj.Read(ctx)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if string(got) != `{"ok":true}` {
		t.Errorf("Read() = %s", got)
	}

	missing, _ := NewS3Object(ctx, cfg, "ledger", "nope.json")
	if _, err := missing.Read(ctx); err == nil {
		t.Error("expected error for a missing object")
	}
}
