package blobstore

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"testing"
	"time"
)

// mockBucket: мок bucket.
type mockBucket struct {
	putFn       func(ctx context.Context, key string, data []byte, contentType string, meta Metadata) error
	authTokenFn func(ctx context.Context, prefix string, ttl time.Duration) (string, error)
	objectURL   string
	putCalls    int
}

func (m *mockBucket) Put(ctx context.Context, key string, data []byte, contentType string, meta Metadata) error {
	m.putCalls++
	if m.putFn != nil {
		return m.putFn(ctx, key, data, contentType, meta)
	}
	return nil
}

func (m *mockBucket) AuthToken(ctx context.Context, prefix string, ttl time.Duration) (string, error) {
	if m.authTokenFn != nil {
		return m.authTokenFn(ctx, prefix, ttl)
	}
	return "tok", nil
}

func (m *mockBucket) ObjectURL(key string) string { return m.objectURL }

func (m *mockBucket) Name() string { return "docs" }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPut_TemporaryURL(t *testing.T) {
	var gotPrefix string
	var gotTTL time.Duration
	var gotMeta Metadata
	var gotType string
	b := &mockBucket{
		objectURL: "https://f002.backblazeb2.com/file/docs/k.pdf",
		putFn: func(_ context.Context, _ string, _ []byte, contentType string, meta Metadata) error {
			gotType = contentType
			gotMeta = meta
			return nil
		},
		authTokenFn: func(_ context.Context, prefix string, ttl time.Duration) (string, error) {
			gotPrefix, gotTTL = prefix, ttl
			return "3_abc+/=", nil
		},
	}
	s := newStore(b, "https://f002.backblazeb2.com/file/", 10*time.Minute, testLogger())

	obj, err := s.Put(context.Background(), "k.pdf", []byte("%PDF"), "application/pdf", Metadata{"project_id": "2"})
	if err != nil {
		t.Fatalf("Put() вернул ошибку: %v", err)
	}
	if !obj.Temporary {
		t.Error("ожидалась временная ссылка")
	}
	want := "https://f002.backblazeb2.com/file/docs/k.pdf?Authorization=3_abc%2B%2F%3D"
	if obj.URL != want {
		t.Errorf("URL = %q, ожидается %q", obj.URL, want)
	}
	if gotPrefix != "k.pdf" || gotTTL != 10*time.Minute {
		t.Errorf("AuthToken(%q, %v)", gotPrefix, gotTTL)
	}
	if gotType != "application/pdf" || gotMeta["project_id"] != "2" {
		t.Errorf("Put() получил contentType=%q meta=%v", gotType, gotMeta)
	}
}

func TestPut_FallbackToPermanentURL(t *testing.T) {
	b := &mockBucket{
		authTokenFn: func(context.Context, string, time.Duration) (string, error) {
			return "", errors.New("unauthorized")
		},
	}
	s := newStore(b, "https://f002.backblazeb2.com/file", time.Minute, testLogger())

	obj, err := s.Put(context.Background(), "a b.pdf", []byte("x"), "application/pdf", nil)
	if err != nil {
		t.Fatalf("Put() вернул ошибку: %v", err)
	}
	if obj.Temporary {
		t.Error("ожидалась постоянная ссылка")
	}
	if obj.URL != "https://f002.backblazeb2.com/file/docs/a%20b.pdf" {
		t.Errorf("URL = %q", obj.URL)
	}
}

func TestPut_WriteErrorIsFatal(t *testing.T) {
	tokenCalled := false
	b := &mockBucket{
		putFn: func(context.Context, string, []byte, string, Metadata) error {
			return errors.New("503 service unavailable")
		},
		authTokenFn: func(context.Context, string, time.Duration) (string, error) {
			tokenCalled = true
			return "t", nil
		},
	}
	s := newStore(b, "https://example", time.Minute, testLogger())

	if _, err := s.Put(context.Background(), "k", []byte("x"), "application/pdf", nil); err == nil {
		t.Fatal("Put() должен вернуть ошибку записи")
	}
	if tokenCalled {
		t.Error("токен не должен запрашиваться после ошибки записи")
	}
}

func TestObjectKey(t *testing.T) {
	now := time.Unix(1700000000, 0)
	a := ObjectKey("relatório final.pdf", now)
	b := ObjectKey("relatório final.pdf", now)

	re := regexp.MustCompile(`^[0-9a-f-]{36}_1700000000_relat_rio_final\.pdf$`)
	if !re.MatchString(a) {
		t.Errorf("ObjectKey() = %q не соответствует формату", a)
	}
	if a == b {
		t.Error("ключи для одинаковых входных данных должны различаться")
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"report.pdf":            "report.pdf",
		"../../etc/passwd":      "passwd",
		`C:\Users\me\doc.pdf`:   "doc.pdf",
		"my doc (1).pdf":        "my_doc__1_.pdf",
		"":                      "file",
		"dir/":                  "dir",
	}
	for in, want := range tests {
		if got := SanitizeFilename(in); got != want {
			t.Errorf("SanitizeFilename(%q) = %q, ожидается %q", in, got, want)
		}
	}
	if strings.Contains(SanitizeFilename("a/b"), "/") {
		t.Error("результат не должен содержать /")
	}
}
