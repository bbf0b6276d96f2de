// Пакет blobstore: хранение загруженных файлов в Backblaze B2.
// Выдаёт временные ссылки на скачивание с fallback на постоянную ссылку.
package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/Backblaze/blazer/b2"
	"github.com/google/uuid"
)

// Metadata: пользовательские атрибуты объекта (B2 file info).
type Metadata map[string]string

// Object: ссылка на сохранённый объект.
type Object struct {
	// Key: ключ объекта в бакете
	Key string
	// URL: ссылка на скачивание
	URL string
	// Temporary: URL содержит токен авторизации с ограниченным сроком
	Temporary bool
}

// bucket: минимальный набор операций над бакетом, нужный хранилищу.
type bucket interface {
	Put(ctx context.Context, key string, data []byte, contentType string, meta Metadata) error
	AuthToken(ctx context.Context, prefix string, ttl time.Duration) (string, error)
	ObjectURL(key string) string
	Name() string
}

// B2Store: хранилище файлов в бакете Backblaze B2.
type B2Store struct {
	bucket        bucket
	publicBaseURL string
	ttl           time.Duration
	logger        *slog.Logger
}

// New авторизуется в B2 и открывает бакет.
// publicBaseURL: база постоянных ссылок (https://f002.backblazeb2.com/file),
// ttl: время жизни временных ссылок, выдаваемых Put.
func New(ctx context.Context, keyID, applicationKey, bucketName, publicBaseURL string, ttl time.Duration, logger *slog.Logger) (*B2Store, error) {
	client, err := b2.NewClient(ctx, keyID, applicationKey)
	if err != nil {
		return nil, fmt.Errorf("авторизация в B2: %w", err)
	}

	bkt, err := client.Bucket(ctx, bucketName)
	if err != nil {
		return nil, fmt.Errorf("открытие бакета %s: %w", bucketName, err)
	}

	logger.Info("Бакет B2 открыт", slog.String("bucket", bucketName))
	return newStore(&b2Bucket{bucket: bkt}, publicBaseURL, ttl, logger), nil
}

func newStore(b bucket, publicBaseURL string, ttl time.Duration, logger *slog.Logger) *B2Store {
	return &B2Store{
		bucket:        b,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		ttl:           ttl,
		logger:        logger.With(slog.String("component", "blobstore")),
	}
}

// Put загружает данные под ключом key и возвращает ссылку на скачивание.
// Ошибка записи фатальна; ошибка выдачи временной ссылки: нет.
func (s *B2Store) Put(ctx context.Context, key string, data []byte, contentType string, meta Metadata) (*Object, error) {
	if err := s.bucket.Put(ctx, key, data, contentType, meta); err != nil {
		return nil, fmt.Errorf("запись объекта %s: %w", key, err)
	}

	s.logger.Info("Объект сохранён",
		slog.String("key", key),
		slog.Int("size", len(data)),
	)

	u, temporary := s.DownloadURL(ctx, key, s.ttl)
	return &Object{Key: key, URL: u, Temporary: temporary}, nil
}

// DownloadURL выдаёт временную ссылку с токеном авторизации на ttl.
// Если токен получить не удалось, возвращает постоянную ссылку и temporary = false.
func (s *B2Store) DownloadURL(ctx context.Context, key string, ttl time.Duration) (string, bool) {
	token, err := s.bucket.AuthToken(ctx, key, ttl)
	if err != nil || token == "" {
		s.logger.Warn("Не удалось получить токен скачивания, используется постоянная ссылка",
			slog.String("key", key),
			slog.Any("error", err),
		)
		return s.PermanentURL(key), false
	}

	base := s.bucket.ObjectURL(key)
	if base == "" {
		base = s.PermanentURL(key)
	}
	return base + "?Authorization=" + url.QueryEscape(token), true
}

// PermanentURL возвращает постоянную ссылку вида <base>/<bucket>/<key>.
func (s *B2Store) PermanentURL(key string) string {
	return s.publicBaseURL + "/" + s.bucket.Name() + "/" + escapeKey(key)
}

// escapeKey экранирует сегменты ключа, сохраняя разделители "/".
func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

// ObjectKey формирует уникальный ключ объекта: <uuid>_<unix-время>_<имя файла>.
func ObjectKey(filename string, now time.Time) string {
	return uuid.NewString() + "_" + strconv.FormatInt(now.Unix(), 10) + "_" + SanitizeFilename(filename)
}

// SanitizeFilename оставляет только базовое имя файла и заменяет
// символы вне [A-Za-z0-9._-] на "_".
func SanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "file"
	}

	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// --- Адаптер blazer ---

// b2Bucket: реализация bucket поверх *b2.Bucket.
type b2Bucket struct {
	bucket *b2.Bucket
}

var _ bucket = (*b2Bucket)(nil)

func (b *b2Bucket) Put(ctx context.Context, key string, data []byte, contentType string, meta Metadata) error {
	w := b.bucket.Object(key).NewWriter(ctx, b2.WithAttrsOption(&b2.Attrs{
		ContentType: contentType,
		Info:        meta,
	}))
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func (b *b2Bucket) AuthToken(ctx context.Context, prefix string, ttl time.Duration) (string, error) {
	return b.bucket.AuthToken(ctx, prefix, ttl)
}

func (b *b2Bucket) ObjectURL(key string) string {
	return b.bucket.Object(key).URL()
}

func (b *b2Bucket) Name() string {
	return b.bucket.Name()
}
