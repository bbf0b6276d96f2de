// telemetry.go: аудит входов пользователей.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/bigkaa/docflow/internal/domain/model"
	"github.com/bigkaa/docflow/internal/domain/useragent"
	"github.com/bigkaa/docflow/internal/repository"
)

const (
	// DefaultLoginMethod: способ входа по умолчанию.
	DefaultLoginMethod = "email_password"
	// MaxLoginErrorChars: максимальная длина сохраняемого текста ошибки.
	MaxLoginErrorChars = 500
)

// LoginInput: данные о входе, переданные клиентом.
type LoginInput struct {
	UserID      string
	Email       string
	UserName    string
	LoginMethod string
	SessionID   string
	// Success: nil означает успешный вход
	Success *bool
	Error   string
}

// ClientInfo: сведения о клиенте из HTTP-запроса.
type ClientInfo struct {
	IP        string
	UserAgent string
}

// ProbeResult: классификация клиента без сохранения.
type ProbeResult struct {
	IP string
	useragent.Info
}

// TelemetryService: запись истории входов.
type TelemetryService struct {
	logins repository.LoginHistoryRepository
	now    func() time.Time
	logger *slog.Logger
}

// NewTelemetryService создаёт сервис аудита входов.
func NewTelemetryService(logins repository.LoginHistoryRepository, logger *slog.Logger) *TelemetryService {
	return &TelemetryService{
		logins: logins,
		now:    time.Now,
		logger: logger.With(slog.String("component", "telemetry")),
	}
}

// RecordLogin сохраняет запись о входе пользователя subject.
// UserID из тела запроса, если передан, должен совпадать с subject токена.
func (s *TelemetryService) RecordLogin(ctx context.Context, subject, tokenEmail string, in LoginInput, client ClientInfo) (*model.LoginRecord, error) {
	if subject == "" {
		return nil, fmt.Errorf("%w: отсутствует субъект токена", ErrUnauthenticated)
	}
	if in.UserID != "" && in.UserID != subject {
		return nil, fmt.Errorf("%w: user_id не совпадает с владельцем токена", ErrUnauthenticated)
	}

	info := useragent.Parse(client.UserAgent)
	rec := &model.LoginRecord{
		UserID:      subject,
		Email:       firstNonEmpty(in.Email, tokenEmail),
		LoginAt:     s.now().UTC(),
		IPAddress:   client.IP,
		UserAgent:   client.UserAgent,
		Device:      info.Device,
		Browser:     info.Browser,
		OS:          info.OS,
		Success:     true,
		LoginMethod: firstNonEmpty(in.LoginMethod, DefaultLoginMethod),
		UserName:    optionalString(in.UserName),
		SessionID:   optionalString(in.SessionID),
	}
	if in.Success != nil {
		rec.Success = *in.Success
	}
	if in.Error != "" {
		e := truncateRunes(in.Error, MaxLoginErrorChars)
		rec.Error = &e
	}

	if err := s.logins.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err) //nolint:errorlint // намеренный двойной wrap
	}
	loginsRecordedTotal.WithLabelValues(strconv.FormatBool(rec.Success)).Inc()

	s.logger.Info("Вход записан",
		slog.String("user_id", rec.UserID),
		slog.String("method", rec.LoginMethod),
		slog.Bool("success", rec.Success),
		slog.String("device", rec.Device),
	)
	return rec, nil
}

// Probe классифицирует клиента, ничего не сохраняя.
func (s *TelemetryService) Probe(client ClientInfo) ProbeResult {
	return ProbeResult{IP: client.IP, Info: useragent.Parse(client.UserAgent)}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
