package repository

import (
	"context"
	"fmt"

	"github.com/bigkaa/docflow/internal/domain/model"
)

// LoginHistoryRepository: доступ к таблице login_history (только добавление).
type LoginHistoryRepository interface {
	// Create добавляет запись аудита входа, заполняет ID.
	Create(ctx context.Context, rec *model.LoginRecord) error
}

type loginHistoryRepo struct {
	db DBTX
}

// NewLoginHistoryRepository создаёт репозиторий истории входов.
func NewLoginHistoryRepository(db DBTX) LoginHistoryRepository {
	return &loginHistoryRepo{db: db}
}

func (r *loginHistoryRepo) Create(ctx context.Context, rec *model.LoginRecord) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO login_history (user_id, email, user_name, login_at, ip_address, user_agent,
			device, browser, os, success, login_method, session_id, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id`,
		rec.UserID, rec.Email, rec.UserName, rec.LoginAt, rec.IPAddress, rec.UserAgent,
		rec.Device, rec.Browser, rec.OS, rec.Success, rec.LoginMethod, rec.SessionID, rec.Error,
	).Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("ошибка сохранения записи входа: %w", err)
	}
	return nil
}
