package model

import "time"

// LoginRecord: запись аудита входа. Хранится в таблице login_history.
type LoginRecord struct {
	ID          int64
	UserID      string
	Email       string
	UserName    *string
	LoginAt     time.Time
	IPAddress   string
	UserAgent   string
	Device      string
	Browser     string
	OS          string
	Success     bool
	LoginMethod string
	SessionID   *string
	Error       *string
}
