package model

import "time"

// Prompt: шаблон инструкции для анализа ИИ.
// Хранится в таблицах prompts (основная) и indicator_prompts (устаревшая).
type Prompt struct {
	// ID: UUID промпта
	ID string
	// Name: отображаемое имя
	Name string
	// Text: текст инструкции
	Text string
	// IsDefault: промпт по умолчанию (только в основной таблице)
	IsDefault bool
	CreatedAt time.Time
}

// Category: категория документов с опциональным привязанным промптом.
type Category struct {
	ID       int64
	Name     string
	PromptID *string
}
