package model

import "time"

// Indicator: показатель, который можно проанализировать ИИ.
// Хранится в таблице indicators.
type Indicator struct {
	ID             int64
	Name           string
	Description    *string
	AnalysisResult *string
	PromptID       *string
	PromptText     *string
	AnalyzedAt     *time.Time
}

// AnalysisHistory: запись истории пакетного анализа показателей.
// Хранится в таблице analysis_history.
type AnalysisHistory struct {
	ID             int64
	IndicatorIDs   []int64
	IndicatorNames []string
	Result         string
	PromptText     string
	PromptID       *string
	UserID         string
	AnalyzedAt     time.Time
}
