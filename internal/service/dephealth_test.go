// dephealth_test.go: unit-тесты для нормализации health path.
package service

import (
	"testing"
)

// TestNormalizeHealthPath проверяет нормализацию пути health endpoint провайдера.
func TestNormalizeHealthPath(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "путь GoTrue",
			input:    "/auth/v1/health",
			expected: "/auth/v1/health",
		},
		{
			name:     "без ведущего слэша",
			input:    "auth/v1/health",
			expected: "/auth/v1/health",
		},
		{
			name:     "пустая строка → /health",
			input:    "",
			expected: "/health",
		},
		{
			name:     "пробелы обрезаются",
			input:    "  /healthz ",
			expected: "/healthz",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalizeHealthPath(tt.input); got != tt.expected {
				t.Errorf("normalizeHealthPath(%q) = %q, ожидается %q", tt.input, got, tt.expected)
			}
		})
	}
}
