// metrics.go: доменные Prometheus метрики docflow.
package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// occurrencesCreatedTotal: созданные сроки элементов контроля.
	occurrencesCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "df_occurrences_created_total",
			Help: "Количество сроков, созданных репликацией",
		},
	)

	// documentsIngestedTotal: загрузки документов по итогу.
	documentsIngestedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "df_documents_ingested_total",
			Help: "Количество загрузок документов по результату",
		},
		[]string{"outcome"},
	)

	// ingestionWarningsTotal: предупреждения best-effort шагов загрузки.
	ingestionWarningsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "df_ingestion_warnings_total",
			Help: "Количество предупреждений при загрузке документов по шагу",
		},
		[]string{"step"},
	)

	// analysisTotal: вызовы анализа по виду и результату.
	analysisTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "df_analysis_total",
			Help: "Количество запросов анализа к модели",
		},
		[]string{"kind", "outcome"},
	)

	// loginsRecordedTotal: записи аудита входов.
	loginsRecordedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "df_logins_recorded_total",
			Help: "Количество записанных входов по результату",
		},
		[]string{"success"},
	)
)
