// replicator.go: репликация сроков элемента контроля.
// Генерирует следующие N сроков от якорной даты и вставляет их одним INSERT.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bigkaa/docflow/internal/domain/model"
	"github.com/bigkaa/docflow/internal/domain/recurrence"
	"github.com/bigkaa/docflow/internal/repository"
)

// Источники якорной даты.
const (
	AnchorSourceOccurrence     = "occurrence"
	AnchorSourceInitialDueDate = "initial_due_date"
	AnchorSourceNow            = "now"
)

// MaxRepetitions: верхняя граница сроков за один запрос.
// Держит один INSERT в пределах лимита параметров PostgreSQL (65535).
const MaxRepetitions = 1000

// ReplicationResult: результат репликации.
type ReplicationResult struct {
	Inserted     int
	Dates        []time.Time
	Anchor       time.Time
	AnchorSource string
	Occurrences  []*model.ControlOccurrence
}

// DeadlineReplicator: сервис репликации сроков.
type DeadlineReplicator struct {
	controls repository.ControlRepository
	now      func() time.Time
	logger   *slog.Logger
}

// NewDeadlineReplicator создаёт сервис репликации сроков.
func NewDeadlineReplicator(controls repository.ControlRepository, logger *slog.Logger) *DeadlineReplicator {
	return &DeadlineReplicator{
		controls: controls,
		now:      time.Now,
		logger:   logger.With(slog.String("component", "replicator")),
	}
}

// Replicate добавляет repetitions сроков элементу itemID.
// Все сроки вставляются одним INSERT: при ошибке не сохраняется ни один.
func (s *DeadlineReplicator) Replicate(ctx context.Context, itemID int64, repetitions int) (*ReplicationResult, error) {
	if itemID <= 0 {
		return nil, fmt.Errorf("%w: не указан id элемента контроля", ErrValidation)
	}
	if repetitions < 1 {
		return nil, fmt.Errorf("%w: количество повторений должно быть не меньше 1", ErrValidation)
	}
	if repetitions > MaxRepetitions {
		return nil, fmt.Errorf("%w: количество повторений не может превышать %d", ErrValidation, MaxRepetitions)
	}

	item, err := s.controls.GetItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: элемент контроля %d", ErrNotFound, itemID)
		}
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err) //nolint:errorlint // намеренный двойной wrap
	}

	anchor, source, err := s.resolveAnchor(ctx, item)
	if err != nil {
		return nil, err
	}

	rule := recurrence.NewRule(derefString(item.Recurrence), item.RecurrenceInterval)
	if item.Recurrence != nil && !rule.Unit.Known() {
		s.logger.Warn("Неизвестная единица повторения, даты совпадут с якорем",
			slog.Int64("item_id", itemID),
			slog.String("recurrence", *item.Recurrence),
		)
	}

	dates := recurrence.Generate(anchor, rule, repetitions)
	occurrences := make([]*model.ControlOccurrence, 0, len(dates))
	for _, due := range dates {
		occurrences = append(occurrences, model.NewOccurrence(item, due))
	}

	if err := s.controls.InsertOccurrences(ctx, occurrences); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err) //nolint:errorlint // намеренный двойной wrap
	}
	occurrencesCreatedTotal.Add(float64(len(occurrences)))

	s.logger.Info("Сроки добавлены",
		slog.Int64("item_id", itemID),
		slog.Int("inserted", len(occurrences)),
		slog.String("anchor_source", source),
		slog.Time("anchor", anchor),
	)

	return &ReplicationResult{
		Inserted:     len(occurrences),
		Dates:        dates,
		Anchor:       anchor,
		AnchorSource: source,
		Occurrences:  occurrences,
	}, nil
}

// resolveAnchor: последний срок → initial_due_date элемента → текущее время.
func (s *DeadlineReplicator) resolveAnchor(ctx context.Context, item *model.ControlItem) (time.Time, string, error) {
	latest, err := s.controls.LatestDueDate(ctx, item.ID)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("%w: %w", ErrPersistence, err) //nolint:errorlint // намеренный двойной wrap
	}
	if latest != nil {
		return *latest, AnchorSourceOccurrence, nil
	}
	if item.InitialDueDate != nil {
		return *item.InitialDueDate, AnchorSourceInitialDueDate, nil
	}
	return s.now(), AnchorSourceNow, nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
