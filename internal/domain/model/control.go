package model

import "time"

// ControlItem: контролируемая обязанность с правилом повторения.
// Хранится в таблице control_items. Для репликатора сроков: только чтение.
type ControlItem struct {
	// ID: идентификатор записи
	ID int64
	// ProjectID: ссылка на проект
	ProjectID *int64
	// CategoryID: ссылка на категорию
	CategoryID *int64
	// Description: описание обязанности
	Description *string
	// InitialDueDate: начальный срок сдачи (опционально)
	InitialDueDate *time.Time
	// Recurrence: единица повторения (day, month, year)
	Recurrence *string
	// RecurrenceInterval: множитель повторения
	RecurrenceInterval *int
	// Mandatory: обязательность документа
	Mandatory bool
	// HasDocument: к записи привязан документ
	HasDocument bool
	// CreatedAt: время создания записи
	CreatedAt time.Time
}

// ControlOccurrence: конкретный срок, сгенерированный из ControlItem.
// Хранится в таблице control_occurrences («общий контроль»).
type ControlOccurrence struct {
	ID            int64
	ControlItemID int64
	// Поля, копируемые из ControlItem
	ProjectID          *int64
	CategoryID         *int64
	Description        *string
	InitialDueDate     *time.Time
	Recurrence         *string
	RecurrenceInterval *int
	Mandatory          bool
	// DueDate: вычисленный срок сдачи
	DueDate time.Time
	// HasDocument: при создании всегда false
	HasDocument bool
	CreatedAt   time.Time
}

// NewOccurrence копирует сквозные поля ControlItem в новый срок.
func NewOccurrence(item *ControlItem, due time.Time) *ControlOccurrence {
	return &ControlOccurrence{
		ControlItemID:      item.ID,
		ProjectID:          item.ProjectID,
		CategoryID:         item.CategoryID,
		Description:        item.Description,
		InitialDueDate:     item.InitialDueDate,
		Recurrence:         item.Recurrence,
		RecurrenceInterval: item.RecurrenceInterval,
		Mandatory:          item.Mandatory,
		DueDate:            due,
		HasDocument:        false,
	}
}
