package model

import "time"

// ContentTypePDF: единственный принимаемый тип загружаемых файлов.
const ContentTypePDF = "application/pdf"

// Document: загруженный документ. Хранится в таблице documents.
type Document struct {
	// ID: идентификатор записи (генерируется БД)
	ID int64
	// Filename: оригинальное имя файла
	Filename string
	// ContentType: MIME-тип (всегда application/pdf)
	ContentType string
	// SizeBytes: размер файла в байтах
	SizeBytes int64
	// BlobKey: ключ объекта в хранилище
	BlobKey string
	// DownloadURL: ссылка на скачивание, полученная при загрузке
	DownloadURL string
	// CategoryID: ссылка на категорию
	CategoryID int64
	// ProjectID: ссылка на проект
	ProjectID int64
	// Description: описание (опционально)
	Description *string
	// Content: извлечённый текст (не более 100 000 символов)
	Content string
	// AnalysisResult: результат анализа ИИ (nil: анализ не выполнялся)
	AnalysisResult *string
	// ControlItemID: прямая ссылка на ControlItem (опционально)
	ControlItemID *int64
	// UploadedAt: время загрузки
	UploadedAt time.Time
	// CreatedAt: время создания записи
	CreatedAt time.Time
}

// DocumentWithLinks: документ со всеми связанными сроками общего контроля.
type DocumentWithLinks struct {
	Document
	LinkedOccurrenceIDs []int64
}
