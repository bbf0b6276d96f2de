// errors.go: ошибки бизнес-логики сервисного слоя.
package service

import "errors"

var (
	// ErrValidation: ошибка валидации входных данных.
	ErrValidation = errors.New("ошибка валидации")
	// ErrUnauthenticated: запрос не соответствует аутентифицированному пользователю.
	ErrUnauthenticated = errors.New("не аутентифицирован")
	// ErrNotFound: ресурс не найден.
	ErrNotFound = errors.New("ресурс не найден")
	// ErrStorage: ошибка записи в файловое хранилище.
	ErrStorage = errors.New("ошибка файлового хранилища")
	// ErrPersistence: ошибка записи в БД.
	ErrPersistence = errors.New("ошибка сохранения данных")
	// ErrInference: ошибка генеративной модели.
	ErrInference = errors.New("ошибка анализа")
	// ErrNoAPIKey: ключ API модели не настроен.
	ErrNoAPIKey = errors.New("ключ API Gemini не настроен, обратитесь к администратору")
)
