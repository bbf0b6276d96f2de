package service

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/bigkaa/docflow/internal/domain/model"
	"github.com/bigkaa/docflow/internal/inference"
)

type analysisFixture struct {
	prompts    *mockPromptRepo
	generator  *mockGenerator
	documents  *mockDocumentRepo
	indicators *mockIndicatorRepo
	history    *mockHistoryRepo
	svc        *AnalysisService
}

func newAnalysisFixture() *analysisFixture {
	f := &analysisFixture{
		prompts:    &mockPromptRepo{byID: map[string]*model.Prompt{explicitPromptID: {ID: explicitPromptID, Text: "Avalie"}}},
		generator:  &mockGenerator{result: "Parecer"},
		documents:  &mockDocumentRepo{},
		indicators: &mockIndicatorRepo{},
		history:    &mockHistoryRepo{},
	}
	f.svc = NewAnalysisService(NewPromptResolver(f.prompts, testLogger()), f.generator,
		f.documents, f.indicators, f.history, testLogger())
	return f
}

func TestAnalyzeText(t *testing.T) {
	f := newAnalysisFixture()

	res, err := f.svc.AnalyzeText(context.Background(), explicitPromptID, nil, "Receita 2024")
	if err != nil {
		t.Fatalf("AnalyzeText() вернул ошибку: %v", err)
	}
	if res.Result != "Parecer" || res.PromptText != "Avalie" || res.PromptSource != PromptSourceExplicit {
		t.Errorf("результат = %+v", res)
	}
	if f.generator.prompt != "Avalie\n\nReceita 2024" {
		t.Errorf("вход модели = %q", f.generator.prompt)
	}
}

func TestAnalyzeText_EmptyText(t *testing.T) {
	f := newAnalysisFixture()
	if _, err := f.svc.AnalyzeText(context.Background(), "", nil, "   "); !errors.Is(err, ErrValidation) {
		t.Errorf("ожидалась ErrValidation, получено: %v", err)
	}
	if f.generator.calls != 0 {
		t.Error("модель не должна вызываться")
	}
}

func TestAnalyzeText_InferenceErrors(t *testing.T) {
	tests := []struct {
		name    string
		genErr  error
		wantErr error
	}{
		{"нет ключа", inference.ErrNoAPIKey, ErrNoAPIKey},
		{"ошибка модели", errors.New("500 internal"), ErrInference},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAnalysisFixture()
			f.generator.err = tt.genErr
			if _, err := f.svc.AnalyzeText(context.Background(), "", nil, "x"); !errors.Is(err, tt.wantErr) {
				t.Errorf("ожидалась %v, получено: %v", tt.wantErr, err)
			}
		})
	}
}

func TestAnalyzeIndicators_SavesHistory(t *testing.T) {
	f := newAnalysisFixture()
	inds := []IndicatorRef{{ID: 1, Name: "Liquidez"}, {ID: 2, Name: "Endividamento"}}

	res, err := f.svc.AnalyzeIndicators(context.Background(), "user-1", explicitPromptID, "dados", inds)
	if err != nil {
		t.Fatalf("AnalyzeIndicators() вернул ошибку: %v", err)
	}
	if !res.Saved || res.HistoryID == nil || *res.HistoryID != 55 {
		t.Errorf("история не сохранена: %+v", res)
	}
	h := f.history.created
	if h.UserID != "user-1" || h.Result != "Parecer" || h.PromptText != "Avalie" || *h.PromptID != explicitPromptID {
		t.Errorf("запись истории = %+v", h)
	}
	if !reflect.DeepEqual(h.IndicatorIDs, []int64{1, 2}) || !reflect.DeepEqual(h.IndicatorNames, []string{"Liquidez", "Endividamento"}) {
		t.Errorf("показатели = %v %v", h.IndicatorIDs, h.IndicatorNames)
	}
}

func TestAnalyzeIndicators_HistoryFailureNotFatal(t *testing.T) {
	f := newAnalysisFixture()
	f.history.createErr = errors.New("connection refused")

	res, err := f.svc.AnalyzeIndicators(context.Background(), "user-1", "", "dados", []IndicatorRef{{ID: 1, Name: "A"}})
	if err != nil {
		t.Fatalf("ошибка истории не должна быть фатальной: %v", err)
	}
	if res.Saved || res.HistoryID != nil || res.Result != "Parecer" {
		t.Errorf("результат = %+v", res)
	}
}

func TestAnalyzeIndicators_Validation(t *testing.T) {
	f := newAnalysisFixture()
	if _, err := f.svc.AnalyzeIndicators(context.Background(), "u", "", "dados", nil); !errors.Is(err, ErrValidation) {
		t.Errorf("без показателей ожидалась ErrValidation, получено: %v", err)
	}
	if _, err := f.svc.AnalyzeIndicators(context.Background(), "u", "", "", []IndicatorRef{{ID: 1}}); !errors.Is(err, ErrValidation) {
		t.Errorf("без текста ожидалась ErrValidation, получено: %v", err)
	}
	if f.generator.calls+f.history.createCalls != 0 {
		t.Error("внешние вызовы при ошибке валидации")
	}
}

func TestHistory_LimitClamped(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, DefaultHistoryLimit},
		{-5, DefaultHistoryLimit},
		{10, 10},
		{500, MaxHistoryLimit},
	}
	for _, tt := range tests {
		f := newAnalysisFixture()
		if _, err := f.svc.History(context.Background(), "user-1", tt.in); err != nil {
			t.Fatalf("History() вернул ошибку: %v", err)
		}
		if f.history.listLimit != tt.want || f.history.listUser != "user-1" {
			t.Errorf("limit %d → %d, ожидается %d", tt.in, f.history.listLimit, tt.want)
		}
	}
}

func TestHistory_Error(t *testing.T) {
	f := newAnalysisFixture()
	f.history.listErr = errors.New("timeout")
	if _, err := f.svc.History(context.Background(), "u", 0); !errors.Is(err, ErrPersistence) {
		t.Errorf("ожидалась ErrPersistence, получено: %v", err)
	}
}

func TestAnalyzeDocument(t *testing.T) {
	f := newAnalysisFixture()
	f.prompts.byCategory = map[int64]*model.Prompt{3: {ID: "cat", Text: "Resuma"}}
	f.documents.getByIDFn = func(_ context.Context, id int64) (*model.Document, error) {
		return &model.Document{ID: id, CategoryID: 3, Content: "Contrato"}, nil
	}

	res, err := f.svc.AnalyzeDocument(context.Background(), 100, "")
	if err != nil {
		t.Fatalf("AnalyzeDocument() вернул ошибку: %v", err)
	}
	if res.PromptSource != PromptSourceCategory || f.documents.savedAnalysis != "Parecer" {
		t.Errorf("результат = %+v, сохранено %q", res, f.documents.savedAnalysis)
	}
}

func TestAnalyzeDocument_Errors(t *testing.T) {
	t.Run("не найден", func(t *testing.T) {
		f := newAnalysisFixture()
		if _, err := f.svc.AnalyzeDocument(context.Background(), 1, ""); !errors.Is(err, ErrNotFound) {
			t.Errorf("ожидалась ErrNotFound, получено: %v", err)
		}
	})

	t.Run("нет текста", func(t *testing.T) {
		f := newAnalysisFixture()
		f.documents.getByIDFn = func(_ context.Context, id int64) (*model.Document, error) {
			return &model.Document{ID: id, CategoryID: 3}, nil
		}
		if _, err := f.svc.AnalyzeDocument(context.Background(), 1, ""); !errors.Is(err, ErrValidation) {
			t.Errorf("ожидалась ErrValidation, получено: %v", err)
		}
		if f.generator.calls != 0 {
			t.Error("модель не должна вызываться")
		}
	})

	t.Run("ошибка сохранения", func(t *testing.T) {
		f := newAnalysisFixture()
		f.documents.getByIDFn = func(_ context.Context, id int64) (*model.Document, error) {
			return &model.Document{ID: id, CategoryID: 3, Content: "x"}, nil
		}
		f.documents.setAnalysisFn = func(context.Context, int64, string) error { return errors.New("timeout") }
		if _, err := f.svc.AnalyzeDocument(context.Background(), 1, ""); !errors.Is(err, ErrPersistence) {
			t.Errorf("ожидалась ErrPersistence, получено: %v", err)
		}
	})
}

func TestAnalyzeIndicator(t *testing.T) {
	f := newAnalysisFixture()
	f.indicators.getByIDFn = func(_ context.Context, id int64) (*model.Indicator, error) {
		return &model.Indicator{ID: id, Name: "Liquidez corrente", Description: ptr("Ativo / passivo")}, nil
	}

	res, err := f.svc.AnalyzeIndicator(context.Background(), 9, explicitPromptID, "")
	if err != nil {
		t.Fatalf("AnalyzeIndicator() вернул ошибку: %v", err)
	}
	if f.generator.prompt != "Avalie\n\nLiquidez corrente\nAtivo / passivo" {
		t.Errorf("вход модели = %q", f.generator.prompt)
	}
	if !res.Saved || *res.Indicator.AnalysisResult != "Parecer" || *f.indicators.savedPromptID != explicitPromptID {
		t.Errorf("результат не сохранён в показателе: %+v", res)
	}
}

func TestAnalyzeIndicator_SaveFailureNotFatal(t *testing.T) {
	f := newAnalysisFixture()
	f.indicators.getByIDFn = func(_ context.Context, id int64) (*model.Indicator, error) {
		return &model.Indicator{ID: id, Name: "Liquidez"}, nil
	}
	f.indicators.saveErr = errors.New("timeout")

	res, err := f.svc.AnalyzeIndicator(context.Background(), 9, "", "texto livre")
	if err != nil {
		t.Fatalf("ошибка сохранения не должна быть фатальной: %v", err)
	}
	if res.Saved || res.Result != "Parecer" {
		t.Errorf("результат = %+v", res)
	}
	if f.generator.prompt != DefaultInstruction+"\n\ntexto livre" {
		t.Errorf("вход модели = %q", f.generator.prompt)
	}
}

func TestAnalyzeIndicator_NotFound(t *testing.T) {
	f := newAnalysisFixture()
	if _, err := f.svc.AnalyzeIndicator(context.Background(), 9, "", ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("ожидалась ErrNotFound, получено: %v", err)
	}
}
