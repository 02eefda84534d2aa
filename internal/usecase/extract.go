package usecase

import (
	"context"
	"errors"
	"log/slog"

	"grocer-agent/internal/domain"
)

// IngredientExtractor pulls ingredient names out of a conversation. It never
// fails; any problem yields an empty list.
type IngredientExtractor struct {
	model  TextGenerator
	logger *slog.Logger
}

func NewIngredientExtractor(model TextGenerator, logger *slog.Logger) (*IngredientExtractor, error) {
	if model == nil {
		return nil, errors.New("usecase: text generator must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &IngredientExtractor{model: model, logger: logger}, nil
}

// Extract returns sorted, lowercase, unique ingredient names.
func (e *IngredientExtractor) Extract(ctx context.Context, history []domain.HistoryEntry) []string {
	if len(history) == 0 {
		return []string{}
	}
	raw, err := e.model.Generate(ctx, buildIngredientPrompt(history))
	if err != nil {
		e.logger.ErrorContext(ctx, "ingredient extraction call failed", "err", err)
		return []string{}
	}
	items, err := parseIngredientList(raw)
	if err != nil {
		e.logger.WarnContext(ctx, "ingredient extraction output not a JSON list", "err", err)
		return []string{}
	}
	return items
}

// parseIngredientList accepts only a JSON array. Non-string entries are
// dropped.
func parseIngredientList(raw string) ([]string, error) {
	values, err := decodeStrict[[]any](stripCodeFence(raw), false)
	if err != nil {
		return nil, err
	}
	items := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			items = append(items, s)
		}
	}
	return domain.NormalizeItems(items), nil
}
