package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"grocer-agent/internal/domain"
)

// Classifier maps a message to a category. It never fails: empty input and
// backend errors yield CategoryOther.
type Classifier interface {
	Classify(ctx context.Context, message string) domain.Category
}

// ZeroShotClassifier scores the message against each category's hypothesis
// template and keeps the best one if it clears that category's threshold.
type ZeroShotClassifier struct {
	scorer Scorer
	logger *slog.Logger
}

func NewZeroShotClassifier(scorer Scorer, logger *slog.Logger) (*ZeroShotClassifier, error) {
	if scorer == nil {
		return nil, errors.New("usecase: scorer must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ZeroShotClassifier{scorer: scorer, logger: logger}, nil
}

func (c *ZeroShotClassifier) Classify(ctx context.Context, message string) domain.Category {
	message = strings.TrimSpace(message)
	if message == "" {
		return domain.CategoryOther
	}

	best, bestScore := domain.CategoryOther, -1.0
	for _, cat := range domain.Categories() {
		scores, err := c.scorer.Score(ctx, message, []string{cat.String()}, catalog[cat].hypothesis)
		if err != nil {
			c.logger.ErrorContext(ctx, "zero-shot scoring failed", "category", cat.String(), "err", err)
			return domain.CategoryOther
		}
		if len(scores) == 0 {
			c.logger.ErrorContext(ctx, "zero-shot scoring returned no scores", "category", cat.String())
			return domain.CategoryOther
		}
		if scores[0] > bestScore {
			best, bestScore = cat, scores[0]
		}
	}

	if bestScore < catalog[best].threshold {
		c.logger.InfoContext(ctx, "classification below threshold", "category", best.String(), "confidence", bestScore)
		return domain.CategoryOther
	}
	c.logger.InfoContext(ctx, "message classified", "category", best.String(), "confidence", bestScore)
	return best
}

// PromptClassifier asks the generative model for the category name and
// accepts only an exact match.
type PromptClassifier struct {
	model  TextGenerator
	logger *slog.Logger
}

func NewPromptClassifier(model TextGenerator, logger *slog.Logger) (*PromptClassifier, error) {
	if model == nil {
		return nil, errors.New("usecase: text generator must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PromptClassifier{model: model, logger: logger}, nil
}

func (c *PromptClassifier) Classify(ctx context.Context, message string) domain.Category {
	message = strings.TrimSpace(message)
	if message == "" {
		return domain.CategoryOther
	}
	raw, err := c.model.Generate(ctx, buildCategorizationPrompt(message))
	if err != nil {
		c.logger.ErrorContext(ctx, "prompt classification failed", "err", err)
		return domain.CategoryOther
	}
	cat, ok := domain.ParseCategory(strings.TrimSpace(raw))
	if !ok {
		c.logger.InfoContext(ctx, "unrecognized category from model", "reply", raw)
		return domain.CategoryOther
	}
	return cat
}
