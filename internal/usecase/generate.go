package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"grocer-agent/internal/domain"
	"grocer-agent/internal/safety"
)

var errEmptyResponse = errors.New("usecase: empty response from model")

// Moderator is an optional second opinion on user input, consulted after the
// regex filter.
type Moderator interface {
	Moderate(ctx context.Context, input string) (bool, error)
}

type GenerateInput struct {
	Prompt      string
	History     []domain.HistoryEntry
	Category    domain.Category
	Preferences domain.Preferences
}

type GenerationService struct {
	model     TextGenerator
	moderator Moderator
	logger    *slog.Logger
}

// NewGenerationService builds the service. moderator may be nil.
func NewGenerationService(model TextGenerator, moderator Moderator, logger *slog.Logger) (*GenerationService, error) {
	if model == nil {
		return nil, errors.New("usecase: text generator must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GenerationService{model: model, moderator: moderator, logger: logger}, nil
}

// Generate produces a category-specific reply. Unsafe input or output is
// replaced by a canned safe response rather than returned as an error.
func (s *GenerationService) Generate(ctx context.Context, in GenerateInput) (string, error) {
	prompt := strings.TrimSpace(in.Prompt)
	if prompt == "" {
		return "", newError(ErrorInvalidInput, "empty_prompt", nil)
	}

	if check := safety.Validate(prompt, in.Category); !check.Safe {
		s.logger.WarnContext(ctx, "prompt rejected by safety filter", "violations", check.Violations)
		return safety.SafeResponse(safety.KindProhibitedContent), nil
	}
	if s.moderator != nil {
		flagged, err := s.moderator.Moderate(ctx, prompt)
		if err != nil {
			return "", upstreamError("moderation", err)
		}
		if flagged {
			s.logger.WarnContext(ctx, "prompt flagged by moderation")
			return safety.SafeResponse(safety.KindProhibitedContent), nil
		}
	}

	full := buildGenerationPrompt(profileFor(in.Category), in.History, in.Preferences, safety.Sanitize(prompt))
	raw, err := s.model.Generate(ctx, full)
	if err != nil {
		if errors.Is(err, errEmptyResponse) {
			return "", newError(ErrorUpstream, "empty_response", err)
		}
		return "", upstreamError("generation", err)
	}
	text := strings.TrimSpace(raw)
	if text == "" {
		return "", newError(ErrorUpstream, "empty_response", errEmptyResponse)
	}

	if check := safety.Validate(text, in.Category); !check.Safe {
		s.logger.WarnContext(ctx, "response rejected by safety filter", "violations", check.Violations)
		return safety.SafeResponse(safety.KindProhibitedContent), nil
	}
	return text, nil
}
