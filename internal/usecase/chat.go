package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"grocer-agent/internal/domain"
)

const (
	defaultHistoryLimit     = 10
	defaultMaxMessageLength = 2000

	// ApologyMessage replaces the reply when generation fails.
	ApologyMessage = "I apologize, but I encountered an error processing your message. Please try again."
)

// Pipeline step names used in logs and failure metrics.
const (
	StepHistoryRead = "history_read"
	StepGenerate    = "generate"
	StepPersist     = "persist"
	StepMerge       = "merge"
)

// HistoryStore is the append-only per-user chat log.
type HistoryStore interface {
	AppendTurn(ctx context.Context, userID, userMessage, botResponse string) error
	// ReadHistory returns the most recent limit turns, oldest first, each
	// expanded to a user entry followed by an assistant entry. limit <= 0
	// returns every turn.
	ReadHistory(ctx context.Context, userID string, limit int) ([]domain.HistoryEntry, error)
}

type Generator interface {
	Generate(ctx context.Context, in GenerateInput) (string, error)
}

type Extractor interface {
	Extract(ctx context.Context, history []domain.HistoryEntry) []string
}

// PipelineObserver receives classification results and degraded steps.
type PipelineObserver interface {
	ObserveCategory(c domain.Category)
	ObserveStepFailure(step string)
}

type nopObserver struct{}

func (nopObserver) ObserveCategory(domain.Category) {}
func (nopObserver) ObserveStepFailure(string)       {}

type ChatDeps struct {
	Classifier  Classifier
	Preferences *PreferenceService
	History     HistoryStore
	Generator   Generator
	Extractor   Extractor
	Shopping    *ShoppingListService
	Observer    PipelineObserver
	Logger      *slog.Logger

	HistoryLimit     int
	MaxMessageLength int
}

type ChatService struct {
	classifier   Classifier
	preferences  *PreferenceService
	history      HistoryStore
	generator    Generator
	extractor    Extractor
	shopping     *ShoppingListService
	observer     PipelineObserver
	logger       *slog.Logger
	historyLimit int
	maxMessage   int
}

type ChatInput struct {
	UserID  string
	Message string
}

type ChatOutput struct {
	BotResponse  string
	ShoppingList []string
	Preferences  domain.Preferences
	Category     domain.Category
}

func NewChatService(d ChatDeps) (*ChatService, error) {
	switch {
	case d.Classifier == nil:
		return nil, errors.New("usecase: classifier must not be nil")
	case d.Preferences == nil:
		return nil, errors.New("usecase: preference service must not be nil")
	case d.History == nil:
		return nil, errors.New("usecase: history store must not be nil")
	case d.Generator == nil:
		return nil, errors.New("usecase: generator must not be nil")
	case d.Extractor == nil:
		return nil, errors.New("usecase: extractor must not be nil")
	case d.Shopping == nil:
		return nil, errors.New("usecase: shopping list service must not be nil")
	}
	if d.Observer == nil {
		d.Observer = nopObserver{}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.HistoryLimit <= 0 {
		d.HistoryLimit = defaultHistoryLimit
	}
	if d.MaxMessageLength <= 0 {
		d.MaxMessageLength = defaultMaxMessageLength
	}
	return &ChatService{
		classifier:   d.Classifier,
		preferences:  d.Preferences,
		history:      d.History,
		generator:    d.Generator,
		extractor:    d.Extractor,
		shopping:     d.Shopping,
		observer:     d.Observer,
		logger:       d.Logger,
		historyLimit: d.HistoryLimit,
		maxMessage:   d.MaxMessageLength,
	}, nil
}

// ProcessMessage runs one chat turn. Only invalid input is returned as an
// error; every later failure degrades to a best-effort reply.
func (s *ChatService) ProcessMessage(ctx context.Context, in ChatInput) (ChatOutput, error) {
	userID := strings.TrimSpace(in.UserID)
	if userID == "" {
		return ChatOutput{}, newError(ErrorInvalidInput, "empty_user_id", nil)
	}
	message := strings.TrimSpace(in.Message)
	if message == "" {
		return ChatOutput{}, newError(ErrorInvalidInput, "empty_message", nil)
	}
	if utf8.RuneCountInString(message) > s.maxMessage {
		return ChatOutput{}, newError(ErrorInvalidInput, "message_too_long", nil)
	}
	log := s.logger.With("user_id", userID)

	category := s.classifier.Classify(ctx, message)
	s.observer.ObserveCategory(category)

	s.preferences.ExtractFromMessage(ctx, userID, message)

	history, err := s.history.ReadHistory(ctx, userID, s.historyLimit)
	if err != nil {
		s.degraded(ctx, log, StepHistoryRead, err)
		history = nil
	}

	generated := true
	reply, err := s.generator.Generate(ctx, GenerateInput{
		Prompt:      message,
		History:     history,
		Category:    category,
		Preferences: s.preferences.Get(ctx, userID),
	})
	if err != nil {
		s.degraded(ctx, log, StepGenerate, err)
		reply, generated = ApologyMessage, false
	}

	if err := s.history.AppendTurn(ctx, userID, message, reply); err != nil {
		s.degraded(ctx, log, StepPersist, err)
	}

	if generated {
		updated, err := s.history.ReadHistory(ctx, userID, s.historyLimit)
		if err != nil {
			s.degraded(ctx, log, StepHistoryRead, err)
			turn := domain.Turn{UserID: userID, UserMessage: message, BotResponse: reply, Timestamp: time.Now().UTC()}
			updated = append(history, turn.Entries()...)
		}
		if items := s.extractor.Extract(ctx, updated); len(items) > 0 {
			if !s.shopping.Add(ctx, userID, items) {
				s.observer.ObserveStepFailure(StepMerge)
			}
		}
	}

	return ChatOutput{
		BotResponse:  reply,
		ShoppingList: s.shopping.List(ctx, userID),
		Preferences:  s.preferences.Get(ctx, userID),
		Category:     category,
	}, nil
}

// History returns the user's recent chat entries, oldest first.
func (s *ChatService) History(ctx context.Context, userID string, limit int) ([]domain.HistoryEntry, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, newError(ErrorInvalidInput, "empty_user_id", nil)
	}
	entries, err := s.history.ReadHistory(ctx, userID, limit)
	if err != nil {
		return nil, newError(ErrorInternal, "history_read_error", err)
	}
	if entries == nil {
		entries = []domain.HistoryEntry{}
	}
	return entries, nil
}

func (s *ChatService) degraded(ctx context.Context, log *slog.Logger, step string, err error) {
	s.observer.ObserveStepFailure(step)
	log.WarnContext(ctx, "pipeline step degraded", "step", step, "err", err)
}
