package usecase

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"regexp"
	"slices"
	"strings"

	"grocer-agent/internal/domain"
)

const (
	PreferenceYes    = "yes"
	PreferenceNo     = "no"
	PreferenceNotSet = "not_set"
)

type preferenceSpec struct {
	name   string
	values []string
}

var preferenceSchema = []preferenceSpec{
	{name: "vegetarian", values: []string{PreferenceYes, PreferenceNo, PreferenceNotSet}},
	{name: "gluten_free", values: []string{PreferenceYes, PreferenceNo, PreferenceNotSet}},
	{name: "dairy_free", values: []string{PreferenceYes, PreferenceNo, PreferenceNotSet}},
}

// ValidPreference reports whether name is a known preference and value one
// of its allowed values.
func ValidPreference(name, value string) bool {
	for _, p := range preferenceSchema {
		if p.name == name {
			return slices.Contains(p.values, value)
		}
	}
	return false
}

func describeSchema() string {
	lines := make([]string, 0, len(preferenceSchema))
	for _, p := range preferenceSchema {
		lines = append(lines, "- "+p.name+": "+strings.Join(p.values, ", "))
	}
	return strings.Join(lines, "\n")
}

type PreferenceStore interface {
	GetPreferences(ctx context.Context, userID string) (domain.Preferences, error)
	SetPreference(ctx context.Context, userID, name, value string) error
	ClearPreferences(ctx context.Context, userID string) error
}

// PreferenceExtractor finds preference signals in a single message.
type PreferenceExtractor interface {
	Extract(ctx context.Context, message string) (domain.Preferences, error)
}

type PreferenceService struct {
	store     PreferenceStore
	extractor PreferenceExtractor
	logger    *slog.Logger
}

func NewPreferenceService(store PreferenceStore, extractor PreferenceExtractor, logger *slog.Logger) (*PreferenceService, error) {
	if store == nil {
		return nil, errors.New("usecase: preference store must not be nil")
	}
	if extractor == nil {
		return nil, errors.New("usecase: preference extractor must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PreferenceService{store: store, extractor: extractor, logger: logger}, nil
}

// Get returns the stored preferences; read failures yield an empty map.
func (s *PreferenceService) Get(ctx context.Context, userID string) domain.Preferences {
	prefs, err := s.store.GetPreferences(ctx, userID)
	if err != nil {
		s.logger.ErrorContext(ctx, "read preferences failed", "user_id", userID, "err", err)
		return domain.Preferences{}
	}
	if prefs == nil {
		return domain.Preferences{}
	}
	return prefs
}

// Set stores one preference. Names and values outside the schema are
// rejected without touching the store.
func (s *PreferenceService) Set(ctx context.Context, userID, name, value string) bool {
	if !ValidPreference(name, value) {
		s.logger.WarnContext(ctx, "rejected preference", "user_id", userID, "preference", name, "value", value)
		return false
	}
	if err := s.store.SetPreference(ctx, userID, name, value); err != nil {
		s.logger.ErrorContext(ctx, "set preference failed", "user_id", userID, "preference", name, "err", err)
		return false
	}
	return true
}

func (s *PreferenceService) Clear(ctx context.Context, userID string) bool {
	if err := s.store.ClearPreferences(ctx, userID); err != nil {
		s.logger.ErrorContext(ctx, "clear preferences failed", "user_id", userID, "err", err)
		return false
	}
	return true
}

// ExtractFromMessage persists every preference signal found in message and
// returns the ones that were stored.
func (s *PreferenceService) ExtractFromMessage(ctx context.Context, userID, message string) domain.Preferences {
	found, err := s.extractor.Extract(ctx, message)
	if err != nil {
		s.logger.WarnContext(ctx, "preference extraction failed", "user_id", userID, "err", err)
		return domain.Preferences{}
	}
	stored := domain.Preferences{}
	for _, name := range slices.Sorted(maps.Keys(found)) {
		if s.Set(ctx, userID, name, found[name]) {
			stored[name] = found[name]
		}
	}
	return stored
}

type keywordRule struct {
	preference string
	value      string
	re         *regexp.Regexp
}

// Negative rules come first so "not vegetarian" wins over "vegetarian".
var keywordRules = []keywordRule{
	{"vegetarian", PreferenceNo, regexp.MustCompile(`(?i)\b(?:not\s+(?:a\s+)?vegetarian|i\s+eat\s+(?:everything|meat))\b`)},
	{"vegetarian", PreferenceYes, regexp.MustCompile(`(?i)\b(?:i['’]?m|i\s+am)\s+(?:a\s+)?(?:vegetarian|vegan)\b`)},
	{"vegetarian", PreferenceYes, regexp.MustCompile(`(?i)\b(?:don['’]?t|do\s+not|never)\s+eat\s+meat\b`)},
	{"gluten_free", PreferenceNo, regexp.MustCompile(`(?i)\bnot\s+gluten[-\s]?free\b`)},
	{"gluten_free", PreferenceYes, regexp.MustCompile(`(?i)\b(?:gluten[-\s]?free|celiac|coeliac|gluten\s+intoleran(?:t|ce))\b`)},
	{"dairy_free", PreferenceNo, regexp.MustCompile(`(?i)\bnot\s+dairy[-\s]?free\b`)},
	{"dairy_free", PreferenceYes, regexp.MustCompile(`(?i)\b(?:dairy[-\s]?free|lactose[-\s]intoleran(?:t|ce)|(?:don['’]?t|do\s+not|can['’]?t|cannot)\s+(?:eat|have|drink)\s+dairy)\b`)},
}

// KeywordExtractor detects preferences with fixed phrase patterns.
type KeywordExtractor struct{}

func (KeywordExtractor) Extract(_ context.Context, message string) (domain.Preferences, error) {
	out := domain.Preferences{}
	for _, r := range keywordRules {
		if _, done := out[r.preference]; done {
			continue
		}
		if r.re.MatchString(message) {
			out[r.preference] = r.value
		}
	}
	return out, nil
}

// ModelExtractor asks the generative model for a strict JSON object of
// preferences. Entries outside the schema are dropped.
type ModelExtractor struct {
	model TextGenerator
}

func NewModelExtractor(model TextGenerator) (*ModelExtractor, error) {
	if model == nil {
		return nil, errors.New("usecase: text generator must not be nil")
	}
	return &ModelExtractor{model: model}, nil
}

type extractedPreferences struct {
	Preferences map[string]string `json:"preferences"`
}

func (e *ModelExtractor) Extract(ctx context.Context, message string) (domain.Preferences, error) {
	if strings.TrimSpace(message) == "" {
		return domain.Preferences{}, nil
	}
	raw, err := e.model.Generate(ctx, buildPreferencePrompt(message))
	if err != nil {
		return nil, err
	}
	parsed, err := decodeStrict[extractedPreferences](stripCodeFence(raw), true)
	if err != nil {
		return nil, err
	}
	out := domain.Preferences{}
	for name, value := range parsed.Preferences {
		if ValidPreference(name, value) {
			out[name] = value
		}
	}
	return out, nil
}
