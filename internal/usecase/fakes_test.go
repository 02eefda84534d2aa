package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"

	"grocer-agent/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type statusError int

func (e statusError) Error() string       { return fmt.Sprintf("status %d", int(e)) }
func (e statusError) HTTPStatusCode() int { return int(e) }

type reply struct {
	text string
	err  error
}

// fakeGenerator returns queued replies in order, repeating the last one.
type fakeGenerator struct {
	mu      sync.Mutex
	replies []reply
	prompts []string
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	if len(f.replies) == 0 {
		return "", errors.New("no reply configured")
	}
	idx := len(f.prompts) - 1
	if idx >= len(f.replies) {
		idx = len(f.replies) - 1
	}
	return f.replies[idx].text, f.replies[idx].err
}

func (f *fakeGenerator) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

type fakeScorer struct {
	scores map[string]float64
	err    error
	calls  int
}

func (f *fakeScorer) Score(_ context.Context, _ string, labels []string, _ string) ([]float64, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]float64, len(labels))
	for i, l := range labels {
		out[i] = f.scores[l]
	}
	return out, nil
}

type fakeHistory struct {
	turns     []domain.Turn
	appendErr error
	readErr   error
	reads     int
}

func (f *fakeHistory) AppendTurn(_ context.Context, userID, userMessage, botResponse string) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.turns = append(f.turns, domain.Turn{UserID: userID, UserMessage: userMessage, BotResponse: botResponse})
	return nil
}

func (f *fakeHistory) ReadHistory(_ context.Context, userID string, limit int) ([]domain.HistoryEntry, error) {
	f.reads++
	if f.readErr != nil {
		return nil, f.readErr
	}
	var mine []domain.Turn
	for _, t := range f.turns {
		if t.UserID == userID {
			mine = append(mine, t)
		}
	}
	if limit > 0 && len(mine) > limit {
		mine = mine[len(mine)-limit:]
	}
	var out []domain.HistoryEntry
	for _, t := range mine {
		out = append(out, t.Entries()...)
	}
	return out, nil
}

type fakeList struct {
	items  map[string][]string
	addErr error
}

func newFakeList() *fakeList { return &fakeList{items: map[string][]string{}} }

func (f *fakeList) AddItems(_ context.Context, userID string, items []string) error {
	if f.addErr != nil {
		return f.addErr
	}
	f.items[userID] = domain.NormalizeItems(append(slices.Clone(f.items[userID]), items...))
	return nil
}

func (f *fakeList) RemoveItems(_ context.Context, userID string, items []string) error {
	f.items[userID] = slices.DeleteFunc(slices.Clone(f.items[userID]), func(s string) bool {
		return slices.Contains(items, s)
	})
	return nil
}

func (f *fakeList) ClearList(_ context.Context, userID string) error {
	f.items[userID] = nil
	return nil
}

func (f *fakeList) ReadList(_ context.Context, userID string) ([]string, error) {
	return slices.Clone(f.items[userID]), nil
}

type fakePrefs struct {
	prefs  map[string]domain.Preferences
	setErr error
	sets   int
}

func newFakePrefs() *fakePrefs { return &fakePrefs{prefs: map[string]domain.Preferences{}} }

func (f *fakePrefs) GetPreferences(_ context.Context, userID string) (domain.Preferences, error) {
	out := domain.Preferences{}
	for k, v := range f.prefs[userID] {
		out[k] = v
	}
	return out, nil
}

func (f *fakePrefs) SetPreference(_ context.Context, userID, name, value string) error {
	f.sets++
	if f.setErr != nil {
		return f.setErr
	}
	if f.prefs[userID] == nil {
		f.prefs[userID] = domain.Preferences{}
	}
	f.prefs[userID][name] = value
	return nil
}

func (f *fakePrefs) ClearPreferences(_ context.Context, userID string) error {
	delete(f.prefs, userID)
	return nil
}
