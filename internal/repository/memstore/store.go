// Package memstore keeps chat history, shopping lists and preferences in
// process memory. It backs local development and tests.
package memstore

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"grocer-agent/internal/domain"
)

type Store struct {
	mu    sync.RWMutex
	turns map[string][]domain.Turn
	lists map[string]*domain.ShoppingList
	prefs map[string]domain.Preferences
	now   func() time.Time
}

func New() *Store {
	return &Store{
		turns: map[string][]domain.Turn{},
		lists: map[string]*domain.ShoppingList{},
		prefs: map[string]domain.Preferences{},
		now:   time.Now,
	}
}

func (s *Store) AppendTurn(_ context.Context, userID, userMessage, botResponse string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns[userID] = append(s.turns[userID], domain.Turn{
		UserID:      userID,
		UserMessage: userMessage,
		BotResponse: botResponse,
		Timestamp:   s.now().UTC(),
	})
	return nil
}

func (s *Store) ReadHistory(_ context.Context, userID string, limit int) ([]domain.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	turns := s.turns[userID]
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	out := make([]domain.HistoryEntry, 0, 2*len(turns))
	for _, t := range turns {
		out = append(out, t.Entries()...)
	}
	return out, nil
}

func (s *Store) AddItems(_ context.Context, userID string, items []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list, ok := s.lists[userID]
	if !ok {
		list = &domain.ShoppingList{UserID: userID}
		s.lists[userID] = list
	}
	for _, it := range items {
		if !slices.Contains(list.Items, it) {
			list.Items = append(list.Items, it)
		}
	}
	slices.Sort(list.Items)
	list.UpdatedAt = s.now().UTC()
	return nil
}

func (s *Store) RemoveItems(_ context.Context, userID string, items []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list, ok := s.lists[userID]
	if !ok {
		return nil
	}
	list.Items = slices.DeleteFunc(list.Items, func(it string) bool {
		return slices.Contains(items, it)
	})
	list.UpdatedAt = s.now().UTC()
	return nil
}

func (s *Store) ClearList(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if list, ok := s.lists[userID]; ok {
		list.Items = nil
		list.UpdatedAt = s.now().UTC()
	}
	return nil
}

func (s *Store) ReadList(_ context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list, ok := s.lists[userID]
	if !ok {
		return []string{}, nil
	}
	return append([]string{}, list.Items...), nil
}

func (s *Store) GetPreferences(_ context.Context, userID string) (domain.Preferences, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := domain.Preferences{}
	maps.Copy(out, s.prefs[userID])
	return out, nil
}

func (s *Store) SetPreference(_ context.Context, userID, name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.prefs[userID] == nil {
		s.prefs[userID] = domain.Preferences{}
	}
	s.prefs[userID][name] = value
	return nil
}

func (s *Store) ClearPreferences(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.prefs, userID)
	return nil
}

// Close is a no-op so Store matches the other backends.
func (s *Store) Close(context.Context) error { return nil }
