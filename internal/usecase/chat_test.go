package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"grocer-agent/internal/domain"
)

type fixedClassifier domain.Category

func (f fixedClassifier) Classify(context.Context, string) domain.Category { return domain.Category(f) }

type recordingObserver struct {
	categories []domain.Category
	failures   []string
}

func (o *recordingObserver) ObserveCategory(c domain.Category) { o.categories = append(o.categories, c) }
func (o *recordingObserver) ObserveStepFailure(step string)    { o.failures = append(o.failures, step) }

type chatFixture struct {
	svc      *ChatService
	model    *fakeGenerator
	extract  *fakeGenerator
	history  *fakeHistory
	list     *fakeList
	prefs    *fakePrefs
	observer *recordingObserver
}

func newChatFixture(t *testing.T, modelReplies, extractReplies []reply) *chatFixture {
	t.Helper()
	f := &chatFixture{
		model:    &fakeGenerator{replies: modelReplies},
		extract:  &fakeGenerator{replies: extractReplies},
		history:  &fakeHistory{},
		list:     newFakeList(),
		prefs:    newFakePrefs(),
		observer: &recordingObserver{},
	}
	logger := discardLogger()
	gen, err := NewGenerationService(f.model, nil, logger)
	require.NoError(t, err)
	ex, err := NewIngredientExtractor(f.extract, logger)
	require.NoError(t, err)
	prefs, err := NewPreferenceService(f.prefs, KeywordExtractor{}, logger)
	require.NoError(t, err)
	shopping, err := NewShoppingListService(f.list, logger)
	require.NoError(t, err)

	f.svc, err = NewChatService(ChatDeps{
		Classifier:  fixedClassifier(domain.CategoryRecipe),
		Preferences: prefs,
		History:     f.history,
		Generator:   gen,
		Extractor:   ex,
		Shopping:    shopping,
		Observer:    f.observer,
		Logger:      logger,
	})
	require.NoError(t, err)
	return f
}

func TestProcessMessageHappyPath(t *testing.T) {
	f := newChatFixture(t,
		[]reply{{text: "Cook pasta with tomatoes and garlic."}},
		[]reply{{text: `["pasta", "Tomatoes", "garlic"]`}},
	)
	f.list.items["u1"] = []string{"milk"}

	out, err := f.svc.ProcessMessage(context.Background(), ChatInput{UserID: " u1 ", Message: "How do I make pasta? I'm vegetarian."})
	require.NoError(t, err)
	require.Equal(t, "Cook pasta with tomatoes and garlic.", out.BotResponse)
	require.Equal(t, []string{"garlic", "milk", "pasta", "tomatoes"}, out.ShoppingList)
	require.Equal(t, domain.Preferences{"vegetarian": "yes"}, out.Preferences)
	require.Equal(t, domain.CategoryRecipe, out.Category)

	require.Len(t, f.history.turns, 1)
	require.Equal(t, "u1", f.history.turns[0].UserID)
	require.Equal(t, "How do I make pasta? I'm vegetarian.", f.history.turns[0].UserMessage)
	require.Contains(t, f.model.prompts[0], "- vegetarian: yes")
	require.Contains(t, f.extract.prompts[0], "Assistant: Cook pasta with tomatoes and garlic.")
	require.Equal(t, []domain.Category{domain.CategoryRecipe}, f.observer.categories)
	require.Empty(t, f.observer.failures)
}

func TestProcessMessageRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name   string
		in     ChatInput
		reason string
	}{
		{name: "missing user", in: ChatInput{Message: "hi"}, reason: "empty_user_id"},
		{name: "blank message", in: ChatInput{UserID: "u1", Message: "  "}, reason: "empty_message"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newChatFixture(t, []reply{{text: "unused"}}, nil)
			_, err := f.svc.ProcessMessage(context.Background(), tt.in)
			expectError(t, err, ErrorInvalidInput, tt.reason)
			require.Empty(t, f.history.turns)
			require.Zero(t, f.model.calls())
			require.Zero(t, f.prefs.sets)
		})
	}
}

func TestProcessMessageGenerationFailurePersistsApology(t *testing.T) {
	f := newChatFixture(t, []reply{{err: statusError(503)}}, []reply{{text: `["pasta"]`}})
	f.list.items["u1"] = []string{"milk"}

	out, err := f.svc.ProcessMessage(context.Background(), ChatInput{UserID: "u1", Message: "How do I make pasta?"})
	require.NoError(t, err)
	require.Equal(t, ApologyMessage, out.BotResponse)
	require.Equal(t, []string{"milk"}, out.ShoppingList)
	require.Len(t, f.history.turns, 1)
	require.Equal(t, ApologyMessage, f.history.turns[0].BotResponse)
	require.Zero(t, f.extract.calls())
	require.Equal(t, []string{StepGenerate}, f.observer.failures)
}

func TestProcessMessageSurvivesStoreFailures(t *testing.T) {
	f := newChatFixture(t, []reply{{text: "Sure, add garlic."}}, []reply{{text: `["garlic"]`}})
	f.history.appendErr = errors.New("write failed")
	f.history.readErr = errors.New("read failed")

	out, err := f.svc.ProcessMessage(context.Background(), ChatInput{UserID: "u1", Message: "add garlic"})
	require.NoError(t, err)
	require.Equal(t, "Sure, add garlic.", out.BotResponse)
	require.Equal(t, []string{"garlic"}, out.ShoppingList)
	require.Contains(t, f.extract.prompts[0], "User: add garlic\nAssistant: Sure, add garlic.")
	require.Equal(t, []string{StepHistoryRead, StepPersist, StepHistoryRead}, f.observer.failures)
}

func TestProcessMessageMergeFailureKeepsReply(t *testing.T) {
	f := newChatFixture(t, []reply{{text: "Sure, add garlic."}}, []reply{{text: `["garlic"]`}})
	f.list.addErr = errors.New("conditional check failed")

	out, err := f.svc.ProcessMessage(context.Background(), ChatInput{UserID: "u1", Message: "add garlic"})
	require.NoError(t, err)
	require.Equal(t, "Sure, add garlic.", out.BotResponse)
	require.Empty(t, out.ShoppingList)
	require.Equal(t, []string{StepMerge}, f.observer.failures)
}

func TestHistoryReturnsEntries(t *testing.T) {
	f := newChatFixture(t, nil, nil)
	f.history.turns = []domain.Turn{{UserID: "u1", UserMessage: "hi", BotResponse: "hello"}}

	got, err := f.svc.History(context.Background(), "u1", 0)
	require.NoError(t, err)
	require.Equal(t, []domain.HistoryEntry{
		{Role: domain.RoleUser, Message: "hi"},
		{Role: domain.RoleAssistant, Message: "hello"},
	}, got)

	empty, err := f.svc.History(context.Background(), "nobody", 5)
	require.NoError(t, err)
	require.NotNil(t, empty)
	require.Empty(t, empty)

	_, err = f.svc.History(context.Background(), "", 5)
	expectError(t, err, ErrorInvalidInput, "empty_user_id")

	f.history.readErr = errors.New("down")
	_, err = f.svc.History(context.Background(), "u1", 5)
	expectError(t, err, ErrorInternal, "history_read_error")
}

func TestNewChatServiceRejectsMissingDeps(t *testing.T) {
	_, err := NewChatService(ChatDeps{})
	require.Error(t, err)
}
