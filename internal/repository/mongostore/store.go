// Package mongostore persists chat history, shopping lists and preferences
// in MongoDB, one collection per concern.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"grocer-agent/internal/domain"
)

const (
	HistoryCollection      = "chat_history"
	ShoppingListCollection = "shopping_list"
	PreferencesCollection  = "user_preferences"
)

// collection is the subset of *mongo.Collection used by Store.
type collection interface {
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error)
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error)
}

type turnDoc struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	UserID      string             `bson:"user_id"`
	UserMessage string             `bson:"user_message"`
	BotResponse string             `bson:"bot_response"`
	Timestamp   time.Time          `bson:"timestamp"`
}

type listDoc struct {
	UserID    string    `bson:"user_id"`
	Items     []string  `bson:"items"`
	UpdatedAt time.Time `bson:"updated_at"`
}

type prefsDoc struct {
	UserID      string            `bson:"user_id"`
	Preferences map[string]string `bson:"static_preferences"`
}

type Store struct {
	client  *mongo.Client
	history collection
	lists   collection
	prefs   collection
	now     func() time.Time
}

// Connect dials uri and binds the store to database dbName.
func Connect(ctx context.Context, uri, dbName string) (*Store, error) {
	if uri == "" {
		return nil, errors.New("mongostore: uri must not be empty")
	}
	if dbName == "" {
		return nil, errors.New("mongostore: database name must not be empty")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongostore: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongostore: ping: %w", err)
	}
	db := client.Database(dbName)
	s := newStore(db.Collection(HistoryCollection), db.Collection(ShoppingListCollection), db.Collection(PreferencesCollection))
	s.client = client
	return s, nil
}

func newStore(history, lists, prefs collection) *Store {
	return &Store{history: history, lists: lists, prefs: prefs, now: time.Now}
}

// Close disconnects the underlying client.
func (s *Store) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

func (s *Store) AppendTurn(ctx context.Context, userID, userMessage, botResponse string) error {
	_, err := s.history.InsertOne(ctx, turnDoc{
		UserID:      userID,
		UserMessage: userMessage,
		BotResponse: botResponse,
		Timestamp:   s.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("mongostore: AppendTurn: %w", err)
	}
	return nil
}

// ReadHistory returns the most recent limit turns, oldest first.
func (s *Store) ReadHistory(ctx context.Context, userID string, limit int) ([]domain.HistoryEntry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := s.history.Find(ctx, bson.D{{Key: "user_id", Value: userID}}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongostore: ReadHistory find: %w", err)
	}
	var docs []turnDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongostore: ReadHistory decode: %w", err)
	}
	slices.Reverse(docs)

	out := make([]domain.HistoryEntry, 0, 2*len(docs))
	for _, d := range docs {
		turn := domain.Turn{UserID: d.UserID, UserMessage: d.UserMessage, BotResponse: d.BotResponse, Timestamp: d.Timestamp}
		out = append(out, turn.Entries()...)
	}
	return out, nil
}

func byUser(userID string) bson.D {
	return bson.D{{Key: "user_id", Value: userID}}
}

func (s *Store) AddItems(ctx context.Context, userID string, items []string) error {
	if len(items) == 0 {
		return nil
	}
	update := bson.D{
		{Key: "$addToSet", Value: bson.D{{Key: "items", Value: bson.D{{Key: "$each", Value: items}}}}},
		{Key: "$set", Value: bson.D{{Key: "updated_at", Value: s.now().UTC()}}},
	}
	if _, err := s.lists.UpdateOne(ctx, byUser(userID), update, options.Update().SetUpsert(true)); err != nil {
		return fmt.Errorf("mongostore: AddItems: %w", err)
	}
	return nil
}

func (s *Store) RemoveItems(ctx context.Context, userID string, items []string) error {
	if len(items) == 0 {
		return nil
	}
	update := bson.D{
		{Key: "$pull", Value: bson.D{{Key: "items", Value: bson.D{{Key: "$in", Value: items}}}}},
		{Key: "$set", Value: bson.D{{Key: "updated_at", Value: s.now().UTC()}}},
	}
	if _, err := s.lists.UpdateOne(ctx, byUser(userID), update); err != nil {
		return fmt.Errorf("mongostore: RemoveItems: %w", err)
	}
	return nil
}

func (s *Store) ClearList(ctx context.Context, userID string) error {
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "items", Value: []string{}},
		{Key: "updated_at", Value: s.now().UTC()},
	}}}
	if _, err := s.lists.UpdateOne(ctx, byUser(userID), update); err != nil {
		return fmt.Errorf("mongostore: ClearList: %w", err)
	}
	return nil
}

func (s *Store) ReadList(ctx context.Context, userID string) ([]string, error) {
	var doc listDoc
	err := s.lists.FindOne(ctx, byUser(userID)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mongostore: ReadList: %w", err)
	}
	if doc.Items == nil {
		return []string{}, nil
	}
	return slices.Sorted(slices.Values(doc.Items)), nil
}

func (s *Store) GetPreferences(ctx context.Context, userID string) (domain.Preferences, error) {
	var doc prefsDoc
	err := s.prefs.FindOne(ctx, byUser(userID)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Preferences{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mongostore: GetPreferences: %w", err)
	}
	out := domain.Preferences{}
	for k, v := range doc.Preferences {
		out[k] = v
	}
	return out, nil
}

func (s *Store) SetPreference(ctx context.Context, userID, name, value string) error {
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "static_preferences." + name, Value: value},
		{Key: "last_updated", Value: s.now().UTC()},
	}}}
	if _, err := s.prefs.UpdateOne(ctx, byUser(userID), update, options.Update().SetUpsert(true)); err != nil {
		return fmt.Errorf("mongostore: SetPreference: %w", err)
	}
	return nil
}

func (s *Store) ClearPreferences(ctx context.Context, userID string) error {
	if _, err := s.prefs.DeleteOne(ctx, byUser(userID)); err != nil {
		return fmt.Errorf("mongostore: ClearPreferences: %w", err)
	}
	return nil
}
