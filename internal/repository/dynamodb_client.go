package repository

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"grocer-agent/internal/domain"
)

const (
	skPrefixTurn = "TURN#"
	skList       = "LIST"
	skPrefs      = "PREFS"
	prefAttrPref = "pref_"

	// Fixed-width so sort keys order chronologically as strings.
	sortableTime = "2006-01-02T15:04:05.000000000Z"
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Client stores chat turns, shopping lists and preferences in one table,
// partitioned by user.
type Client struct {
	api        dynamodbAPI
	tableName  string
	historyTTL time.Duration
	now        func() time.Time
}

type Option func(*Client)

// WithHistoryTTL sets a ttl attribute on new turns. Zero keeps them forever.
func WithHistoryTTL(d time.Duration) Option {
	return func(c *Client) {
		c.historyTTL = d
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string, opts ...Option) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	c := &Client{api: api, tableName: tableName, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func userPK(userID string) string {
	return "USER#" + userID
}

func turnSK(ts time.Time) string {
	return skPrefixTurn + ts.UTC().Format(sortableTime) + "#" + newID()
}

func (c *Client) key(userID, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: userPK(userID)},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}

// AppendTurn writes one immutable turn record.
func (c *Client) AppendTurn(ctx context.Context, userID, userMessage, botResponse string) error {
	now := c.now().UTC()
	item := map[string]types.AttributeValue{
		"PK":          &types.AttributeValueMemberS{Value: userPK(userID)},
		"SK":          &types.AttributeValueMemberS{Value: turnSK(now)},
		"userId":      &types.AttributeValueMemberS{Value: userID},
		"userMessage": &types.AttributeValueMemberS{Value: userMessage},
		"botResponse": &types.AttributeValueMemberS{Value: botResponse},
		"timestamp":   &types.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
	}
	if c.historyTTL > 0 {
		item["ttl"] = &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", now.Add(c.historyTTL).Unix())}
	}

	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if err != nil {
		return fmt.Errorf("repository: AppendTurn: %w", err)
	}
	return nil
}

// ReadHistory returns the most recent limit turns in chronological order.
// limit <= 0 reads every turn.
func (c *Client) ReadHistory(ctx context.Context, userID string, limit int) ([]domain.HistoryEntry, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: userPK(userID)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixTurn},
		},
		// Read newest first so LIMIT favors the most recent context.
		ScanIndexForward: aws.Bool(false),
	}
	if limit > math.MaxInt32 {
		limit = math.MaxInt32
	}
	if limit > 0 {
		in.Limit = aws.Int32(int32(limit))
	}

	var turns []domain.Turn
	pages := dynamodb.NewQueryPaginator(c.api, in)
	for pages.HasMorePages() && (limit <= 0 || len(turns) < limit) {
		out, err := pages.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("repository: ReadHistory query: %w", err)
		}
		for _, item := range out.Items {
			turn, err := itemToTurn(item)
			if err != nil {
				return nil, fmt.Errorf("repository: ReadHistory unmarshal: %w", err)
			}
			turns = append(turns, turn)
		}
	}
	if limit > 0 && len(turns) > limit {
		turns = turns[:limit]
	}

	entries := make([]domain.HistoryEntry, 0, 2*len(turns))
	// Walk backwards to return chronological order.
	for i := len(turns) - 1; i >= 0; i-- {
		entries = append(entries, turns[i].Entries()...)
	}
	return entries, nil
}

func itemToTurn(item map[string]types.AttributeValue) (domain.Turn, error) {
	userMessage, err := strAttr(item, "userMessage")
	if err != nil {
		return domain.Turn{}, err
	}
	botResponse, err := strAttr(item, "botResponse")
	if err != nil {
		return domain.Turn{}, err
	}
	userID, _ := strAttr(item, "userId") // allow empty
	var ts time.Time
	if raw, err := strAttr(item, "timestamp"); err == nil {
		ts, _ = time.Parse(time.RFC3339Nano, raw)
	}
	return domain.Turn{UserID: userID, UserMessage: userMessage, BotResponse: botResponse, Timestamp: ts}, nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

var newID = func() string {
	return uuid.NewString()
}
