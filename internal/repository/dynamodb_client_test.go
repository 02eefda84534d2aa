package repository

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"

	"grocer-agent/internal/domain"
)

type fakeDynamo struct {
	getOut       *dynamodb.GetItemOutput
	getErr       error
	putErr       error
	updateErr    error
	deleteErr    error
	queryOuts    []*dynamodb.QueryOutput
	queryErr     error
	lastGetInput *dynamodb.GetItemInput
	lastPutInput *dynamodb.PutItemInput
	lastUpdateIn *dynamodb.UpdateItemInput
	lastDeleteIn *dynamodb.DeleteItemInput
	queryIns     []*dynamodb.QueryInput
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.lastGetInput = in
	if f.getOut == nil {
		return &dynamodb.GetItemOutput{}, f.getErr
	}
	return f.getOut, f.getErr
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.lastPutInput = in
	return &dynamodb.PutItemOutput{}, f.putErr
}

func (f *fakeDynamo) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.lastUpdateIn = in
	return &dynamodb.UpdateItemOutput{}, f.updateErr
}

func (f *fakeDynamo) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.lastDeleteIn = in
	return &dynamodb.DeleteItemOutput{}, f.deleteErr
}

// Query serves queryOuts one page per call.
func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	idx := len(f.queryIns)
	f.queryIns = append(f.queryIns, in)
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if idx >= len(f.queryOuts) {
		return &dynamodb.QueryOutput{}, nil
	}
	return f.queryOuts[idx], nil
}

func makeTurnItem(sk, userMessage, botResponse string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":          &types.AttributeValueMemberS{Value: "USER#u1"},
		"SK":          &types.AttributeValueMemberS{Value: sk},
		"userId":      &types.AttributeValueMemberS{Value: "u1"},
		"userMessage": &types.AttributeValueMemberS{Value: userMessage},
		"botResponse": &types.AttributeValueMemberS{Value: botResponse},
	}
}

var fixedNow = time.Date(2026, 2, 25, 10, 0, 0, 0, time.UTC)

func mustNewClient(t *testing.T, db *fakeDynamo, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	c, err := New(db, "test-table", opts...)
	require.NoError(t, err)
	return c
}

func sAttr(t *testing.T, item map[string]types.AttributeValue, key string) string {
	t.Helper()
	v, ok := item[key].(*types.AttributeValueMemberS)
	require.True(t, ok, key)
	return v.Value
}

func TestAppendTurn_HappyPath(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)

	err := c.AppendTurn(context.Background(), "u1", "How do I make pasta?", "Boil water.")
	require.NoError(t, err)

	item := db.lastPutInput.Item
	require.Equal(t, "USER#u1", sAttr(t, item, "PK"))
	require.True(t, strings.HasPrefix(sAttr(t, item, "SK"), "TURN#2026-02-25T10:00:00.000000000Z#"))
	require.Equal(t, "How do I make pasta?", sAttr(t, item, "userMessage"))
	require.Equal(t, "Boil water.", sAttr(t, item, "botResponse"))
	require.Equal(t, "2026-02-25T10:00:00Z", sAttr(t, item, "timestamp"))
	require.NotContains(t, item, "ttl")
	require.Equal(t, "attribute_not_exists(PK) AND attribute_not_exists(SK)", *db.lastPutInput.ConditionExpression)
}

func TestAppendTurn_WithTTL(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db, WithHistoryTTL(24*time.Hour))

	require.NoError(t, c.AppendTurn(context.Background(), "u1", "hi", "hello"))
	ttl, ok := db.lastPutInput.Item["ttl"].(*types.AttributeValueMemberN)
	require.True(t, ok)
	require.Equal(t, fmt.Sprintf("%d", fixedNow.Add(24*time.Hour).Unix()), ttl.Value)
}

func TestAppendTurn_DynamoError(t *testing.T) {
	db := &fakeDynamo{putErr: errors.New("ProvisionedThroughputExceededException")}
	c := mustNewClient(t, db)
	err := c.AppendTurn(context.Background(), "u1", "hi", "hello")
	require.Error(t, err)
	require.Contains(t, err.Error(), "AppendTurn")
}

func TestTurnSKSortsChronologically(t *testing.T) {
	a := turnSK(time.Date(2026, 1, 1, 0, 0, 5, 100_000_000, time.UTC))
	b := turnSK(time.Date(2026, 1, 1, 0, 0, 5, 120_000_000, time.UTC))
	require.Less(t, a, b)
}

func TestReadHistory_ReordersDescendingResultsToChronological(t *testing.T) {
	db := &fakeDynamo{queryOuts: []*dynamodb.QueryOutput{{
		Items: []map[string]types.AttributeValue{
			makeTurnItem("TURN#2026-02-27T12:00:00.000000000Z#b", "newer", "reply 2"),
			makeTurnItem("TURN#2026-02-27T11:00:00.000000000Z#a", "older", "reply 1"),
		},
	}}}
	c := mustNewClient(t, db)

	got, err := c.ReadHistory(context.Background(), "u1", 10)
	require.NoError(t, err)
	require.Equal(t, []domain.HistoryEntry{
		{Role: domain.RoleUser, Message: "older"},
		{Role: domain.RoleAssistant, Message: "reply 1"},
		{Role: domain.RoleUser, Message: "newer"},
		{Role: domain.RoleAssistant, Message: "reply 2"},
	}, got)

	in := db.queryIns[0]
	require.Equal(t, "PK = :pk AND begins_with(SK, :prefix)", *in.KeyConditionExpression)
	require.False(t, *in.ScanIndexForward)
	require.Equal(t, int32(10), *in.Limit)
	require.Equal(t, "USER#u1", in.ExpressionAttributeValues[":pk"].(*types.AttributeValueMemberS).Value)
}

func TestReadHistory_NoLimitFollowsPages(t *testing.T) {
	db := &fakeDynamo{queryOuts: []*dynamodb.QueryOutput{
		{
			Items: []map[string]types.AttributeValue{makeTurnItem("TURN#2", "second", "r2")},
			LastEvaluatedKey: map[string]types.AttributeValue{
				"PK": &types.AttributeValueMemberS{Value: "USER#u1"},
				"SK": &types.AttributeValueMemberS{Value: "TURN#2"},
			},
		},
		{Items: []map[string]types.AttributeValue{makeTurnItem("TURN#1", "first", "r1")}},
	}}
	c := mustNewClient(t, db)

	got, err := c.ReadHistory(context.Background(), "u1", 0)
	require.NoError(t, err)
	require.Len(t, db.queryIns, 2)
	require.Nil(t, db.queryIns[0].Limit)
	require.Equal(t, "first", got[0].Message)
	require.Equal(t, "r2", got[3].Message)
}

func TestReadHistory_OversizedLimitIsClamped(t *testing.T) {
	if strconv.IntSize < 64 {
		t.Skip("int cannot exceed int32 on this platform")
	}
	var big int64 = 1<<32 + 1
	db := &fakeDynamo{queryOuts: []*dynamodb.QueryOutput{
		{Items: []map[string]types.AttributeValue{makeTurnItem("TURN#1", "first", "r1")}},
	}}
	c := mustNewClient(t, db)

	got, err := c.ReadHistory(context.Background(), "u1", int(big))
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, int32(math.MaxInt32), *db.queryIns[0].Limit)
}

func TestReadHistory_EmptyResult(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)
	got, err := c.ReadHistory(context.Background(), "u1", 10)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Empty(t, got)
}

func TestReadHistory_QueryError(t *testing.T) {
	db := &fakeDynamo{queryErr: errors.New("ResourceNotFoundException")}
	c := mustNewClient(t, db)
	_, err := c.ReadHistory(context.Background(), "u1", 10)
	require.Error(t, err)
	require.Contains(t, err.Error(), "ReadHistory")
}

func TestReadHistory_MalformedItem(t *testing.T) {
	item := map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: "USER#u1"},
		"SK": &types.AttributeValueMemberS{Value: "TURN#ts"},
	}
	db := &fakeDynamo{queryOuts: []*dynamodb.QueryOutput{{Items: []map[string]types.AttributeValue{item}}}}
	c := mustNewClient(t, db)
	_, err := c.ReadHistory(context.Background(), "u1", 10)
	require.Error(t, err)
	require.Contains(t, err.Error(), "userMessage")
}

func TestAddItems_UsesStringSetUnion(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)

	require.NoError(t, c.AddItems(context.Background(), "u1", []string{"eggs", "milk"}))
	in := db.lastUpdateIn
	require.Equal(t, "ADD #items :items SET updatedAt = :now, userId = :uid", *in.UpdateExpression)
	require.Equal(t, "items", in.ExpressionAttributeNames["#items"])
	require.Equal(t, []string{"eggs", "milk"}, in.ExpressionAttributeValues[":items"].(*types.AttributeValueMemberSS).Value)
	require.Equal(t, "LIST", in.Key["SK"].(*types.AttributeValueMemberS).Value)
	require.Nil(t, in.ConditionExpression)
}

func TestAddItems_EmptyIsNoop(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)
	require.NoError(t, c.AddItems(context.Background(), "u1", nil))
	require.Nil(t, db.lastUpdateIn)
}

func TestRemoveItems_MissingListIsNoop(t *testing.T) {
	db := &fakeDynamo{updateErr: &types.ConditionalCheckFailedException{Message: aws.String("no list")}}
	c := mustNewClient(t, db)

	require.NoError(t, c.RemoveItems(context.Background(), "u1", []string{"eggs"}))
	require.Equal(t, "DELETE #items :items SET updatedAt = :now", *db.lastUpdateIn.UpdateExpression)
	require.Equal(t, "items", db.lastUpdateIn.ExpressionAttributeNames["#items"])
	require.Equal(t, "attribute_exists(PK)", *db.lastUpdateIn.ConditionExpression)
}

func TestRemoveItems_DynamoError(t *testing.T) {
	db := &fakeDynamo{updateErr: errors.New("throttled")}
	c := mustNewClient(t, db)
	err := c.RemoveItems(context.Background(), "u1", []string{"eggs"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "RemoveItems")
}

func TestClearList(t *testing.T) {
	db := &fakeDynamo{updateErr: &types.ConditionalCheckFailedException{}}
	c := mustNewClient(t, db)
	require.NoError(t, c.ClearList(context.Background(), "u1"))
	require.Equal(t, "REMOVE #items SET updatedAt = :now", *db.lastUpdateIn.UpdateExpression)
	require.Equal(t, "items", db.lastUpdateIn.ExpressionAttributeNames["#items"])
}

func TestReadList(t *testing.T) {
	db := &fakeDynamo{getOut: &dynamodb.GetItemOutput{Item: map[string]types.AttributeValue{
		"PK":        &types.AttributeValueMemberS{Value: "USER#u1"},
		"SK":        &types.AttributeValueMemberS{Value: "LIST"},
		"items":     &types.AttributeValueMemberSS{Value: []string{"milk", "eggs"}},
		"updatedAt": &types.AttributeValueMemberS{Value: "2026-02-25T10:00:00Z"},
	}}}
	c := mustNewClient(t, db)

	list, err := c.ReadShoppingList(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, []string{"eggs", "milk"}, list.Items)
	require.True(t, fixedNow.Equal(list.UpdatedAt))
	require.True(t, *db.lastGetInput.ConsistentRead)
}

func TestReadList_MissingOrCleared(t *testing.T) {
	c := mustNewClient(t, &fakeDynamo{})
	items, err := c.ReadList(context.Background(), "u1")
	require.NoError(t, err)
	require.NotNil(t, items)
	require.Empty(t, items)

	db := &fakeDynamo{getOut: &dynamodb.GetItemOutput{Item: map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: "USER#u1"},
	}}}
	items, err = mustNewClient(t, db).ReadList(context.Background(), "u1")
	require.NoError(t, err)
	require.Empty(t, items)
}

func TestReadList_WrongType(t *testing.T) {
	db := &fakeDynamo{getOut: &dynamodb.GetItemOutput{Item: map[string]types.AttributeValue{
		"items": &types.AttributeValueMemberS{Value: "eggs"},
	}}}
	_, err := mustNewClient(t, db).ReadList(context.Background(), "u1")
	require.Error(t, err)
}

func TestPreferences(t *testing.T) {
	db := &fakeDynamo{getOut: &dynamodb.GetItemOutput{Item: map[string]types.AttributeValue{
		"PK":              &types.AttributeValueMemberS{Value: "USER#u1"},
		"SK":              &types.AttributeValueMemberS{Value: "PREFS"},
		"pref_vegetarian": &types.AttributeValueMemberS{Value: "yes"},
		"updatedAt":       &types.AttributeValueMemberS{Value: "2026-02-25T10:00:00Z"},
	}}}
	c := mustNewClient(t, db)

	prefs, err := c.GetPreferences(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, domain.Preferences{"vegetarian": "yes"}, prefs)

	require.NoError(t, c.SetPreference(context.Background(), "u1", "gluten_free", "no"))
	require.Equal(t, "pref_gluten_free", db.lastUpdateIn.ExpressionAttributeNames["#pref"])
	require.Equal(t, "no", db.lastUpdateIn.ExpressionAttributeValues[":value"].(*types.AttributeValueMemberS).Value)

	require.NoError(t, c.ClearPreferences(context.Background(), "u1"))
	require.Equal(t, "PREFS", db.lastDeleteIn.Key["SK"].(*types.AttributeValueMemberS).Value)
}

func TestPreferences_Errors(t *testing.T) {
	db := &fakeDynamo{getErr: errors.New("boom"), updateErr: errors.New("boom"), deleteErr: errors.New("boom")}
	c := mustNewClient(t, db)
	_, err := c.GetPreferences(context.Background(), "u1")
	require.ErrorContains(t, err, "GetPreferences")
	require.ErrorContains(t, c.SetPreference(context.Background(), "u1", "vegetarian", "yes"), "SetPreference")
	require.ErrorContains(t, c.ClearPreferences(context.Background(), "u1"), "ClearPreferences")
}

func TestNew_NilAPI(t *testing.T) {
	_, err := New(nil, "test-table")
	require.Error(t, err)
	require.Contains(t, err.Error(), "must not be nil")
}

func TestNew_EmptyTableName(t *testing.T) {
	_, err := New(&fakeDynamo{}, " ")
	require.Error(t, err)
	require.Contains(t, err.Error(), "must not be empty")
}
