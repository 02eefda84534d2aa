package repository

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"grocer-agent/internal/domain"
)

// items is a DynamoDB reserved word, so expressions go through #items.
var itemsAttrName = map[string]string{"#items": "items"}

// AddItems merges items into the user's string set, creating the list on
// first use.
func (c *Client) AddItems(ctx context.Context, userID string, items []string) error {
	if len(items) == 0 {
		return nil
	}
	_, err := c.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                aws.String(c.tableName),
		Key:                      c.key(userID, skList),
		UpdateExpression:         aws.String("ADD #items :items SET updatedAt = :now, userId = :uid"),
		ExpressionAttributeNames: itemsAttrName,
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":items": &types.AttributeValueMemberSS{Value: items},
			":now":   c.nowAttr(),
			":uid":   &types.AttributeValueMemberS{Value: userID},
		},
	})
	if err != nil {
		return fmt.Errorf("repository: AddItems: %w", err)
	}
	return nil
}

// RemoveItems deletes exact names from the set. A missing list is left
// missing.
func (c *Client) RemoveItems(ctx context.Context, userID string, items []string) error {
	if len(items) == 0 {
		return nil
	}
	_, err := c.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                aws.String(c.tableName),
		Key:                      c.key(userID, skList),
		UpdateExpression:         aws.String("DELETE #items :items SET updatedAt = :now"),
		ConditionExpression:      aws.String("attribute_exists(PK)"),
		ExpressionAttributeNames: itemsAttrName,
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":items": &types.AttributeValueMemberSS{Value: items},
			":now":   c.nowAttr(),
		},
	})
	if err != nil && !isConditionFailed(err) {
		return fmt.Errorf("repository: RemoveItems: %w", err)
	}
	return nil
}

// ClearList empties an existing list.
func (c *Client) ClearList(ctx context.Context, userID string) error {
	_, err := c.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                aws.String(c.tableName),
		Key:                      c.key(userID, skList),
		UpdateExpression:         aws.String("REMOVE #items SET updatedAt = :now"),
		ConditionExpression:      aws.String("attribute_exists(PK)"),
		ExpressionAttributeNames: itemsAttrName,
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": c.nowAttr(),
		},
	})
	if err != nil && !isConditionFailed(err) {
		return fmt.Errorf("repository: ClearList: %w", err)
	}
	return nil
}

// ReadList returns the sorted items; a missing list reads as empty.
func (c *Client) ReadList(ctx context.Context, userID string) ([]string, error) {
	list, err := c.ReadShoppingList(ctx, userID)
	if err != nil {
		return nil, err
	}
	return list.Items, nil
}

func (c *Client) ReadShoppingList(ctx context.Context, userID string) (domain.ShoppingList, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(c.tableName),
		Key:            c.key(userID, skList),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.ShoppingList{}, fmt.Errorf("repository: ReadList get item: %w", err)
	}
	list := domain.ShoppingList{UserID: userID, Items: []string{}}
	if out == nil || len(out.Item) == 0 {
		return list, nil
	}
	if v, ok := out.Item["items"]; ok {
		ss, ok := v.(*types.AttributeValueMemberSS)
		if !ok {
			return domain.ShoppingList{}, fmt.Errorf("repository: attribute %q is not a string set", "items")
		}
		list.Items = slices.Sorted(slices.Values(ss.Value))
	}
	if raw, err := strAttr(out.Item, "updatedAt"); err == nil {
		list.UpdatedAt, _ = time.Parse(time.RFC3339Nano, raw)
	}
	return list, nil
}

func (c *Client) nowAttr() types.AttributeValue {
	return &types.AttributeValueMemberS{Value: c.now().UTC().Format(time.RFC3339Nano)}
}

// GetPreferences returns the stored preferences; none reads as empty.
func (c *Client) GetPreferences(ctx context.Context, userID string) (domain.Preferences, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(c.tableName),
		Key:            c.key(userID, skPrefs),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("repository: GetPreferences get item: %w", err)
	}
	prefs := domain.Preferences{}
	if out == nil {
		return prefs, nil
	}
	for attr, v := range out.Item {
		name, ok := strings.CutPrefix(attr, prefAttrPref)
		if !ok {
			continue
		}
		if s, ok := v.(*types.AttributeValueMemberS); ok {
			prefs[name] = s.Value
		}
	}
	return prefs, nil
}

func (c *Client) SetPreference(ctx context.Context, userID, name, value string) error {
	_, err := c.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(c.tableName),
		Key:              c.key(userID, skPrefs),
		UpdateExpression: aws.String("SET #pref = :value, updatedAt = :now, userId = :uid"),
		ExpressionAttributeNames: map[string]string{
			"#pref": prefAttrPref + name,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":value": &types.AttributeValueMemberS{Value: value},
			":now":   c.nowAttr(),
			":uid":   &types.AttributeValueMemberS{Value: userID},
		},
	})
	if err != nil {
		return fmt.Errorf("repository: SetPreference: %w", err)
	}
	return nil
}

func (c *Client) ClearPreferences(ctx context.Context, userID string) error {
	_, err := c.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(c.tableName),
		Key:       c.key(userID, skPrefs),
	})
	if err != nil {
		return fmt.Errorf("repository: ClearPreferences: %w", err)
	}
	return nil
}
