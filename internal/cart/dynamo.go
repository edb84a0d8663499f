package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoRepository stores carts in DynamoDB, one item per shopper with the
// cart JSON in an attribute. Partition key: shopper_id.
type DynamoRepository struct {
	client    *dynamodb.Client
	tableName string
}

// dynamoCart represents the DynamoDB item structure
type dynamoCart struct {
	ShopperID   string `dynamodbav:"shopper_id"`
	Items       string `dynamodbav:"items"`
	LastOrderID string `dynamodbav:"last_order_id"`
	UpdatedAt   string `dynamodbav:"updated_at"`
}

func NewDynamoRepository(client *dynamodb.Client, tableName string) *DynamoRepository {
	return &DynamoRepository{client: client, tableName: tableName}
}

func (r *DynamoRepository) Load(ctx context.Context, shopperID string) ([]LineItem, error) {
	item, err := r.getItem(ctx, shopperID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, nil
	}
	return DecodeItems([]byte(item.Items)), nil
}

func (r *DynamoRepository) Save(ctx context.Context, shopperID string, items []LineItem) error {
	data, err := EncodeItems(items)
	if err != nil {
		return err
	}

	// SET keeps last_order_id intact when only the cart changes.
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"shopper_id": &types.AttributeValueMemberS{Value: shopperID},
		},
		UpdateExpression: aws.String("SET #items = :items, updated_at = :ts"),
		ExpressionAttributeNames: map[string]string{
			"#items": "items",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":items": &types.AttributeValueMemberS{Value: string(data)},
			":ts":    &types.AttributeValueMemberS{Value: time.Now().Format(time.RFC3339Nano)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to save cart: %w", err)
	}
	return nil
}

func (r *DynamoRepository) SaveLastOrder(ctx context.Context, shopperID, orderID string) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"shopper_id": &types.AttributeValueMemberS{Value: shopperID},
		},
		UpdateExpression: aws.String("SET last_order_id = :oid, updated_at = :ts"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":oid": &types.AttributeValueMemberS{Value: orderID},
			":ts":  &types.AttributeValueMemberS{Value: time.Now().Format(time.RFC3339Nano)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to save last order: %w", err)
	}
	return nil
}

func (r *DynamoRepository) LastOrder(ctx context.Context, shopperID string) (string, error) {
	item, err := r.getItem(ctx, shopperID)
	if err != nil {
		return "", err
	}
	if item == nil {
		return "", nil
	}
	return item.LastOrderID, nil
}

func (r *DynamoRepository) getItem(ctx context.Context, shopperID string) (*dynamoCart, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"shopper_id": &types.AttributeValueMemberS{Value: shopperID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get cart item: %w", err)
	}
	if result.Item == nil {
		return nil, nil
	}

	var dc dynamoCart
	if err := attributevalue.UnmarshalMap(result.Item, &dc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cart item: %w", err)
	}
	return &dc, nil
}
