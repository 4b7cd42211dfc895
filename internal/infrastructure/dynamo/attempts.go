package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/kset/verifikator/internal/domain"
)

// AttemptRepo is the durable verification store. Exactly-once terminal
// transitions are enforced with a conditional write on status = pending, so
// two callbacks racing on the same state cannot both win.
// PK: state. TTL attribute: expires_at.
type AttemptRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewAttemptRepo(client *dynamodb.Client, tableName string) *AttemptRepo {
	return &AttemptRepo{client: client, tableName: tableName}
}

// Upsert writes the attempt unconditionally; an existing record for the same
// state is overwritten, which is exactly the re-issuance reset semantics.
func (r *AttemptRepo) Upsert(ctx context.Context, a *domain.VerificationAttempt) error {
	item, err := attributevalue.MarshalMap(a)
	if err != nil {
		return fmt.Errorf("marshal attempt: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *AttemptRepo) Get(ctx context.Context, state string) (*domain.VerificationAttempt, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            stateKey(state),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("attempt not found: %w", domain.ErrNotFound)
	}
	var a domain.VerificationAttempt
	if err := attributevalue.UnmarshalMap(out.Item, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// Transition performs the pending→terminal compare-and-swap. A failed
// condition means either the record is gone or another caller already
// resolved it; the two are told apart with a follow-up read.
func (r *AttemptRepo) Transition(ctx context.Context, state string, to domain.AttemptStatus, resolvedEmail string) (*domain.VerificationAttempt, error) {
	if !to.Terminal() {
		return nil, fmt.Errorf("cannot transition to %q: %w", to, domain.ErrBadRequest)
	}
	resolvedAt, err := attributevalue.Marshal(time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("marshal resolved_at: %w", err)
	}

	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 stateKey(state),
		UpdateExpression:    aws.String("SET #status = :to, resolved_email = :email, resolved_at = :at"),
		ConditionExpression: aws.String("attribute_exists(#state) AND #status = :pending"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
			"#state":  "state",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":to":      &types.AttributeValueMemberS{Value: string(to)},
			":email":   &types.AttributeValueMemberS{Value: resolvedEmail},
			":at":      resolvedAt,
			":pending": &types.AttributeValueMemberS{Value: string(domain.AttemptPending)},
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if err != nil {
		var ccfe *types.ConditionalCheckFailedException
		if errors.As(err, &ccfe) {
			if _, gerr := r.Get(ctx, state); errors.Is(gerr, domain.ErrNotFound) {
				return nil, fmt.Errorf("attempt not found: %w", domain.ErrNotFound)
			}
			return nil, fmt.Errorf("attempt already terminal: %w", domain.ErrAlreadyResolved)
		}
		return nil, err
	}

	var a domain.VerificationAttempt
	if err := attributevalue.UnmarshalMap(out.Attributes, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// stateKey builds the primary key map for an attempt.
func stateKey(state string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"state": &types.AttributeValueMemberS{Value: state},
	}
}
