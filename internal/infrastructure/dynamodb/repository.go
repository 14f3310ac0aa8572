package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	awsv2dynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsv2types "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	awsv2xray "github.com/aws/aws-xray-sdk-go/instrumentation/awsv2"
	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/google/uuid"

	"review-console/internal/domain"
	"review-console/internal/ports"
)

// API is the slice of the DynamoDB client the journal uses.
type API interface {
	PutItem(ctx context.Context, in *awsv2dynamodb.PutItemInput, optFns ...func(*awsv2dynamodb.Options)) (*awsv2dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *awsv2dynamodb.QueryInput, optFns ...func(*awsv2dynamodb.Options)) (*awsv2dynamodb.QueryOutput, error)
}

type Client struct {
	db        API
	tableName string
}

func NewClient(ctx context.Context, region, tableName string) (*Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, err
	}
	awsv2xray.AWSV2Instrumentor(&cfg.APIOptions)
	client := awsv2dynamodb.NewFromConfig(cfg)
	return &Client{db: client, tableName: tableName}, nil
}

// NewClientWithAPI wraps an existing DynamoDB API, e.g. a local endpoint.
func NewClientWithAPI(db API, tableName string) *Client {
	return &Client{db: db, tableName: tableName}
}

func appPK(appID string) string { return "APP#" + appID }

func decisionSK(at time.Time, id string) string {
	return "DECISION#" + at.UTC().Format(time.RFC3339Nano) + "#" + id
}

func isConditionalCheckFailure(err error) bool {
	var condErr *awsv2types.ConditionalCheckFailedException
	return errors.As(err, &condErr)
}

type decisionItem struct {
	PK            string `dynamodbav:"PK"`
	SK            string `dynamodbav:"SK"`
	EntityType    string `dynamodbav:"EntityType"`
	ID            string `dynamodbav:"ID"`
	ApplicationID string `dynamodbav:"ApplicationID"`
	Kind          string `dynamodbav:"Kind"`
	Source        string `dynamodbav:"Source"`
	Operator      string `dynamodbav:"Operator"`
	Outcome       string `dynamodbav:"Outcome"`
	Message       string `dynamodbav:"Message,omitempty"`
	At            string `dynamodbav:"At"`
}

// DecisionRepository appends transition decisions under the application's
// partition. Sort keys embed the timestamp so a reverse query is newest first.
type DecisionRepository struct{ client *Client }

func NewDecisionRepository(client *Client) *DecisionRepository {
	return &DecisionRepository{client: client}
}

func (r *DecisionRepository) Record(ctx context.Context, d domain.Decision) error {
	if d.ApplicationID == "" {
		return domain.ErrInvalidInput
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.At.IsZero() {
		d.At = time.Now().UTC()
	}
	av, err := attributevalue.MarshalMap(decisionItem{
		PK:            appPK(d.ApplicationID),
		SK:            decisionSK(d.At, d.ID),
		EntityType:    "DECISION",
		ID:            d.ID,
		ApplicationID: d.ApplicationID,
		Kind:          string(d.Kind),
		Source:        string(d.Source),
		Operator:      d.Operator,
		Outcome:       string(d.Outcome),
		Message:       d.Message,
		At:            d.At.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return err
	}
	return xray.Capture(ctx, "DynamoDB.PutDecision", func(ctx context.Context) error {
		_, err := r.client.db.PutItem(ctx, &awsv2dynamodb.PutItemInput{
			TableName:           aws.String(r.client.tableName),
			Item:                av,
			ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
		})
		if isConditionalCheckFailure(err) {
			return fmt.Errorf("%w: decision %s already recorded", domain.ErrInvalidInput, d.ID)
		}
		return err
	})
}

func (r *DecisionRepository) ListByApplication(ctx context.Context, appID string) ([]domain.Decision, error) {
	if appID == "" {
		return nil, domain.ErrInvalidInput
	}
	var out *awsv2dynamodb.QueryOutput
	err := xray.Capture(ctx, "DynamoDB.QueryDecisions", func(ctx context.Context) error {
		var e error
		out, e = r.client.db.Query(ctx, &awsv2dynamodb.QueryInput{
			TableName:              aws.String(r.client.tableName),
			KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :sk)"),
			ExpressionAttributeValues: map[string]awsv2types.AttributeValue{
				":pk": &awsv2types.AttributeValueMemberS{Value: appPK(appID)},
				":sk": &awsv2types.AttributeValueMemberS{Value: "DECISION#"},
			},
			ScanIndexForward: aws.Bool(false),
		})
		return e
	})
	if err != nil {
		return nil, err
	}
	decisions := make([]domain.Decision, 0, len(out.Items))
	for _, item := range out.Items {
		var raw decisionItem
		if err := attributevalue.UnmarshalMap(item, &raw); err != nil {
			return nil, err
		}
		at, _ := time.Parse(time.RFC3339Nano, raw.At)
		decisions = append(decisions, domain.Decision{
			ID:            raw.ID,
			ApplicationID: raw.ApplicationID,
			Kind:          domain.TransitionKind(raw.Kind),
			Source:        domain.DecisionSource(raw.Source),
			Operator:      raw.Operator,
			Outcome:       domain.DecisionOutcome(raw.Outcome),
			Message:       raw.Message,
			At:            at,
		})
	}
	return decisions, nil
}

var _ ports.DecisionRepository = (*DecisionRepository)(nil)
