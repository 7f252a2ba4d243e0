package sns

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/testiflow-api/internal/config"
)

// ReviewAlert is the JSON body published when a review lands in a space.
type ReviewAlert struct {
	SpaceID    string    `json:"spaceId"`
	SpaceName  string    `json:"spaceName"`
	OwnerEmail string    `json:"ownerEmail"`
	ReviewID   string    `json:"reviewId"`
	Reviewer   string    `json:"reviewer"`
	Rating     int       `json:"rating"`
	CreatedAt  time.Time `json:"createdAt"`
}

type publishAPI interface {
	Publish(ctx context.Context, in *sns.PublishInput, opts ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Publisher sends review alerts to a single SNS topic.
type Publisher struct {
	client   publishAPI
	topicARN string
}

// NewPublisher returns nil when cfg.ReviewAlertTopicARN is empty; callers treat
// a nil publisher as "alerts disabled".
func NewPublisher(cfg *config.Config) (*Publisher, error) {
	if cfg.ReviewAlertTopicARN == "" {
		return nil, nil
	}
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.SNSRegion),
	}
	if cfg.AWSAccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, err
	}
	clientOpts := []func(*sns.Options){}
	if cfg.AWSEndpointURL != "" {
		clientOpts = append(clientOpts, func(o *sns.Options) {
			o.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
		})
	}
	return newPublisher(sns.NewFromConfig(awsCfg, clientOpts...), cfg.ReviewAlertTopicARN), nil
}

func newPublisher(client publishAPI, topicARN string) *Publisher {
	return &Publisher{client: client, topicARN: topicARN}
}

func (p *Publisher) PublishReviewAlert(ctx context.Context, a ReviewAlert) error {
	body, err := json.Marshal(a)
	if err != nil {
		return err
	}
	_, err = p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Subject:  aws.String(fmt.Sprintf("New review for %s", a.SpaceName)),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"space_id": {DataType: aws.String("String"), StringValue: aws.String(a.SpaceID)},
		},
	})
	if err != nil {
		return fmt.Errorf("sns publish: %w", err)
	}
	return nil
}
