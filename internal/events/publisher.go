// Package events publishes settlement events to downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/ignite/debt-recovery/internal/domain"
	"github.com/ignite/debt-recovery/internal/pkg/logger"
)

const sendTimeout = 5 * time.Second

// SQSAPI is the part of the SQS client the publisher uses.
type SQSAPI interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSPublisher sends settlement events to an SQS queue. FIFO queues get
// the external reference as deduplication id, so redelivered webhooks
// never fan out twice inside the SQS dedup window.
type SQSPublisher struct {
	client   SQSAPI
	queueURL string
	fifo     bool
}

// NewSQSPublisher creates a publisher for queueURL.
func NewSQSPublisher(client SQSAPI, queueURL string) *SQSPublisher {
	return &SQSPublisher{
		client:   client,
		queueURL: queueURL,
		fifo:     strings.HasSuffix(queueURL, ".fifo"),
	}
}

// PublishSettled sends ev and waits for the queue to accept it.
func (p *SQSPublisher) PublishSettled(ctx context.Context, ev domain.SettledEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal settled event: %w", err)
	}

	in := &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"event_type": {DataType: aws.String("String"), StringValue: aws.String(ev.EventType)},
		},
	}
	if p.fifo {
		in.MessageGroupId = aws.String(strconv.FormatInt(ev.DebtID, 10))
		in.MessageDeduplicationId = aws.String(ev.ExternalRef)
	}

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	if _, err := p.client.SendMessage(ctx, in); err != nil {
		return fmt.Errorf("sqs send: %w", err)
	}
	return nil
}

// LogPublisher logs settlements when no queue is configured.
type LogPublisher struct{}

func (LogPublisher) PublishSettled(_ context.Context, ev domain.SettledEvent) error {
	logger.Info("debt settled", "debt_id", ev.DebtID, "external_ref", ev.ExternalRef, "amount", ev.Amount.String())
	return nil
}
