package aws

import (
	"context"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/juju/errors"

	"github.com/anirudhbiyani/cloudjack/pkg/cloudjack"
)

// maxReceive is the SQS per-call receive limit.
const maxReceive = 10

// SQSAPI is the subset of the SQS client used by Queue.
type SQSAPI interface {
	CreateQueue(ctx context.Context, in *sqs.CreateQueueInput, opts ...func(*sqs.Options)) (*sqs.CreateQueueOutput, error)
	DeleteQueue(ctx context.Context, in *sqs.DeleteQueueInput, opts ...func(*sqs.Options)) (*sqs.DeleteQueueOutput, error)
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, opts ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, opts ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, opts ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	sqs.ListQueuesAPIClient
}

// Queue implements cloudjack.Queue on SQS. Queue IDs are queue URLs.
type Queue struct {
	api SQSAPI
}

var _ cloudjack.Queue = (*Queue)(nil)

// NewQueue returns a Queue backed by api.
func NewQueue(api SQSAPI) *Queue {
	return &Queue{api: api}
}

func (q *Queue) Domain() cloudjack.ServiceName { return cloudjack.ServiceQueue }

// CreateQueue creates a standard queue and returns its URL.
func (q *Queue) CreateQueue(ctx context.Context, name string, opts cloudjack.QueueOptions) (string, error) {
	attrs := map[string]string{}
	if opts.DelaySeconds > 0 {
		attrs[string(types.QueueAttributeNameDelaySeconds)] = strconv.Itoa(opts.DelaySeconds)
	}
	if opts.VisibilityTimeout > 0 {
		attrs[string(types.QueueAttributeNameVisibilityTimeout)] = strconv.Itoa(opts.VisibilityTimeout)
	}
	in := &sqs.CreateQueueInput{QueueName: aws.String(name)}
	if len(attrs) > 0 {
		in.Attributes = attrs
	}
	out, err := q.api.CreateQueue(ctx, in)
	if err != nil {
		return "", errors.Trace(err)
	}
	return aws.ToString(out.QueueUrl), nil
}

func (q *Queue) DeleteQueue(ctx context.Context, queueID string) error {
	_, err := q.api.DeleteQueue(ctx, &sqs.DeleteQueueInput{QueueUrl: aws.String(queueID)})
	return errors.Trace(err)
}

func (q *Queue) ListQueues(ctx context.Context, prefix string) ([]string, error) {
	in := &sqs.ListQueuesInput{}
	if prefix != "" {
		in.QueueNamePrefix = aws.String(prefix)
	}
	var urls []string
	p := sqs.NewListQueuesPaginator(q.api, in)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, errors.Trace(err)
		}
		urls = append(urls, page.QueueUrls...)
	}
	return urls, nil
}

// SendMessage sends body with string attributes and returns the message ID.
func (q *Queue) SendMessage(ctx context.Context, queueID, body string, opts cloudjack.SendOptions) (string, error) {
	in := &sqs.SendMessageInput{
		QueueUrl:     aws.String(queueID),
		MessageBody:  aws.String(body),
		DelaySeconds: int32(opts.DelaySeconds),
	}
	if len(opts.Attributes) > 0 {
		in.MessageAttributes = make(map[string]types.MessageAttributeValue, len(opts.Attributes))
		for k, v := range opts.Attributes {
			in.MessageAttributes[k] = types.MessageAttributeValue{
				DataType:    aws.String("String"),
				StringValue: aws.String(v),
			}
		}
	}
	out, err := q.api.SendMessage(ctx, in)
	if err != nil {
		return "", errors.Trace(err)
	}
	return aws.ToString(out.MessageId), nil
}

// ReceiveMessages receives up to opts.MaxMessages messages, at most ten.
func (q *Queue) ReceiveMessages(ctx context.Context, queueID string, opts cloudjack.ReceiveOptions) ([]cloudjack.Message, error) {
	opts = opts.Normalize()
	if opts.MaxMessages > maxReceive {
		opts.MaxMessages = maxReceive
	}
	out, err := q.api.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:              aws.String(queueID),
		MaxNumberOfMessages:   int32(opts.MaxMessages),
		WaitTimeSeconds:       int32(opts.WaitTimeSeconds),
		VisibilityTimeout:     int32(opts.VisibilityTimeout),
		MessageAttributeNames: []string{"All"},
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	msgs := make([]cloudjack.Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		msg := cloudjack.Message{
			MessageID:     aws.ToString(m.MessageId),
			Body:          aws.ToString(m.Body),
			ReceiptHandle: aws.ToString(m.ReceiptHandle),
		}
		if len(m.MessageAttributes) > 0 {
			msg.Attributes = make(map[string]string, len(m.MessageAttributes))
			for k, v := range m.MessageAttributes {
				msg.Attributes[k] = aws.ToString(v.StringValue)
			}
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

func (q *Queue) DeleteMessage(ctx context.Context, queueID, receiptHandle string) error {
	_, err := q.api.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(queueID),
		ReceiptHandle: aws.String(receiptHandle),
	})
	return errors.Trace(err)
}
