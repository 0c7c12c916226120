package gcp

import (
	"context"
	"strings"

	pubsub "cloud.google.com/go/pubsub/apiv1"
	"cloud.google.com/go/pubsub/apiv1/pubsubpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/juju/errors"
	"google.golang.org/api/iterator"

	"github.com/anirudhbiyani/cloudjack/pkg/cloudjack"
)

// Pub/Sub limits and defaults.
const (
	defaultAckDeadline = 60
	maxAckDeadline     = 600
	subscriptionSuffix = "-sub"
)

// PublisherAPI is the subset of the Pub/Sub publisher client used by Queue.
type PublisherAPI interface {
	CreateTopic(ctx context.Context, req *pubsubpb.Topic, opts ...gax.CallOption) (*pubsubpb.Topic, error)
	DeleteTopic(ctx context.Context, req *pubsubpb.DeleteTopicRequest, opts ...gax.CallOption) error
	ListTopics(ctx context.Context, req *pubsubpb.ListTopicsRequest, opts ...gax.CallOption) *pubsub.TopicIterator
	Publish(ctx context.Context, req *pubsubpb.PublishRequest, opts ...gax.CallOption) (*pubsubpb.PublishResponse, error)
}

// SubscriberAPI is the subset of the Pub/Sub subscriber client used by
// Queue.
type SubscriberAPI interface {
	CreateSubscription(ctx context.Context, req *pubsubpb.Subscription, opts ...gax.CallOption) (*pubsubpb.Subscription, error)
	DeleteSubscription(ctx context.Context, req *pubsubpb.DeleteSubscriptionRequest, opts ...gax.CallOption) error
	Pull(ctx context.Context, req *pubsubpb.PullRequest, opts ...gax.CallOption) (*pubsubpb.PullResponse, error)
	Acknowledge(ctx context.Context, req *pubsubpb.AcknowledgeRequest, opts ...gax.CallOption) error
}

// Queue implements cloudjack.Queue on Pub/Sub. A queue is a topic plus a
// pull subscription named "<topic>-sub"; queue IDs are topic names.
type Queue struct {
	pub     PublisherAPI
	sub     SubscriberAPI
	project string
}

var _ cloudjack.Queue = (*Queue)(nil)

// NewQueue returns a Queue for project.
func NewQueue(pub PublisherAPI, sub SubscriberAPI, project string) *Queue {
	return &Queue{pub: pub, sub: sub, project: project}
}

func (q *Queue) Domain() cloudjack.ServiceName { return cloudjack.ServiceQueue }

func (q *Queue) topicPath(name string) string {
	return "projects/" + q.project + "/topics/" + name
}

func (q *Queue) subscriptionPath(name string) string {
	return "projects/" + q.project + "/subscriptions/" + name + subscriptionSuffix
}

// CreateQueue creates the topic and its subscription. The ack deadline is
// AckDeadlineSeconds, else VisibilityTimeout, else 60 seconds. Pub/Sub
// has no delivery delay, so DelaySeconds is ignored.
func (q *Queue) CreateQueue(ctx context.Context, name string, opts cloudjack.QueueOptions) (string, error) {
	if _, err := q.pub.CreateTopic(ctx, &pubsubpb.Topic{Name: q.topicPath(name)}); err != nil {
		return "", errors.Trace(err)
	}
	_, err := q.sub.CreateSubscription(ctx, &pubsubpb.Subscription{
		Name:               q.subscriptionPath(name),
		Topic:              q.topicPath(name),
		AckDeadlineSeconds: ackDeadline(opts),
	})
	if err != nil {
		return "", errors.Annotatef(err, "creating subscription for %q", name)
	}
	return name, nil
}

func ackDeadline(opts cloudjack.QueueOptions) int32 {
	d := opts.AckDeadlineSeconds
	if d <= 0 {
		d = opts.VisibilityTimeout
	}
	if d <= 0 {
		d = defaultAckDeadline
	}
	return int32(min(d, maxAckDeadline))
}

// DeleteQueue deletes the subscription, then the topic. A subscription
// that is already gone does not stop the topic deletion.
func (q *Queue) DeleteQueue(ctx context.Context, queueID string) error {
	err := q.sub.DeleteSubscription(ctx, &pubsubpb.DeleteSubscriptionRequest{
		Subscription: q.subscriptionPath(queueID),
	})
	if err != nil && !isNotFound(err) {
		return errors.Annotatef(err, "deleting subscription of %q", queueID)
	}
	return errors.Trace(q.pub.DeleteTopic(ctx, &pubsubpb.DeleteTopicRequest{Topic: q.topicPath(queueID)}))
}

// ListQueues returns topic names starting with prefix.
func (q *Queue) ListQueues(ctx context.Context, prefix string) ([]string, error) {
	it := q.pub.ListTopics(ctx, &pubsubpb.ListTopicsRequest{Project: "projects/" + q.project})
	var names []string
	for {
		topic, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return names, nil
		}
		if err != nil {
			return nil, errors.Trace(err)
		}
		if name := lastSegment(topic.GetName()); strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
}

// SendMessage publishes body with attributes and returns the message ID.
// DelaySeconds is ignored.
func (q *Queue) SendMessage(ctx context.Context, queueID, body string, opts cloudjack.SendOptions) (string, error) {
	resp, err := q.pub.Publish(ctx, &pubsubpb.PublishRequest{
		Topic: q.topicPath(queueID),
		Messages: []*pubsubpb.PubsubMessage{{
			Data:       []byte(body),
			Attributes: opts.Attributes,
		}},
	})
	if err != nil {
		return "", errors.Trace(err)
	}
	if ids := resp.GetMessageIds(); len(ids) > 0 {
		return ids[0], nil
	}
	return "", errors.Errorf("publish to %q returned no message id", queueID)
}

// ReceiveMessages pulls up to opts.MaxMessages messages. The receipt
// handle is the ack ID.
func (q *Queue) ReceiveMessages(ctx context.Context, queueID string, opts cloudjack.ReceiveOptions) ([]cloudjack.Message, error) {
	opts = opts.Normalize()
	resp, err := q.sub.Pull(ctx, &pubsubpb.PullRequest{
		Subscription: q.subscriptionPath(queueID),
		MaxMessages:  int32(opts.MaxMessages),
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	msgs := make([]cloudjack.Message, 0, len(resp.GetReceivedMessages()))
	for _, rm := range resp.GetReceivedMessages() {
		m := rm.GetMessage()
		msgs = append(msgs, cloudjack.Message{
			MessageID:     m.GetMessageId(),
			Body:          string(m.GetData()),
			ReceiptHandle: rm.GetAckId(),
			Attributes:    m.GetAttributes(),
		})
	}
	return msgs, nil
}

// DeleteMessage acknowledges the message.
func (q *Queue) DeleteMessage(ctx context.Context, queueID, receiptHandle string) error {
	err := q.sub.Acknowledge(ctx, &pubsubpb.AcknowledgeRequest{
		Subscription: q.subscriptionPath(queueID),
		AckIds:       []string{receiptHandle},
	})
	return errors.Trace(err)
}

// isNotFound reports whether err is a provider not-found error.
func isNotFound(err error) bool {
	signal, _, ok := Classify(err)
	if !ok {
		return false
	}
	m, found := Errors[signal]
	return found && m.Kind == cloudjack.KindNotFound
}
