package gcp

import (
	"context"
	"net/url"
	"testing"
	"time"

	"cloud.google.com/go/compute/apiv1/computepb"
	"cloud.google.com/go/logging"
	"cloud.google.com/go/pubsub/apiv1/pubsubpb"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"cloud.google.com/go/storage"
	"github.com/googleapis/gax-go/v2"
	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"

	"github.com/anirudhbiyani/cloudjack/pkg/cloudjack"
)

type fakeSecretManager struct {
	SecretManagerAPI
	versions map[string][][]byte
	deleted  []string
}

func (f *fakeSecretManager) AccessSecretVersion(_ context.Context, req *secretmanagerpb.AccessSecretVersionRequest, _ ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	secret := req.GetName()[:len(req.GetName())-len("/versions/latest")]
	vs := f.versions[secret]
	if len(vs) == 0 {
		return nil, status.Error(codes.NotFound, "secret not found")
	}
	return &secretmanagerpb.AccessSecretVersionResponse{
		Payload: &secretmanagerpb.SecretPayload{Data: vs[len(vs)-1]},
	}, nil
}

func (f *fakeSecretManager) CreateSecret(_ context.Context, req *secretmanagerpb.CreateSecretRequest, _ ...gax.CallOption) (*secretmanagerpb.Secret, error) {
	name := req.GetParent() + "/secrets/" + req.GetSecretId()
	if _, ok := f.versions[name]; ok {
		return nil, status.Error(codes.AlreadyExists, "secret exists")
	}
	if req.GetSecret().GetReplication().GetAutomatic() == nil {
		return nil, status.Error(codes.InvalidArgument, "replication required")
	}
	f.versions[name] = nil
	return &secretmanagerpb.Secret{Name: name}, nil
}

func (f *fakeSecretManager) AddSecretVersion(_ context.Context, req *secretmanagerpb.AddSecretVersionRequest, _ ...gax.CallOption) (*secretmanagerpb.SecretVersion, error) {
	vs, ok := f.versions[req.GetParent()]
	if !ok {
		return nil, status.Error(codes.NotFound, "secret not found")
	}
	f.versions[req.GetParent()] = append(vs, req.GetPayload().GetData())
	return &secretmanagerpb.SecretVersion{}, nil
}

func (f *fakeSecretManager) DeleteSecret(_ context.Context, req *secretmanagerpb.DeleteSecretRequest, _ ...gax.CallOption) error {
	delete(f.versions, req.GetName())
	f.deleted = append(f.deleted, req.GetName())
	return nil
}

func TestSecrets(t *testing.T) {
	ctx := context.Background()
	api := &fakeSecretManager{versions: map[string][][]byte{}}
	s := NewSecrets(api, "proj")

	require.NoError(t, s.CreateSecret(ctx, "db", "one"))
	err := s.CreateSecret(ctx, "db", "again")
	assert.Equal(t, codes.AlreadyExists, status.Code(err))

	require.NoError(t, s.UpdateSecret(ctx, "db", "two"))
	assert.Len(t, api.versions["projects/proj/secrets/db"], 2)

	value, err := s.GetSecret(ctx, "db")
	require.NoError(t, err)
	assert.Equal(t, "two", value)

	require.NoError(t, s.DeleteSecret(ctx, "db"))
	assert.Equal(t, []string{"projects/proj/secrets/db"}, api.deleted)

	_, err = s.GetSecret(ctx, "db")
	assert.Equal(t, codes.NotFound, status.Code(err))
}

type fakePublisher struct {
	PublisherAPI
	topics    []string
	deleted   []string
	published []*pubsubpb.PublishRequest
}

func (f *fakePublisher) CreateTopic(_ context.Context, req *pubsubpb.Topic, _ ...gax.CallOption) (*pubsubpb.Topic, error) {
	f.topics = append(f.topics, req.GetName())
	return req, nil
}

func (f *fakePublisher) DeleteTopic(_ context.Context, req *pubsubpb.DeleteTopicRequest, _ ...gax.CallOption) error {
	f.deleted = append(f.deleted, req.GetTopic())
	return nil
}

func (f *fakePublisher) Publish(_ context.Context, req *pubsubpb.PublishRequest, _ ...gax.CallOption) (*pubsubpb.PublishResponse, error) {
	f.published = append(f.published, req)
	return &pubsubpb.PublishResponse{MessageIds: []string{"m-1"}}, nil
}

type fakeSubscriber struct {
	SubscriberAPI
	subscriptions []*pubsubpb.Subscription
	deleteErr     error
	pulled        *pubsubpb.PullRequest
	acked         *pubsubpb.AcknowledgeRequest
	received      []*pubsubpb.ReceivedMessage
}

func (f *fakeSubscriber) CreateSubscription(_ context.Context, req *pubsubpb.Subscription, _ ...gax.CallOption) (*pubsubpb.Subscription, error) {
	f.subscriptions = append(f.subscriptions, req)
	return req, nil
}

func (f *fakeSubscriber) DeleteSubscription(context.Context, *pubsubpb.DeleteSubscriptionRequest, ...gax.CallOption) error {
	return f.deleteErr
}

func (f *fakeSubscriber) Pull(_ context.Context, req *pubsubpb.PullRequest, _ ...gax.CallOption) (*pubsubpb.PullResponse, error) {
	f.pulled = req
	return &pubsubpb.PullResponse{ReceivedMessages: f.received}, nil
}

func (f *fakeSubscriber) Acknowledge(_ context.Context, req *pubsubpb.AcknowledgeRequest, _ ...gax.CallOption) error {
	f.acked = req
	return nil
}

func TestQueue(t *testing.T) {
	ctx := context.Background()
	pub := &fakePublisher{}
	sub := &fakeSubscriber{received: []*pubsubpb.ReceivedMessage{{
		AckId: "ack-1",
		Message: &pubsubpb.PubsubMessage{
			MessageId:  "m-1",
			Data:       []byte("hello"),
			Attributes: map[string]string{"k": "v"},
		},
	}}}
	q := NewQueue(pub, sub, "proj")

	id, err := q.CreateQueue(ctx, "jobs", cloudjack.QueueOptions{VisibilityTimeout: 90})
	require.NoError(t, err)
	assert.Equal(t, "jobs", id)
	assert.Equal(t, []string{"projects/proj/topics/jobs"}, pub.topics)
	require.Len(t, sub.subscriptions, 1)
	assert.Equal(t, "projects/proj/subscriptions/jobs-sub", sub.subscriptions[0].GetName())
	assert.Equal(t, "projects/proj/topics/jobs", sub.subscriptions[0].GetTopic())
	assert.EqualValues(t, 90, sub.subscriptions[0].GetAckDeadlineSeconds())

	msgID, err := q.SendMessage(ctx, "jobs", "hello", cloudjack.SendOptions{Attributes: map[string]string{"k": "v"}})
	require.NoError(t, err)
	assert.Equal(t, "m-1", msgID)
	require.Len(t, pub.published, 1)
	assert.Equal(t, []byte("hello"), pub.published[0].GetMessages()[0].GetData())

	msgs, err := q.ReceiveMessages(ctx, "jobs", cloudjack.ReceiveOptions{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, sub.pulled.GetMaxMessages())
	assert.Equal(t, []cloudjack.Message{{
		MessageID:     "m-1",
		Body:          "hello",
		ReceiptHandle: "ack-1",
		Attributes:    map[string]string{"k": "v"},
	}}, msgs)

	require.NoError(t, q.DeleteMessage(ctx, "jobs", "ack-1"))
	assert.Equal(t, []string{"ack-1"}, sub.acked.GetAckIds())
	assert.Equal(t, "projects/proj/subscriptions/jobs-sub", sub.acked.GetSubscription())
}

func TestDeleteQueueToleratesMissingSubscription(t *testing.T) {
	pub := &fakePublisher{}
	sub := &fakeSubscriber{deleteErr: status.Error(codes.NotFound, "no subscription")}
	q := NewQueue(pub, sub, "proj")

	require.NoError(t, q.DeleteQueue(context.Background(), "jobs"))
	assert.Equal(t, []string{"projects/proj/topics/jobs"}, pub.deleted)

	sub.deleteErr = status.Error(codes.PermissionDenied, "denied")
	err := q.DeleteQueue(context.Background(), "jobs")
	assert.Equal(t, codes.PermissionDenied, status.Code(err))
	assert.Len(t, pub.deleted, 1)
}

func TestAckDeadline(t *testing.T) {
	assert.EqualValues(t, 60, ackDeadline(cloudjack.QueueOptions{}))
	assert.EqualValues(t, 30, ackDeadline(cloudjack.QueueOptions{AckDeadlineSeconds: 30, VisibilityTimeout: 90}))
	assert.EqualValues(t, 90, ackDeadline(cloudjack.QueueOptions{VisibilityTimeout: 90}))
	assert.EqualValues(t, 600, ackDeadline(cloudjack.QueueOptions{AckDeadlineSeconds: 7200}))
}

type fakeInstances struct {
	InstancesAPI
	instances map[string]*computepb.Instance
	got       *computepb.GetInstanceRequest
}

func (f *fakeInstances) Get(_ context.Context, req *computepb.GetInstanceRequest, _ ...gax.CallOption) (*computepb.Instance, error) {
	f.got = req
	inst, ok := f.instances[req.GetInstance()]
	if !ok {
		return nil, status.Error(codes.NotFound, "instance not found")
	}
	return inst, nil
}

func TestComputeGetInstance(t *testing.T) {
	api := &fakeInstances{instances: map[string]*computepb.Instance{
		"web": {
			Name:              proto.String("web"),
			Status:            proto.String("RUNNING"),
			MachineType:       proto.String("https://www.googleapis.com/compute/v1/projects/proj/zones/europe-west1-b/machineTypes/e2-small"),
			CreationTimestamp: proto.String("2024-03-01T04:00:00.000-08:00"),
			NetworkInterfaces: []*computepb.NetworkInterface{{
				NetworkIP:     proto.String("10.128.0.2"),
				AccessConfigs: []*computepb.AccessConfig{{NatIP: proto.String("34.1.2.3")}},
			}},
		},
	}}
	c := NewCompute(api, "proj", "europe-west1-b")

	inst, err := c.GetInstance(context.Background(), "web")
	require.NoError(t, err)
	assert.Equal(t, &cloudjack.Instance{
		ID:         "web",
		Name:       "web",
		State:      "running",
		Type:       "e2-small",
		LaunchTime: "2024-03-01T04:00:00.000-08:00",
		PublicIP:   "34.1.2.3",
		PrivateIP:  "10.128.0.2",
	}, inst)
	assert.Equal(t, "proj", api.got.GetProject())
	assert.Equal(t, "europe-west1-b", api.got.GetZone())

	_, err = c.GetInstance(context.Background(), "db")
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestInstanceResource(t *testing.T) {
	inst := instanceResource("web", "e2-small", "projects/debian-cloud/global/images/family/debian-12", "us-central1-a", cloudjack.InstanceOptions{
		SecurityGroups: []string{"http-server"},
		SubnetID:       "regions/us-central1/subnetworks/apps",
		UserData:       "#!/bin/sh\necho hi",
		DiskSizeGB:     20,
	})
	assert.Equal(t, "web", inst.GetName())
	assert.Equal(t, "zones/us-central1-a/machineTypes/e2-small", inst.GetMachineType())
	require.Len(t, inst.GetDisks(), 1)
	assert.True(t, inst.GetDisks()[0].GetBoot())
	assert.EqualValues(t, 20, inst.GetDisks()[0].GetInitializeParams().GetDiskSizeGb())
	require.Len(t, inst.GetNetworkInterfaces(), 1)
	nic := inst.GetNetworkInterfaces()[0]
	assert.Equal(t, defaultNetwork, nic.GetNetwork())
	assert.Equal(t, "regions/us-central1/subnetworks/apps", nic.GetSubnetwork())
	assert.Equal(t, "ONE_TO_ONE_NAT", nic.GetAccessConfigs()[0].GetType())
	assert.Equal(t, []string{"http-server"}, inst.GetTags().GetItems())
	require.Len(t, inst.GetMetadata().GetItems(), 1)
	assert.Equal(t, "startup-script", inst.GetMetadata().GetItems()[0].GetKey())

	bare := instanceResource("web", "e2-small", "img", "us-central1-a", cloudjack.InstanceOptions{})
	assert.Nil(t, bare.GetTags())
	assert.Nil(t, bare.GetMetadata())
	assert.Nil(t, bare.GetDisks()[0].GetInitializeParams().DiskSizeGb)
}

func TestFilterExpr(t *testing.T) {
	assert.Equal(t, "", filterExpr(nil))
	assert.Equal(t, `(labels.env = "prod") AND (status = "RUNNING")`, filterExpr(map[string]string{
		"status":     "RUNNING",
		"labels.env": "prod",
	}))
}

func TestSignedURLOptions(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	clk := testclock.NewClock(now)

	put := signedURLOptions(cloudjack.SignedURLOptions{
		Method:      "PUT",
		Expiration:  15 * time.Minute,
		ContentType: "image/png",
	}, clk)
	assert.Equal(t, storage.SigningSchemeV4, put.Scheme)
	assert.Equal(t, "PUT", put.Method)
	assert.Equal(t, now.Add(15*time.Minute), put.Expires)
	assert.Equal(t, "image/png", put.ContentType)
	assert.Nil(t, put.QueryParameters)

	get := signedURLOptions(cloudjack.SignedURLOptions{
		Method:              "GET",
		Expiration:          time.Hour,
		ContentType:         "ignored/for-get",
		ResponseDisposition: `attachment; filename="a.png"`,
	}, clk)
	assert.Empty(t, get.ContentType)
	assert.Equal(t, url.Values{"response-content-disposition": {`attachment; filename="a.png"`}}, get.QueryParameters)
}

func TestLogEntry(t *testing.T) {
	opts := cloudjack.WriteOptions{Severity: "warning", Labels: map[string]string{"app": "api"}}.Normalize()
	e := logEntry("started", opts)
	assert.Equal(t, "started", e.Payload)
	assert.Equal(t, logging.Warning, e.Severity)
	assert.Equal(t, map[string]string{"app": "api", "stream": "default"}, e.Labels)
	assert.NotEmpty(t, e.InsertID)
	assert.NotEqual(t, e.InsertID, logEntry("started", opts).InsertID)
}

func TestFromEntry(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("PST", -8*3600))
	got := fromEntry(&logging.Entry{
		Timestamp: ts,
		Payload:   "boom",
		Severity:  logging.Error,
		Labels:    map[string]string{"stream": "worker"},
	})
	assert.Equal(t, cloudjack.LogEntry{
		Timestamp: ts.UTC(),
		Message:   "boom",
		Severity:  "ERROR",
		Stream:    "worker",
	}, got)

	plain := fromEntry(&logging.Entry{Timestamp: ts, Payload: 42})
	assert.Equal(t, "42", plain.Message)
	assert.Equal(t, cloudjack.DefaultLogSeverity, plain.Severity)
	assert.Empty(t, plain.Stream)
}

func TestLogFilter(t *testing.T) {
	l := NewLogging(nil, nil, "proj")
	assert.Equal(t, `logName = "projects/proj/logs/app"`, l.filter("app", cloudjack.ReadOptions{}))

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	got := l.filter("app", cloudjack.ReadOptions{
		Start:  start,
		End:    start.Add(time.Hour),
		Filter: `severity >= ERROR`,
	})
	assert.Equal(t, `logName = "projects/proj/logs/app" AND timestamp >= "2024-03-01T00:00:00Z" AND timestamp <= "2024-03-01T01:00:00Z" AND (severity >= ERROR)`, got)
}

func TestCreateLogGroupIsNoop(t *testing.T) {
	l := NewLogging(nil, nil, "proj")
	assert.NoError(t, l.CreateLogGroup(context.Background(), "app", 30))
}
