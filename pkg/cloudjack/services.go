package cloudjack

import (
	"context"
	"strings"
	"time"
)

// Service is implemented by every domain service.
type Service interface {
	// Domain returns the service domain the implementation belongs to.
	Domain() ServiceName
}

// Secrets stores and retrieves secret values.
type Secrets interface {
	Service
	GetSecret(ctx context.Context, name string) (string, error)
	CreateSecret(ctx context.Context, name, value string) error
	UpdateSecret(ctx context.Context, name, value string) error
	DeleteSecret(ctx context.Context, name string) error
	ListSecrets(ctx context.Context) ([]string, error)
}

// SignedURLOptions configures GenerateSignedURL.
type SignedURLOptions struct {
	// Expiration is how long the URL stays valid. Defaults to one hour.
	Expiration time.Duration `json:"expiration"`
	// Method is GET, PUT, DELETE or HEAD. Defaults to GET.
	Method string `json:"method"`
	// ContentType is the content type a PUT must carry.
	ContentType string `json:"content_type,omitempty"`
	// ResponseDisposition overrides Content-Disposition on GET.
	ResponseDisposition string `json:"response_disposition,omitempty"`
	// ResponseContentType overrides Content-Type on GET.
	ResponseContentType string `json:"response_content_type,omitempty"`
}

// Storage manages buckets and objects.
type Storage interface {
	Service
	CreateBucket(ctx context.Context, bucket string) error
	DeleteBucket(ctx context.Context, bucket string) error
	ListBuckets(ctx context.Context) ([]string, error)
	UploadFile(ctx context.Context, bucket, localPath, key string) error
	DownloadFile(ctx context.Context, bucket, key, localPath string) error
	PutObject(ctx context.Context, bucket, key string, data []byte) error
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)
	DeleteObject(ctx context.Context, bucket, key string) error
	ListObjects(ctx context.Context, bucket, prefix string) ([]string, error)
	GenerateSignedURL(ctx context.Context, bucket, key string, opts SignedURLOptions) (string, error)
}

// QueueOptions configures CreateQueue. Fields that a provider has no
// equivalent for are ignored.
type QueueOptions struct {
	DelaySeconds       int `json:"delay_seconds,omitempty"`
	VisibilityTimeout  int `json:"visibility_timeout,omitempty"`
	AckDeadlineSeconds int `json:"ack_deadline_seconds,omitempty"`
}

// SendOptions configures SendMessage.
type SendOptions struct {
	Attributes   map[string]string `json:"attributes,omitempty"`
	DelaySeconds int               `json:"delay_seconds,omitempty"`
}

// ReceiveOptions configures ReceiveMessages.
type ReceiveOptions struct {
	// MaxMessages defaults to 1.
	MaxMessages       int `json:"max_messages,omitempty"`
	WaitTimeSeconds   int `json:"wait_time_seconds,omitempty"`
	VisibilityTimeout int `json:"visibility_timeout,omitempty"`
}

// Message is a received queue message.
type Message struct {
	MessageID     string            `json:"message_id"`
	Body          string            `json:"body"`
	ReceiptHandle string            `json:"receipt_handle"`
	Attributes    map[string]string `json:"attributes,omitempty"`
}

// Queue manages message queues. A queue ID is the provider's addressable
// queue identifier returned by CreateQueue and ListQueues.
type Queue interface {
	Service
	CreateQueue(ctx context.Context, name string, opts QueueOptions) (string, error)
	DeleteQueue(ctx context.Context, queueID string) error
	ListQueues(ctx context.Context, prefix string) ([]string, error)
	SendMessage(ctx context.Context, queueID, body string, opts SendOptions) (string, error)
	ReceiveMessages(ctx context.Context, queueID string, opts ReceiveOptions) ([]Message, error)
	DeleteMessage(ctx context.Context, queueID, receiptHandle string) error
}

// InstanceOptions configures CreateInstance.
type InstanceOptions struct {
	KeyName        string   `json:"key_name,omitempty"`
	SecurityGroups []string `json:"security_groups,omitempty"`
	SubnetID       string   `json:"subnet_id,omitempty"`
	UserData       string   `json:"user_data,omitempty"`
	Zone           string   `json:"zone,omitempty"`
	DiskSizeGB     int      `json:"disk_size_gb,omitempty"`
	Network        string   `json:"network,omitempty"`
}

// Instance describes a virtual machine.
type Instance struct {
	ID         string `json:"instance_id"`
	Name       string `json:"name"`
	State      string `json:"state"`
	Type       string `json:"instance_type"`
	LaunchTime string `json:"launch_time,omitempty"`
	PublicIP   string `json:"public_ip,omitempty"`
	PrivateIP  string `json:"private_ip,omitempty"`
}

// Compute manages virtual machine instances.
type Compute interface {
	Service
	CreateInstance(ctx context.Context, name, instanceType, image string, opts InstanceOptions) (string, error)
	StartInstance(ctx context.Context, id string) error
	StopInstance(ctx context.Context, id string) error
	TerminateInstance(ctx context.Context, id string) error
	ListInstances(ctx context.Context, filters map[string]string) ([]Instance, error)
	GetInstance(ctx context.Context, id string) (*Instance, error)
}

// ZoneOptions configures CreateZone.
type ZoneOptions struct {
	Description string `json:"description,omitempty"`
	Private     bool   `json:"private,omitempty"`
}

// Zone describes a DNS zone.
type Zone struct {
	ID          string `json:"zone_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	RecordCount int64  `json:"record_count,omitempty"`
	Private     bool   `json:"private,omitempty"`
}

// Record is a DNS record set.
type Record struct {
	Name   string   `json:"name"`
	Type   string   `json:"type"`
	TTL    int64    `json:"ttl"`
	Values []string `json:"values"`
}

// DNS manages zones and record sets.
type DNS interface {
	Service
	CreateZone(ctx context.Context, name string, opts ZoneOptions) (string, error)
	DeleteZone(ctx context.Context, zoneID string) error
	ListZones(ctx context.Context) ([]Zone, error)
	// CreateRecord creates or replaces the record set. TTL defaults to 300.
	CreateRecord(ctx context.Context, zoneID string, record Record) error
	DeleteRecord(ctx context.Context, zoneID, name, recordType string) error
	ListRecords(ctx context.Context, zoneID string) ([]Record, error)
}

// RoleOptions configures CreateRole.
type RoleOptions struct {
	Description        string   `json:"description,omitempty"`
	Title              string   `json:"title,omitempty"`
	Permissions        []string `json:"permissions,omitempty"`
	MaxSessionDuration int      `json:"max_session_duration,omitempty"`
}

// Role describes an IAM role.
type Role struct {
	Name        string `json:"role_name"`
	ID          string `json:"role_id"`
	ARN         string `json:"arn,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"create_date,omitempty"`
}

// Policy describes a policy attached to, or bound for, a role.
type Policy struct {
	Name    string   `json:"policy_name"`
	ID      string   `json:"policy_id"`
	Members []string `json:"members,omitempty"`
}

// IAM manages roles and policy attachments.
type IAM interface {
	Service
	CreateRole(ctx context.Context, name, trustPolicy string, opts RoleOptions) (string, error)
	DeleteRole(ctx context.Context, name string) error
	ListRoles(ctx context.Context) ([]Role, error)
	AttachPolicy(ctx context.Context, role, policy string) error
	DetachPolicy(ctx context.Context, role, policy string) error
	ListPolicies(ctx context.Context, role string) ([]Policy, error)
}

// WriteOptions configures WriteLog.
type WriteOptions struct {
	// Severity defaults to INFO.
	Severity string `json:"severity,omitempty"`
	// Stream defaults to "default".
	Stream string            `json:"stream,omitempty"`
	Labels map[string]string `json:"labels,omitempty"`
}

// ReadOptions configures ReadLogs.
type ReadOptions struct {
	// Limit defaults to 100.
	Limit  int       `json:"limit,omitempty"`
	Filter string    `json:"filter,omitempty"`
	Start  time.Time `json:"start,omitempty"`
	End    time.Time `json:"end,omitempty"`
}

// LogEntry is a read log entry.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	Severity  string    `json:"severity"`
	Stream    string    `json:"stream,omitempty"`
}

// Logging manages log groups and entries.
type Logging interface {
	Service
	CreateLogGroup(ctx context.Context, name string, retentionDays int) error
	DeleteLogGroup(ctx context.Context, name string) error
	ListLogGroups(ctx context.Context, prefix string) ([]string, error)
	WriteLog(ctx context.Context, group, message string, opts WriteOptions) error
	ReadLogs(ctx context.Context, group string, opts ReadOptions) ([]LogEntry, error)
}

// Defaults applied by implementations.
const (
	DefaultSignedURLExpiration = time.Hour
	DefaultRecordTTL           = 300
	DefaultLogSeverity         = "INFO"
	DefaultLogStream           = "default"
	DefaultReadLimit           = 100
)

// Normalize applies defaults and rejects unsupported methods.
func (o SignedURLOptions) Normalize() (SignedURLOptions, error) {
	if o.Expiration <= 0 {
		o.Expiration = DefaultSignedURLExpiration
	}
	o.Method = strings.ToUpper(strings.TrimSpace(o.Method))
	switch o.Method {
	case "":
		o.Method = "GET"
	case "GET", "PUT", "DELETE", "HEAD":
	default:
		return o, Errorf(KindInvalidArgument, "unsupported signed URL method %q", o.Method).
			WithResource(ResourceObject, "")
	}
	return o, nil
}

// Normalize applies defaults.
func (o ReceiveOptions) Normalize() ReceiveOptions {
	if o.MaxMessages <= 0 {
		o.MaxMessages = 1
	}
	return o
}

// Normalize applies defaults.
func (o WriteOptions) Normalize() WriteOptions {
	if o.Severity == "" {
		o.Severity = DefaultLogSeverity
	}
	o.Severity = strings.ToUpper(o.Severity)
	if o.Stream == "" {
		o.Stream = DefaultLogStream
	}
	return o
}

// Normalize applies defaults.
func (o ReadOptions) Normalize() ReadOptions {
	if o.Limit <= 0 {
		o.Limit = DefaultReadLimit
	}
	return o
}
