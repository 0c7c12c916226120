package cloudjack

// CloudProvider identifies a cloud platform.
type CloudProvider string

const (
	// ProviderAWS is Amazon Web Services.
	ProviderAWS CloudProvider = "aws"
	// ProviderGCP is Google Cloud Platform.
	ProviderGCP CloudProvider = "gcp"
)

// String returns the provider identifier.
func (p CloudProvider) String() string {
	return string(p)
}

// ServiceName identifies a service domain.
type ServiceName string

const (
	// ServiceSecrets stores and retrieves secret values.
	ServiceSecrets ServiceName = "secret_manager"
	// ServiceStorage manages buckets and objects.
	ServiceStorage ServiceName = "storage"
	// ServiceQueue manages message queues.
	ServiceQueue ServiceName = "queue"
	// ServiceCompute manages virtual machine instances.
	ServiceCompute ServiceName = "compute"
	// ServiceDNS manages DNS zones and records.
	ServiceDNS ServiceName = "dns"
	// ServiceIAM manages roles and policy attachments.
	ServiceIAM ServiceName = "iam"
	// ServiceLogging manages log groups and log entries.
	ServiceLogging ServiceName = "logging"
)

// String returns the service identifier.
func (s ServiceName) String() string {
	return string(s)
}

// ServiceNames returns every service domain.
func ServiceNames() []ServiceName {
	return []ServiceName{
		ServiceSecrets,
		ServiceStorage,
		ServiceQueue,
		ServiceCompute,
		ServiceDNS,
		ServiceIAM,
		ServiceLogging,
	}
}

// ResourceKind names the kind of resource an operation acts on. It is the
// domain-specific detail carried by an *Error.
type ResourceKind string

const (
	ResourceSecret   ResourceKind = "secret"
	ResourceBucket   ResourceKind = "bucket"
	ResourceObject   ResourceKind = "object"
	ResourceQueue    ResourceKind = "queue"
	ResourceMessage  ResourceKind = "message"
	ResourceInstance ResourceKind = "instance"
	ResourceZone     ResourceKind = "zone"
	ResourceRecord   ResourceKind = "record"
	ResourceRole     ResourceKind = "role"
	ResourcePolicy   ResourceKind = "policy"
	ResourceLogGroup ResourceKind = "log_group"
)
