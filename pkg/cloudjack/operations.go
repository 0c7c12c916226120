package cloudjack

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"
)

// Args are the arguments of a name-addressed invocation. Positional
// arguments are strings as they arrive from a command line; keyword
// arguments are decoded JSON values.
type Args struct {
	Positional []string
	Keyword    map[string]any
}

// String returns the required string argument at position i, or the
// keyword name if it was given that way.
func (a Args) String(i int, name string) (string, error) {
	if i < len(a.Positional) {
		return a.Positional[i], nil
	}
	if v, ok := a.Keyword[name]; ok {
		if s, ok := v.(string); ok {
			return s, nil
		}
		return "", argError(name, "must be a string")
	}
	return "", argError(name, "is required")
}

// OptString returns an optional string argument at position i or keyword name.
func (a Args) OptString(i int, name, def string) (string, error) {
	if i >= 0 && i < len(a.Positional) {
		return a.Positional[i], nil
	}
	v, ok := a.Keyword[name]
	if !ok || v == nil {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", argError(name, "must be a string")
	}
	return s, nil
}

// Int returns an optional integer keyword argument.
func (a Args) Int(name string, def int) (int, error) {
	v, ok := a.Keyword[name]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) {
			return 0, argError(name, "must be an integer")
		}
		if n < math.MinInt || n >= -float64(math.MinInt) {
			return 0, argError(name, "is out of range")
		}
		return int(n), nil
	case int:
		return n, nil
	case int64:
		if n < math.MinInt || n > math.MaxInt {
			return 0, argError(name, "is out of range")
		}
		return int(n), nil
	}
	return 0, argError(name, "must be an integer")
}

// Bool returns an optional boolean keyword argument.
func (a Args) Bool(name string, def bool) (bool, error) {
	v, ok := a.Keyword[name]
	if !ok || v == nil {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, argError(name, "must be a boolean")
	}
	return b, nil
}

// Strings returns an optional list-of-strings keyword argument.
func (a Args) Strings(name string) ([]string, error) {
	v, ok := a.Keyword[name]
	if !ok || v == nil {
		return nil, nil
	}
	switch l := v.(type) {
	case []string:
		return l, nil
	case []any:
		out := make([]string, 0, len(l))
		for _, item := range l {
			s, ok := item.(string)
			if !ok {
				return nil, argError(name, "must be a list of strings")
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, argError(name, "must be a list of strings")
}

// StringMap returns an optional string-to-string keyword argument.
func (a Args) StringMap(name string) (map[string]string, error) {
	v, ok := a.Keyword[name]
	if !ok || v == nil {
		return nil, nil
	}
	switch m := v.(type) {
	case map[string]string:
		return m, nil
	case map[string]any:
		out := make(map[string]string, len(m))
		for k, item := range m {
			s, ok := item.(string)
			if !ok {
				return nil, argError(name, "must be an object of strings")
			}
			out[k] = s
		}
		return out, nil
	}
	return nil, argError(name, "must be an object of strings")
}

// Seconds returns an optional duration keyword argument given in seconds.
func (a Args) Seconds(name string, def time.Duration) (time.Duration, error) {
	v, ok := a.Keyword[name]
	if !ok || v == nil {
		return def, nil
	}
	var n float64
	switch x := v.(type) {
	case float64:
		n = x
	case int:
		n = float64(x)
	case time.Duration:
		return x, nil
	default:
		return 0, argError(name, "must be a number of seconds")
	}
	if n < 0 {
		return 0, argError(name, "must not be negative")
	}
	return time.Duration(n * float64(time.Second)), nil
}

// Time returns an optional RFC 3339 timestamp keyword argument.
func (a Args) Time(name string) (time.Time, error) {
	s, err := a.OptString(-1, name, "")
	if err != nil || s == "" {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, argError(name, "must be an RFC 3339 timestamp")
	}
	return t, nil
}

func argError(name, problem string) *Error {
	return Errorf(KindInvalidArgument, "argument %s %s", name, problem)
}

// Operation is one name-addressable operation of a service domain.
type Operation struct {
	Name     string
	Resource ResourceKind
	invoke   func(ctx context.Context, svc Service, args Args) (any, error)
}

// Invoke runs the operation against svc.
func (o Operation) Invoke(ctx context.Context, svc Service, args Args) (any, error) {
	return o.invoke(ctx, svc, args)
}

func op[S Service](name string, res ResourceKind, fn func(ctx context.Context, s S, a Args) (any, error)) Operation {
	return Operation{
		Name:     name,
		Resource: res,
		invoke: func(ctx context.Context, svc Service, a Args) (any, error) {
			s, ok := svc.(S)
			if !ok {
				return nil, Errorf(KindInvalidArgument, "operation %s is not offered by service %s", name, svc.Domain())
			}
			return fn(ctx, s, a)
		},
	}
}

// none adapts an error-only call to the operation result shape.
func none(err error) (any, error) {
	return nil, err
}

func table(ops ...Operation) map[string]Operation {
	m := make(map[string]Operation, len(ops))
	for _, o := range ops {
		m[o.Name] = o
	}
	return m
}

var operations = map[ServiceName]map[string]Operation{
	ServiceSecrets: table(
		op("get_secret", ResourceSecret, func(ctx context.Context, s Secrets, a Args) (any, error) {
			name, err := a.String(0, "name")
			if err != nil {
				return nil, err
			}
			return s.GetSecret(ctx, name)
		}),
		op("create_secret", ResourceSecret, func(ctx context.Context, s Secrets, a Args) (any, error) {
			name, err := a.String(0, "name")
			if err != nil {
				return nil, err
			}
			value, err := a.String(1, "value")
			if err != nil {
				return nil, err
			}
			return none(s.CreateSecret(ctx, name, value))
		}),
		op("update_secret", ResourceSecret, func(ctx context.Context, s Secrets, a Args) (any, error) {
			name, err := a.String(0, "name")
			if err != nil {
				return nil, err
			}
			value, err := a.String(1, "value")
			if err != nil {
				return nil, err
			}
			return none(s.UpdateSecret(ctx, name, value))
		}),
		op("delete_secret", ResourceSecret, func(ctx context.Context, s Secrets, a Args) (any, error) {
			name, err := a.String(0, "name")
			if err != nil {
				return nil, err
			}
			return none(s.DeleteSecret(ctx, name))
		}),
		op("list_secrets", ResourceSecret, func(ctx context.Context, s Secrets, _ Args) (any, error) {
			return s.ListSecrets(ctx)
		}),
	),
	ServiceStorage: table(
		op("create_bucket", ResourceBucket, func(ctx context.Context, s Storage, a Args) (any, error) {
			bucket, err := a.String(0, "bucket")
			if err != nil {
				return nil, err
			}
			return none(s.CreateBucket(ctx, bucket))
		}),
		op("delete_bucket", ResourceBucket, func(ctx context.Context, s Storage, a Args) (any, error) {
			bucket, err := a.String(0, "bucket")
			if err != nil {
				return nil, err
			}
			return none(s.DeleteBucket(ctx, bucket))
		}),
		op("list_buckets", ResourceBucket, func(ctx context.Context, s Storage, _ Args) (any, error) {
			return s.ListBuckets(ctx)
		}),
		op("upload_file", ResourceBucket, func(ctx context.Context, s Storage, a Args) (any, error) {
			bucket, local, key, err := threeStrings(a, "bucket", "local_path", "key")
			if err != nil {
				return nil, err
			}
			return none(s.UploadFile(ctx, bucket, local, key))
		}),
		op("download_file", ResourceObject, func(ctx context.Context, s Storage, a Args) (any, error) {
			bucket, key, local, err := threeStrings(a, "bucket", "key", "local_path")
			if err != nil {
				return nil, err
			}
			return none(s.DownloadFile(ctx, bucket, key, local))
		}),
		op("put_object", ResourceObject, func(ctx context.Context, s Storage, a Args) (any, error) {
			bucket, key, data, err := threeStrings(a, "bucket", "key", "data")
			if err != nil {
				return nil, err
			}
			return none(s.PutObject(ctx, bucket, key, []byte(data)))
		}),
		op("get_object", ResourceObject, func(ctx context.Context, s Storage, a Args) (any, error) {
			bucket, key, err := twoStrings(a, "bucket", "key")
			if err != nil {
				return nil, err
			}
			b, err := s.GetObject(ctx, bucket, key)
			if err != nil {
				return nil, err
			}
			return string(b), nil
		}),
		op("delete_object", ResourceObject, func(ctx context.Context, s Storage, a Args) (any, error) {
			bucket, key, err := twoStrings(a, "bucket", "key")
			if err != nil {
				return nil, err
			}
			return none(s.DeleteObject(ctx, bucket, key))
		}),
		op("list_objects", ResourceBucket, func(ctx context.Context, s Storage, a Args) (any, error) {
			bucket, err := a.String(0, "bucket")
			if err != nil {
				return nil, err
			}
			prefix, err := a.OptString(1, "prefix", "")
			if err != nil {
				return nil, err
			}
			return s.ListObjects(ctx, bucket, prefix)
		}),
		op("generate_signed_url", ResourceObject, func(ctx context.Context, s Storage, a Args) (any, error) {
			bucket, key, err := twoStrings(a, "bucket", "key")
			if err != nil {
				return nil, err
			}
			var opts SignedURLOptions
			if opts.Expiration, err = a.Seconds("expiration", DefaultSignedURLExpiration); err != nil {
				return nil, err
			}
			if opts.Method, err = a.OptString(2, "method", "GET"); err != nil {
				return nil, err
			}
			if opts.ContentType, err = a.OptString(-1, "content_type", ""); err != nil {
				return nil, err
			}
			if opts.ResponseDisposition, err = a.OptString(-1, "response_disposition", ""); err != nil {
				return nil, err
			}
			if opts.ResponseContentType, err = a.OptString(-1, "response_type", ""); err != nil {
				return nil, err
			}
			return s.GenerateSignedURL(ctx, bucket, key, opts)
		}),
	),
	ServiceQueue: table(
		op("create_queue", ResourceQueue, func(ctx context.Context, s Queue, a Args) (any, error) {
			name, err := a.String(0, "name")
			if err != nil {
				return nil, err
			}
			var opts QueueOptions
			if opts.DelaySeconds, err = a.Int("delay_seconds", 0); err != nil {
				return nil, err
			}
			if opts.VisibilityTimeout, err = a.Int("visibility_timeout", 0); err != nil {
				return nil, err
			}
			if opts.AckDeadlineSeconds, err = a.Int("ack_deadline_seconds", 0); err != nil {
				return nil, err
			}
			return s.CreateQueue(ctx, name, opts)
		}),
		op("delete_queue", ResourceQueue, func(ctx context.Context, s Queue, a Args) (any, error) {
			id, err := a.String(0, "queue_id")
			if err != nil {
				return nil, err
			}
			return none(s.DeleteQueue(ctx, id))
		}),
		op("list_queues", ResourceQueue, func(ctx context.Context, s Queue, a Args) (any, error) {
			prefix, err := a.OptString(0, "prefix", "")
			if err != nil {
				return nil, err
			}
			return s.ListQueues(ctx, prefix)
		}),
		op("send_message", ResourceQueue, func(ctx context.Context, s Queue, a Args) (any, error) {
			id, body, err := twoStrings(a, "queue_id", "body")
			if err != nil {
				return nil, err
			}
			var opts SendOptions
			if opts.Attributes, err = a.StringMap("attributes"); err != nil {
				return nil, err
			}
			if opts.DelaySeconds, err = a.Int("delay_seconds", 0); err != nil {
				return nil, err
			}
			return s.SendMessage(ctx, id, body, opts)
		}),
		op("receive_messages", ResourceQueue, func(ctx context.Context, s Queue, a Args) (any, error) {
			id, err := a.String(0, "queue_id")
			if err != nil {
				return nil, err
			}
			var opts ReceiveOptions
			if opts.MaxMessages, err = a.Int("max_messages", 1); err != nil {
				return nil, err
			}
			if opts.WaitTimeSeconds, err = a.Int("wait_time", 0); err != nil {
				return nil, err
			}
			if opts.VisibilityTimeout, err = a.Int("visibility_timeout", 0); err != nil {
				return nil, err
			}
			return s.ReceiveMessages(ctx, id, opts)
		}),
		op("delete_message", ResourceMessage, func(ctx context.Context, s Queue, a Args) (any, error) {
			id, receipt, err := twoStrings(a, "queue_id", "receipt_handle")
			if err != nil {
				return nil, err
			}
			return none(s.DeleteMessage(ctx, id, receipt))
		}),
	),
	ServiceCompute: table(
		op("create_instance", ResourceInstance, func(ctx context.Context, s Compute, a Args) (any, error) {
			name, instanceType, image, err := threeStrings(a, "name", "instance_type", "image_id")
			if err != nil {
				return nil, err
			}
			var opts InstanceOptions
			if opts.KeyName, err = a.OptString(-1, "key_name", ""); err != nil {
				return nil, err
			}
			if opts.SecurityGroups, err = a.Strings("security_group_ids"); err != nil {
				return nil, err
			}
			if opts.SubnetID, err = a.OptString(-1, "subnet_id", ""); err != nil {
				return nil, err
			}
			if opts.UserData, err = a.OptString(-1, "user_data", ""); err != nil {
				return nil, err
			}
			if opts.Zone, err = a.OptString(-1, "zone", ""); err != nil {
				return nil, err
			}
			if opts.DiskSizeGB, err = a.Int("disk_size_gb", 0); err != nil {
				return nil, err
			}
			if opts.Network, err = a.OptString(-1, "network", ""); err != nil {
				return nil, err
			}
			return s.CreateInstance(ctx, name, instanceType, image, opts)
		}),
		op("start_instance", ResourceInstance, func(ctx context.Context, s Compute, a Args) (any, error) {
			id, err := a.String(0, "instance_id")
			if err != nil {
				return nil, err
			}
			return none(s.StartInstance(ctx, id))
		}),
		op("stop_instance", ResourceInstance, func(ctx context.Context, s Compute, a Args) (any, error) {
			id, err := a.String(0, "instance_id")
			if err != nil {
				return nil, err
			}
			return none(s.StopInstance(ctx, id))
		}),
		op("terminate_instance", ResourceInstance, func(ctx context.Context, s Compute, a Args) (any, error) {
			id, err := a.String(0, "instance_id")
			if err != nil {
				return nil, err
			}
			return none(s.TerminateInstance(ctx, id))
		}),
		op("list_instances", ResourceInstance, func(ctx context.Context, s Compute, a Args) (any, error) {
			filters, err := a.StringMap("filters")
			if err != nil {
				return nil, err
			}
			return s.ListInstances(ctx, filters)
		}),
		op("get_instance", ResourceInstance, func(ctx context.Context, s Compute, a Args) (any, error) {
			id, err := a.String(0, "instance_id")
			if err != nil {
				return nil, err
			}
			return s.GetInstance(ctx, id)
		}),
	),
	ServiceDNS: table(
		op("create_zone", ResourceZone, func(ctx context.Context, s DNS, a Args) (any, error) {
			name, err := a.String(0, "name")
			if err != nil {
				return nil, err
			}
			var opts ZoneOptions
			if opts.Description, err = a.OptString(-1, "description", ""); err != nil {
				return nil, err
			}
			if opts.Private, err = a.Bool("private", false); err != nil {
				return nil, err
			}
			return s.CreateZone(ctx, name, opts)
		}),
		op("delete_zone", ResourceZone, func(ctx context.Context, s DNS, a Args) (any, error) {
			id, err := a.String(0, "zone_id")
			if err != nil {
				return nil, err
			}
			return none(s.DeleteZone(ctx, id))
		}),
		op("list_zones", ResourceZone, func(ctx context.Context, s DNS, _ Args) (any, error) {
			return s.ListZones(ctx)
		}),
		op("create_record", ResourceRecord, func(ctx context.Context, s DNS, a Args) (any, error) {
			zone, name, recordType, err := threeStrings(a, "zone_id", "name", "record_type")
			if err != nil {
				return nil, err
			}
			values, err := a.Strings("values")
			if err != nil {
				return nil, err
			}
			// Trailing positional arguments are record values.
			if len(values) == 0 && len(a.Positional) > 3 {
				values = a.Positional[3:]
			}
			if len(values) == 0 {
				return nil, argError("values", "is required")
			}
			ttl, err := a.Int("ttl", DefaultRecordTTL)
			if err != nil {
				return nil, err
			}
			return none(s.CreateRecord(ctx, zone, Record{Name: name, Type: recordType, TTL: int64(ttl), Values: values}))
		}),
		op("delete_record", ResourceRecord, func(ctx context.Context, s DNS, a Args) (any, error) {
			zone, name, recordType, err := threeStrings(a, "zone_id", "name", "record_type")
			if err != nil {
				return nil, err
			}
			return none(s.DeleteRecord(ctx, zone, name, recordType))
		}),
		op("list_records", ResourceRecord, func(ctx context.Context, s DNS, a Args) (any, error) {
			zone, err := a.String(0, "zone_id")
			if err != nil {
				return nil, err
			}
			return s.ListRecords(ctx, zone)
		}),
	),
	ServiceIAM: table(
		op("create_role", ResourceRole, func(ctx context.Context, s IAM, a Args) (any, error) {
			name, trust, err := twoStrings(a, "role_name", "trust_policy")
			if err != nil {
				return nil, err
			}
			var opts RoleOptions
			if opts.Description, err = a.OptString(-1, "description", ""); err != nil {
				return nil, err
			}
			if opts.Title, err = a.OptString(-1, "title", ""); err != nil {
				return nil, err
			}
			if opts.Permissions, err = a.Strings("permissions"); err != nil {
				return nil, err
			}
			if opts.MaxSessionDuration, err = a.Int("max_session_duration", 0); err != nil {
				return nil, err
			}
			return s.CreateRole(ctx, name, trust, opts)
		}),
		op("delete_role", ResourceRole, func(ctx context.Context, s IAM, a Args) (any, error) {
			name, err := a.String(0, "role_name")
			if err != nil {
				return nil, err
			}
			return none(s.DeleteRole(ctx, name))
		}),
		op("list_roles", ResourceRole, func(ctx context.Context, s IAM, _ Args) (any, error) {
			return s.ListRoles(ctx)
		}),
		op("attach_policy", ResourcePolicy, func(ctx context.Context, s IAM, a Args) (any, error) {
			role, policy, err := twoStrings(a, "role_name", "policy")
			if err != nil {
				return nil, err
			}
			return none(s.AttachPolicy(ctx, role, policy))
		}),
		op("detach_policy", ResourcePolicy, func(ctx context.Context, s IAM, a Args) (any, error) {
			role, policy, err := twoStrings(a, "role_name", "policy")
			if err != nil {
				return nil, err
			}
			return none(s.DetachPolicy(ctx, role, policy))
		}),
		op("list_policies", ResourcePolicy, func(ctx context.Context, s IAM, a Args) (any, error) {
			role, err := a.OptString(0, "role_name", "")
			if err != nil {
				return nil, err
			}
			return s.ListPolicies(ctx, role)
		}),
	),
	ServiceLogging: table(
		op("create_log_group", ResourceLogGroup, func(ctx context.Context, s Logging, a Args) (any, error) {
			name, err := a.String(0, "name")
			if err != nil {
				return nil, err
			}
			days, err := a.Int("retention_days", 0)
			if err != nil {
				return nil, err
			}
			return none(s.CreateLogGroup(ctx, name, days))
		}),
		op("delete_log_group", ResourceLogGroup, func(ctx context.Context, s Logging, a Args) (any, error) {
			name, err := a.String(0, "name")
			if err != nil {
				return nil, err
			}
			return none(s.DeleteLogGroup(ctx, name))
		}),
		op("list_log_groups", ResourceLogGroup, func(ctx context.Context, s Logging, a Args) (any, error) {
			prefix, err := a.OptString(0, "prefix", "")
			if err != nil {
				return nil, err
			}
			return s.ListLogGroups(ctx, prefix)
		}),
		op("write_log", ResourceLogGroup, func(ctx context.Context, s Logging, a Args) (any, error) {
			group, message, err := twoStrings(a, "log_group", "message")
			if err != nil {
				return nil, err
			}
			var opts WriteOptions
			if opts.Severity, err = a.OptString(2, "severity", DefaultLogSeverity); err != nil {
				return nil, err
			}
			if opts.Stream, err = a.OptString(-1, "stream_name", DefaultLogStream); err != nil {
				return nil, err
			}
			if opts.Labels, err = a.StringMap("labels"); err != nil {
				return nil, err
			}
			return none(s.WriteLog(ctx, group, message, opts))
		}),
		op("read_logs", ResourceLogGroup, func(ctx context.Context, s Logging, a Args) (any, error) {
			group, err := a.String(0, "log_group")
			if err != nil {
				return nil, err
			}
			var opts ReadOptions
			if opts.Limit, err = a.Int("limit", DefaultReadLimit); err != nil {
				return nil, err
			}
			if opts.Filter, err = a.OptString(-1, "filter", ""); err != nil {
				return nil, err
			}
			if opts.Start, err = a.Time("start_time"); err != nil {
				return nil, err
			}
			if opts.End, err = a.Time("end_time"); err != nil {
				return nil, err
			}
			return s.ReadLogs(ctx, group, opts)
		}),
	),
}

func twoStrings(a Args, n0, n1 string) (string, string, error) {
	v0, err := a.String(0, n0)
	if err != nil {
		return "", "", err
	}
	v1, err := a.String(1, n1)
	if err != nil {
		return "", "", err
	}
	return v0, v1, nil
}

func threeStrings(a Args, n0, n1, n2 string) (string, string, string, error) {
	v0, v1, err := twoStrings(a, n0, n1)
	if err != nil {
		return "", "", "", err
	}
	v2, err := a.String(2, n2)
	if err != nil {
		return "", "", "", err
	}
	return v0, v1, v2, nil
}

// LookupOperation returns the named operation of a service domain.
func LookupOperation(service ServiceName, name string) (Operation, error) {
	ops, ok := operations[service]
	if !ok {
		return Operation{}, Errorf(KindUnsupportedService, "no operations for service %q", service)
	}
	o, ok := ops[name]
	if !ok {
		return Operation{}, Errorf(KindInvalidArgument, "unknown %s operation %q", service, name).WithDomain(service)
	}
	return o, nil
}

// OperationNames returns the operation names of a service domain, sorted.
func OperationNames(service ServiceName) []string {
	ops := operations[service]
	names := make([]string, 0, len(ops))
	for n := range ops {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// String implements fmt.Stringer.
func (o Operation) String() string {
	return fmt.Sprintf("%s(%s)", o.Name, o.Resource)
}
