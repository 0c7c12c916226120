package cloudjack

import "context"

// guard applies the retry policy and error translation to one call.
type guard struct {
	domain     ServiceName
	policy     RetryPolicy
	translator Translator
}

func (g guard) translate(op string, res ResourceKind, id string) TranslateFunc {
	scope := Scope{Domain: g.domain, Operation: op, Resource: res, ResourceID: id}
	return func(err error) *Error {
		return g.translator.Translate(err, scope)
	}
}

func (g guard) run(ctx context.Context, op string, res ResourceKind, id string, fn func(context.Context) error) error {
	return g.policy.Execute(ctx, op, g.translate(op, res, id), fn)
}

func guarded[T any](ctx context.Context, g guard, op string, res ResourceKind, id string, fn func(context.Context) (T, error)) (T, error) {
	return Call(ctx, g.policy, op, g.translate(op, res, id), fn)
}

// guards wraps a bound service of each domain. The assertion fails only
// for a binding registered under the wrong domain.
var guards = map[ServiceName]func(Service, guard) (Service, bool){
	ServiceSecrets: func(s Service, g guard) (Service, bool) {
		v, ok := s.(Secrets)
		return guardedSecrets{v, g}, ok
	},
	ServiceStorage: func(s Service, g guard) (Service, bool) {
		v, ok := s.(Storage)
		return guardedStorage{v, g}, ok
	},
	ServiceQueue: func(s Service, g guard) (Service, bool) {
		v, ok := s.(Queue)
		return guardedQueue{v, g}, ok
	},
	ServiceCompute: func(s Service, g guard) (Service, bool) {
		v, ok := s.(Compute)
		return guardedCompute{v, g}, ok
	},
	ServiceDNS: func(s Service, g guard) (Service, bool) {
		v, ok := s.(DNS)
		return guardedDNS{v, g}, ok
	},
	ServiceIAM: func(s Service, g guard) (Service, bool) {
		v, ok := s.(IAM)
		return guardedIAM{v, g}, ok
	},
	ServiceLogging: func(s Service, g guard) (Service, bool) {
		v, ok := s.(Logging)
		return guardedLogging{v, g}, ok
	},
}

func wrapService(domain ServiceName, svc Service, g guard) (Service, error) {
	wrap, ok := guards[domain]
	if !ok {
		return nil, Errorf(KindUnsupportedService, "no blueprint for service %q", domain)
	}
	out, ok := wrap(svc, g)
	if !ok || svc.Domain() != domain {
		return nil, Errorf(KindUnsupportedService, "implementation %T does not provide service %q", svc, domain)
	}
	return out, nil
}

type guardedSecrets struct {
	inner Secrets
	g     guard
}

func (s guardedSecrets) Domain() ServiceName { return ServiceSecrets }

func (s guardedSecrets) GetSecret(ctx context.Context, name string) (string, error) {
	return guarded(ctx, s.g, "get_secret", ResourceSecret, name, func(ctx context.Context) (string, error) {
		return s.inner.GetSecret(ctx, name)
	})
}

func (s guardedSecrets) CreateSecret(ctx context.Context, name, value string) error {
	return s.g.run(ctx, "create_secret", ResourceSecret, name, func(ctx context.Context) error {
		return s.inner.CreateSecret(ctx, name, value)
	})
}

func (s guardedSecrets) UpdateSecret(ctx context.Context, name, value string) error {
	return s.g.run(ctx, "update_secret", ResourceSecret, name, func(ctx context.Context) error {
		return s.inner.UpdateSecret(ctx, name, value)
	})
}

func (s guardedSecrets) DeleteSecret(ctx context.Context, name string) error {
	return s.g.run(ctx, "delete_secret", ResourceSecret, name, func(ctx context.Context) error {
		return s.inner.DeleteSecret(ctx, name)
	})
}

func (s guardedSecrets) ListSecrets(ctx context.Context) ([]string, error) {
	return guarded(ctx, s.g, "list_secrets", ResourceSecret, "", s.inner.ListSecrets)
}

type guardedStorage struct {
	inner Storage
	g     guard
}

func (s guardedStorage) Domain() ServiceName { return ServiceStorage }

func (s guardedStorage) CreateBucket(ctx context.Context, bucket string) error {
	return s.g.run(ctx, "create_bucket", ResourceBucket, bucket, func(ctx context.Context) error {
		return s.inner.CreateBucket(ctx, bucket)
	})
}

func (s guardedStorage) DeleteBucket(ctx context.Context, bucket string) error {
	return s.g.run(ctx, "delete_bucket", ResourceBucket, bucket, func(ctx context.Context) error {
		return s.inner.DeleteBucket(ctx, bucket)
	})
}

func (s guardedStorage) ListBuckets(ctx context.Context) ([]string, error) {
	return guarded(ctx, s.g, "list_buckets", ResourceBucket, "", s.inner.ListBuckets)
}

func (s guardedStorage) UploadFile(ctx context.Context, bucket, localPath, key string) error {
	return s.g.run(ctx, "upload_file", ResourceBucket, bucket, func(ctx context.Context) error {
		return s.inner.UploadFile(ctx, bucket, localPath, key)
	})
}

func (s guardedStorage) DownloadFile(ctx context.Context, bucket, key, localPath string) error {
	return s.g.run(ctx, "download_file", ResourceObject, key, func(ctx context.Context) error {
		return s.inner.DownloadFile(ctx, bucket, key, localPath)
	})
}

func (s guardedStorage) PutObject(ctx context.Context, bucket, key string, data []byte) error {
	return s.g.run(ctx, "put_object", ResourceBucket, bucket, func(ctx context.Context) error {
		return s.inner.PutObject(ctx, bucket, key, data)
	})
}

func (s guardedStorage) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	return guarded(ctx, s.g, "get_object", ResourceObject, key, func(ctx context.Context) ([]byte, error) {
		return s.inner.GetObject(ctx, bucket, key)
	})
}

func (s guardedStorage) DeleteObject(ctx context.Context, bucket, key string) error {
	return s.g.run(ctx, "delete_object", ResourceObject, key, func(ctx context.Context) error {
		return s.inner.DeleteObject(ctx, bucket, key)
	})
}

func (s guardedStorage) ListObjects(ctx context.Context, bucket, prefix string) ([]string, error) {
	return guarded(ctx, s.g, "list_objects", ResourceBucket, bucket, func(ctx context.Context) ([]string, error) {
		return s.inner.ListObjects(ctx, bucket, prefix)
	})
}

func (s guardedStorage) GenerateSignedURL(ctx context.Context, bucket, key string, opts SignedURLOptions) (string, error) {
	return guarded(ctx, s.g, "generate_signed_url", ResourceObject, key, func(ctx context.Context) (string, error) {
		return s.inner.GenerateSignedURL(ctx, bucket, key, opts)
	})
}

type guardedQueue struct {
	inner Queue
	g     guard
}

func (q guardedQueue) Domain() ServiceName { return ServiceQueue }

func (q guardedQueue) CreateQueue(ctx context.Context, name string, opts QueueOptions) (string, error) {
	return guarded(ctx, q.g, "create_queue", ResourceQueue, name, func(ctx context.Context) (string, error) {
		return q.inner.CreateQueue(ctx, name, opts)
	})
}

func (q guardedQueue) DeleteQueue(ctx context.Context, queueID string) error {
	return q.g.run(ctx, "delete_queue", ResourceQueue, queueID, func(ctx context.Context) error {
		return q.inner.DeleteQueue(ctx, queueID)
	})
}

func (q guardedQueue) ListQueues(ctx context.Context, prefix string) ([]string, error) {
	return guarded(ctx, q.g, "list_queues", ResourceQueue, "", func(ctx context.Context) ([]string, error) {
		return q.inner.ListQueues(ctx, prefix)
	})
}

func (q guardedQueue) SendMessage(ctx context.Context, queueID, body string, opts SendOptions) (string, error) {
	return guarded(ctx, q.g, "send_message", ResourceQueue, queueID, func(ctx context.Context) (string, error) {
		return q.inner.SendMessage(ctx, queueID, body, opts)
	})
}

func (q guardedQueue) ReceiveMessages(ctx context.Context, queueID string, opts ReceiveOptions) ([]Message, error) {
	return guarded(ctx, q.g, "receive_messages", ResourceQueue, queueID, func(ctx context.Context) ([]Message, error) {
		return q.inner.ReceiveMessages(ctx, queueID, opts)
	})
}

func (q guardedQueue) DeleteMessage(ctx context.Context, queueID, receiptHandle string) error {
	return q.g.run(ctx, "delete_message", ResourceMessage, receiptHandle, func(ctx context.Context) error {
		return q.inner.DeleteMessage(ctx, queueID, receiptHandle)
	})
}

type guardedCompute struct {
	inner Compute
	g     guard
}

func (c guardedCompute) Domain() ServiceName { return ServiceCompute }

func (c guardedCompute) CreateInstance(ctx context.Context, name, instanceType, image string, opts InstanceOptions) (string, error) {
	return guarded(ctx, c.g, "create_instance", ResourceInstance, name, func(ctx context.Context) (string, error) {
		return c.inner.CreateInstance(ctx, name, instanceType, image, opts)
	})
}

func (c guardedCompute) StartInstance(ctx context.Context, id string) error {
	return c.g.run(ctx, "start_instance", ResourceInstance, id, func(ctx context.Context) error {
		return c.inner.StartInstance(ctx, id)
	})
}

func (c guardedCompute) StopInstance(ctx context.Context, id string) error {
	return c.g.run(ctx, "stop_instance", ResourceInstance, id, func(ctx context.Context) error {
		return c.inner.StopInstance(ctx, id)
	})
}

func (c guardedCompute) TerminateInstance(ctx context.Context, id string) error {
	return c.g.run(ctx, "terminate_instance", ResourceInstance, id, func(ctx context.Context) error {
		return c.inner.TerminateInstance(ctx, id)
	})
}

func (c guardedCompute) ListInstances(ctx context.Context, filters map[string]string) ([]Instance, error) {
	return guarded(ctx, c.g, "list_instances", ResourceInstance, "", func(ctx context.Context) ([]Instance, error) {
		return c.inner.ListInstances(ctx, filters)
	})
}

func (c guardedCompute) GetInstance(ctx context.Context, id string) (*Instance, error) {
	return guarded(ctx, c.g, "get_instance", ResourceInstance, id, func(ctx context.Context) (*Instance, error) {
		return c.inner.GetInstance(ctx, id)
	})
}

type guardedDNS struct {
	inner DNS
	g     guard
}

func (d guardedDNS) Domain() ServiceName { return ServiceDNS }

func (d guardedDNS) CreateZone(ctx context.Context, name string, opts ZoneOptions) (string, error) {
	return guarded(ctx, d.g, "create_zone", ResourceZone, name, func(ctx context.Context) (string, error) {
		return d.inner.CreateZone(ctx, name, opts)
	})
}

func (d guardedDNS) DeleteZone(ctx context.Context, zoneID string) error {
	return d.g.run(ctx, "delete_zone", ResourceZone, zoneID, func(ctx context.Context) error {
		return d.inner.DeleteZone(ctx, zoneID)
	})
}

func (d guardedDNS) ListZones(ctx context.Context) ([]Zone, error) {
	return guarded(ctx, d.g, "list_zones", ResourceZone, "", d.inner.ListZones)
}

func (d guardedDNS) CreateRecord(ctx context.Context, zoneID string, record Record) error {
	return d.g.run(ctx, "create_record", ResourceZone, zoneID, func(ctx context.Context) error {
		return d.inner.CreateRecord(ctx, zoneID, record)
	})
}

func (d guardedDNS) DeleteRecord(ctx context.Context, zoneID, name, recordType string) error {
	return d.g.run(ctx, "delete_record", ResourceRecord, name, func(ctx context.Context) error {
		return d.inner.DeleteRecord(ctx, zoneID, name, recordType)
	})
}

func (d guardedDNS) ListRecords(ctx context.Context, zoneID string) ([]Record, error) {
	return guarded(ctx, d.g, "list_records", ResourceZone, zoneID, func(ctx context.Context) ([]Record, error) {
		return d.inner.ListRecords(ctx, zoneID)
	})
}

type guardedIAM struct {
	inner IAM
	g     guard
}

func (i guardedIAM) Domain() ServiceName { return ServiceIAM }

func (i guardedIAM) CreateRole(ctx context.Context, name, trustPolicy string, opts RoleOptions) (string, error) {
	return guarded(ctx, i.g, "create_role", ResourceRole, name, func(ctx context.Context) (string, error) {
		return i.inner.CreateRole(ctx, name, trustPolicy, opts)
	})
}

func (i guardedIAM) DeleteRole(ctx context.Context, name string) error {
	return i.g.run(ctx, "delete_role", ResourceRole, name, func(ctx context.Context) error {
		return i.inner.DeleteRole(ctx, name)
	})
}

func (i guardedIAM) ListRoles(ctx context.Context) ([]Role, error) {
	return guarded(ctx, i.g, "list_roles", ResourceRole, "", i.inner.ListRoles)
}

func (i guardedIAM) AttachPolicy(ctx context.Context, role, policy string) error {
	return i.g.run(ctx, "attach_policy", ResourcePolicy, policy, func(ctx context.Context) error {
		return i.inner.AttachPolicy(ctx, role, policy)
	})
}

func (i guardedIAM) DetachPolicy(ctx context.Context, role, policy string) error {
	return i.g.run(ctx, "detach_policy", ResourcePolicy, policy, func(ctx context.Context) error {
		return i.inner.DetachPolicy(ctx, role, policy)
	})
}

func (i guardedIAM) ListPolicies(ctx context.Context, role string) ([]Policy, error) {
	return guarded(ctx, i.g, "list_policies", ResourceRole, role, func(ctx context.Context) ([]Policy, error) {
		return i.inner.ListPolicies(ctx, role)
	})
}

type guardedLogging struct {
	inner Logging
	g     guard
}

func (l guardedLogging) Domain() ServiceName { return ServiceLogging }

func (l guardedLogging) CreateLogGroup(ctx context.Context, name string, retentionDays int) error {
	return l.g.run(ctx, "create_log_group", ResourceLogGroup, name, func(ctx context.Context) error {
		return l.inner.CreateLogGroup(ctx, name, retentionDays)
	})
}

func (l guardedLogging) DeleteLogGroup(ctx context.Context, name string) error {
	return l.g.run(ctx, "delete_log_group", ResourceLogGroup, name, func(ctx context.Context) error {
		return l.inner.DeleteLogGroup(ctx, name)
	})
}

func (l guardedLogging) ListLogGroups(ctx context.Context, prefix string) ([]string, error) {
	return guarded(ctx, l.g, "list_log_groups", ResourceLogGroup, "", func(ctx context.Context) ([]string, error) {
		return l.inner.ListLogGroups(ctx, prefix)
	})
}

func (l guardedLogging) WriteLog(ctx context.Context, group, message string, opts WriteOptions) error {
	return l.g.run(ctx, "write_log", ResourceLogGroup, group, func(ctx context.Context) error {
		return l.inner.WriteLog(ctx, group, message, opts)
	})
}

func (l guardedLogging) ReadLogs(ctx context.Context, group string, opts ReadOptions) ([]LogEntry, error) {
	return guarded(ctx, l.g, "read_logs", ResourceLogGroup, group, func(ctx context.Context) ([]LogEntry, error) {
		return l.inner.ReadLogs(ctx, group, opts)
	})
}
