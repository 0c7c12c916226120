package gcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/logging"
	"cloud.google.com/go/logging/logadmin"
	"github.com/google/uuid"
	"github.com/juju/errors"
	"google.golang.org/api/iterator"

	"github.com/anirudhbiyani/cloudjack/pkg/cloudjack"
)

// Logging implements cloudjack.Logging on Cloud Logging. A log group is a
// log ID. Logs come into existence on first write and have no streams;
// the stream name travels as the "stream" label.
type Logging struct {
	writer  *logging.Client
	admin   *logadmin.Client
	project string
}

var _ cloudjack.Logging = (*Logging)(nil)

// NewLogging returns a Logging for project.
func NewLogging(writer *logging.Client, admin *logadmin.Client, project string) *Logging {
	return &Logging{writer: writer, admin: admin, project: project}
}

func (l *Logging) Domain() cloudjack.ServiceName { return cloudjack.ServiceLogging }

// CreateLogGroup does nothing: logs are created by their first entry and
// retention is configured on log buckets, not logs.
func (l *Logging) CreateLogGroup(ctx context.Context, name string, retentionDays int) error {
	return nil
}

// DeleteLogGroup deletes the log and all its entries.
func (l *Logging) DeleteLogGroup(ctx context.Context, name string) error {
	return errors.Trace(l.admin.DeleteLog(ctx, name))
}

func (l *Logging) ListLogGroups(ctx context.Context, prefix string) ([]string, error) {
	it := l.admin.Logs(ctx)
	var names []string
	for {
		id, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return names, nil
		}
		if err != nil {
			return nil, errors.Trace(err)
		}
		if strings.HasPrefix(id, prefix) {
			names = append(names, id)
		}
	}
}

// WriteLog writes one text entry synchronously.
func (l *Logging) WriteLog(ctx context.Context, group, message string, opts cloudjack.WriteOptions) error {
	opts = opts.Normalize()
	err := l.writer.Logger(group).LogSync(ctx, logEntry(message, opts))
	return errors.Trace(err)
}

func logEntry(message string, opts cloudjack.WriteOptions) logging.Entry {
	labels := make(map[string]string, len(opts.Labels)+1)
	for k, v := range opts.Labels {
		labels[k] = v
	}
	labels["stream"] = opts.Stream
	return logging.Entry{
		Payload:  message,
		Severity: logging.ParseSeverity(opts.Severity),
		Labels:   labels,
		InsertID: uuid.NewString(),
	}
}

// ReadLogs returns up to opts.Limit entries, oldest first.
func (l *Logging) ReadLogs(ctx context.Context, group string, opts cloudjack.ReadOptions) ([]cloudjack.LogEntry, error) {
	opts = opts.Normalize()
	it := l.admin.Entries(ctx, logadmin.Filter(l.filter(group, opts)))
	var entries []cloudjack.LogEntry
	for len(entries) < opts.Limit {
		e, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, errors.Trace(err)
		}
		entries = append(entries, fromEntry(e))
	}
	return entries, nil
}

func (l *Logging) filter(group string, opts cloudjack.ReadOptions) string {
	terms := []string{fmt.Sprintf("logName = %q", "projects/"+l.project+"/logs/"+group)}
	if !opts.Start.IsZero() {
		terms = append(terms, fmt.Sprintf("timestamp >= %q", opts.Start.UTC().Format(time.RFC3339)))
	}
	if !opts.End.IsZero() {
		terms = append(terms, fmt.Sprintf("timestamp <= %q", opts.End.UTC().Format(time.RFC3339)))
	}
	if opts.Filter != "" {
		terms = append(terms, "("+opts.Filter+")")
	}
	return strings.Join(terms, " AND ")
}

func fromEntry(e *logging.Entry) cloudjack.LogEntry {
	msg, ok := e.Payload.(string)
	if !ok {
		msg = fmt.Sprint(e.Payload)
	}
	severity := strings.ToUpper(e.Severity.String())
	if e.Severity == logging.Default {
		severity = cloudjack.DefaultLogSeverity
	}
	return cloudjack.LogEntry{
		Timestamp: e.Timestamp.UTC(),
		Message:   msg,
		Severity:  severity,
		Stream:    e.Labels["stream"],
	}
}
