package aws

import (
	"context"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"github.com/juju/clock"
	"github.com/juju/errors"

	"github.com/anirudhbiyani/cloudjack/pkg/cloudjack"
)

// LogsAPI is the subset of the CloudWatch Logs client used by Logging.
type LogsAPI interface {
	CreateLogGroup(ctx context.Context, in *cloudwatchlogs.CreateLogGroupInput, opts ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogGroupOutput, error)
	DeleteLogGroup(ctx context.Context, in *cloudwatchlogs.DeleteLogGroupInput, opts ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.DeleteLogGroupOutput, error)
	PutRetentionPolicy(ctx context.Context, in *cloudwatchlogs.PutRetentionPolicyInput, opts ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutRetentionPolicyOutput, error)
	CreateLogStream(ctx context.Context, in *cloudwatchlogs.CreateLogStreamInput, opts ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogStreamOutput, error)
	PutLogEvents(ctx context.Context, in *cloudwatchlogs.PutLogEventsInput, opts ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutLogEventsOutput, error)
	cloudwatchlogs.DescribeLogGroupsAPIClient
	cloudwatchlogs.FilterLogEventsAPIClient
}

// Logging implements cloudjack.Logging on CloudWatch Logs. CloudWatch has
// no severity field, so severity travels as a "[SEVERITY] " message
// prefix.
type Logging struct {
	api   LogsAPI
	clock clock.Clock
}

var _ cloudjack.Logging = (*Logging)(nil)

// NewLogging returns a Logging backed by api.
func NewLogging(api LogsAPI) *Logging {
	return &Logging{api: api, clock: clock.WallClock}
}

func (l *Logging) Domain() cloudjack.ServiceName { return cloudjack.ServiceLogging }

// CreateLogGroup creates the group and, when retentionDays is positive,
// sets its retention.
func (l *Logging) CreateLogGroup(ctx context.Context, name string, retentionDays int) error {
	_, err := l.api.CreateLogGroup(ctx, &cloudwatchlogs.CreateLogGroupInput{LogGroupName: aws.String(name)})
	if err != nil {
		return errors.Trace(err)
	}
	if retentionDays <= 0 {
		return nil
	}
	_, err = l.api.PutRetentionPolicy(ctx, &cloudwatchlogs.PutRetentionPolicyInput{
		LogGroupName:    aws.String(name),
		RetentionInDays: aws.Int32(int32(retentionDays)),
	})
	return errors.Annotatef(err, "setting retention of %q", name)
}

func (l *Logging) DeleteLogGroup(ctx context.Context, name string) error {
	_, err := l.api.DeleteLogGroup(ctx, &cloudwatchlogs.DeleteLogGroupInput{LogGroupName: aws.String(name)})
	return errors.Trace(err)
}

func (l *Logging) ListLogGroups(ctx context.Context, prefix string) ([]string, error) {
	in := &cloudwatchlogs.DescribeLogGroupsInput{}
	if prefix != "" {
		in.LogGroupNamePrefix = aws.String(prefix)
	}
	var names []string
	p := cloudwatchlogs.NewDescribeLogGroupsPaginator(l.api, in)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, errors.Trace(err)
		}
		for _, g := range page.LogGroups {
			names = append(names, aws.ToString(g.LogGroupName))
		}
	}
	return names, nil
}

// WriteLog writes one event, creating the stream first if needed.
// Labels have no CloudWatch equivalent and are dropped.
func (l *Logging) WriteLog(ctx context.Context, group, message string, opts cloudjack.WriteOptions) error {
	opts = opts.Normalize()
	_, err := l.api.CreateLogStream(ctx, &cloudwatchlogs.CreateLogStreamInput{
		LogGroupName:  aws.String(group),
		LogStreamName: aws.String(opts.Stream),
	})
	var exists *types.ResourceAlreadyExistsException
	if err != nil && !errors.As(err, &exists) {
		return errors.Trace(err)
	}

	_, err = l.api.PutLogEvents(ctx, &cloudwatchlogs.PutLogEventsInput{
		LogGroupName:  aws.String(group),
		LogStreamName: aws.String(opts.Stream),
		LogEvents: []types.InputLogEvent{{
			Message:   aws.String(encodeSeverity(opts.Severity, message)),
			Timestamp: aws.Int64(l.clock.Now().UnixMilli()),
		}},
	})
	return errors.Trace(err)
}

// ReadLogs returns up to opts.Limit events, oldest first.
func (l *Logging) ReadLogs(ctx context.Context, group string, opts cloudjack.ReadOptions) ([]cloudjack.LogEntry, error) {
	opts = opts.Normalize()
	in := &cloudwatchlogs.FilterLogEventsInput{
		LogGroupName: aws.String(group),
		Limit:        aws.Int32(int32(opts.Limit)),
	}
	if opts.Filter != "" {
		in.FilterPattern = aws.String(opts.Filter)
	}
	if !opts.Start.IsZero() {
		in.StartTime = aws.Int64(opts.Start.UnixMilli())
	}
	if !opts.End.IsZero() {
		in.EndTime = aws.Int64(opts.End.UnixMilli())
	}

	var entries []cloudjack.LogEntry
	p := cloudwatchlogs.NewFilterLogEventsPaginator(l.api, in)
	for p.HasMorePages() && len(entries) < opts.Limit {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, errors.Trace(err)
		}
		for _, ev := range page.Events {
			severity, msg := decodeSeverity(aws.ToString(ev.Message))
			entries = append(entries, cloudjack.LogEntry{
				Timestamp: time.UnixMilli(aws.ToInt64(ev.Timestamp)).UTC(),
				Message:   msg,
				Severity:  severity,
				Stream:    aws.ToString(ev.LogStreamName),
			})
			if len(entries) == opts.Limit {
				break
			}
		}
	}
	return entries, nil
}

func encodeSeverity(severity, message string) string {
	return "[" + severity + "] " + message
}

// decodeSeverity splits a "[SEVERITY] message" event. Events written by
// other tools have no prefix and read as INFO.
func decodeSeverity(s string) (string, string) {
	if strings.HasPrefix(s, "[") {
		if end := strings.Index(s, "] "); end > 1 {
			sev := s[1:end]
			if sev == strings.ToUpper(sev) && !strings.ContainsAny(sev, " []") {
				return sev, s[end+2:]
			}
		}
	}
	return cloudjack.DefaultLogSeverity, s
}
