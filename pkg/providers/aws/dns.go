package aws

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	"github.com/aws/aws-sdk-go-v2/service/route53/types"
	"github.com/google/uuid"
	"github.com/juju/errors"

	"github.com/anirudhbiyani/cloudjack/pkg/cloudjack"
)

const hostedZonePrefix = "/hostedzone/"

// Route53API is the subset of the Route 53 client used by DNS.
type Route53API interface {
	CreateHostedZone(ctx context.Context, in *route53.CreateHostedZoneInput, opts ...func(*route53.Options)) (*route53.CreateHostedZoneOutput, error)
	DeleteHostedZone(ctx context.Context, in *route53.DeleteHostedZoneInput, opts ...func(*route53.Options)) (*route53.DeleteHostedZoneOutput, error)
	ListHostedZones(ctx context.Context, in *route53.ListHostedZonesInput, opts ...func(*route53.Options)) (*route53.ListHostedZonesOutput, error)
	ChangeResourceRecordSets(ctx context.Context, in *route53.ChangeResourceRecordSetsInput, opts ...func(*route53.Options)) (*route53.ChangeResourceRecordSetsOutput, error)
	ListResourceRecordSets(ctx context.Context, in *route53.ListResourceRecordSetsInput, opts ...func(*route53.Options)) (*route53.ListResourceRecordSetsOutput, error)
}

// DNS implements cloudjack.DNS on Route 53. Zone IDs are hosted zone IDs
// without the "/hostedzone/" prefix.
type DNS struct {
	api Route53API
}

var _ cloudjack.DNS = (*DNS)(nil)

// NewDNS returns a DNS backed by api.
func NewDNS(api Route53API) *DNS {
	return &DNS{api: api}
}

func (d *DNS) Domain() cloudjack.ServiceName { return cloudjack.ServiceDNS }

func (d *DNS) CreateZone(ctx context.Context, name string, opts cloudjack.ZoneOptions) (string, error) {
	out, err := d.api.CreateHostedZone(ctx, &route53.CreateHostedZoneInput{
		Name:            aws.String(name),
		CallerReference: aws.String(uuid.NewString()),
		HostedZoneConfig: &types.HostedZoneConfig{
			Comment:     aws.String(opts.Description),
			PrivateZone: opts.Private,
		},
	})
	if err != nil {
		return "", errors.Trace(err)
	}
	return trimZoneID(out.HostedZone.Id), nil
}

func (d *DNS) DeleteZone(ctx context.Context, zoneID string) error {
	_, err := d.api.DeleteHostedZone(ctx, &route53.DeleteHostedZoneInput{Id: aws.String(zoneID)})
	return errors.Trace(err)
}

func (d *DNS) ListZones(ctx context.Context) ([]cloudjack.Zone, error) {
	var zones []cloudjack.Zone
	in := &route53.ListHostedZonesInput{}
	for {
		out, err := d.api.ListHostedZones(ctx, in)
		if err != nil {
			return nil, errors.Trace(err)
		}
		for _, z := range out.HostedZones {
			zone := cloudjack.Zone{
				ID:          trimZoneID(z.Id),
				Name:        aws.ToString(z.Name),
				RecordCount: aws.ToInt64(z.ResourceRecordSetCount),
			}
			if z.Config != nil {
				zone.Description = aws.ToString(z.Config.Comment)
				zone.Private = z.Config.PrivateZone
			}
			zones = append(zones, zone)
		}
		if !out.IsTruncated || out.NextMarker == nil {
			return zones, nil
		}
		in.Marker = out.NextMarker
	}
}

// CreateRecord upserts the record set.
func (d *DNS) CreateRecord(ctx context.Context, zoneID string, record cloudjack.Record) error {
	if record.TTL <= 0 {
		record.TTL = cloudjack.DefaultRecordTTL
	}
	return d.change(ctx, zoneID, types.ChangeActionUpsert, toRecordSet(record))
}

// DeleteRecord deletes the record set named name of type recordType.
// Route 53 needs the exact set to delete it, so it is looked up first.
func (d *DNS) DeleteRecord(ctx context.Context, zoneID, name, recordType string) error {
	out, err := d.api.ListResourceRecordSets(ctx, &route53.ListResourceRecordSetsInput{
		HostedZoneId:    aws.String(zoneID),
		StartRecordName: aws.String(name),
		StartRecordType: types.RRType(recordType),
		MaxItems:        aws.Int32(1),
	})
	if err != nil {
		return errors.Trace(err)
	}
	for _, rs := range out.ResourceRecordSets {
		if sameName(aws.ToString(rs.Name), name) && string(rs.Type) == recordType {
			return d.change(ctx, zoneID, types.ChangeActionDelete, &rs)
		}
	}
	return cloudjack.Errorf(cloudjack.KindNotFound, "record %s %s not found", name, recordType).
		WithResource(cloudjack.ResourceRecord, name)
}

func (d *DNS) ListRecords(ctx context.Context, zoneID string) ([]cloudjack.Record, error) {
	var records []cloudjack.Record
	in := &route53.ListResourceRecordSetsInput{HostedZoneId: aws.String(zoneID)}
	for {
		out, err := d.api.ListResourceRecordSets(ctx, in)
		if err != nil {
			return nil, errors.Trace(err)
		}
		for _, rs := range out.ResourceRecordSets {
			records = append(records, fromRecordSet(rs))
		}
		if !out.IsTruncated {
			return records, nil
		}
		in.StartRecordName = out.NextRecordName
		in.StartRecordType = out.NextRecordType
		in.StartRecordIdentifier = out.NextRecordIdentifier
	}
}

func (d *DNS) change(ctx context.Context, zoneID string, action types.ChangeAction, rs *types.ResourceRecordSet) error {
	_, err := d.api.ChangeResourceRecordSets(ctx, &route53.ChangeResourceRecordSetsInput{
		HostedZoneId: aws.String(zoneID),
		ChangeBatch: &types.ChangeBatch{
			Changes: []types.Change{{Action: action, ResourceRecordSet: rs}},
		},
	})
	return errors.Trace(err)
}

func toRecordSet(r cloudjack.Record) *types.ResourceRecordSet {
	rs := &types.ResourceRecordSet{
		Name: aws.String(r.Name),
		Type: types.RRType(r.Type),
		TTL:  aws.Int64(r.TTL),
	}
	for _, v := range r.Values {
		rs.ResourceRecords = append(rs.ResourceRecords, types.ResourceRecord{Value: aws.String(v)})
	}
	return rs
}

func fromRecordSet(rs types.ResourceRecordSet) cloudjack.Record {
	r := cloudjack.Record{
		Name: aws.ToString(rs.Name),
		Type: string(rs.Type),
		TTL:  aws.ToInt64(rs.TTL),
	}
	for _, rr := range rs.ResourceRecords {
		r.Values = append(r.Values, aws.ToString(rr.Value))
	}
	return r
}

func trimZoneID(id *string) string {
	return strings.TrimPrefix(aws.ToString(id), hostedZonePrefix)
}

// sameName compares DNS names ignoring case and the trailing dot.
func sameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSuffix(a, "."), strings.TrimSuffix(b, "."))
}
