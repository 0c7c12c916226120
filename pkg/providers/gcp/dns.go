package gcp

import (
	"context"
	"net/http"
	"strings"

	"github.com/juju/errors"
	dns "google.golang.org/api/dns/v1"
	"google.golang.org/api/googleapi"

	"github.com/anirudhbiyani/cloudjack/pkg/cloudjack"
)

// DNS implements cloudjack.DNS on Cloud DNS. Zone IDs are managed zone
// names, derived from the DNS name with dots replaced by dashes.
type DNS struct {
	svc     *dns.Service
	project string
}

var _ cloudjack.DNS = (*DNS)(nil)

// NewDNS returns a DNS for project.
func NewDNS(svc *dns.Service, project string) *DNS {
	return &DNS{svc: svc, project: project}
}

func (d *DNS) Domain() cloudjack.ServiceName { return cloudjack.ServiceDNS }

// CreateZone creates a managed zone for the DNS name and returns its
// zone name.
func (d *DNS) CreateZone(ctx context.Context, name string, opts cloudjack.ZoneOptions) (string, error) {
	zone := &dns.ManagedZone{
		Name:        zoneName(name),
		DnsName:     fqdn(name),
		Description: opts.Description,
		Visibility:  "public",
	}
	if opts.Private {
		zone.Visibility = "private"
	}
	created, err := d.svc.ManagedZones.Create(d.project, zone).Context(ctx).Do()
	if err != nil {
		return "", errors.Trace(err)
	}
	return created.Name, nil
}

func (d *DNS) DeleteZone(ctx context.Context, zoneID string) error {
	return errors.Trace(d.svc.ManagedZones.Delete(d.project, zoneID).Context(ctx).Do())
}

func (d *DNS) ListZones(ctx context.Context) ([]cloudjack.Zone, error) {
	var zones []cloudjack.Zone
	err := d.svc.ManagedZones.List(d.project).Pages(ctx, func(page *dns.ManagedZonesListResponse) error {
		for _, z := range page.ManagedZones {
			zones = append(zones, cloudjack.Zone{
				ID:          z.Name,
				Name:        z.DnsName,
				Description: z.Description,
				Private:     z.Visibility == "private",
			})
		}
		return nil
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return zones, nil
}

// CreateRecord creates the record set, or replaces it when one with the
// same name and type exists.
func (d *DNS) CreateRecord(ctx context.Context, zoneID string, record cloudjack.Record) error {
	if record.TTL <= 0 {
		record.TTL = cloudjack.DefaultRecordTTL
	}
	rrset := &dns.ResourceRecordSet{
		Name:    fqdn(record.Name),
		Type:    record.Type,
		Ttl:     record.TTL,
		Rrdatas: record.Values,
	}
	_, err := d.svc.ResourceRecordSets.Create(d.project, zoneID, rrset).Context(ctx).Do()
	if !isConflict(err) {
		return errors.Trace(err)
	}
	_, err = d.svc.ResourceRecordSets.Patch(d.project, zoneID, rrset.Name, rrset.Type, rrset).Context(ctx).Do()
	return errors.Annotatef(err, "replacing %s %s", rrset.Name, rrset.Type)
}

func (d *DNS) DeleteRecord(ctx context.Context, zoneID, name, recordType string) error {
	_, err := d.svc.ResourceRecordSets.Delete(d.project, zoneID, fqdn(name), recordType).Context(ctx).Do()
	return errors.Trace(err)
}

func (d *DNS) ListRecords(ctx context.Context, zoneID string) ([]cloudjack.Record, error) {
	var records []cloudjack.Record
	err := d.svc.ResourceRecordSets.List(d.project, zoneID).Pages(ctx, func(page *dns.ResourceRecordSetsListResponse) error {
		for _, rr := range page.Rrsets {
			records = append(records, cloudjack.Record{
				Name:   rr.Name,
				Type:   rr.Type,
				TTL:    rr.Ttl,
				Values: rr.Rrdatas,
			})
		}
		return nil
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return records, nil
}

// zoneName turns "example.com." into "example-com".
func zoneName(dnsName string) string {
	return strings.ReplaceAll(strings.TrimSuffix(dnsName, "."), ".", "-")
}

func fqdn(name string) string {
	if strings.HasSuffix(name, ".") {
		return name
	}
	return name + "."
}

func isConflict(err error) bool {
	var gErr *googleapi.Error
	return errors.As(err, &gErr) && gErr.Code == http.StatusConflict
}
