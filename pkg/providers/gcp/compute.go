package gcp

import (
	"context"
	"fmt"
	"sort"
	"strings"

	compute "cloud.google.com/go/compute/apiv1"
	"cloud.google.com/go/compute/apiv1/computepb"
	"github.com/googleapis/gax-go/v2"
	"github.com/juju/errors"
	"google.golang.org/api/iterator"
	"google.golang.org/protobuf/proto"

	"github.com/anirudhbiyani/cloudjack/pkg/cloudjack"
)

const defaultNetwork = "global/networks/default"

// InstancesAPI is the subset of the Compute Engine instances client used
// by Compute.
type InstancesAPI interface {
	Insert(ctx context.Context, req *computepb.InsertInstanceRequest, opts ...gax.CallOption) (*compute.Operation, error)
	Start(ctx context.Context, req *computepb.StartInstanceRequest, opts ...gax.CallOption) (*compute.Operation, error)
	Stop(ctx context.Context, req *computepb.StopInstanceRequest, opts ...gax.CallOption) (*compute.Operation, error)
	Delete(ctx context.Context, req *computepb.DeleteInstanceRequest, opts ...gax.CallOption) (*compute.Operation, error)
	Get(ctx context.Context, req *computepb.GetInstanceRequest, opts ...gax.CallOption) (*computepb.Instance, error)
	List(ctx context.Context, req *computepb.ListInstancesRequest, opts ...gax.CallOption) *compute.InstanceIterator
}

// Compute implements cloudjack.Compute on Compute Engine. Instances live
// in one zone; instance IDs are instance names.
type Compute struct {
	api     InstancesAPI
	project string
	zone    string
}

var _ cloudjack.Compute = (*Compute)(nil)

// NewCompute returns a Compute for project. Instances are created in
// zone unless the call names another.
func NewCompute(api InstancesAPI, project, zone string) *Compute {
	return &Compute{api: api, project: project, zone: zone}
}

func (c *Compute) Domain() cloudjack.ServiceName { return cloudjack.ServiceCompute }

// CreateInstance inserts an instance booting from image and waits for the
// operation. SecurityGroups become network tags, UserData becomes the
// startup script and KeyName does not apply.
func (c *Compute) CreateInstance(ctx context.Context, name, instanceType, image string, opts cloudjack.InstanceOptions) (string, error) {
	zone := c.zone
	if opts.Zone != "" {
		zone = opts.Zone
	}
	op, err := c.api.Insert(ctx, &computepb.InsertInstanceRequest{
		Project:          c.project,
		Zone:             zone,
		InstanceResource: instanceResource(name, instanceType, image, zone, opts),
	})
	if err := wait(ctx, op, err); err != nil {
		return "", errors.Annotatef(err, "creating instance %q", name)
	}
	return name, nil
}

func instanceResource(name, instanceType, image, zone string, opts cloudjack.InstanceOptions) *computepb.Instance {
	disk := &computepb.AttachedDiskInitializeParams{SourceImage: proto.String(image)}
	if opts.DiskSizeGB > 0 {
		disk.DiskSizeGb = proto.Int64(int64(opts.DiskSizeGB))
	}
	network := opts.Network
	if network == "" {
		network = defaultNetwork
	}
	nic := &computepb.NetworkInterface{
		Network: proto.String(network),
		AccessConfigs: []*computepb.AccessConfig{{
			Name: proto.String("External NAT"),
			Type: proto.String(computepb.AccessConfig_ONE_TO_ONE_NAT.String()),
		}},
	}
	if opts.SubnetID != "" {
		nic.Subnetwork = proto.String(opts.SubnetID)
	}

	inst := &computepb.Instance{
		Name:        proto.String(name),
		MachineType: proto.String(fmt.Sprintf("zones/%s/machineTypes/%s", zone, instanceType)),
		Disks: []*computepb.AttachedDisk{{
			Boot:             proto.Bool(true),
			AutoDelete:       proto.Bool(true),
			InitializeParams: disk,
		}},
		NetworkInterfaces: []*computepb.NetworkInterface{nic},
	}
	if len(opts.SecurityGroups) > 0 {
		inst.Tags = &computepb.Tags{Items: opts.SecurityGroups}
	}
	if opts.UserData != "" {
		inst.Metadata = &computepb.Metadata{Items: []*computepb.Items{{
			Key:   proto.String("startup-script"),
			Value: proto.String(opts.UserData),
		}}}
	}
	return inst
}

func (c *Compute) StartInstance(ctx context.Context, id string) error {
	op, err := c.api.Start(ctx, &computepb.StartInstanceRequest{Project: c.project, Zone: c.zone, Instance: id})
	return wait(ctx, op, err)
}

func (c *Compute) StopInstance(ctx context.Context, id string) error {
	op, err := c.api.Stop(ctx, &computepb.StopInstanceRequest{Project: c.project, Zone: c.zone, Instance: id})
	return wait(ctx, op, err)
}

func (c *Compute) TerminateInstance(ctx context.Context, id string) error {
	op, err := c.api.Delete(ctx, &computepb.DeleteInstanceRequest{Project: c.project, Zone: c.zone, Instance: id})
	return wait(ctx, op, err)
}

// ListInstances returns the zone's instances matching every filter.
// Filters use Compute Engine filter fields, e.g. "status" or
// "labels.env".
func (c *Compute) ListInstances(ctx context.Context, filters map[string]string) ([]cloudjack.Instance, error) {
	req := &computepb.ListInstancesRequest{Project: c.project, Zone: c.zone}
	if f := filterExpr(filters); f != "" {
		req.Filter = proto.String(f)
	}
	it := c.api.List(ctx, req)
	var out []cloudjack.Instance
	for {
		inst, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return out, nil
		}
		if err != nil {
			return nil, errors.Trace(err)
		}
		out = append(out, toInstance(inst))
	}
}

// filterExpr joins filters into one AND expression in key order.
func filterExpr(filters map[string]string) string {
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	terms := make([]string, 0, len(keys))
	for _, k := range keys {
		terms = append(terms, fmt.Sprintf("(%s = %q)", k, filters[k]))
	}
	return strings.Join(terms, " AND ")
}

func (c *Compute) GetInstance(ctx context.Context, id string) (*cloudjack.Instance, error) {
	inst, err := c.api.Get(ctx, &computepb.GetInstanceRequest{Project: c.project, Zone: c.zone, Instance: id})
	if err != nil {
		return nil, errors.Trace(err)
	}
	out := toInstance(inst)
	return &out, nil
}

func toInstance(inst *computepb.Instance) cloudjack.Instance {
	out := cloudjack.Instance{
		ID:         inst.GetName(),
		Name:       inst.GetName(),
		State:      strings.ToLower(inst.GetStatus()),
		Type:       lastSegment(inst.GetMachineType()),
		LaunchTime: inst.GetCreationTimestamp(),
	}
	if nics := inst.GetNetworkInterfaces(); len(nics) > 0 {
		out.PrivateIP = nics[0].GetNetworkIP()
		if acs := nics[0].GetAccessConfigs(); len(acs) > 0 {
			out.PublicIP = acs[0].GetNatIP()
		}
	}
	return out
}

// wait blocks until a zonal operation finishes.
func wait(ctx context.Context, op *compute.Operation, err error) error {
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(op.Wait(ctx))
}
