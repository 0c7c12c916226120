package aws

import (
	"context"
	"encoding/base64"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/juju/errors"

	"github.com/anirudhbiyani/cloudjack/pkg/cloudjack"
)

// EC2API is the subset of the EC2 client used by Compute.
type EC2API interface {
	RunInstances(ctx context.Context, in *ec2.RunInstancesInput, opts ...func(*ec2.Options)) (*ec2.RunInstancesOutput, error)
	StartInstances(ctx context.Context, in *ec2.StartInstancesInput, opts ...func(*ec2.Options)) (*ec2.StartInstancesOutput, error)
	StopInstances(ctx context.Context, in *ec2.StopInstancesInput, opts ...func(*ec2.Options)) (*ec2.StopInstancesOutput, error)
	TerminateInstances(ctx context.Context, in *ec2.TerminateInstancesInput, opts ...func(*ec2.Options)) (*ec2.TerminateInstancesOutput, error)
	ec2.DescribeInstancesAPIClient
}

// Compute implements cloudjack.Compute on EC2.
type Compute struct {
	api EC2API
}

var _ cloudjack.Compute = (*Compute)(nil)

// NewCompute returns a Compute backed by api.
func NewCompute(api EC2API) *Compute {
	return &Compute{api: api}
}

func (c *Compute) Domain() cloudjack.ServiceName { return cloudjack.ServiceCompute }

// CreateInstance launches one instance tagged with name. DiskSizeGB and
// Network have no direct RunInstances equivalent and are ignored; the
// AMI's block device mapping applies.
func (c *Compute) CreateInstance(ctx context.Context, name, instanceType, image string, opts cloudjack.InstanceOptions) (string, error) {
	in := &ec2.RunInstancesInput{
		ImageId:      aws.String(image),
		InstanceType: types.InstanceType(instanceType),
		MinCount:     aws.Int32(1),
		MaxCount:     aws.Int32(1),
		TagSpecifications: []types.TagSpecification{{
			ResourceType: types.ResourceTypeInstance,
			Tags:         []types.Tag{{Key: aws.String("Name"), Value: aws.String(name)}},
		}},
	}
	if opts.KeyName != "" {
		in.KeyName = aws.String(opts.KeyName)
	}
	if len(opts.SecurityGroups) > 0 {
		in.SecurityGroupIds = opts.SecurityGroups
	}
	if opts.SubnetID != "" {
		in.SubnetId = aws.String(opts.SubnetID)
	}
	if opts.UserData != "" {
		in.UserData = aws.String(base64.StdEncoding.EncodeToString([]byte(opts.UserData)))
	}
	if opts.Zone != "" {
		in.Placement = &types.Placement{AvailabilityZone: aws.String(opts.Zone)}
	}

	out, err := c.api.RunInstances(ctx, in)
	if err != nil {
		return "", errors.Trace(err)
	}
	if len(out.Instances) == 0 {
		return "", errors.Errorf("run instances returned no instance")
	}
	return aws.ToString(out.Instances[0].InstanceId), nil
}

func (c *Compute) StartInstance(ctx context.Context, id string) error {
	_, err := c.api.StartInstances(ctx, &ec2.StartInstancesInput{InstanceIds: []string{id}})
	return errors.Trace(err)
}

func (c *Compute) StopInstance(ctx context.Context, id string) error {
	_, err := c.api.StopInstances(ctx, &ec2.StopInstancesInput{InstanceIds: []string{id}})
	return errors.Trace(err)
}

func (c *Compute) TerminateInstance(ctx context.Context, id string) error {
	_, err := c.api.TerminateInstances(ctx, &ec2.TerminateInstancesInput{InstanceIds: []string{id}})
	return errors.Trace(err)
}

// ListInstances returns instances matching every filter. Filter names are
// EC2 filter names such as "instance-state-name" or "tag:Name".
func (c *Compute) ListInstances(ctx context.Context, filters map[string]string) ([]cloudjack.Instance, error) {
	names := make([]string, 0, len(filters))
	for k := range filters {
		names = append(names, k)
	}
	sort.Strings(names)
	in := &ec2.DescribeInstancesInput{}
	for _, k := range names {
		in.Filters = append(in.Filters, types.Filter{Name: aws.String(k), Values: []string{filters[k]}})
	}
	return c.describe(ctx, in)
}

func (c *Compute) GetInstance(ctx context.Context, id string) (*cloudjack.Instance, error) {
	instances, err := c.describe(ctx, &ec2.DescribeInstancesInput{InstanceIds: []string{id}})
	if err != nil {
		return nil, err
	}
	if len(instances) == 0 {
		return nil, cloudjack.Errorf(cloudjack.KindNotFound, "instance %q not found", id).
			WithResource(cloudjack.ResourceInstance, id)
	}
	return &instances[0], nil
}

func (c *Compute) describe(ctx context.Context, in *ec2.DescribeInstancesInput) ([]cloudjack.Instance, error) {
	var out []cloudjack.Instance
	p := ec2.NewDescribeInstancesPaginator(c.api, in)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, errors.Trace(err)
		}
		for _, r := range page.Reservations {
			for _, inst := range r.Instances {
				out = append(out, toInstance(inst))
			}
		}
	}
	return out, nil
}

func toInstance(inst types.Instance) cloudjack.Instance {
	out := cloudjack.Instance{
		ID:        aws.ToString(inst.InstanceId),
		Type:      string(inst.InstanceType),
		PublicIP:  aws.ToString(inst.PublicIpAddress),
		PrivateIP: aws.ToString(inst.PrivateIpAddress),
	}
	if inst.State != nil {
		out.State = string(inst.State.Name)
	}
	if inst.LaunchTime != nil {
		out.LaunchTime = inst.LaunchTime.UTC().Format(time.RFC3339)
	}
	for _, t := range inst.Tags {
		if aws.ToString(t.Key) == "Name" {
			out.Name = aws.ToString(t.Value)
		}
	}
	return out
}
