package aws

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/juju/errors"

	"github.com/anirudhbiyani/cloudjack/pkg/cloudjack"
)

// IAMAPI is the subset of the IAM client used by IAM.
type IAMAPI interface {
	CreateRole(ctx context.Context, in *iam.CreateRoleInput, opts ...func(*iam.Options)) (*iam.CreateRoleOutput, error)
	DeleteRole(ctx context.Context, in *iam.DeleteRoleInput, opts ...func(*iam.Options)) (*iam.DeleteRoleOutput, error)
	AttachRolePolicy(ctx context.Context, in *iam.AttachRolePolicyInput, opts ...func(*iam.Options)) (*iam.AttachRolePolicyOutput, error)
	DetachRolePolicy(ctx context.Context, in *iam.DetachRolePolicyInput, opts ...func(*iam.Options)) (*iam.DetachRolePolicyOutput, error)
	iam.ListRolesAPIClient
	iam.ListPoliciesAPIClient
	iam.ListAttachedRolePoliciesAPIClient
}

// IAM implements cloudjack.IAM on AWS IAM. Policies are addressed by ARN.
type IAM struct {
	api IAMAPI
}

var _ cloudjack.IAM = (*IAM)(nil)

// NewIAM returns an IAM backed by api.
func NewIAM(api IAMAPI) *IAM {
	return &IAM{api: api}
}

func (i *IAM) Domain() cloudjack.ServiceName { return cloudjack.ServiceIAM }

// CreateRole creates a role with trustPolicy as its assume-role document
// and returns the role ARN. Title and Permissions do not apply to AWS.
func (i *IAM) CreateRole(ctx context.Context, name, trustPolicy string, opts cloudjack.RoleOptions) (string, error) {
	in := &iam.CreateRoleInput{
		RoleName:                 aws.String(name),
		AssumeRolePolicyDocument: aws.String(trustPolicy),
	}
	if opts.Description != "" {
		in.Description = aws.String(opts.Description)
	}
	if opts.MaxSessionDuration > 0 {
		in.MaxSessionDuration = aws.Int32(int32(opts.MaxSessionDuration))
	}
	out, err := i.api.CreateRole(ctx, in)
	if err != nil {
		return "", errors.Trace(err)
	}
	return aws.ToString(out.Role.Arn), nil
}

func (i *IAM) DeleteRole(ctx context.Context, name string) error {
	_, err := i.api.DeleteRole(ctx, &iam.DeleteRoleInput{RoleName: aws.String(name)})
	return errors.Trace(err)
}

func (i *IAM) ListRoles(ctx context.Context) ([]cloudjack.Role, error) {
	var roles []cloudjack.Role
	p := iam.NewListRolesPaginator(i.api, &iam.ListRolesInput{})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, errors.Trace(err)
		}
		for _, r := range page.Roles {
			roles = append(roles, toRole(r))
		}
	}
	return roles, nil
}

// AttachPolicy attaches the managed policy with ARN policy to role.
func (i *IAM) AttachPolicy(ctx context.Context, role, policy string) error {
	_, err := i.api.AttachRolePolicy(ctx, &iam.AttachRolePolicyInput{
		RoleName:  aws.String(role),
		PolicyArn: aws.String(policy),
	})
	return errors.Trace(err)
}

func (i *IAM) DetachPolicy(ctx context.Context, role, policy string) error {
	_, err := i.api.DetachRolePolicy(ctx, &iam.DetachRolePolicyInput{
		RoleName:  aws.String(role),
		PolicyArn: aws.String(policy),
	})
	return errors.Trace(err)
}

// ListPolicies lists the managed policies attached to role, or every
// customer-managed policy in the account when role is empty.
func (i *IAM) ListPolicies(ctx context.Context, role string) ([]cloudjack.Policy, error) {
	var policies []cloudjack.Policy
	if role != "" {
		p := iam.NewListAttachedRolePoliciesPaginator(i.api, &iam.ListAttachedRolePoliciesInput{
			RoleName: aws.String(role),
		})
		for p.HasMorePages() {
			page, err := p.NextPage(ctx)
			if err != nil {
				return nil, errors.Trace(err)
			}
			for _, ap := range page.AttachedPolicies {
				policies = append(policies, cloudjack.Policy{
					Name: aws.ToString(ap.PolicyName),
					ID:   aws.ToString(ap.PolicyArn),
				})
			}
		}
		return policies, nil
	}

	p := iam.NewListPoliciesPaginator(i.api, &iam.ListPoliciesInput{Scope: types.PolicyScopeTypeLocal})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, errors.Trace(err)
		}
		for _, pol := range page.Policies {
			policies = append(policies, cloudjack.Policy{
				Name: aws.ToString(pol.PolicyName),
				ID:   aws.ToString(pol.Arn),
			})
		}
	}
	return policies, nil
}

func toRole(r types.Role) cloudjack.Role {
	out := cloudjack.Role{
		Name:        aws.ToString(r.RoleName),
		ID:          aws.ToString(r.RoleId),
		ARN:         aws.ToString(r.Arn),
		Description: aws.ToString(r.Description),
	}
	if r.CreateDate != nil {
		out.CreatedAt = r.CreateDate.UTC().Format(time.RFC3339)
	}
	return out
}
