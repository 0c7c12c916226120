package gcp

import (
	"context"
	"slices"
	"strings"

	"github.com/juju/errors"
	"google.golang.org/api/cloudresourcemanager/v1"
	iam "google.golang.org/api/iam/v1"

	"github.com/anirudhbiyani/cloudjack/pkg/cloudjack"
)

// IAM implements cloudjack.IAM on GCP. Roles are project custom roles.
// Attaching a policy adds a member to the project IAM binding of a role:
// the "role" argument is the member, e.g. "serviceAccount:ci@p.iam...",
// and the "policy" argument is the granted role, e.g. "roles/viewer".
type IAM struct {
	roles    *iam.Service
	projects *cloudresourcemanager.Service
	project  string
}

var _ cloudjack.IAM = (*IAM)(nil)

// NewIAM returns an IAM for project.
func NewIAM(roles *iam.Service, projects *cloudresourcemanager.Service, project string) *IAM {
	return &IAM{roles: roles, projects: projects, project: project}
}

func (i *IAM) Domain() cloudjack.ServiceName { return cloudjack.ServiceIAM }

func (i *IAM) parent() string {
	return "projects/" + i.project
}

func (i *IAM) roleName(name string) string {
	if strings.Contains(name, "/") {
		return name
	}
	return i.parent() + "/roles/" + name
}

// CreateRole creates a GA custom role and returns its full name. GCP
// roles carry no trust policy; trustPolicy is ignored.
func (i *IAM) CreateRole(ctx context.Context, name, trustPolicy string, opts cloudjack.RoleOptions) (string, error) {
	title := opts.Title
	if title == "" {
		title = name
	}
	role, err := i.roles.Projects.Roles.Create(i.parent(), &iam.CreateRoleRequest{
		RoleId: name,
		Role: &iam.Role{
			Title:               title,
			Description:         opts.Description,
			IncludedPermissions: opts.Permissions,
			Stage:               "GA",
		},
	}).Context(ctx).Do()
	if err != nil {
		return "", errors.Trace(err)
	}
	return role.Name, nil
}

// DeleteRole deletes a custom role by short or full name.
func (i *IAM) DeleteRole(ctx context.Context, name string) error {
	_, err := i.roles.Projects.Roles.Delete(i.roleName(name)).Context(ctx).Do()
	return errors.Trace(err)
}

func (i *IAM) ListRoles(ctx context.Context) ([]cloudjack.Role, error) {
	var roles []cloudjack.Role
	err := i.roles.Projects.Roles.List(i.parent()).Pages(ctx, func(page *iam.ListRolesResponse) error {
		for _, r := range page.Roles {
			roles = append(roles, cloudjack.Role{
				Name:        lastSegment(r.Name),
				ID:          r.Name,
				Title:       r.Title,
				Description: r.Description,
			})
		}
		return nil
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return roles, nil
}

// AttachPolicy grants the role policy to member.
func (i *IAM) AttachPolicy(ctx context.Context, member, policy string) error {
	return i.editPolicy(ctx, func(p *cloudresourcemanager.Policy) bool {
		for _, b := range p.Bindings {
			if b.Role != policy {
				continue
			}
			if slices.Contains(b.Members, member) {
				return false
			}
			b.Members = append(b.Members, member)
			return true
		}
		p.Bindings = append(p.Bindings, &cloudresourcemanager.Binding{Role: policy, Members: []string{member}})
		return true
	})
}

// DetachPolicy revokes the role policy from member. Bindings left with no
// members are dropped.
func (i *IAM) DetachPolicy(ctx context.Context, member, policy string) error {
	return i.editPolicy(ctx, func(p *cloudresourcemanager.Policy) bool {
		changed := false
		kept := p.Bindings[:0]
		for _, b := range p.Bindings {
			if b.Role == policy {
				if n := slices.Index(b.Members, member); n >= 0 {
					b.Members = slices.Delete(b.Members, n, n+1)
					changed = true
				}
			}
			if len(b.Members) > 0 {
				kept = append(kept, b)
			}
		}
		p.Bindings = kept
		return changed
	})
}

// editPolicy reads the project policy, applies edit and writes it back
// with the read etag. A concurrent writer makes the write fail, which the
// retry policy repeats from the read.
func (i *IAM) editPolicy(ctx context.Context, edit func(*cloudresourcemanager.Policy) bool) error {
	p, err := i.projects.Projects.GetIamPolicy(i.project, &cloudresourcemanager.GetIamPolicyRequest{}).Context(ctx).Do()
	if err != nil {
		return errors.Annotate(err, "reading project policy")
	}
	if !edit(p) {
		return nil
	}
	_, err = i.projects.Projects.SetIamPolicy(i.project, &cloudresourcemanager.SetIamPolicyRequest{Policy: p}).Context(ctx).Do()
	return errors.Annotate(err, "writing project policy")
}

// ListPolicies lists the project policy bindings, or only those that
// include member when member is set.
func (i *IAM) ListPolicies(ctx context.Context, member string) ([]cloudjack.Policy, error) {
	p, err := i.projects.Projects.GetIamPolicy(i.project, &cloudresourcemanager.GetIamPolicyRequest{}).Context(ctx).Do()
	if err != nil {
		return nil, errors.Trace(err)
	}
	var out []cloudjack.Policy
	for _, b := range p.Bindings {
		if member != "" && !slices.Contains(b.Members, member) {
			continue
		}
		out = append(out, cloudjack.Policy{Name: b.Role, ID: b.Role, Members: b.Members})
	}
	return out, nil
}
