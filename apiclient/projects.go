package apiclient

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"pkt.systems/hipposync/schema"
)

type projectPayload struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
}

// ListProjects returns the projects the user is a member of.
func (c *Client) ListProjects(ctx context.Context) ([]schema.Project, error) {
	var projects []schema.Project
	if err := c.do(ctx, request{method: http.MethodGet, path: "/projects", auth: true}, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// CreateProject creates a project owned by the current user.
func (c *Client) CreateProject(ctx context.Context, name, description string) (schema.Project, error) {
	name, err := schema.NormalizeTitle(name)
	if err != nil {
		return schema.Project{}, err
	}
	req, err := c.jsonRequest(http.MethodPost, "/projects", projectPayload{Name: name, Description: schema.NormalizeOptional(description)})
	if err != nil {
		return schema.Project{}, err
	}
	var project schema.Project
	if err := c.do(ctx, req, &project); err != nil {
		return schema.Project{}, err
	}
	return project, nil
}

// RenameProject renames a project.
func (c *Client) RenameProject(ctx context.Context, id schema.ProjectID, name string) (schema.Project, error) {
	name, err := schema.NormalizeTitle(name)
	if err != nil {
		return schema.Project{}, err
	}
	req, err := c.jsonRequest(http.MethodPut, projectPath(id), projectPayload{Name: name})
	if err != nil {
		return schema.Project{}, err
	}
	var project schema.Project
	if err := c.do(ctx, req, &project); err != nil {
		return schema.Project{}, err
	}
	return project, nil
}

// DeleteProject deletes a project together with its threads.
func (c *Client) DeleteProject(ctx context.Context, id schema.ProjectID) error {
	return c.do(ctx, request{method: http.MethodDelete, path: projectPath(id), auth: true}, nil)
}

// InviteMember adds an existing user to a project with the given role.
func (c *Client) InviteMember(ctx context.Context, id schema.ProjectID, email string, role schema.ProjectRole) (schema.InviteStatus, error) {
	role, err := schema.NormalizeProjectRole(string(role))
	if err != nil {
		return "", err
	}
	payload := map[string]string{"email": strings.TrimSpace(email), "role": string(role)}
	req, err := c.jsonRequest(http.MethodPost, projectPath(id)+"/members", payload)
	if err != nil {
		return "", err
	}
	var resp struct {
		Status schema.InviteStatus `json:"status"`
	}
	if err := c.do(ctx, req, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

func projectPath(id schema.ProjectID) string {
	return "/projects/" + strconv.FormatInt(int64(id), 10)
}
