package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"pkt.systems/hipposync/schema"
)

// ListThreads lists personal threads, or a project's threads when projectID is set.
func (c *Client) ListThreads(ctx context.Context, projectID *schema.ProjectID) ([]schema.Thread, error) {
	req := request{method: http.MethodGet, path: "/threads", auth: true}
	if projectID != nil {
		req.query = url.Values{"project_id": []string{strconv.FormatInt(int64(*projectID), 10)}}
	}
	var threads []schema.Thread
	if err := c.do(ctx, req, &threads); err != nil {
		return nil, err
	}
	return threads, nil
}

// CreateThread creates a personal or project thread. A blank title uses the default.
func (c *Client) CreateThread(ctx context.Context, title string, projectID *schema.ProjectID) (schema.Thread, error) {
	title, err := schema.NormalizeTitle(title)
	if err != nil {
		title = schema.DefaultThreadTitle
	}
	payload := struct {
		Title     string            `json:"title"`
		ProjectID *schema.ProjectID `json:"project_id,omitempty"`
	}{Title: title, ProjectID: projectID}
	req, err := c.jsonRequest(http.MethodPost, "/threads", payload)
	if err != nil {
		return schema.Thread{}, err
	}
	var thread schema.Thread
	if err := c.do(ctx, req, &thread); err != nil {
		return schema.Thread{}, err
	}
	return thread, nil
}

// RenameThread renames a thread and returns the title the backend stored.
func (c *Client) RenameThread(ctx context.Context, id schema.ThreadID, title string) (string, error) {
	title, err := schema.NormalizeTitle(title)
	if err != nil {
		return "", err
	}
	req, err := c.jsonRequest(http.MethodPut, threadPath(id), map[string]string{"title": title})
	if err != nil {
		return "", err
	}
	var resp struct {
		Title string `json:"title"`
	}
	if err := c.do(ctx, req, &resp); err != nil {
		return "", err
	}
	if resp.Title == "" {
		resp.Title = title
	}
	return resp.Title, nil
}

// DeleteThread deletes a thread and its messages.
func (c *Client) DeleteThread(ctx context.Context, id schema.ThreadID) error {
	return c.do(ctx, request{method: http.MethodDelete, path: threadPath(id), auth: true}, nil)
}

// ThreadMessages fetches the stored history of a thread, oldest first.
func (c *Client) ThreadMessages(ctx context.Context, id schema.ThreadID) ([]schema.MessageRecord, error) {
	var records []schema.MessageRecord
	if err := c.do(ctx, request{method: http.MethodGet, path: threadPath(id) + "/messages", auth: true}, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func threadPath(id schema.ThreadID) string {
	return "/threads/" + strconv.FormatInt(int64(id), 10)
}
