package apiclient

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"strconv"

	"pkt.systems/hipposync/schema"
)

// ChatPath is the chat relay endpoint. The trailing slash is part of the route.
const ChatPath = "/chat/"

// Chat relays a message and/or file as a single multipart submission.
func (c *Client) Chat(ctx context.Context, in schema.ChatRequest) (schema.ChatReply, error) {
	body, contentType, err := encodeChatForm(in)
	if err != nil {
		return schema.ChatReply{}, err
	}
	req := request{
		method:      http.MethodPost,
		path:        ChatPath,
		body:        body,
		contentType: contentType,
		auth:        true,
	}
	var reply schema.ChatReply
	if err := c.do(ctx, req, &reply); err != nil {
		return schema.ChatReply{}, err
	}
	return reply, nil
}

func encodeChatForm(in schema.ChatRequest) (*bytes.Buffer, string, error) {
	settings := schema.NormalizeSettings(schema.Settings{
		Model:        in.Model,
		Temperature:  in.Temperature,
		SystemPrompt: in.SystemPrompt,
	})
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	fields := []struct{ key, value string }{
		{"thread_id", strconv.FormatInt(int64(in.ThreadID), 10)},
		{"message", in.Message},
		{"model", string(settings.Model)},
		{"temperature", strconv.FormatFloat(settings.Temperature, 'f', -1, 64)},
		{"system_prompt", settings.SystemPrompt},
	}
	for _, field := range fields {
		if err := form.WriteField(field.key, field.value); err != nil {
			return nil, "", err
		}
	}
	if in.File != nil {
		part, err := form.CreateFormFile("file", in.File.Name)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(in.File.Data); err != nil {
			return nil, "", err
		}
	}
	if err := form.Close(); err != nil {
		return nil, "", err
	}
	return &buf, form.FormDataContentType(), nil
}

// Models lists the model identifiers offered by the backend.
func (c *Client) Models(ctx context.Context) ([]schema.ModelID, error) {
	var models []schema.ModelID
	if err := c.do(ctx, request{method: http.MethodGet, path: "/models", auth: true}, &models); err != nil {
		return nil, err
	}
	return models, nil
}
