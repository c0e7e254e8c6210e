package core

import (
	"context"

	"pkt.systems/hipposync/schema"
)

// Service is the transport-agnostic chat shell: thread selection, message
// relay and chat settings.
type Service interface {
	CurrentThread(ctx context.Context) (schema.Thread, bool)
	Messages(ctx context.Context) []schema.Message
	SelectThread(ctx context.Context, req schema.SelectThreadRequest) (schema.SelectThreadResponse, error)
	NewThread(ctx context.Context, req schema.NewThreadRequest) (schema.NewThreadResponse, error)
	SendMessage(ctx context.Context, req schema.SendMessageRequest) (schema.SendMessageResponse, error)
	RenameThread(ctx context.Context, req schema.RenameThreadRequest) (schema.RenameThreadResponse, error)
	DeleteThread(ctx context.Context, req schema.DeleteThreadRequest) (schema.DeleteThreadResponse, error)
	Settings(ctx context.Context) schema.Settings
	UpdateSettings(ctx context.Context, settings schema.Settings) (schema.Settings, error)
}
