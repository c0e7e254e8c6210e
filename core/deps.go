package core

import (
	"context"

	"pkt.systems/hipposync/schema"
	"pkt.systems/pslog"
)

// Backend is the part of the REST client the chat shell needs.
type Backend interface {
	ListProjects(ctx context.Context) ([]schema.Project, error)
	ListThreads(ctx context.Context, projectID *schema.ProjectID) ([]schema.Thread, error)
	CreateThread(ctx context.Context, title string, projectID *schema.ProjectID) (schema.Thread, error)
	RenameThread(ctx context.Context, id schema.ThreadID, title string) (string, error)
	DeleteThread(ctx context.Context, id schema.ThreadID) error
	ThreadMessages(ctx context.Context, id schema.ThreadID) ([]schema.MessageRecord, error)
	Chat(ctx context.Context, req schema.ChatRequest) (schema.ChatReply, error)
}

// Store is the durable selection and settings storage.
type Store interface {
	LastThread() (schema.Thread, bool)
	SetLastThread(thread *schema.Thread) error
	Settings() schema.Settings
	SetSettings(settings schema.Settings) error
}

// ServiceConfig identifies the signed-in user.
type ServiceConfig struct {
	UserID schema.UserID
}

// ServiceDeps captures dependencies for the chat service.
type ServiceDeps struct {
	Backend   Backend
	Store     Store
	EventSink EventSink
	Logger    pslog.Logger
	// NewID generates local message ids.
	NewID func() string
}
