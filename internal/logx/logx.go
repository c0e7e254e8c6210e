package logx

import (
	"context"

	"pkt.systems/hipposync/schema"
	"pkt.systems/pslog"
)

type contextKey int

const (
	userKey contextKey = iota
	threadKey
)

// Ctx returns the logger bound to the provided context.
func Ctx(ctx context.Context) pslog.Logger {
	return pslog.Ctx(ctx)
}

// WithUser annotates the logger with the user id if present.
func WithUser(ctx context.Context, userID schema.UserID) pslog.Logger {
	log := pslog.Ctx(ctx)
	if userID != "" {
		if current, ok := ctx.Value(userKey).(schema.UserID); ok && current == userID {
			return log
		}
		log = log.With("user", userID)
	}
	return log
}

// WithUserThread annotates the logger with user and thread identifiers.
func WithUserThread(ctx context.Context, userID schema.UserID, threadID schema.ThreadID) pslog.Logger {
	log := WithUser(ctx, userID)
	if threadID != 0 {
		if current, ok := ctx.Value(threadKey).(schema.ThreadID); ok && current == threadID {
			return log
		}
		log = log.With("thread", int64(threadID))
	}
	return log
}

// WithProject annotates the logger with a project id when the thread is project scoped.
func WithProject(log pslog.Logger, projectID *schema.ProjectID) pslog.Logger {
	if projectID != nil {
		log = log.With("project", int64(*projectID))
	}
	return log
}

// ContextWithUser stores the user marker on the context for log de-duplication.
func ContextWithUser(ctx context.Context, userID schema.UserID) context.Context {
	if ctx == nil || userID == "" {
		return ctx
	}
	return context.WithValue(ctx, userKey, userID)
}

// ContextWithThread stores the thread marker on the context for log de-duplication.
func ContextWithThread(ctx context.Context, threadID schema.ThreadID) context.Context {
	if ctx == nil || threadID == 0 {
		return ctx
	}
	return context.WithValue(ctx, threadKey, threadID)
}

// ContextWithUserLogger attaches the logger and user marker to the context.
func ContextWithUserLogger(ctx context.Context, log pslog.Logger, userID schema.UserID) context.Context {
	ctx = pslog.ContextWithLogger(ctx, log)
	return ContextWithUser(ctx, userID)
}
