package core

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"

	"pkt.systems/hipposync/apiclient"
	"pkt.systems/hipposync/internal/logx"
	"pkt.systems/hipposync/internal/sessionprefs"
	"pkt.systems/hipposync/schema"
	"pkt.systems/pslog"
)

// service implements the chat shell. The durable store is the only record of
// the selected thread; the service keeps just the message list of that thread.
type service struct {
	cfg     ServiceConfig
	backend Backend
	store   Store
	sink    EventSink
	newID   func() string
	logger  pslog.Logger

	// opMu serializes user actions the way a single UI event loop would.
	opMu sync.Mutex

	mu        sync.Mutex
	msgThread schema.ThreadID
	messages  []schema.Message
}

// NewService constructs the chat service.
func NewService(cfg ServiceConfig, deps ServiceDeps) (Service, error) {
	if deps.Backend == nil {
		return nil, errors.New("chat service requires a backend")
	}
	if deps.Store == nil {
		return nil, errors.New("chat service requires a store")
	}
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &service{
		cfg:     cfg,
		backend: deps.Backend,
		store:   deps.Store,
		sink:    deps.EventSink,
		newID:   deps.NewID,
		logger:  logger,
	}, nil
}

func (s *service) log(ctx context.Context, threadID schema.ThreadID) pslog.Logger {
	if ctx == nil {
		return s.logger
	}
	return logx.WithUserThread(ctx, s.cfg.UserID, threadID)
}

func (s *service) CurrentThread(context.Context) (schema.Thread, bool) {
	return s.store.LastThread()
}

func (s *service) Messages(context.Context) []schema.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]schema.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *service) replaceMessages(threadID schema.ThreadID, messages []schema.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgThread = threadID
	s.messages = messages
}

func (s *service) appendMessages(threadID schema.ThreadID, messages ...schema.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.msgThread != threadID {
		s.msgThread = threadID
		s.messages = nil
	}
	s.messages = append(s.messages, messages...)
}

func (s *service) publish(eventType schema.ThreadEventType, thread schema.Thread) {
	if s.sink == nil {
		return
	}
	s.sink.Publish(schema.ThreadEvent{
		UserID:   s.cfg.UserID,
		Type:     eventType,
		ThreadID: thread.ID,
		Project:  thread.ProjectID,
	})
}

// SelectThread refetches the full history of the thread and replaces the
// message list with it.
func (s *service) SelectThread(ctx context.Context, req schema.SelectThreadRequest) (schema.SelectThreadResponse, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	log := s.log(ctx, req.Thread.ID)
	if req.Thread.ID == 0 {
		return schema.SelectThreadResponse{}, schema.ErrNoThreadSelected
	}
	records, err := s.backend.ThreadMessages(ctx, req.Thread.ID)
	if err != nil {
		log.Warn("thread select failed", "err", err)
		return schema.SelectThreadResponse{}, err
	}
	messages := make([]schema.Message, 0, len(records))
	for _, rec := range records {
		msg := schema.MessageFromRecord(rec)
		msg.ID = s.newID()
		messages = append(messages, msg)
	}
	thread := req.Thread
	if err := s.store.SetLastThread(&thread); err != nil {
		log.Warn("thread select persist failed", "err", err)
	}
	s.replaceMessages(thread.ID, messages)
	log.Debug("thread selected", "messages", len(messages))
	out := make([]schema.Message, len(messages))
	copy(out, messages)
	return schema.SelectThreadResponse{Thread: thread, Messages: out}, nil
}

// NewThread creates a thread and selects it with an empty history.
func (s *service) NewThread(ctx context.Context, req schema.NewThreadRequest) (schema.NewThreadResponse, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	thread, err := s.createLocked(ctx, req.Title, req.ProjectID)
	if err != nil {
		return schema.NewThreadResponse{}, err
	}
	return schema.NewThreadResponse{Thread: thread}, nil
}

func (s *service) createLocked(ctx context.Context, title string, projectID *schema.ProjectID) (schema.Thread, error) {
	if strings.TrimSpace(title) == "" {
		title = schema.DefaultThreadTitle
	}
	thread, err := s.backend.CreateThread(ctx, title, projectID)
	if err != nil {
		logx.WithProject(s.log(ctx, 0), projectID).Warn("thread create failed", "err", err)
		return schema.Thread{}, err
	}
	if err := s.store.SetLastThread(&thread); err != nil {
		s.log(ctx, thread.ID).Warn("thread create persist failed", "err", err)
	}
	s.replaceMessages(thread.ID, nil)
	s.publish(schema.ThreadCreated, thread)
	logx.WithProject(s.log(ctx, thread.ID), projectID).Info("thread created")
	return thread, nil
}

// SendMessage relays text and/or a file. Without a selected thread one is
// created first. The user's entries are appended before the call; the reply,
// or an inline error, is appended after it.
func (s *service) SendMessage(ctx context.Context, req schema.SendMessageRequest) (schema.SendMessageResponse, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	if strings.TrimSpace(req.Text) == "" && req.File == nil {
		return schema.SendMessageResponse{}, schema.ErrEmptyMessage
	}

	resp := schema.SendMessageResponse{}
	thread, ok := s.store.LastThread()
	if !ok {
		created, err := s.createLocked(ctx, schema.DefaultThreadTitle, nil)
		if err != nil {
			return resp, err
		}
		thread = created
		resp.ThreadCreated = true
	}
	log := s.log(ctx, thread.ID)

	var pending []schema.Message
	if req.File != nil {
		pending = append(pending, schema.Message{ID: s.newID(), Role: schema.RoleUser, Type: schema.MessageFile, Filename: req.File.Name})
	}
	if strings.TrimSpace(req.Text) != "" {
		pending = append(pending, schema.Message{ID: s.newID(), Role: schema.RoleUser, Type: schema.MessageText, Content: req.Text})
	}
	s.appendMessages(thread.ID, pending...)
	resp.Appended = append(resp.Appended, pending...)

	settings := sessionprefs.FromContext(ctx).Apply(s.store.Settings())
	reply, err := s.backend.Chat(ctx, schema.ChatRequest{
		ThreadID:     thread.ID,
		Message:      req.Text,
		Model:        settings.Model,
		Temperature:  settings.Temperature,
		SystemPrompt: settings.SystemPrompt,
		File:         req.File,
	})
	if err != nil {
		log.Warn("chat send failed", "err", err)
		failed := schema.Message{
			ID:      s.newID(),
			Role:    schema.RoleAssistant,
			Type:    schema.MessageText,
			Content: "Error: " + apiclient.UserMessage(err),
			Failed:  true,
		}
		s.appendMessages(thread.ID, failed)
		resp.Appended = append(resp.Appended, failed)
		resp.Thread = thread
		return resp, err
	}

	if reply.ThreadID != 0 && reply.ThreadID != thread.ID {
		// The backend replaced an unknown thread with a new personal one.
		log.Info("chat thread replaced by backend", "new_thread", int64(reply.ThreadID))
		thread = schema.Thread{ID: reply.ThreadID, Title: "Personal Chat"}
		s.mu.Lock()
		s.msgThread = thread.ID
		s.mu.Unlock()
		resp.ThreadCreated = true
		s.publish(schema.ThreadCreated, thread)
	}
	if reply.ModelUsed != "" {
		thread.ActiveModel = reply.ModelUsed
	} else {
		thread.ActiveModel = settings.Model
	}
	if err := s.store.SetLastThread(&thread); err != nil {
		log.Warn("chat persist thread failed", "err", err)
	}
	answer := schema.Message{ID: s.newID(), Role: schema.RoleAssistant, Type: schema.MessageText, Content: reply.Reply}
	s.appendMessages(thread.ID, answer)
	resp.Appended = append(resp.Appended, answer)
	resp.Thread = thread
	resp.Reply = &reply
	log.Debug("chat send ok", "model", settings.Model, "file", req.File != nil)
	return resp, nil
}

// RenameThread renames the selected thread.
func (s *service) RenameThread(ctx context.Context, req schema.RenameThreadRequest) (schema.RenameThreadResponse, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	thread, ok := s.store.LastThread()
	if !ok {
		return schema.RenameThreadResponse{}, schema.ErrNoThreadSelected
	}
	title, err := schema.NormalizeTitle(req.Title)
	if err != nil {
		return schema.RenameThreadResponse{}, err
	}
	log := s.log(ctx, thread.ID)
	stored, err := s.backend.RenameThread(ctx, thread.ID, title)
	if err != nil {
		log.Warn("thread rename failed", "err", err)
		return schema.RenameThreadResponse{}, err
	}
	thread.Title = stored
	if err := s.store.SetLastThread(&thread); err != nil {
		log.Warn("thread rename persist failed", "err", err)
	}
	s.publish(schema.ThreadRenamed, thread)
	log.Info("thread renamed")
	return schema.RenameThreadResponse{Thread: thread}, nil
}

// DeleteThread deletes the selected thread and clears the selection.
func (s *service) DeleteThread(ctx context.Context, _ schema.DeleteThreadRequest) (schema.DeleteThreadResponse, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	thread, ok := s.store.LastThread()
	if !ok {
		return schema.DeleteThreadResponse{}, schema.ErrNoThreadSelected
	}
	log := s.log(ctx, thread.ID)
	if err := s.backend.DeleteThread(ctx, thread.ID); err != nil {
		log.Warn("thread delete failed", "err", err)
		return schema.DeleteThreadResponse{}, err
	}
	if err := s.store.SetLastThread(nil); err != nil {
		log.Warn("thread delete persist failed", "err", err)
	}
	s.replaceMessages(0, nil)
	s.publish(schema.ThreadDeleted, thread)
	log.Info("thread deleted")
	return schema.DeleteThreadResponse{Thread: thread}, nil
}

func (s *service) Settings(ctx context.Context) schema.Settings {
	return sessionprefs.FromContext(ctx).Apply(s.store.Settings())
}

// UpdateSettings persists chat settings.
func (s *service) UpdateSettings(ctx context.Context, settings schema.Settings) (schema.Settings, error) {
	settings = schema.NormalizeSettings(settings)
	if err := s.store.SetSettings(settings); err != nil {
		s.log(ctx, 0).Warn("settings persist failed", "err", err)
		return schema.Settings{}, err
	}
	return settings, nil
}
