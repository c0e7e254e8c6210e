package httpapi

import (
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"pkt.systems/hipposync/schema"
)

// httpError carries a status and the detail string written to the client.
type httpError struct {
	status int
	detail string
}

func (e *httpError) Error() string {
	return e.detail
}

func forbidden(detail string) error {
	return &httpError{status: http.StatusForbidden, detail: detail}
}

func notFound(detail string) error {
	return &httpError{status: http.StatusNotFound, detail: detail}
}

func statusOf(err error) (int, string) {
	var httpErr *httpError
	if errors.As(err, &httpErr) {
		return httpErr.status, httpErr.detail
	}
	return http.StatusInternalServerError, "Internal server error"
}

type project struct {
	schema.Project
	members map[int64]schema.ProjectRole
}

type thread struct {
	schema.Thread
	ownerID int64
}

// workspace holds projects, threads and messages in memory.
type workspace struct {
	mu          sync.Mutex
	now         func() time.Time
	nextProject int64
	nextThread  int64
	nextMessage int64
	projects    map[schema.ProjectID]*project
	threads     map[schema.ThreadID]*thread
	messages    map[schema.ThreadID][]schema.MessageRecord
}

func newWorkspace(now func() time.Time) *workspace {
	if now == nil {
		now = time.Now
	}
	return &workspace{
		now:      now,
		projects: make(map[schema.ProjectID]*project),
		threads:  make(map[schema.ThreadID]*thread),
		messages: make(map[schema.ThreadID][]schema.MessageRecord),
	}
}

func (w *workspace) createProject(ownerID int64, name, description string) schema.Project {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nextProject++
	p := &project{
		Project: schema.Project{
			ID:          schema.ProjectID(w.nextProject),
			Name:        name,
			Description: description,
			OwnerID:     ownerID,
			CreatedAt:   w.now().UTC(),
		},
		members: map[int64]schema.ProjectRole{ownerID: schema.ProjectRoleOwner},
	}
	w.projects[p.ID] = p
	return p.Project
}

func (w *workspace) listProjects(accountID int64) []schema.Project {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]schema.Project, 0)
	for _, p := range w.projects {
		if _, ok := p.members[accountID]; ok {
			out = append(out, p.Project)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (w *workspace) memberLocked(id schema.ProjectID, accountID int64) (*project, schema.ProjectRole, error) {
	p, ok := w.projects[id]
	if !ok {
		return nil, "", notFound("Project not found")
	}
	role, ok := p.members[accountID]
	if !ok {
		return nil, "", forbidden("Not a project member")
	}
	return p, role, nil
}

func (w *workspace) checkMember(id schema.ProjectID, accountID int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, _, err := w.memberLocked(id, accountID)
	return err
}

func (w *workspace) renameProject(id schema.ProjectID, accountID int64, name string) (schema.Project, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	p, role, err := w.memberLocked(id, accountID)
	if err != nil {
		return schema.Project{}, err
	}
	if role != schema.ProjectRoleOwner && role != schema.ProjectRoleAdmin {
		return schema.Project{}, forbidden("Only owners and admins can rename a project")
	}
	p.Name = name
	return p.Project, nil
}

func (w *workspace) deleteProject(id schema.ProjectID, accountID int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, role, err := w.memberLocked(id, accountID)
	if err != nil {
		return err
	}
	if role != schema.ProjectRoleOwner {
		return forbidden("Only the owner can delete a project")
	}
	for tid, t := range w.threads {
		if t.InProject(id) {
			delete(w.threads, tid)
			delete(w.messages, tid)
		}
	}
	delete(w.projects, id)
	return nil
}

func (w *workspace) addMember(id schema.ProjectID, accountID, memberID int64, role schema.ProjectRole) (schema.InviteStatus, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	p, _, err := w.memberLocked(id, accountID)
	if err != nil {
		return "", err
	}
	if _, ok := p.members[memberID]; ok {
		return schema.InviteAlreadyMember, nil
	}
	p.members[memberID] = role
	return schema.InviteAdded, nil
}

func (w *workspace) createThreadLocked(ownerID int64, title string, projectID *schema.ProjectID) *thread {
	w.nextThread++
	t := &thread{
		Thread: schema.Thread{
			ID:        schema.ThreadID(w.nextThread),
			Title:     title,
			SessionID: "t-" + uuid.NewString()[:12],
			CreatedAt: w.now().UTC(),
		},
		ownerID: ownerID,
	}
	if projectID != nil {
		pid := *projectID
		t.ProjectID = &pid
	}
	w.threads[t.ID] = t
	return t
}

func (w *workspace) createThread(ownerID int64, title string, projectID *schema.ProjectID) (schema.Thread, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if projectID != nil {
		if _, _, err := w.memberLocked(*projectID, ownerID); err != nil {
			return schema.Thread{}, err
		}
	}
	return w.createThreadLocked(ownerID, title, projectID).Thread, nil
}

func (w *workspace) listThreads(accountID int64, projectID *schema.ProjectID) ([]schema.Thread, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if projectID != nil {
		if _, _, err := w.memberLocked(*projectID, accountID); err != nil {
			return nil, err
		}
	}
	out := make([]schema.Thread, 0)
	for _, t := range w.threads {
		switch {
		case projectID == nil && t.ProjectID == nil && t.ownerID == accountID:
			out = append(out, t.Thread)
		case projectID != nil && t.InProject(*projectID):
			out = append(out, t.Thread)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return lastActivity(out[i]).After(lastActivity(out[j])) ||
			(lastActivity(out[i]).Equal(lastActivity(out[j])) && out[i].ID > out[j].ID)
	})
	return out, nil
}

func lastActivity(t schema.Thread) time.Time {
	if t.LastMessageAt != nil {
		return *t.LastMessageAt
	}
	return t.CreatedAt
}

// accessLocked mirrors the backend: project threads need membership,
// personal threads need ownership.
func (w *workspace) accessLocked(id schema.ThreadID, accountID int64) (*thread, error) {
	t, ok := w.threads[id]
	if !ok {
		return nil, notFound("Thread not found")
	}
	if t.ProjectID != nil {
		p, ok := w.projects[*t.ProjectID]
		if !ok {
			return nil, forbidden("No access to this project thread")
		}
		if _, ok := p.members[accountID]; !ok {
			return nil, forbidden("No access to this project thread")
		}
		return t, nil
	}
	if t.ownerID != accountID {
		return nil, forbidden("No access to this personal thread")
	}
	return t, nil
}

func (w *workspace) ownedLocked(id schema.ThreadID, accountID int64) (*thread, error) {
	t, ok := w.threads[id]
	if !ok {
		return nil, notFound("Thread not found")
	}
	if t.ownerID != accountID {
		return nil, forbidden("Not your chat")
	}
	return t, nil
}

func (w *workspace) renameThread(id schema.ThreadID, accountID int64, title string) (schema.Thread, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	t, err := w.ownedLocked(id, accountID)
	if err != nil {
		return schema.Thread{}, err
	}
	t.Title = title
	return t.Thread, nil
}

func (w *workspace) deleteThread(id schema.ThreadID, accountID int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.ownedLocked(id, accountID); err != nil {
		return err
	}
	delete(w.threads, id)
	delete(w.messages, id)
	return nil
}

func (w *workspace) threadMessages(id schema.ThreadID, accountID int64) ([]schema.MessageRecord, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.accessLocked(id, accountID); err != nil {
		return nil, err
	}
	out := make([]schema.MessageRecord, len(w.messages[id]))
	copy(out, w.messages[id])
	return out, nil
}

// chatTurn is one relayed message as seen by the workspace.
type chatTurn struct {
	message  string
	filename string
	model    schema.ModelID
}

// recordChat stores a chat turn, creating a personal thread when the id is
// unknown, and returns the thread used.
func (w *workspace) recordChat(accountID int64, id schema.ThreadID, turn chatTurn, reply func(schema.Thread) string) (schema.Thread, string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	t, ok := w.threads[id]
	if !ok {
		t = w.createThreadLocked(accountID, "Personal Chat", nil)
	}
	if _, err := w.accessLocked(t.ID, accountID); err != nil {
		return schema.Thread{}, "", err
	}
	if turn.filename != "" {
		name := turn.filename
		w.appendLocked(t.ID, schema.RoleUser, schema.MessageFile, nil, &name, nil)
	}
	if turn.message != "" {
		text := turn.message
		w.appendLocked(t.ID, schema.RoleUser, schema.MessageText, &text, nil, nil)
	}
	text := reply(t.Thread)
	model := string(turn.model)
	w.appendLocked(t.ID, schema.RoleAssistant, schema.MessageText, &text, nil, &model)
	now := w.now().UTC()
	t.LastMessageAt = &now
	t.ActiveModel = turn.model
	return t.Thread, text, nil
}

func (w *workspace) appendLocked(id schema.ThreadID, role schema.Role, kind schema.MessageType, content, filename, model *string) {
	w.nextMessage++
	w.messages[id] = append(w.messages[id], schema.MessageRecord{
		ID:        w.nextMessage,
		ThreadID:  id,
		Sender:    string(role),
		Type:      kind,
		Content:   content,
		Filename:  filename,
		ModelUsed: model,
		CreatedAt: w.now().UTC(),
	})
}

// recentPersonal returns the newest text messages across the account's
// personal threads, newest first.
func (w *workspace) recentPersonal(accountID int64, limit int) []schema.MessageRecord {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []schema.MessageRecord
	for id, t := range w.threads {
		if t.ProjectID != nil || t.ownerID != accountID {
			continue
		}
		for _, msg := range w.messages[id] {
			if msg.Type == schema.MessageText && msg.Content != nil {
				out = append(out, msg)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
