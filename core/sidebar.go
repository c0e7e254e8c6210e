package core

import (
	"context"
	"sort"
	"sync"

	"pkt.systems/hipposync/internal/logx"
	"pkt.systems/hipposync/schema"
	"pkt.systems/pslog"
)

// SidebarBackend lists the data shown in the thread tree.
type SidebarBackend interface {
	ListProjects(ctx context.Context) ([]schema.Project, error)
	ListThreads(ctx context.Context, projectID *schema.ProjectID) ([]schema.Thread, error)
}

// ProjectNode is a project with its threads.
type ProjectNode struct {
	Project schema.Project
	Threads []schema.Thread
}

// Tree is the sidebar: personal threads first, then one node per project.
type Tree struct {
	Personal []schema.Thread
	Projects []ProjectNode
}

// Find returns the thread with the given id anywhere in the tree.
func (t Tree) Find(id schema.ThreadID) (schema.Thread, bool) {
	for _, thread := range t.Personal {
		if thread.ID == id {
			return thread, true
		}
	}
	for _, node := range t.Projects {
		for _, thread := range node.Threads {
			if thread.ID == id {
				return thread, true
			}
		}
	}
	return schema.Thread{}, false
}

// FindProject returns the project node with the given id.
func (t Tree) FindProject(id schema.ProjectID) (ProjectNode, bool) {
	for _, node := range t.Projects {
		if node.Project.ID == id {
			return node, true
		}
	}
	return ProjectNode{}, false
}

// Sidebar keeps the thread tree and refreshes it when the chat service
// reports a change.
type Sidebar struct {
	backend SidebarBackend
	source  EventSource
	userID  schema.UserID
	logger  pslog.Logger

	mu   sync.Mutex
	tree Tree
}

// NewSidebar constructs a sidebar. source may be nil when no change
// notifications are needed.
func NewSidebar(backend SidebarBackend, source EventSource, userID schema.UserID, logger pslog.Logger) *Sidebar {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Sidebar{backend: backend, source: source, userID: userID, logger: logger}
}

// Tree returns the last fetched tree.
func (s *Sidebar) Tree() Tree {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree
}

// Refresh refetches projects and every thread list.
func (s *Sidebar) Refresh(ctx context.Context) (Tree, error) {
	log := logx.WithUser(ctx, s.userID)
	projects, err := s.backend.ListProjects(ctx)
	if err != nil {
		log.Warn("sidebar projects failed", "err", err)
		return s.Tree(), err
	}
	personal, err := s.backend.ListThreads(ctx, nil)
	if err != nil {
		log.Warn("sidebar threads failed", "err", err)
		return s.Tree(), err
	}
	tree := Tree{Personal: personal}
	sort.SliceStable(projects, func(i, j int) bool { return projects[i].ID < projects[j].ID })
	for _, project := range projects {
		id := project.ID
		threads, err := s.backend.ListThreads(ctx, &id)
		if err != nil {
			logx.WithProject(log, &id).Warn("sidebar project threads failed", "err", err)
			return s.Tree(), err
		}
		tree.Projects = append(tree.Projects, ProjectNode{Project: project, Threads: threads})
	}
	s.mu.Lock()
	s.tree = tree
	s.mu.Unlock()
	log.Debug("sidebar refreshed", "personal", len(personal), "projects", len(projects))
	return tree, nil
}

// Watch refreshes the tree on every change event until ctx is done. onChange
// receives the refreshed tree or the refresh error.
func (s *Sidebar) Watch(ctx context.Context, onChange func(Tree, error)) error {
	if s.source == nil {
		<-ctx.Done()
		return ctx.Err()
	}
	s.logger.Debug("sidebar watch start", "user", string(s.userID))
	events, cancel := s.source.Subscribe(s.userID)
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-events:
			if !ok {
				return nil
			}
			logx.WithUserThread(ctx, s.userID, event.ThreadID).Debug("sidebar change", "type", string(event.Type))
			tree, err := s.Refresh(ctx)
			if onChange != nil {
				onChange(tree, err)
			}
		}
	}
}
