package core

import (
	"context"
	"testing"
	"time"

	"pkt.systems/hipposync/schema"
)

func TestSidebarRefreshGroupsThreads(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	project, err := h.client.CreateProject(ctx, "Research", "")
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	if _, err := h.svc.NewThread(ctx, schema.NewThreadRequest{Title: "mine"}); err != nil {
		t.Fatalf("personal thread: %v", err)
	}
	scoped, err := h.svc.NewThread(ctx, schema.NewThreadRequest{Title: "shared", ProjectID: &project.ID})
	if err != nil {
		t.Fatalf("project thread: %v", err)
	}

	sidebar := NewSidebar(h.client, h.bus, h.user, nil)
	tree, err := sidebar.Refresh(ctx)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if len(tree.Personal) != 1 || tree.Personal[0].Title != "mine" {
		t.Fatalf("unexpected personal threads %+v", tree.Personal)
	}
	node, ok := tree.FindProject(project.ID)
	if !ok || len(node.Threads) != 1 || node.Threads[0].ID != scoped.Thread.ID {
		t.Fatalf("unexpected project node %+v", node)
	}
	if found, ok := tree.Find(scoped.Thread.ID); !ok || found.Title != "shared" {
		t.Fatalf("find returned %+v", found)
	}
	if _, ok := tree.Find(12345); ok {
		t.Fatalf("unexpected thread found")
	}
}

func TestSidebarWatchRefreshesOnChange(t *testing.T) {
	h := newHarness(t)
	sidebar := NewSidebar(h.client, h.bus, h.user, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates := make(chan Tree, 4)
	done := make(chan error, 1)
	go func() {
		done <- sidebar.Watch(ctx, func(tree Tree, err error) {
			if err == nil {
				updates <- tree
			}
		})
	}()

	// The subscription is registered asynchronously; publish until it lands.
	deadline := time.After(2 * time.Second)
	created := false
	for {
		if !created {
			if _, err := h.svc.NewThread(context.Background(), schema.NewThreadRequest{Title: "watched"}); err != nil {
				t.Fatalf("new thread: %v", err)
			}
			created = true
		} else {
			h.bus.Publish(schema.ThreadEvent{UserID: h.user, Type: schema.ThreadCreated})
		}
		select {
		case tree := <-updates:
			if len(tree.Personal) != 1 || tree.Personal[0].Title != "watched" {
				t.Fatalf("unexpected tree %+v", tree)
			}
			cancel()
			if err := <-done; err != context.Canceled {
				t.Fatalf("expected context.Canceled, got %v", err)
			}
			return
		case <-time.After(20 * time.Millisecond):
		case <-deadline:
			t.Fatalf("sidebar never refreshed")
		}
	}
}
