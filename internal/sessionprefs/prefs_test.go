package sessionprefs

import (
	"context"
	"testing"

	"pkt.systems/hipposync/schema"
)

func TestWithContextAndFromContext(t *testing.T) {
	prefs := New()
	model := schema.ModelID("gpt-4o")
	prefs.Model = &model

	ctx := WithContext(context.Background(), prefs)
	got := FromContext(ctx)
	if got == nil {
		t.Fatalf("expected prefs")
	}
	if got.Model == nil || *got.Model != "gpt-4o" {
		t.Fatalf("expected pref to be preserved")
	}
}

func TestWithContextNil(t *testing.T) {
	var nilCtx context.Context
	ctx := WithContext(nilCtx, New())
	if ctx != nil {
		t.Fatalf("expected nil context")
	}
	ctx = WithContext(context.Background(), nil)
	if ctx == nil {
		t.Fatalf("expected non-nil context to pass through")
	}
	if FromContext(ctx) != nil {
		t.Fatalf("expected no prefs")
	}
}

func TestApplyOverrides(t *testing.T) {
	base := schema.Settings{Model: "gpt-4o-mini", Temperature: 1, SystemPrompt: "base"}
	var nilPrefs *Prefs
	if got := nilPrefs.Apply(base); got != base {
		t.Fatalf("nil prefs changed settings: %+v", got)
	}
	temp := 0.0
	prompt := ""
	prefs := &Prefs{Temperature: &temp, SystemPrompt: &prompt}
	got := prefs.Apply(base)
	if got.Model != "gpt-4o-mini" || got.Temperature != 0 || got.SystemPrompt != "" {
		t.Fatalf("unexpected settings: %+v", got)
	}
}
