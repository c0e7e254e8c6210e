// Package render formats chat output for the terminal.
package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"pkt.systems/hipposync/core"
	"pkt.systems/hipposync/schema"
)

const (
	userMarker      = "you>"
	assistantMarker = "hippo>"
	fileMarker      = "[file]"
)

// Options controls styling.
type Options struct {
	// Color enables ANSI styling and glamour markdown. Off for piped output.
	Color bool
	// Width is the markdown wrap width; 0 means 80.
	Width int
}

// Renderer formats messages, the thread tree and form feedback.
type Renderer struct {
	color bool
	md    *glamour.TermRenderer

	user     lipgloss.Style
	bot      lipgloss.Style
	failed   lipgloss.Style
	faint    lipgloss.Style
	heading  lipgloss.Style
	selected lipgloss.Style
	ok       lipgloss.Style
	bad      lipgloss.Style
}

// New constructs a Renderer. When glamour cannot be initialized assistant
// text falls back to plain output.
func New(opts Options) *Renderer {
	width := opts.Width
	if width <= 0 {
		width = 80
	}
	r := &Renderer{
		color:    opts.Color,
		user:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5FAFFF")),
		bot:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#AF87FF")),
		failed:   lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F5F")),
		faint:    lipgloss.NewStyle().Faint(true),
		heading:  lipgloss.NewStyle().Bold(true).Underline(true),
		selected: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#87D787")),
		ok:       lipgloss.NewStyle().Foreground(lipgloss.Color("#87D787")),
		bad:      lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F5F")),
	}
	if opts.Color {
		md, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(width))
		if err == nil {
			r.md = md
		}
	}
	return r
}

func (r *Renderer) paint(style lipgloss.Style, text string) string {
	if !r.color {
		return text
	}
	return style.Render(text)
}

func (r *Renderer) markdown(text string) string {
	if r.md == nil {
		return PlainText(text)
	}
	out, err := r.md.Render(text)
	if err != nil {
		return text
	}
	return strings.Trim(out, "\n")
}

// Message formats one conversation entry.
func (r *Renderer) Message(msg schema.Message) string {
	switch {
	case msg.Role == schema.RoleUser && msg.Type == schema.MessageFile:
		return r.paint(r.user, userMarker) + " " + r.paint(r.faint, fileMarker+" "+msg.Filename)
	case msg.Role == schema.RoleUser:
		return r.paint(r.user, userMarker) + " " + msg.Content
	case msg.Failed:
		return r.paint(r.bot, assistantMarker) + " " + r.paint(r.failed, msg.Content)
	case msg.Type == schema.MessageFile:
		return r.paint(r.bot, assistantMarker) + " " + r.paint(r.faint, fileMarker+" "+msg.Filename)
	default:
		body := r.markdown(msg.Content)
		if strings.Contains(body, "\n") {
			return r.paint(r.bot, assistantMarker) + "\n" + body
		}
		return r.paint(r.bot, assistantMarker) + " " + strings.TrimSpace(body)
	}
}

// Messages formats a conversation, one entry per block.
func (r *Renderer) Messages(msgs []schema.Message) string {
	if len(msgs) == 0 {
		return r.paint(r.faint, "(no messages)")
	}
	parts := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		parts = append(parts, r.Message(msg))
	}
	return strings.Join(parts, "\n")
}

func (r *Renderer) threadLine(thread schema.Thread, selected schema.ThreadID, indent string) string {
	line := fmt.Sprintf("%s%d  %s", indent, thread.ID, thread.Title)
	if thread.ID == selected && selected != 0 {
		return r.paint(r.selected, "* "+line)
	}
	return "  " + line
}

// Tree formats the sidebar: personal threads, then each project with its
// threads. selected marks the current thread.
func (r *Renderer) Tree(tree core.Tree, selected schema.ThreadID) string {
	var lines []string
	lines = append(lines, r.paint(r.heading, "Personal"))
	if len(tree.Personal) == 0 {
		lines = append(lines, r.paint(r.faint, "  (no chats)"))
	}
	for _, thread := range tree.Personal {
		lines = append(lines, r.threadLine(thread, selected, ""))
	}
	if len(tree.Projects) > 0 {
		lines = append(lines, "", r.paint(r.heading, "Projects"))
	}
	for _, node := range tree.Projects {
		lines = append(lines, fmt.Sprintf("  %s  %s", r.paint(r.faint, fmt.Sprintf("#%d", node.Project.ID)), node.Project.Name))
		if len(node.Threads) == 0 {
			lines = append(lines, r.paint(r.faint, "      (no chats)"))
		}
		for _, thread := range node.Threads {
			lines = append(lines, r.threadLine(thread, selected, "    "))
		}
	}
	return strings.Join(lines, "\n")
}

// Projects formats a flat project list.
func (r *Renderer) Projects(projects []schema.Project) string {
	if len(projects) == 0 {
		return r.paint(r.faint, "(no projects)")
	}
	lines := make([]string, 0, len(projects))
	for _, p := range projects {
		line := fmt.Sprintf("%d  %s", p.ID, p.Name)
		if p.Description != "" {
			line += "  " + r.paint(r.faint, p.Description)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// Keys lists which provider keys the backend holds for the user.
func (r *Renderer) Keys(user schema.User) string {
	lines := make([]string, 0, len(schema.Providers))
	for _, p := range schema.Providers {
		if user.HasKey(p) {
			lines = append(lines, r.paint(r.ok, fmt.Sprintf("%-10s set", p)))
			continue
		}
		lines = append(lines, r.paint(r.faint, fmt.Sprintf("%-10s not set", p)))
	}
	return strings.Join(lines, "\n")
}

// History lists remembered items, one per line.
func (r *Renderer) History(history schema.History) string {
	if history.Error != "" {
		return r.paint(r.bad, "memory unavailable: "+history.Error)
	}
	if len(history.Items) == 0 {
		return r.paint(r.faint, "(nothing remembered yet)")
	}
	lines := make([]string, 0, len(history.Items))
	for _, item := range history.Items {
		content := strings.Join(strings.Fields(item.Content), " ")
		lines = append(lines, r.paint(r.faint, "["+item.Type+"]")+" "+content)
	}
	return strings.Join(lines, "\n")
}

// PasswordChecklist formats every password rule with its pass state.
func (r *Renderer) PasswordChecklist(result schema.PasswordResult) string {
	lines := make([]string, 0, len(result.Checks))
	for _, check := range result.Checks {
		if check.Passed {
			lines = append(lines, r.paint(r.ok, "[x] "+check.Label))
			continue
		}
		lines = append(lines, r.paint(r.bad, "[ ] "+check.Label))
	}
	return strings.Join(lines, "\n")
}

// Errors formats validation errors, one per line.
func (r *Renderer) Errors(errs []string) string {
	lines := make([]string, 0, len(errs))
	for _, e := range errs {
		lines = append(lines, r.paint(r.bad, "- "+e))
	}
	return strings.Join(lines, "\n")
}

// Notice formats a muted status line.
func (r *Renderer) Notice(text string) string {
	return r.paint(r.faint, text)
}
