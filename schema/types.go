package schema

import "time"

// UserID identifies the signed-in account (the account email).
type UserID string

// ThreadID identifies a conversation thread on the backend.
type ThreadID int64

// ProjectID identifies a shared project on the backend.
type ProjectID int64

// ModelID identifies an LLM model offered by the backend.
type ModelID string

// Role is the author of a displayed message.
type Role string

const (
	// RoleUser marks messages typed or uploaded by the user.
	RoleUser Role = "user"
	// RoleAssistant marks replies relayed from the backend.
	RoleAssistant Role = "assistant"
)

// MessageType distinguishes text messages from file placeholders.
type MessageType string

const (
	// MessageText is a plain text message.
	MessageText MessageType = "text"
	// MessageFile is a file upload placeholder.
	MessageFile MessageType = "file"
)

// ProjectRole is a membership role inside a project.
type ProjectRole string

const (
	ProjectRoleOwner  ProjectRole = "owner"
	ProjectRoleAdmin  ProjectRole = "admin"
	ProjectRoleMember ProjectRole = "member"
	ProjectRoleViewer ProjectRole = "viewer"
)

// Credentials are the login form fields.
type Credentials struct {
	Email    string
	Password string
}

// LocationInfo is the resolved human-readable location of a signup.
type LocationInfo struct {
	City      string `json:"city"`
	State     string `json:"state,omitempty"`
	Country   string `json:"country,omitempty"`
	Latitude  string `json:"latitude"`
	Longitude string `json:"longitude"`
	Timezone  string `json:"timezone"`
	Formatted string `json:"formatted"`
}

// SignupProfile is sent once to the signup endpoint.
type SignupProfile struct {
	Credentials
	Name       string
	Occupation string
	Location   *LocationInfo
}

// User is the current-user record returned by the backend.
type User struct {
	ID              int64  `json:"id"`
	Email           string `json:"email"`
	EmailVerified   bool   `json:"email_verified"`
	HasOpenAIKey    bool   `json:"has_openai_key"`
	HasAnthropicKey bool   `json:"has_anthropic_key"`
	HasGoogleKey    bool   `json:"has_google_key"`
	HasTavilyKey    bool   `json:"has_tavily_key"`
}

// Token is the login response.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// VerifyStatus is the backend verification status.
type VerifyStatus string

const (
	VerifyStatusSuccess         VerifyStatus = "success"
	VerifyStatusAlreadyVerified VerifyStatus = "already_verified"
	VerifyStatusSent            VerifyStatus = "sent"
)

// VerifyResponse is returned by the verify and resend endpoints.
type VerifyResponse struct {
	Status  VerifyStatus `json:"status"`
	Message string       `json:"message"`
	Email   string       `json:"email,omitempty"`
}

// Project is a shared workspace grouping threads and members.
type Project struct {
	ID          ProjectID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	OwnerID     int64     `json:"owner_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Thread is a single conversation, optionally scoped to a project.
type Thread struct {
	ID            ThreadID   `json:"id"`
	Title         string     `json:"title"`
	ProjectID     *ProjectID `json:"project_id"`
	ActiveModel   ModelID    `json:"active_model,omitempty"`
	SessionID     string     `json:"session_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
}

// InProject reports whether the thread belongs to the given project.
func (t Thread) InProject(id ProjectID) bool {
	return t.ProjectID != nil && *t.ProjectID == id
}

// MessageRecord is a stored message as returned by the history endpoint.
type MessageRecord struct {
	ID        int64       `json:"id"`
	ThreadID  ThreadID    `json:"thread_id"`
	Sender    string      `json:"sender"`
	Type      MessageType `json:"type"`
	Content   *string     `json:"content"`
	Filename  *string     `json:"filename"`
	ModelUsed *string     `json:"model_used,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// Message is the uniform display shape of a conversation entry.
type Message struct {
	ID       string
	Role     Role
	Type     MessageType
	Content  string
	Filename string
	// Failed marks an inline error appended in place of a reply.
	Failed bool
}

// MessageFromRecord maps a history record into the display shape.
func MessageFromRecord(rec MessageRecord) Message {
	role := RoleUser
	if rec.Sender == string(RoleAssistant) {
		role = RoleAssistant
	}
	msg := Message{Role: role, Type: MessageText}
	if rec.Type == MessageFile {
		msg.Type = MessageFile
		if rec.Filename != nil {
			msg.Filename = *rec.Filename
		}
		return msg
	}
	if rec.Content != nil {
		msg.Content = *rec.Content
	}
	return msg
}

// Settings are the persisted chat UI preferences.
type Settings struct {
	Model        ModelID `json:"model"`
	Temperature  float64 `json:"temperature"`
	SystemPrompt string  `json:"system_prompt,omitempty"`
}

// FileUpload is an optional attachment sent with a chat message.
type FileUpload struct {
	Name string
	Data []byte
}

// ChatRequest is the multipart chat relay submission.
type ChatRequest struct {
	ThreadID     ThreadID
	Message      string
	Model        ModelID
	Temperature  float64
	SystemPrompt string
	File         *FileUpload
}

// ChatReply is the backend response to a chat relay.
type ChatReply struct {
	Reply       string   `json:"reply"`
	ThreadID    ThreadID `json:"thread_id,omitempty"`
	ModelUsed   ModelID  `json:"model_used,omitempty"`
	UsedContext []string `json:"used_context,omitempty"`
}

// InviteStatus is the outcome of adding a project member.
type InviteStatus string

const (
	InviteAdded         InviteStatus = "added"
	InviteAlreadyMember InviteStatus = "already_member"
)
