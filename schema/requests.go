package schema

// Chat shell.

// SelectThreadRequest selects a thread and reloads its history.
type SelectThreadRequest struct {
	Thread Thread
}

// SelectThreadResponse reports the freshly fetched history.
type SelectThreadResponse struct {
	Thread   Thread
	Messages []Message
}

// NewThreadRequest creates a thread and selects it.
type NewThreadRequest struct {
	Title     string
	ProjectID *ProjectID
}

// NewThreadResponse reports the created thread.
type NewThreadResponse struct {
	Thread Thread
}

// SendMessageRequest relays text and/or a file to the backend.
type SendMessageRequest struct {
	Text string
	File *FileUpload
}

// SendMessageResponse reports the thread used and the appended messages.
type SendMessageResponse struct {
	Thread        Thread
	ThreadCreated bool
	Appended      []Message
	Reply         *ChatReply
}

// RenameThreadRequest renames the selected thread.
type RenameThreadRequest struct {
	Title string
}

// RenameThreadResponse reports the renamed thread.
type RenameThreadResponse struct {
	Thread Thread
}

// DeleteThreadRequest deletes the selected thread.
type DeleteThreadRequest struct{}

// DeleteThreadResponse reports the deleted thread.
type DeleteThreadResponse struct {
	Thread Thread
}
