package schema

// ThreadEventType describes a change to the thread or project list.
type ThreadEventType string

const (
	ThreadCreated   ThreadEventType = "thread_created"
	ThreadRenamed   ThreadEventType = "thread_renamed"
	ThreadDeleted   ThreadEventType = "thread_deleted"
	ProjectsChanged ThreadEventType = "projects_changed"
)

// ThreadEvent notifies observers that the sidebar tree is stale.
type ThreadEvent struct {
	UserID   UserID
	Type     ThreadEventType
	ThreadID ThreadID
	Project  *ProjectID
}
