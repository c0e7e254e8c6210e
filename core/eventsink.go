package core

import "pkt.systems/hipposync/schema"

// EventSink receives thread list changes from the chat service.
type EventSink interface {
	Publish(event schema.ThreadEvent)
}

// EventSource hands out per-user subscriptions to thread list changes.
type EventSource interface {
	Subscribe(userID schema.UserID) (<-chan schema.ThreadEvent, func())
}
