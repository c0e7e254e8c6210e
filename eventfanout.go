package hipposync

import (
	"pkt.systems/hipposync/core"
	"pkt.systems/hipposync/schema"
)

type eventFanout struct {
	sinks []core.EventSink
}

func (f eventFanout) Publish(event schema.ThreadEvent) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.Publish(event)
	}
}
