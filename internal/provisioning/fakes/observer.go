package fakes

import (
	"sync"

	"github.com/imamik/nodeforge/internal/provisioning"
)

// RecordingObserver keeps every event it receives.
type RecordingObserver struct {
	mu     *sync.Mutex
	events *[]provisioning.Event
	fields map[string]string
}

// NewRecordingObserver returns an empty recorder.
func NewRecordingObserver() *RecordingObserver {
	return &RecordingObserver{mu: &sync.Mutex{}, events: &[]provisioning.Event{}}
}

// Event implements provisioning.Observer.
func (o *RecordingObserver) Event(event provisioning.Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.fields) > 0 {
		merged := make(map[string]string, len(o.fields)+len(event.Fields))
		for k, v := range o.fields {
			merged[k] = v
		}
		for k, v := range event.Fields {
			merged[k] = v
		}
		event.Fields = merged
	}
	*o.events = append(*o.events, event)
}

// Progress implements provisioning.Observer.
func (o *RecordingObserver) Progress(phase string, current, total int) {
	o.Event(provisioning.Event{Type: provisioning.EventProgress, Phase: phase})
}

// WithFields implements provisioning.Observer. The child shares the
// parent's event log.
func (o *RecordingObserver) WithFields(fields map[string]string) provisioning.Observer {
	merged := make(map[string]string, len(o.fields)+len(fields))
	for k, v := range o.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &RecordingObserver{mu: o.mu, events: o.events, fields: merged}
}

// Events returns a copy of the recorded events.
func (o *RecordingObserver) Events() []provisioning.Event {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]provisioning.Event(nil), (*o.events)...)
}

// Types returns the event types recorded for resource id, in order.
func (o *RecordingObserver) Types(id string) []provisioning.EventType {
	var out []provisioning.EventType
	for _, e := range o.Events() {
		if e.Resource == id {
			out = append(out, e.Type)
		}
	}
	return out
}
