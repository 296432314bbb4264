package provisioning

import (
	"fmt"
	"sort"
	"time"

	"github.com/go-logr/logr"
)

// Observer receives structured events while a stack is reconciled.
type Observer interface {
	// Event emits a structured event
	Event(event Event)

	// Progress reports how many nodes of a pass have settled
	Progress(phase string, current, total int)

	// WithFields returns a new Observer with additional context fields
	WithFields(fields map[string]string) Observer
}

// Event represents a structured provisioning event.
type Event struct {
	Type      EventType         // Type of event
	Phase     string            // Phase name (e.g., "apply", "destroy")
	Message   string            // Human-readable message
	Resource  string            // Node ID if applicable
	Kind      string            // Node kind if applicable
	Err       error             // Set for failure events
	Timestamp time.Time         // When the event occurred
	Fields    map[string]string // Additional contextual fields
}

// EventType represents the type of provisioning event.
type EventType string

const (
	// EventPhaseStarted indicates a pass has started.
	EventPhaseStarted EventType = "phase.started"
	// EventPhaseCompleted indicates a pass completed without failures.
	EventPhaseCompleted EventType = "phase.completed"
	// EventPhaseFailed indicates a pass finished with failures.
	EventPhaseFailed EventType = "phase.failed"

	EventResourceCreating  EventType = "resource.creating"
	EventResourceCreated   EventType = "resource.created"
	EventResourceUpdated   EventType = "resource.updated"
	EventResourceUnchanged EventType = "resource.unchanged"
	EventResourceFailed    EventType = "resource.failed"
	EventResourceBlocked   EventType = "resource.blocked"
	EventResourceCancelled EventType = "resource.cancelled"
	EventResourceDeleting  EventType = "resource.deleting"
	EventResourceDeleted   EventType = "resource.deleted"

	// EventProgress indicates progress in a long-running operation.
	EventProgress EventType = "progress"
)

// LogrObserver implements Observer on top of a logr.Logger.
type LogrObserver struct {
	log    logr.Logger
	fields map[string]string
}

// NewLogrObserver creates an observer that writes to log.
func NewLogrObserver(log logr.Logger) *LogrObserver {
	return &LogrObserver{log: log, fields: make(map[string]string)}
}

// Event implements Observer.
func (o *LogrObserver) Event(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	kv := []any{"event", string(event.Type)}
	if event.Phase != "" {
		kv = append(kv, "phase", event.Phase)
	}
	if event.Resource != "" {
		kv = append(kv, "resource", event.Resource)
	}
	if event.Kind != "" {
		kv = append(kv, "kind", event.Kind)
	}
	kv = append(kv, o.mergedFields(event.Fields)...)

	switch event.Type {
	case EventResourceFailed, EventPhaseFailed:
		o.log.Error(event.Err, event.Message, kv...)
	case EventResourceUnchanged, EventProgress:
		o.log.V(1).Info(event.Message, kv...)
	default:
		o.log.Info(event.Message, kv...)
	}
}

// Progress implements Observer.
func (o *LogrObserver) Progress(phase string, current, total int) {
	o.Event(Event{
		Type:    EventProgress,
		Phase:   phase,
		Message: fmt.Sprintf("%d/%d nodes settled", current, total),
	})
}

// WithFields implements Observer.
func (o *LogrObserver) WithFields(fields map[string]string) Observer {
	merged := make(map[string]string, len(o.fields)+len(fields))
	for k, v := range o.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &LogrObserver{log: o.log, fields: merged}
}

// mergedFields returns context and event fields as sorted key/value pairs.
// Event fields win on conflict.
func (o *LogrObserver) mergedFields(eventFields map[string]string) []any {
	all := make(map[string]string, len(o.fields)+len(eventFields))
	for k, v := range o.fields {
		all[k] = v
	}
	for k, v := range eventFields {
		all[k] = v
	}
	keys := make([]string, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	kv := make([]any, 0, len(keys)*2)
	for _, k := range keys {
		kv = append(kv, k, all[k])
	}
	return kv
}

// Helper functions for common events

// LogResourceCreating logs that a node is about to be realized.
func LogResourceCreating(observer Observer, phase, kind, id string) {
	observer.Event(Event{
		Type:     EventResourceCreating,
		Phase:    phase,
		Resource: id,
		Kind:     kind,
		Message:  fmt.Sprintf("realizing %s", kind),
	})
}

// LogResourceRealized logs a successful create or update.
func LogResourceRealized(observer Observer, phase, kind, id string, created bool, duration time.Duration) {
	eventType, verb := EventResourceUpdated, "updated"
	if created {
		eventType, verb = EventResourceCreated, "created"
	}
	observer.Event(Event{
		Type:     eventType,
		Phase:    phase,
		Resource: id,
		Kind:     kind,
		Message:  fmt.Sprintf("%s %s in %v", kind, verb, duration.Round(time.Millisecond)),
	})
}

// LogResourceUnchanged logs a node skipped because its fingerprint matched.
func LogResourceUnchanged(observer Observer, phase, kind, id string) {
	observer.Event(Event{
		Type:     EventResourceUnchanged,
		Phase:    phase,
		Resource: id,
		Kind:     kind,
		Message:  fmt.Sprintf("%s unchanged", kind),
	})
}

// LogResourceFailed logs a failed node.
func LogResourceFailed(observer Observer, phase, kind, id string, err error) {
	observer.Event(Event{
		Type:     EventResourceFailed,
		Phase:    phase,
		Resource: id,
		Kind:     kind,
		Err:      err,
		Message:  fmt.Sprintf("%s failed", kind),
	})
}

// LogResourceBlocked logs a node skipped because cause failed.
func LogResourceBlocked(observer Observer, phase, kind, id, cause string) {
	observer.Event(Event{
		Type:     EventResourceBlocked,
		Phase:    phase,
		Resource: id,
		Kind:     kind,
		Message:  fmt.Sprintf("%s blocked", kind),
		Fields:   map[string]string{"cause": cause},
	})
}

// LogResourceDeleting logs a deletion start event.
func LogResourceDeleting(observer Observer, phase, kind, id string) {
	observer.Event(Event{
		Type:     EventResourceDeleting,
		Phase:    phase,
		Resource: id,
		Kind:     kind,
		Message:  fmt.Sprintf("deleting %s", kind),
	})
}

// LogResourceDeleted logs a successful deletion event.
func LogResourceDeleted(observer Observer, phase, kind, id string) {
	observer.Event(Event{
		Type:     EventResourceDeleted,
		Phase:    phase,
		Resource: id,
		Kind:     kind,
		Message:  fmt.Sprintf("%s deleted", kind),
	})
}

// LogResourceCancelled logs a node that was never dispatched because the
// pass was cancelled.
func LogResourceCancelled(observer Observer, phase, kind, id string) {
	observer.Event(Event{
		Type:     EventResourceCancelled,
		Phase:    phase,
		Resource: id,
		Kind:     kind,
		Message:  fmt.Sprintf("%s cancelled", kind),
	})
}
