package event

// LoggerName identifies the source of every event this daemon produces.
const LoggerName = "auditd"

// CategoryAudit is the fixed category tag; every forwarded event is an
// audit-class event.
const CategoryAudit = "audit"

// Field is one (key, value) pair extracted from an audit record. Field
// order is significant and preserved end to end.
type Field struct {
	Key   string
	Value string
}

// Record is one framed audit record as produced by the record source:
// the type tag, the ordered fields, and the verbatim line text.
type Record struct {
	Type   string
	Fields []Field
	Raw    string
}

// Event is the normalized, queue-ready representation of one record.
// Ownership transfers atomically at enqueue/dequeue; an event is never
// shared between goroutines.
type Event struct {
	Logger   string
	Category string
	Fields   []Field
	Raw      string
}
