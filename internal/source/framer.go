// Package source turns the raw audit byte stream into discrete framed
// records. Records are newline-delimited `key=value` lines; a partial
// line stays buffered until more bytes arrive or the caller ages it out.
package source

import (
	"bytes"
	"strings"

	"github.com/malindarathnayake/AuditFlux/internal/event"
)

// RecordFunc is invoked synchronously, once per completed record, in input
// order. No other framer method may be called from inside the callback.
type RecordFunc func(rec event.Record)

// Framer frames the input stream. It is confined to the ingestion
// goroutine and needs no locking.
type Framer struct {
	buf      bytes.Buffer
	onRecord RecordFunc
}

func NewFramer(onRecord RecordFunc) *Framer {
	return &Framer{onRecord: onRecord}
}

// Feed appends b to the frame buffer and emits every completed record it
// now holds. Trailing bytes without a newline stay buffered.
func (f *Framer) Feed(b []byte) {
	f.buf.Write(b)
	for {
		data := f.buf.Bytes()
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			return
		}
		line := string(data[:i])
		f.buf.Next(i + 1)
		f.emit(line)
	}
}

// HasPending reports whether buffered but unflushed record data exists.
// The ingestion loop uses this to switch to a short readiness deadline so
// stale partial records do not sit in the buffer indefinitely.
func (f *Framer) HasPending() bool {
	return f.buf.Len() > 0
}

// Age flushes any buffered partial record as a complete one. Called on
// the aging deadline and before shutdown.
func (f *Framer) Age() {
	if f.buf.Len() == 0 {
		return
	}
	line := f.buf.String()
	f.buf.Reset()
	f.emit(line)
}

func (f *Framer) emit(line string) {
	line = strings.TrimRight(line, "\r")
	if strings.TrimSpace(line) == "" {
		return
	}
	rec := parseRecord(line)
	if f.onRecord != nil {
		f.onRecord(rec)
	}
}

// parseRecord splits one audit line into ordered fields. Values may be
// wrapped in single or double quotes and may then contain spaces; quotes
// are stripped. Tokens without '=' are skipped, the line text itself is
// kept verbatim in Raw.
func parseRecord(line string) event.Record {
	rec := event.Record{Raw: line}

	rest := line
	for len(rest) > 0 {
		rest = strings.TrimLeft(rest, " \t")
		if rest == "" {
			break
		}

		eq := strings.IndexByte(rest, '=')
		sp := strings.IndexAny(rest, " \t")
		if eq < 0 || (sp >= 0 && sp < eq) {
			// Bare token, no value.
			if sp < 0 {
				break
			}
			rest = rest[sp+1:]
			continue
		}

		key := rest[:eq]
		rest = rest[eq+1:]

		var value string
		if len(rest) > 0 && (rest[0] == '\'' || rest[0] == '"') {
			quote := rest[0]
			end := strings.IndexByte(rest[1:], quote)
			if end < 0 {
				value = rest[1:]
				rest = ""
			} else {
				value = rest[1 : 1+end]
				rest = rest[end+2:]
			}
		} else {
			end := strings.IndexAny(rest, " \t")
			if end < 0 {
				value = rest
				rest = ""
			} else {
				value = rest[:end]
				rest = rest[end+1:]
			}
		}

		if rec.Type == "" && key == "type" {
			rec.Type = value
		}
		rec.Fields = append(rec.Fields, event.Field{Key: key, Value: value})
	}

	return rec
}
