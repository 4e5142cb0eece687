// Package sink implements the downstream archival sinks one dispatcher
// submits events to. A sink instance is a session: it is exclusively
// owned by one dispatcher for one reload epoch, then closed and rebuilt.
package sink

import (
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/malindarathnayake/AuditFlux/internal/config"
	"github.com/malindarathnayake/AuditFlux/internal/event"
	"github.com/malindarathnayake/AuditFlux/internal/observability"
)

// Sink accepts one event at a time. Submit must not retry internally; a
// returned error means the session is no longer usable and the caller
// tears it down.
type Sink interface {
	Submit(ev *event.Event, payload []byte) error
	Close() error
}

// New builds a sink session from the active configuration snapshot.
func New(cfg config.SinkConfig, logger *observability.Logger) (Sink, error) {
	switch strings.ToLower(cfg.Type) {
	case config.SinkSocket:
		return NewLocalStoreSink(cfg.Socket, logger)
	case config.SinkS3:
		return NewS3ArchiveSink(cfg.S3, logger)
	case config.SinkAMQP:
		return NewAMQPSink(cfg.AMQP, logger)
	default:
		return nil, fmt.Errorf("unknown sink type: %s", cfg.Type)
	}
}

// Endpoint returns the dialable (network, address) pair for the sink, or
// ok=false when the sink has no probeable endpoint.
func Endpoint(cfg config.SinkConfig) (network, address string, ok bool) {
	switch strings.ToLower(cfg.Type) {
	case config.SinkSocket:
		network, address = socketNetwork(cfg.Socket.Address)
		return network, address, true
	case config.SinkAMQP:
		addr, err := amqpHostPort(cfg.AMQP.URL)
		if err != nil {
			return "", "", false
		}
		return "tcp", addr, true
	default:
		return "", "", false
	}
}

type wireField struct {
	Key   string `json:"k"`
	Value string `json:"v"`
}

// wireRecord is the serialized archival record. Fields stay an ordered
// list, the archive format requires a non-empty payload.
type wireRecord struct {
	Logger    string      `json:"logger"`
	Category  string      `json:"category"`
	Timestamp int64       `json:"ts"`
	Fields    []wireField `json:"fields"`
	Raw       string      `json:"raw"`
	Payload   []byte      `json:"payload"`
}

func encodeRecord(ev *event.Event, payload []byte) ([]byte, error) {
	rec := wireRecord{
		Logger:    ev.Logger,
		Category:  ev.Category,
		Timestamp: time.Now().Unix(),
		Raw:       ev.Raw,
		Payload:   payload,
	}
	rec.Fields = make([]wireField, 0, len(ev.Fields))
	for _, f := range ev.Fields {
		rec.Fields = append(rec.Fields, wireField{Key: f.Key, Value: f.Value})
	}
	return json.Marshal(rec)
}
