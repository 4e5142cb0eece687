package sink

import (
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/malindarathnayake/AuditFlux/internal/config"
	"github.com/malindarathnayake/AuditFlux/internal/event"
	"github.com/malindarathnayake/AuditFlux/internal/observability"
)

const writeTimeout = 10 * time.Second

// LocalStoreSink streams newline-delimited JSON archival records to the
// local-store endpoint over a unix or tcp socket, optionally with mutual
// TLS and gzip framing.
type LocalStoreSink struct {
	conn   net.Conn
	w      io.Writer
	gz     *gzip.Writer
	logger *observability.Logger
}

func NewLocalStoreSink(cfg config.SocketSink, logger *observability.Logger) (*LocalStoreSink, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("missing socket address")
	}

	if cfg.Schemas != "" {
		info, err := os.Stat(cfg.Schemas)
		if err != nil {
			return nil, fmt.Errorf("schema directory unavailable: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("schema path is not a directory: %s", cfg.Schemas)
		}
	}

	network, address := socketNetwork(cfg.Address)

	var conn net.Conn
	var err error
	if cfg.KeyPath != "" && cfg.CertPath != "" {
		cert, cerr := tls.LoadX509KeyPair(cfg.CertPath, cfg.KeyPath)
		if cerr != nil {
			return nil, fmt.Errorf("failed to load client key pair: %w", cerr)
		}
		conn, err = tls.Dial(network, address, &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		})
	} else {
		conn, err = net.DialTimeout(network, address, writeTimeout)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to local store: %w", err)
	}

	s := &LocalStoreSink{
		conn:   conn,
		w:      conn,
		logger: logger,
	}
	if cfg.Compress {
		s.gz = gzip.NewWriter(conn)
		s.w = s.gz
	}

	logger.Info("Local store session opened", map[string]interface{}{
		"network":  network,
		"address":  address,
		"tls":      cfg.KeyPath != "",
		"compress": cfg.Compress,
	})
	return s, nil
}

func (s *LocalStoreSink) Submit(ev *event.Event, payload []byte) error {
	frame, err := encodeRecord(ev, payload)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	frame = append(frame, '\n')

	if err := s.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	if _, err := s.w.Write(frame); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	if s.gz != nil {
		// Records must not sit in the compressor while the queue drains.
		if err := s.gz.Flush(); err != nil {
			return fmt.Errorf("failed to flush record: %w", err)
		}
	}
	return nil
}

func (s *LocalStoreSink) Close() error {
	if s.gz != nil {
		_ = s.gz.Close()
	}
	return s.conn.Close()
}

// socketNetwork classifies an endpoint as a unix socket path or a tcp
// host:port address.
func socketNetwork(address string) (network, addr string) {
	if strings.HasPrefix(address, "/") || !strings.Contains(address, ":") {
		return "unix", address
	}
	return "tcp", address
}
