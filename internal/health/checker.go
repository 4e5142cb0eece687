// Package health probes the archival sink endpoint for reachability. The
// probe is purely observational: it feeds the sink_up gauge and the audit
// trail, and never drives a reload by itself.
package health

import (
	"fmt"
	"net"
	"time"
)

type Dialer interface {
	DialTimeout(network, address string, timeout time.Duration) (net.Conn, error)
}

type NetDialer struct{}

func (NetDialer) DialTimeout(network, address string, timeout time.Duration) (net.Conn, error) {
	return net.DialTimeout(network, address, timeout)
}

type Checker interface {
	Check(network, address string, timeout time.Duration) error
}

// DialChecker verifies reachability by completing a connection and
// closing it immediately.
type DialChecker struct {
	Dialer Dialer
}

func (c *DialChecker) Check(network, address string, timeout time.Duration) error {
	if c == nil || c.Dialer == nil {
		return fmt.Errorf("missing dialer")
	}
	if network != "tcp" && network != "unix" {
		return fmt.Errorf("invalid network: %s", network)
	}
	if address == "" {
		return fmt.Errorf("missing address")
	}
	if timeout <= 0 {
		return fmt.Errorf("invalid timeout: %s", timeout)
	}

	conn, err := c.Dialer.DialTimeout(network, address, timeout)
	if err != nil {
		return err
	}
	_ = conn.Close()
	return nil
}
