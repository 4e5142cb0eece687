package health

import (
	"fmt"
	"sync"
	"time"
)

type State string

const (
	StateUnknown     State = "UNKNOWN"
	StateReachable   State = "REACHABLE"
	StateUnreachable State = "UNREACHABLE"
)

type StateChange struct {
	Old State
	New State
}

type Observer interface {
	OnProbeStateChange(change StateChange)
}

// Target is the single sink endpoint a prober watches for one reload
// epoch.
type Target struct {
	Network      string
	Address      string
	Interval     time.Duration
	Timeout      time.Duration
	FailAfter    int
	RecoverAfter int
}

type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type realTicker struct {
	t *time.Ticker
}

func (rt realTicker) C() <-chan time.Time { return rt.t.C }
func (rt realTicker) Stop()               { rt.t.Stop() }

// Prober periodically checks one target, applying fail/recover hysteresis
// before reporting a state change to the observer.
type Prober struct {
	checker Checker
	obs     Observer
	target  Target

	mu                   sync.Mutex
	state                State
	consecutiveSuccesses int
	consecutiveFailures  int
	started              bool

	ticker    Ticker
	newTicker func(d time.Duration) Ticker
	stopCh    chan struct{}
	doneCh    chan struct{}
}

func NewProber(checker Checker, observer Observer, target Target) *Prober {
	return &Prober{
		checker:   checker,
		obs:       observer,
		target:    target,
		state:     StateUnknown,
		newTicker: func(d time.Duration) Ticker { return realTicker{t: time.NewTicker(d)} },
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// SetTickerFactory replaces the ticker source (useful for testing).
func (p *Prober) SetTickerFactory(factory func(d time.Duration) Ticker) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.newTicker = factory
}

func (p *Prober) Start() error {
	if p.checker == nil {
		return fmt.Errorf("missing checker")
	}
	if err := validateTarget(p.target); err != nil {
		return err
	}

	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return fmt.Errorf("prober already started")
	}
	p.started = true
	p.ticker = p.newTicker(p.target.Interval)
	p.mu.Unlock()

	go p.run()
	return nil
}

func (p *Prober) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	started := p.started
	p.started = false
	ticker := p.ticker
	p.mu.Unlock()

	if started {
		close(p.stopCh)
		if ticker != nil {
			ticker.Stop()
		}
		<-p.doneCh
	}
}

// State returns the current probe state.
func (p *Prober) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func validateTarget(t Target) error {
	if t.Network != "tcp" && t.Network != "unix" {
		return fmt.Errorf("invalid network: %s", t.Network)
	}
	if t.Address == "" {
		return fmt.Errorf("missing address")
	}
	if t.Interval <= 0 {
		return fmt.Errorf("invalid interval: %s", t.Interval)
	}
	if t.Timeout <= 0 {
		return fmt.Errorf("invalid timeout: %s", t.Timeout)
	}
	if t.FailAfter < 1 {
		return fmt.Errorf("invalid fail_after: %d", t.FailAfter)
	}
	if t.RecoverAfter < 1 {
		return fmt.Errorf("invalid recover_after: %d", t.RecoverAfter)
	}
	return nil
}

func (p *Prober) run() {
	defer close(p.doneCh)
	for {
		select {
		case <-p.stopCh:
			return
		case <-p.ticker.C():
			p.tick()
		}
	}
}

func (p *Prober) tick() {
	// Probe without holding the lock (I/O operation).
	err := p.checker.Check(p.target.Network, p.target.Address, p.target.Timeout)
	success := err == nil

	p.mu.Lock()
	oldState := p.state

	if success {
		p.consecutiveSuccesses++
		p.consecutiveFailures = 0
		switch p.state {
		case StateUnknown:
			p.state = StateReachable
		case StateUnreachable:
			if p.consecutiveSuccesses >= p.target.RecoverAfter {
				p.state = StateReachable
			}
		}
	} else {
		p.consecutiveFailures++
		p.consecutiveSuccesses = 0
		switch p.state {
		case StateUnknown:
			p.state = StateUnreachable
		case StateReachable:
			if p.consecutiveFailures >= p.target.FailAfter {
				p.state = StateUnreachable
			}
		}
	}

	changed := oldState != p.state
	newState := p.state
	p.mu.Unlock()

	// Notify after releasing the lock.
	if changed && p.obs != nil {
		p.obs.OnProbeStateChange(StateChange{Old: oldState, New: newState})
	}
}
