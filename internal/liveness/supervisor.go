// ABOUTME: Liveness supervisor that clears sources when the host goes quiet
// ABOUTME: Runs a ticker comparing the last heartbeat against a silence limit
package liveness

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/Resonate-Protocol/resonate-spatial/internal/metrics"
	"github.com/charmbracelet/log"
)

const (
	DefaultTick    = time.Second
	DefaultSilence = 3 * time.Second
)

// Config configures a Supervisor
type Config struct {
	// Tick is how often the heartbeat is checked
	Tick time.Duration

	// Silence is how long without a heartbeat before Clear is called
	Silence time.Duration

	// Clear is called on every tick that finds the host silent and
	// returns how many sources it removed
	Clear func() int

	Now     func() time.Time
	Logger  *log.Logger
	Metrics *metrics.Metrics
}

// Supervisor watches host heartbeats
type Supervisor struct {
	config Config
	logger *log.Logger

	// last heartbeat in unix nanoseconds
	last atomic.Int64

	startOnce sync.Once
	armed     atomic.Bool

	// mu orders the goroutine launch in Start against Close
	mu     sync.Mutex
	closed bool

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a supervisor. Nothing runs until Start.
func New(config Config) *Supervisor {
	if config.Tick <= 0 {
		config.Tick = DefaultTick
	}
	if config.Silence <= 0 {
		config.Silence = DefaultSilence
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if config.Clear == nil {
		config.Clear = func() int { return 0 }
	}
	if config.Logger == nil {
		config.Logger = log.Default()
	}

	return &Supervisor{
		config:   config,
		logger:   config.Logger.WithPrefix("liveness"),
		stopChan: make(chan struct{}),
	}
}

// Start records a heartbeat and arms the ticker. Later calls only record
// the heartbeat.
func (s *Supervisor) Start() {
	s.touch()
	s.startOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed {
			return
		}
		s.armed.Store(true)
		s.wg.Add(1)
		go s.run()
		s.logger.Info("Liveness armed", "tick", s.config.Tick, "silence", s.config.Silence)
	})
}

// Heartbeat records that the host is alive. It is valid before Start.
func (s *Supervisor) Heartbeat() {
	s.touch()
	s.config.Metrics.Heartbeat()
}

func (s *Supervisor) touch() {
	s.last.Store(s.config.Now().UnixNano())
}

// Armed reports whether the ticker is running
func (s *Supervisor) Armed() bool {
	return s.armed.Load()
}

// LastHeartbeat returns the time of the last Start or Heartbeat
func (s *Supervisor) LastHeartbeat() time.Time {
	ns := s.last.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

func (s *Supervisor) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.check()
		}
	}
}

// check clears the registry if the host has been silent too long. It
// fires on every silent tick, not just the first.
func (s *Supervisor) check() bool {
	elapsed := s.config.Now().Sub(s.LastHeartbeat())
	if elapsed <= s.config.Silence {
		return false
	}

	n := s.config.Clear()
	s.config.Metrics.LivenessExpired()
	if n > 0 {
		s.logger.Warn("Host silent, cleared sources", "elapsed", elapsed.Round(time.Millisecond), "cleared", n)
	}
	return true
}

// Close stops the ticker and waits for it to exit
func (s *Supervisor) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
	s.wg.Wait()
	s.armed.Store(false)
}
