// Package agent contains the orchestrator composing a controller adapter with
// the cloud client: the startup sequence, the command-poll and sync loops,
// and command dispatch with acknowledgment semantics.
package agent

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/RocoByte/vorio-agent/internal/adapter"
	"github.com/RocoByte/vorio-agent/internal/cloud"
	"github.com/RocoByte/vorio-agent/internal/model"
)

// State of the service lifecycle: stopped -> starting -> running -> stopping
// -> stopped, with an error path from starting straight back to stopped.
type State string

const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
)

const (
	DefaultSyncInterval        = 120 * time.Second
	DefaultCommandPollInterval = 10 * time.Second
)

// Options configures a Service. Adapter, Cloud and Logger are required.
type Options struct {
	Adapter adapter.Adapter
	Cloud   *cloud.Client
	Logger  *logrus.Logger

	ControllerURL string
	Version       string

	SyncInterval        time.Duration
	CommandPollInterval time.Duration
}

// Service is the sync orchestrator. It exclusively owns the loop timers and
// the AgentStatus record; the adapter and cloud client own their own state.
type Service struct {
	adapter adapter.Adapter
	cloud   *cloud.Client
	log     *logrus.Logger

	controllerURL string
	version       string
	syncInterval  time.Duration
	pollInterval  time.Duration

	mu        sync.Mutex
	state     State
	status    model.AgentStatus
	cancel    context.CancelFunc
	startedAt time.Time
}

// New wires an orchestrator from its collaborators.
func New(opts Options) *Service {
	if opts.SyncInterval <= 0 {
		opts.SyncInterval = DefaultSyncInterval
	}
	if opts.CommandPollInterval <= 0 {
		opts.CommandPollInterval = DefaultCommandPollInterval
	}

	return &Service{
		adapter:       opts.Adapter,
		cloud:         opts.Cloud,
		log:           opts.Logger,
		controllerURL: opts.ControllerURL,
		version:       opts.Version,
		syncInterval:  opts.SyncInterval,
		pollInterval:  opts.CommandPollInterval,
		state:         StateStopped,
	}
}

// State returns the current lifecycle state.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Status returns a copy of the current agent status.
func (s *Service) Status() model.AgentStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Start runs the startup sequence and, on success, launches the command-poll
// and sync loops. Any failure aborts startup, records the error in status and
// is returned to the caller; no partial-running state is exposed.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateStopped {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("cannot start: service is %s", state)
	}
	s.state = StateStarting
	s.startedAt = time.Now()
	s.mu.Unlock()

	if err := s.startup(ctx); err != nil {
		s.mu.Lock()
		s.status.Connected = false
		s.status.LastError = err.Error()
		s.state = StateStopped
		s.mu.Unlock()
		return err
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.cancel = cancel
	s.state = StateRunning
	s.mu.Unlock()

	go s.commandLoop(loopCtx)
	go s.syncLoop(loopCtx)

	s.log.Infof("agent running: command poll every %s, full sync every %s", s.pollInterval, s.syncInterval)
	return nil
}

func (s *Service) startup(ctx context.Context) error {
	if err := s.adapter.Login(ctx); err != nil {
		return fmt.Errorf("controller login failed: %w", err)
	}

	info := s.adapter.GetControllerInfo(ctx)
	caps := s.adapter.Capabilities()

	var wlans []model.AvailableWLAN
	if caps.CanListWLANs {
		wlans = s.adapter.GetAvailableWLANs(ctx)
	}

	hostname, _ := os.Hostname()
	_, err := s.cloud.Connect(ctx, cloud.ConnectRequest{
		AgentVersion:      s.version,
		Hostname:          hostname,
		OS:                runtime.GOOS,
		Arch:              runtime.GOARCH,
		ControllerURL:     s.controllerURL,
		ControllerType:    s.adapter.Type(),
		ControllerVersion: info.Version,
		// The adapter may have resolved a different site during Login than
		// what was configured; report the one actually in use.
		Site:         s.adapter.Site(),
		Capabilities: caps,
		WLANs:        wlans,
	})
	if err != nil {
		return fmt.Errorf("cloud connect failed: %w", err)
	}

	// One synchronous full sync establishes a known-good baseline before any
	// loop starts.
	if err := s.performSync(ctx); err != nil {
		return fmt.Errorf("initial sync failed: %w", err)
	}

	return nil
}

// Stop cancels both loops, notifies the cloud and logs out of the controller,
// all best-effort. Idempotent, and safe to call from within a command
// dispatch: it never waits on the loop goroutines.
func (s *Service) Stop() {
	s.mu.Lock()
	if s.state == StateStopped || s.state == StateStopping {
		s.mu.Unlock()
		return
	}
	s.state = StateStopping
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	ctx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	s.cloud.Disconnect(ctx)
	s.adapter.Logout(ctx)

	s.mu.Lock()
	s.status.Connected = false
	s.state = StateStopped
	s.mu.Unlock()

	s.log.Infof("agent stopped")
}

func (s *Service) running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateRunning
}

func (s *Service) uptime() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(time.Since(s.startedAt).Seconds())
}
