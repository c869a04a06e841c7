// Package queue implements the waiting-room stage machine shown while a
// conversation is handed off to a live specialist.
//
// The machine progresses queued -> connecting -> assigned on scheduler-driven
// ticks. Teardown cancels every outstanding timer; no callback fires after
// teardown. All timing runs through sched.Scheduler so tests drive the
// machine with a virtual clock.
package queue

import (
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/smarterpayouts/mint/internal/sched"
)

// Stage is the hand-off progression state.
type Stage string

const (
	// StageQueued means the caller is waiting with a visible position.
	StageQueued Stage = "queued"
	// StageConnecting means position reached zero and an agent is being picked.
	StageConnecting Stage = "connecting"
	// StageAssigned is terminal: an agent took the conversation.
	StageAssigned Stage = "assigned"
	// StageTerminal means the machine was torn down before assignment.
	StageTerminal Stage = "terminal"
)

// Defaults applied by NewMachine when the corresponding Config field is zero.
const (
	DefaultInitialPosition  = 4
	DefaultInitialWait      = 210 * time.Second
	DefaultPositionInterval = 45 * time.Second
	DefaultConnectDelay     = 3 * time.Second
)

// DefaultRoster is the fallback specialist roster.
var DefaultRoster = []string{"Brianna", "Marcus", "Elena", "David"}

// State is a snapshot of the machine, safe to hand to display code.
type State struct {
	Stage Stage
	// Position is the place in line; monotonically non-increasing while
	// queued, zero from connecting onward.
	Position int
	// WaitSeconds is the advertised wait, decremented every second for
	// display only. It never drives a stage transition.
	WaitSeconds int
	// AssignedAgent is set only when Stage == StageAssigned.
	AssignedAgent string
}

// Config configures a hand-off machine.
type Config struct {
	InitialPosition  int
	InitialWait      time.Duration
	PositionInterval time.Duration
	ConnectDelay     time.Duration
	Roster           []string

	// OnUpdate receives a snapshot after every visible change. Optional.
	OnUpdate func(State)

	// OnAssigned fires exactly once when an agent is assigned, and never
	// after Teardown.
	OnAssigned func(agent string)
}

// Machine is the queue stage machine. Create with NewMachine, drive with
// Start, and always call Teardown when the hosting conversation ends.
type Machine struct {
	cfg       Config
	scheduler sched.Scheduler
	logger    *zap.Logger
	pick      func(n int) int

	// cbMu is held while a callback runs. Teardown acquires it after
	// setting done, so Teardown returns only once no callback is in flight
	// and no later one can pass the done check.
	cbMu sync.Mutex

	mu       sync.Mutex
	state    State
	timers   []sched.Timer
	started  bool
	done     bool
	notified bool
}

// NewMachine creates a machine with defaults applied for zero-valued config
// fields. A nil scheduler uses the wall clock; a nil logger is a no-op.
func NewMachine(cfg Config, scheduler sched.Scheduler, logger *zap.Logger) *Machine {
	if cfg.InitialPosition <= 0 {
		cfg.InitialPosition = DefaultInitialPosition
	}
	if cfg.InitialWait <= 0 {
		cfg.InitialWait = DefaultInitialWait
	}
	if cfg.PositionInterval <= 0 {
		cfg.PositionInterval = DefaultPositionInterval
	}
	if cfg.ConnectDelay <= 0 {
		cfg.ConnectDelay = DefaultConnectDelay
	}
	if len(cfg.Roster) == 0 {
		cfg.Roster = DefaultRoster
	}
	if scheduler == nil {
		scheduler = sched.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Machine{
		cfg:       cfg,
		scheduler: scheduler,
		logger:    logger,
		pick:      rand.Intn,
		state: State{
			Stage:       StageQueued,
			Position:    cfg.InitialPosition,
			WaitSeconds: int(cfg.InitialWait / time.Second),
		},
	}
}

// Start begins the countdown timers. Calling Start twice is a no-op.
func (m *Machine) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started || m.done {
		return
	}
	m.started = true

	m.logger.Debug("handoff queue started",
		zap.Int("position", m.state.Position),
		zap.Int("wait_seconds", m.state.WaitSeconds),
	)

	m.scheduleLocked(m.cfg.PositionInterval, m.positionTick)
	m.scheduleLocked(time.Second, m.waitTick)
}

// State returns a snapshot of the current machine state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Teardown cancels all pending timers. After Teardown no callback fires.
// Safe to call multiple times and after assignment.
func (m *Machine) Teardown() {
	m.mu.Lock()
	if m.done {
		m.mu.Unlock()
		return
	}
	m.done = true
	for _, t := range m.timers {
		t.Stop()
	}
	m.timers = nil
	if m.state.Stage != StageAssigned {
		m.state.Stage = StageTerminal
	}
	m.mu.Unlock()

	// Wait out any callback that started before done was set. Later timer
	// fires stop at the done check, so once this lock is acquired no
	// callback is running or can run.
	m.cbMu.Lock()
	m.cbMu.Unlock()

	m.logger.Debug("handoff queue torn down")
}

// scheduleLocked registers a timer while holding m.mu.
func (m *Machine) scheduleLocked(d time.Duration, f func()) {
	m.timers = append(m.timers, m.scheduler.AfterFunc(d, f))
}

// positionTick decrements the queue position, entering connecting at zero.
func (m *Machine) positionTick() {
	m.cbMu.Lock()
	defer m.cbMu.Unlock()

	m.mu.Lock()
	if m.done || m.state.Stage != StageQueued {
		m.mu.Unlock()
		return
	}

	m.state.Position--
	if m.state.Position <= 0 {
		m.state.Position = 0
		m.state.Stage = StageConnecting
		m.scheduleLocked(m.cfg.ConnectDelay, m.connect)
	} else {
		m.scheduleLocked(m.cfg.PositionInterval, m.positionTick)
	}
	snapshot := m.state
	update := m.cfg.OnUpdate
	m.mu.Unlock()

	if update != nil {
		update(snapshot)
	}
}

// waitTick decrements the display countdown once per second, floored at zero.
func (m *Machine) waitTick() {
	m.cbMu.Lock()
	defer m.cbMu.Unlock()

	m.mu.Lock()
	if m.done || m.state.Stage == StageAssigned {
		m.mu.Unlock()
		return
	}

	if m.state.WaitSeconds > 0 {
		m.state.WaitSeconds--
	}
	if m.state.WaitSeconds > 0 {
		m.scheduleLocked(time.Second, m.waitTick)
	}
	snapshot := m.state
	update := m.cfg.OnUpdate
	m.mu.Unlock()

	if update != nil {
		update(snapshot)
	}
}

// connect picks an agent from the roster and completes the machine.
func (m *Machine) connect() {
	m.cbMu.Lock()
	defer m.cbMu.Unlock()

	m.mu.Lock()
	if m.done || m.state.Stage != StageConnecting || m.notified {
		m.mu.Unlock()
		return
	}
	agent := m.cfg.Roster[m.pick(len(m.cfg.Roster))]
	m.state.Stage = StageAssigned
	m.state.AssignedAgent = agent
	m.notified = true
	snapshot := m.state
	update := m.cfg.OnUpdate
	assigned := m.cfg.OnAssigned
	m.mu.Unlock()

	m.logger.Info("handoff assigned", zap.String("agent", agent))

	if update != nil {
		update(snapshot)
	}
	if assigned != nil {
		assigned(agent)
	}
}
