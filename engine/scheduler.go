package engine

import (
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

const (
	// DefaultMaxRate caps targeted drains per second during a run.
	DefaultMaxRate = 10
	// DefaultFallbackDelay is how long a run waits for its first
	// incremental update before falling back to a full pass.
	DefaultFallbackDelay = time.Second
)

// fallbackMsg fires once after a run starts. It is ignored if an
// incremental update arrived first or a newer run started.
type fallbackMsg struct {
	generation int
}

// drainMsg is one tick of the rate-limited drain loop. Ticks from a paused
// loop carry a stale generation and are dropped.
type drainMsg struct {
	generation int
}

type passes interface {
	fullPass()
	targetedPass(PendingSet)
}

// Scheduler coalesces task updates into drains issued at most once per
// interval while a run is in progress, and forces a single full pass when
// the run ends.
type Scheduler struct {
	running     bool
	incremental bool
	looping     bool
	pending     PendingSet

	fallbackGen int
	loopGen     int

	interval time.Duration
	fallback time.Duration
	passes   passes
	logger   *slog.Logger
}

func newScheduler(maxRate int, fallback time.Duration, p passes, logger *slog.Logger) *Scheduler {
	if maxRate <= 0 {
		maxRate = DefaultMaxRate
	}
	if fallback <= 0 {
		fallback = DefaultFallbackDelay
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scheduler{
		pending:  PendingSet{},
		interval: time.Second / time.Duration(maxRate),
		fallback: fallback,
		passes:   p,
		logger:   logger,
	}
}

// Running reports whether a run is in progress.
func (s *Scheduler) Running() bool {
	return s.running
}

// Pending returns the number of task ids waiting for the next drain.
func (s *Scheduler) Pending() int {
	return s.pending.Len()
}

// StartRun enters the running state and arms the fallback timer. Any
// fallback armed by an earlier run is cancelled.
func (s *Scheduler) StartRun() tea.Cmd {
	s.running = true
	s.incremental = false
	s.fallbackGen++
	gen := s.fallbackGen
	return tea.Tick(s.fallback, func(time.Time) tea.Msg {
		return fallbackMsg{generation: gen}
	})
}

// Enqueue merges changed task ids into the pending set and resumes the
// drain loop if it is paused.
func (s *Scheduler) Enqueue(fileID string, ids ...string) tea.Cmd {
	for _, id := range ids {
		s.pending.Add(fileID, id)
	}
	if s.running && !s.incremental {
		s.incremental = true
		s.fallbackGen++
	}
	if s.looping {
		return nil
	}
	s.looping = true
	return s.tick()
}

// EndRun pauses the drain loop, discards pending ids and runs one full
// pass before returning to idle.
func (s *Scheduler) EndRun() {
	s.pause()
	s.fallbackGen++
	s.pending = PendingSet{}
	s.passes.fullPass()
	s.running = false
	s.incremental = false
}

// Update handles the scheduler's own messages. It reports false for any
// other message.
func (s *Scheduler) Update(msg tea.Msg) (tea.Cmd, bool) {
	switch msg := msg.(type) {
	case fallbackMsg:
		if msg.generation == s.fallbackGen && s.running && !s.incremental {
			s.logger.Debug("no incremental updates, running fallback full pass")
			s.passes.fullPass()
		}
		return nil, true

	case drainMsg:
		if !s.looping || msg.generation != s.loopGen {
			return nil, true
		}
		if len(s.pending) > 0 {
			pending := s.pending
			s.pending = PendingSet{}
			s.passes.targetedPass(pending)
		}
		if s.running || len(s.pending) > 0 {
			return s.tick(), true
		}
		s.looping = false
		return nil, true
	}
	return nil, false
}

func (s *Scheduler) tick() tea.Cmd {
	gen := s.loopGen
	return tea.Tick(s.interval, func(time.Time) tea.Msg {
		return drainMsg{generation: gen}
	})
}

func (s *Scheduler) pause() {
	s.looping = false
	s.loopGen++
}

func (s *Scheduler) reset() {
	s.pause()
	s.fallbackGen++
	s.pending = PendingSet{}
	s.running = false
	s.incremental = false
}
