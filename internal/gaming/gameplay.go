package gaming

import (
	"sync"
	"time"
)

// PlayState is the game-play state machine position as seen by the bonus
// subsystem. Only the states that gate bonus payment are modeled.
type PlayState int

const (
	StateIdle PlayState = iota
	StateInGamePlay
	StatePayGameResults
	StateGameEnded
	StatePresentationIdle
)

func (s PlayState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInGamePlay:
		return "in_game_play"
	case StatePayGameResults:
		return "pay_game_results"
	case StateGameEnded:
		return "game_ended"
	case StatePresentationIdle:
		return "presentation_idle"
	default:
		return "unknown"
	}
}

// GamePlay is the game-play state contract consumed by the bonus engine.
type GamePlay interface {
	// UncommittedState is the in-flight state, ahead of the durable one.
	UncommittedState() PlayState
	InGameRound() bool

	// GameRoundID is a monotonically increasing round counter.
	GameRoundID() int64
	RoundStartedAt() time.Time

	// RoundWager is the final wager of the current (or just-ended) round.
	RoundWager() int64
	RoundWin() int64

	// AddRoundWin folds a bonus payout into the round's recorded win total.
	AddRoundWin(amount int64)

	MaxBet() int64

	SetGameEndDelay(d time.Duration)
	SetGameEndHold(held bool)
}

// LocalGamePlay is the in-process game-play state for a single cabinet.
// The game runtime drives it through the setters; the bonus engine reads it.
type LocalGamePlay struct {
	mu           sync.Mutex
	state        PlayState
	inRound      bool
	roundID      int64
	roundStarted time.Time
	wager        int64
	win          int64
	maxBet       int64
	endDelay     time.Duration
	endHeld      bool
}

// NewLocalGamePlay creates an idle game-play state with the given max bet.
func NewLocalGamePlay(maxBet int64) *LocalGamePlay {
	return &LocalGamePlay{state: StateIdle, maxBet: maxBet}
}

func (g *LocalGamePlay) UncommittedState() PlayState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

func (g *LocalGamePlay) InGameRound() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inRound
}

func (g *LocalGamePlay) GameRoundID() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.roundID
}

func (g *LocalGamePlay) RoundStartedAt() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.roundStarted
}

func (g *LocalGamePlay) RoundWager() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.wager
}

func (g *LocalGamePlay) RoundWin() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.win
}

func (g *LocalGamePlay) AddRoundWin(amount int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.win += amount
}

func (g *LocalGamePlay) MaxBet() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.maxBet
}

func (g *LocalGamePlay) SetGameEndDelay(d time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.endDelay = d
}

func (g *LocalGamePlay) SetGameEndHold(held bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.endHeld = held
}

// GameEndDelay reports the currently applied game-end hold.
func (g *LocalGamePlay) GameEndDelay() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.endDelay
}

// StartRound transitions into a new game round with the given wager.
func (g *LocalGamePlay) StartRound(wager int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.roundID++
	g.roundStarted = time.Now()
	g.inRound = true
	g.wager = wager
	g.win = 0
	g.state = StateInGamePlay
}

// EndRound records the round's win and moves to the game-ended state.
func (g *LocalGamePlay) EndRound(win int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.win = win
	g.state = StateGameEnded
}

// SetIdle returns the state machine to idle between rounds.
func (g *LocalGamePlay) SetIdle() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.inRound = false
	g.state = StateIdle
}

// SetState forces a state; used by the runtime adapter for the presentation
// states the local model does not derive itself.
func (g *LocalGamePlay) SetState(s PlayState) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = s
}
