package env

import (
	"log"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/milk9111/tankrl/common"
)

type State int

const (
	Running State = iota + 1
	Terminated
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Terminated:
		return "terminated"
	default:
		return "idle"
	}
}

type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeSuccess
	OutcomeFailure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	default:
		return "none"
	}
}

// Reason says which rule ended an episode.
type Reason string

const (
	ReasonOutOfBounds      Reason = "out_of_bounds"
	ReasonTargetReached    Reason = "target_reached"
	ReasonHostileCollision Reason = "hostile_collision"
	ReasonCancelled        Reason = "cancelled"
)

// Agent is the controlled tank.
type Agent struct {
	Position     common.Vec3
	EpisodeStart time.Duration
	Score        int
}

// Stats are the cross-episode training counters.
type Stats struct {
	TotalEpisodes      int     `json:"total_episodes"`
	SuccessfulEpisodes int     `json:"successful_episodes"`
	RunningTotalTime   float64 `json:"running_total_time"`
}

// SuccessRate is SuccessfulEpisodes/TotalEpisodes, NaN before any episode.
func (s Stats) SuccessRate() float64 {
	if s.TotalEpisodes == 0 {
		return math.NaN()
	}
	return float64(s.SuccessfulEpisodes) / float64(s.TotalEpisodes)
}

// AverageTimeToTarget is in seconds, NaN before any success.
func (s Stats) AverageTimeToTarget() float64 {
	if s.SuccessfulEpisodes == 0 {
		return math.NaN()
	}
	return s.RunningTotalTime / float64(s.SuccessfulEpisodes)
}

// EpisodeRecord summarises a finished episode.
type EpisodeRecord struct {
	ID          string
	Number      int
	Start       time.Duration
	End         time.Duration
	Success     bool
	Reason      Reason
	FinalScore  int
	TotalReward float64
	Ticks       int
}

// Duration is the simulated length of the episode.
func (r EpisodeRecord) Duration() time.Duration {
	return r.End - r.Start
}

// Controller owns the agent, the score and the training statistics. Every
// mutation of those goes through its methods.
type Controller struct {
	cfg     Config
	clock   Clock
	rewards RewardSink
	logger  *log.Logger

	agent   Agent
	state   State
	outcome Outcome
	reason  Reason

	episodeID     string
	ticks         int
	episodeReward float64

	stats     Stats
	observers []EpisodeObserver
	last      *EpisodeRecord
}

func NewController(cfg Config, clock Clock, rewards RewardSink, logger *log.Logger) *Controller {
	if logger == nil {
		logger = log.Default()
	}
	return &Controller{
		cfg:     cfg,
		clock:   clock,
		rewards: rewards,
		logger:  logger,
	}
}

// Observe registers an observer for finished episodes.
func (c *Controller) Observe(o EpisodeObserver) {
	if o == nil {
		return
	}
	c.observers = append(c.observers, o)
}

// Begin starts a new episode.
func (c *Controller) Begin() {
	c.agent = Agent{
		Position:     c.cfg.Spawn,
		EpisodeStart: c.clock.Now(),
		Score:        0,
	}
	c.state = Running
	c.outcome = OutcomeNone
	c.reason = ""
	c.episodeID = uuid.NewString()
	c.ticks = 0
	c.episodeReward = 0
	c.stats.TotalEpisodes++

	c.logger.Printf("env: episode %d begin: successful=%d rate=%.3f",
		c.stats.TotalEpisodes, c.stats.SuccessfulEpisodes, c.stats.SuccessRate())
}

// Terminate ends the running episode. Later calls in the same episode are
// ignored, so the first terminal rule wins.
func (c *Controller) Terminate(outcome Outcome, reason Reason) bool {
	if c.state != Running {
		return false
	}
	now := c.clock.Now()
	c.state = Terminated
	c.outcome = outcome
	c.reason = reason

	if outcome == OutcomeSuccess {
		taken := (now - c.agent.EpisodeStart).Seconds()
		c.stats.SuccessfulEpisodes++
		c.stats.RunningTotalTime += taken
		c.logger.Printf("env: target score reached in %.2fs, average %.2fs", taken, c.stats.AverageTimeToTarget())
	}

	rec := EpisodeRecord{
		ID:          c.episodeID,
		Number:      c.stats.TotalEpisodes,
		Start:       c.agent.EpisodeStart,
		End:         now,
		Success:     outcome == OutcomeSuccess,
		Reason:      reason,
		FinalScore:  c.agent.Score,
		TotalReward: c.episodeReward,
		Ticks:       c.ticks,
	}
	c.last = &rec
	for _, o := range c.observers {
		o.EpisodeEnded(rec)
	}
	return true
}

// AddReward forwards delta to the reward sink.
func (c *Controller) AddReward(delta float64) {
	c.episodeReward += delta
	if c.rewards != nil {
		c.rewards.AddReward(delta)
	}
}

// AddScore changes the score and returns the new value.
func (c *Controller) AddScore(delta int) int {
	c.agent.Score += delta
	return c.agent.Score
}

// MoveAgent translates the agent and returns the new position.
func (c *Controller) MoveAgent(delta common.Vec3) common.Vec3 {
	c.agent.Position = c.agent.Position.Add(delta)
	return c.agent.Position
}

func (c *Controller) countTick() {
	if c.state == Running {
		c.ticks++
	}
}

func (c *Controller) Agent() Agent { return c.agent }
func (c *Controller) Score() int { return c.agent.Score }
func (c *Controller) State() State { return c.state }
func (c *Controller) Outcome() Outcome { return c.outcome }
func (c *Controller) Reason() Reason { return c.reason }
func (c *Controller) Stats() Stats { return c.stats }
func (c *Controller) EpisodeID() string { return c.episodeID }
func (c *Controller) Running() bool { return c.state == Running }
func (c *Controller) EpisodeReward() float64 { return c.episodeReward }

// LastRecord returns the most recently finished episode.
func (c *Controller) LastRecord() (EpisodeRecord, bool) {
	if c.last == nil {
		return EpisodeRecord{}, false
	}
	return *c.last, true
}
