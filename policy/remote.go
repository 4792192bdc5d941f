package policy

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/milk9111/tankrl/env"
)

var ErrNoClient = errors.New("policy: no remote client connected")

// StepMessage is sent to the remote learner every tick. Reward, Done and
// Score describe the outcome of the previous action.
type StepMessage struct {
	Tick        int       `json:"tick"`
	Observation []float64 `json:"observation"`
	Reward      float64   `json:"reward"`
	Done        bool      `json:"done"`
	Score       int       `json:"score"`
}

// Remote serves a single websocket client that plays the policy. A new
// connection replaces the previous one.
type Remote struct {
	upgrader websocket.Upgrader
	timeout  time.Duration
	logger   *log.Logger

	// actMu serialises exchanges; mu guards the fields below and is never
	// held across network I/O.
	actMu     sync.Mutex
	mu        sync.Mutex
	conn      *websocket.Conn
	connected chan struct{}
	tick      int
	feedback  StepMessage
}

func NewRemote(timeout time.Duration, logger *log.Logger) *Remote {
	if logger == nil {
		logger = log.Default()
	}
	return &Remote{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		timeout:   timeout,
		logger:    logger,
		connected: make(chan struct{}),
	}
}

func (r *Remote) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Printf("remote: upgrade failed: %v", err)
		return
	}

	r.mu.Lock()
	if r.conn != nil {
		_ = r.conn.Close()
		r.logger.Printf("remote: replacing client %s", r.conn.RemoteAddr())
	}
	r.conn = conn
	select {
	case <-r.connected:
	default:
		close(r.connected)
	}
	r.mu.Unlock()

	r.logger.Printf("remote: client %s connected", conn.RemoteAddr())
}

// WaitForClient blocks until a client has connected once.
func (r *Remote) WaitForClient(ctx context.Context) error {
	select {
	case <-r.connected:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Feedback records the outcome to report with the next observation.
func (r *Remote) Feedback(reward float64, done bool, score int) {
	r.mu.Lock()
	r.feedback.Reward = reward
	r.feedback.Done = done
	r.feedback.Score = score
	r.mu.Unlock()
}

// Act sends the observation and waits for {"move", "fire"}. The wait ends
// at the context deadline, the configured timeout, cancellation or the
// client being replaced.
func (r *Remote) Act(ctx context.Context, obs []float64) (env.Action, error) {
	r.actMu.Lock()
	defer r.actMu.Unlock()

	r.mu.Lock()
	conn := r.conn
	if conn == nil {
		r.mu.Unlock()
		return env.Action{}, ErrNoClient
	}
	r.tick++
	msg := r.feedback
	msg.Tick = r.tick
	r.mu.Unlock()
	msg.Observation = obs

	deadline := time.Time{}
	if r.timeout > 0 {
		deadline = time.Now().Add(r.timeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	_ = conn.SetWriteDeadline(deadline)
	_ = conn.SetReadDeadline(deadline)

	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Unix(1, 0))
	})
	defer stop()

	if err := conn.WriteJSON(msg); err != nil {
		r.drop(conn)
		return env.Action{}, fmt.Errorf("policy: remote write: %w", err)
	}

	var a env.Action
	if err := conn.ReadJSON(&a); err != nil {
		r.drop(conn)
		if ctx.Err() != nil {
			return env.Action{}, ctx.Err()
		}
		return env.Action{}, fmt.Errorf("policy: remote read: %w", err)
	}
	return a, nil
}

// drop closes a broken connection and forgets it unless it was already
// replaced.
func (r *Remote) drop(conn *websocket.Conn) {
	_ = conn.Close()
	r.mu.Lock()
	current := r.conn == conn
	if current {
		r.conn = nil
	}
	r.mu.Unlock()
	if current {
		r.logger.Printf("remote: client %s dropped", conn.RemoteAddr())
	}
}

func (r *Remote) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn == nil {
		return nil
	}
	err := r.conn.Close()
	r.conn = nil
	return err
}
