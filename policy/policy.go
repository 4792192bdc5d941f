// Package policy holds the decision makers that drive the tank: scripted
// heuristics, a manual override and a remote learner over a websocket.
package policy

import (
	"context"

	"github.com/milk9111/tankrl/env"
)

// Policy maps an observation to an action.
type Policy interface {
	Act(ctx context.Context, obs []float64) (env.Action, error)
}

// FeedbackReceiver is implemented by policies that learn from the outcome
// of their previous action.
type FeedbackReceiver interface {
	Feedback(reward float64, done bool, score int)
}

// Func adapts a function to Policy.
type Func func(ctx context.Context, obs []float64) (env.Action, error)

func (f Func) Act(ctx context.Context, obs []float64) (env.Action, error) {
	return f(ctx, obs)
}

// Constant always returns the same action.
func Constant(a env.Action) Policy {
	return Func(func(context.Context, []float64) (env.Action, error) {
		return a, nil
	})
}
