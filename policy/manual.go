package policy

import (
	"context"

	"github.com/milk9111/tankrl/env"
)

// AxisSource reports a continuous steering value and whether the operator
// is touching the controls at all.
type AxisSource interface {
	Axis() (value float64, engaged bool)
}

type FireSource interface {
	Firing() bool
}

type AxisFunc func() (float64, bool)

func (f AxisFunc) Axis() (float64, bool) { return f() }

type FireFunc func() bool

func (f FireFunc) Firing() bool { return f() }

// Manual lets an operator take over steering and firing. While the axis is
// not engaged the wrapped policy, if any, keeps control of movement.
type Manual struct {
	Axis   AxisSource
	Fire   FireSource
	Policy Policy
}

func (m *Manual) Act(ctx context.Context, obs []float64) (env.Action, error) {
	var a env.Action
	if m.Policy != nil {
		var err error
		a, err = m.Policy.Act(ctx, obs)
		if err != nil {
			return env.Action{}, err
		}
	}
	if m.Axis != nil {
		if v, ok := m.Axis.Axis(); ok {
			a.Move = v
		}
	}
	if m.Fire != nil && m.Fire.Firing() {
		a.Fire = true
	}
	return a, nil
}

// Feedback forwards to the wrapped policy.
func (m *Manual) Feedback(reward float64, done bool, score int) {
	if fr, ok := m.Policy.(FeedbackReceiver); ok {
		fr.Feedback(reward, done, score)
	}
}
