package policy

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"
	"github.com/milk9111/tankrl/env"
	"github.com/milk9111/tankrl/prefabs"
)

// ErrScriptOutput reports a script that left move or fire with the wrong type.
var ErrScriptOutput = errors.New("policy: bad script output")

// Script runs a tengo program once per tick. The program sees the globals
// obs, slot_width and max_move, and answers through move and fire.
type Script struct {
	name     string
	compiled *tengo.Compiled

	mu  sync.Mutex
	buf []tengo.Object
}

// LoadScript compiles a bundled or on-disk script from prefabs/scripts.
func LoadScript(name string, maxMove float64) (*Script, error) {
	src, err := prefabs.LoadScript(name)
	if err != nil {
		return nil, fmt.Errorf("policy: load script %s: %w", name, err)
	}
	return NewScript(name, src, maxMove)
}

func NewScript(name string, src []byte, maxMove float64) (*Script, error) {
	script := tengo.NewScript(src)
	_ = script.Add("obs", []interface{}{})
	_ = script.Add("slot_width", env.SlotWidth)
	_ = script.Add("max_move", maxMove)
	_ = script.Add("move", 0.0)
	_ = script.Add("fire", false)

	script.SetImports(stdlib.GetModuleMap(stdlib.AllModuleNames()...))

	compiled, err := script.Compile()
	if err != nil {
		return nil, fmt.Errorf("policy: compile %s: %w", name, err)
	}
	return &Script{name: name, compiled: compiled}, nil
}

func (s *Script) Act(ctx context.Context, obs []float64) (env.Action, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cap(s.buf) < len(obs) {
		s.buf = make([]tengo.Object, len(obs))
	}
	s.buf = s.buf[:len(obs)]
	for i, v := range obs {
		s.buf[i] = &tengo.Float{Value: v}
	}

	if err := s.compiled.Set("obs", &tengo.Array{Value: s.buf}); err != nil {
		return env.Action{}, fmt.Errorf("policy: %s: %w", s.name, err)
	}
	// Outputs start from rest every tick.
	if err := s.compiled.Set("move", 0.0); err != nil {
		return env.Action{}, fmt.Errorf("policy: %s: %w", s.name, err)
	}
	if err := s.compiled.Set("fire", false); err != nil {
		return env.Action{}, fmt.Errorf("policy: %s: %w", s.name, err)
	}
	if err := s.compiled.RunContext(ctx); err != nil {
		return env.Action{}, fmt.Errorf("policy: run %s: %w", s.name, err)
	}

	move := s.compiled.Get("move")
	switch move.ValueType() {
	case "float", "int":
	default:
		return env.Action{}, fmt.Errorf("%w: %s: move is %s", ErrScriptOutput, s.name, move.ValueType())
	}
	fire := s.compiled.Get("fire")
	if fire.ValueType() != "bool" {
		return env.Action{}, fmt.Errorf("%w: %s: fire is %s", ErrScriptOutput, s.name, fire.ValueType())
	}

	return env.Action{Move: move.Float(), Fire: fire.Bool()}, nil
}
