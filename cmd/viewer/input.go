package main

import (
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

const stickDeadZone = 0.15

// Input polls keyboard and gamepad once per frame. It is the manual
// override source for the policy: A/D or arrows steer, space fires.
type Input struct {
	move    float64
	engaged bool
	fire    bool

	Quit       bool
	Pause      bool
	Reset      bool
	SpeedUp    bool
	SpeedDown  bool
	ToggleHelp bool
}

func NewInput() *Input {
	return &Input{}
}

func (i *Input) Update() {
	i.Quit = inpututil.IsKeyJustPressed(ebiten.KeyEscape) || inpututil.IsKeyJustPressed(ebiten.KeyF12)
	i.Pause = inpututil.IsKeyJustPressed(ebiten.KeyP)
	i.Reset = inpututil.IsKeyJustPressed(ebiten.KeyR)
	i.SpeedUp = inpututil.IsKeyJustPressed(ebiten.KeyEqual) || inpututil.IsKeyJustPressed(ebiten.KeyKPAdd)
	i.SpeedDown = inpututil.IsKeyJustPressed(ebiten.KeyMinus) || inpututil.IsKeyJustPressed(ebiten.KeyKPSubtract)
	i.ToggleHelp = inpututil.IsKeyJustPressed(ebiten.KeyH)

	var move float64
	engaged := false
	if ebiten.IsKeyPressed(ebiten.KeyA) || ebiten.IsKeyPressed(ebiten.KeyLeft) {
		move -= 1
		engaged = true
	}
	if ebiten.IsKeyPressed(ebiten.KeyD) || ebiten.IsKeyPressed(ebiten.KeyRight) {
		move += 1
		engaged = true
	}
	fire := ebiten.IsKeyPressed(ebiten.KeySpace)

	// Gamepad: left stick is a true continuous axis.
	if ids := ebiten.GamepadIDs(); len(ids) > 0 {
		gid := ids[0]
		x := ebiten.StandardGamepadAxisValue(gid, ebiten.StandardGamepadAxisLeftStickHorizontal)
		if x < -stickDeadZone || x > stickDeadZone {
			move = x
			engaged = true
		}
		fire = fire || ebiten.IsStandardGamepadButtonPressed(gid, ebiten.StandardGamepadButtonRightBottom)
	}

	i.move = move
	i.engaged = engaged
	i.fire = fire
}

// Axis implements policy.AxisSource.
func (i *Input) Axis() (float64, bool) {
	return i.move, i.engaged
}

// Firing implements policy.FireSource.
func (i *Input) Firing() bool {
	return i.fire
}
