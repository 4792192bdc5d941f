package component

// Transform is a world position. The arena lives on the x/z plane.
type Transform struct {
	X float64
	Y float64
	Z float64
}

var TransformComponent = NewComponent[Transform]()
