package component

import "github.com/jakecoffman/cp"

// PhysicsBody links an entity to its Chipmunk body and shape.
type PhysicsBody struct {
	Body   *cp.Body
	Shape  *cp.Shape
	Radius float64
}

var PhysicsBodyComponent = NewComponent[PhysicsBody]()
