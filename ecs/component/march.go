package component

// March drives a tank toward the defended line (decreasing z).
type March struct {
	Speed float64
}

var MarchComponent = NewComponent[March]()
