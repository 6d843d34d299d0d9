package surface

// GateState is the input-method composition state of the surface.
type GateState int

const (
	Idle GateState = iota
	Composing
)

func (s GateState) String() string {
	if s == Composing {
		return "composing"
	}
	return "idle"
}

// Gate suspends observer passes while an input method composes characters.
type Gate struct {
	state GateState
}

// Begin enters the composing state.
func (g *Gate) Begin() {
	g.state = Composing
}

// End leaves the composing state. It reports whether a composition was open.
func (g *Gate) End() bool {
	was := g.state == Composing
	g.state = Idle
	return was
}

// State returns the current gate state.
func (g *Gate) State() GateState {
	return g.state
}

// Open reports whether passes may run.
func (g *Gate) Open() bool {
	return g.state == Idle
}
