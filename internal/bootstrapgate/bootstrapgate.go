// Package bootstrapgate implements the fix for the defect spec.md §9
// calls out by design note: an agent_bootstrap_counter that reaches 2
// is meant to gate installation start on exactly two distinct events
// (validator-success, agent-connected) each firing at most once, but a
// plain integer counter cannot distinguish "the same event fired
// twice" from "both distinct events fired" — a duplicate
// agent_did_connect (e.g. a reconnect before installation begins)
// would reach 2 on its own and open the gate early. A 4-state latch
// with one transition per named event closes that hole: each event can
// only ever move the latch forward once.
package bootstrapgate

// State is the bootstrap gate's current state.
type State int

const (
	None State = iota
	OnlyValidator
	OnlyAgent
	Both
)

func (s State) String() string {
	switch s {
	case None:
		return "none"
	case OnlyValidator:
		return "only-validator"
	case OnlyAgent:
		return "only-agent"
	case Both:
		return "both"
	default:
		return "unknown"
	}
}

// Gate tracks the two independent events that must both have occurred
// before installation may begin.
type Gate struct {
	state State
}

// New returns a gate in its initial None state.
func New() *Gate {
	return &Gate{state: None}
}

// State returns the gate's current state.
func (g *Gate) State() State {
	return g.state
}

// ValidatorSucceeded records that validation completed successfully.
// Calling it more than once has no additional effect — the gate has
// already recorded this event.
func (g *Gate) ValidatorSucceeded() {
	switch g.state {
	case None:
		g.state = OnlyValidator
	case OnlyAgent:
		g.state = Both
	}
}

// AgentConnected records that the agent link reported its initial
// connection. Calling it more than once (e.g. on a reconnect) has no
// additional effect once the gate has already observed it.
func (g *Gate) AgentConnected() {
	switch g.state {
	case None:
		g.state = OnlyAgent
	case OnlyValidator:
		g.state = Both
	}
}

// Open reports whether both events have been observed and installation
// may begin.
func (g *Gate) Open() bool {
	return g.state == Both
}
