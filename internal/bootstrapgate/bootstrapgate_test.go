package bootstrapgate

import "testing"

func TestGateOpensOnlyAfterBothDistinctEvents(t *testing.T) {
	g := New()
	if g.Open() {
		t.Fatal("gate should not be open initially")
	}
	g.ValidatorSucceeded()
	if g.Open() {
		t.Fatal("gate should not be open after only validator success")
	}
	g.AgentConnected()
	if !g.Open() {
		t.Fatal("gate should be open after both events")
	}
}

func TestGateOpensRegardlessOfOrder(t *testing.T) {
	g := New()
	g.AgentConnected()
	g.ValidatorSucceeded()
	if !g.Open() {
		t.Fatal("gate should be open regardless of event order")
	}
}

func TestDuplicateAgentConnectDoesNotOpenGateEarly(t *testing.T) {
	g := New()
	g.AgentConnected()
	g.AgentConnected()
	g.AgentConnected()
	if g.Open() {
		t.Fatal("three agent-connect events alone must not open the gate")
	}
	g.ValidatorSucceeded()
	if !g.Open() {
		t.Fatal("gate should open once validator success is also observed")
	}
}

func TestDuplicateValidatorSuccessDoesNotOpenGateEarly(t *testing.T) {
	g := New()
	g.ValidatorSucceeded()
	g.ValidatorSucceeded()
	if g.Open() {
		t.Fatal("two validator-success events alone must not open the gate")
	}
}

func TestStateString(t *testing.T) {
	cases := map[State]string{
		None:          "none",
		OnlyValidator: "only-validator",
		OnlyAgent:     "only-agent",
		Both:          "both",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", state, got, want)
		}
	}
}
