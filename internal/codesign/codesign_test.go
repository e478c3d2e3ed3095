package codesign

import "testing"

func TestIdentitiesMatchExact(t *testing.T) {
	v := ConventionVerifier{}
	if !v.IdentitiesMatch("TEAMID.com.example.App", "TEAMID.com.example.App") {
		t.Error("expected identical identities to match")
	}
}

func TestIdentitiesMatchWildcardAnchor(t *testing.T) {
	v := ConventionVerifier{}
	if !v.IdentitiesMatch("TEAMID.*", "TEAMID.com.example.App") {
		t.Error("expected wildcard anchor to match a concrete identity under it")
	}
	if !v.IdentitiesMatch("TEAMID.com.example.App", "TEAMID.*") {
		t.Error("expected match regardless of operand order")
	}
}

func TestIdentitiesMatchRejectsDifferentIdentities(t *testing.T) {
	v := ConventionVerifier{}
	if v.IdentitiesMatch("TEAMID.com.example.App", "OTHERTEAM.com.example.App") {
		t.Error("expected different identities not to match")
	}
}

func TestIdentitiesMatchRejectsEmpty(t *testing.T) {
	v := ConventionVerifier{}
	if v.IdentitiesMatch("", "TEAMID.com.example.App") {
		t.Error("expected empty identity not to match")
	}
}

func TestIntrinsicallyValidRejectsEmptyPath(t *testing.T) {
	v := ConventionVerifier{}
	ok, err := v.IntrinsicallyValid("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected empty path to be invalid")
	}
}
