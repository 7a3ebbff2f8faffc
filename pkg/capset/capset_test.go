package capset

import "testing"

func TestMapContainsWellKnownCapability(t *testing.T) {
	cap, ok := Map["CAP_CHOWN"]
	if !ok {
		t.Fatal("expected CAP_CHOWN to be present in Map")
	}
	if cap.Name != "CAP_CHOWN" {
		t.Errorf("Name = %q, want CAP_CHOWN", cap.Name)
	}
}

func TestValidate(t *testing.T) {
	if err := Validate([]string{"CAP_CHOWN", "CAP_KILL"}); err != nil {
		t.Errorf("Validate with known capabilities returned error: %s", err)
	}
	if err := Validate([]string{"CAP_NOT_A_REAL_CAPABILITY"}); err == nil {
		t.Error("Validate with an unknown capability should return an error")
	}
}
