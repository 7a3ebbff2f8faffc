package engine

import (
	"encoding/json"
	"testing"
)

func TestContainerConfigRoundTrip(t *testing.T) {
	in := ContainerConfig{
		RootFS:       "/var/lib/starter/rootfs",
		Process:      []string{"/bin/sh", "-c", "true"},
		Hostname:     "box",
		Capabilities: []string{"CAP_CHOWN"},
		JoinOnly:     true,
		Instance:     "demo",
		TargetUID:    1000,
		TargetGID:    []int{1000, 100},
	}

	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal failed: %s", err)
	}

	var out ContainerConfig
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal failed: %s", err)
	}

	if out.RootFS != in.RootFS {
		t.Errorf("RootFS = %q, want %q", out.RootFS, in.RootFS)
	}
	if out.Hostname != in.Hostname {
		t.Errorf("Hostname = %q, want %q", out.Hostname, in.Hostname)
	}
	if out.JoinOnly != in.JoinOnly {
		t.Errorf("JoinOnly = %v, want %v", out.JoinOnly, in.JoinOnly)
	}
	if out.Instance != in.Instance {
		t.Errorf("Instance = %q, want %q", out.Instance, in.Instance)
	}
	if out.TargetUID != in.TargetUID {
		t.Errorf("TargetUID = %d, want %d", out.TargetUID, in.TargetUID)
	}
	if len(out.TargetGID) != len(in.TargetGID) {
		t.Fatalf("TargetGID = %v, want %v", out.TargetGID, in.TargetGID)
	}
	for i := range in.TargetGID {
		if out.TargetGID[i] != in.TargetGID[i] {
			t.Errorf("TargetGID[%d] = %d, want %d", i, out.TargetGID[i], in.TargetGID[i])
		}
	}
}

func TestCommonEngineImplementsOperations(t *testing.T) {
	var _ Operations = &Common{}
}
