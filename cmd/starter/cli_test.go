package main

import (
	"os"
	"strings"
	"testing"
)

func TestChunkSplitsOnBoundary(t *testing.T) {
	got := chunk("abcdefghij", 3)
	want := []string{"abc", "def", "ghi", "j"}
	if len(got) != len(want) {
		t.Fatalf("chunk returned %d pieces, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("chunk[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestChunkEmptyStringYieldsOneChunk(t *testing.T) {
	got := chunk("", 128)
	if len(got) != 1 || got[0] != "" {
		t.Fatalf("chunk(\"\") = %v, want a single empty chunk", got)
	}
}

func TestChunkExactMultipleOfSize(t *testing.T) {
	got := chunk("abcdef", 3)
	want := []string{"abc", "def"}
	if len(got) != len(want) {
		t.Fatalf("chunk returned %d pieces, want %d: %v", len(got), len(want), got)
	}
}

func TestHasEnvPrefix(t *testing.T) {
	cases := []struct {
		kv, prefix string
		want       bool
	}{
		{"ENGINE_CONFIG_ENV1=abc", "ENGINE_CONFIG_ENV", true},
		{"ENGINE_CONFIG_CHUNK_ENV=2", "ENGINE_CONFIG_ENV", false},
		{"PATH=/bin", "ENGINE_CONFIG_ENV", false},
		{"", "ENGINE_CONFIG_ENV", false},
	}
	for _, c := range cases {
		if got := hasEnvPrefix(c.kv, c.prefix); got != c.want {
			t.Errorf("hasEnvPrefix(%q, %q) = %v, want %v", c.kv, c.prefix, got, c.want)
		}
	}
}

func TestFilteredEnvironDropsStaleConfigChunks(t *testing.T) {
	t.Setenv(engineConfigChunkEnv, "3")
	t.Setenv(engineConfigEnv+"1", "part-one")
	t.Setenv(engineConfigEnv+"2", "part-two")
	t.Setenv("STARTER_MESSAGELEVEL", "5")
	t.Setenv("KEEP_ME", "yes")

	out := filteredEnviron()

	for _, kv := range out {
		if strings.HasPrefix(kv, engineConfigChunkEnv) || strings.HasPrefix(kv, engineConfigEnv) ||
			strings.HasPrefix(kv, "STARTER_MESSAGELEVEL=") {
			t.Errorf("filteredEnviron left a stale entry: %q", kv)
		}
	}

	found := false
	for _, kv := range out {
		if kv == "KEEP_ME=yes" {
			found = true
		}
	}
	if !found {
		t.Error("filteredEnviron dropped an unrelated variable it should have kept")
	}

	if got := os.Getenv("KEEP_ME"); got != "yes" {
		t.Fatalf("test setup broken: KEEP_ME = %q", got)
	}
}
