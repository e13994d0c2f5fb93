package client

import (
	"strings"
	"testing"
)

func TestNewAgentBuildsScopedEndpoint(t *testing.T) {
	t.Parallel()

	a, err := NewAgent(AgentConfig{BaseURL: "ws://localhost:8765", EnvID: "world_a", AgentID: "scout-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasSuffix(a.endpoint, "/env/world_a/agent/scout-1") {
		t.Fatalf("endpoint=%q want suffix /env/world_a/agent/scout-1", a.endpoint)
	}
}

func TestNewAgentRejectsBadID(t *testing.T) {
	t.Parallel()

	if _, err := NewAgent(AgentConfig{BaseURL: "ws://localhost:8765", EnvID: "world_a", AgentID: "x"}); err == nil {
		t.Fatalf("expected a validation error for a too-short agent id")
	}
}

func TestNewEnvironmentBuildsEndpoint(t *testing.T) {
	t.Parallel()

	e, err := NewEnvironment(EnvironmentConfig{BaseURL: "ws://localhost:8765", EnvID: "world_a"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasSuffix(e.endpoint, "/env/world_a") {
		t.Fatalf("endpoint=%q want suffix /env/world_a", e.endpoint)
	}
}

func TestEnvironmentInitializeEnvironmentIsLocalOnly(t *testing.T) {
	t.Parallel()

	e, err := NewEnvironment(EnvironmentConfig{BaseURL: "ws://localhost:8765", EnvID: "world_a"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	type world struct{ Tick int }
	e.InitializeEnvironment(world{Tick: 1})

	got, ok := e.World().(world)
	if !ok || got.Tick != 1 {
		t.Fatalf("World()=%v want={Tick:1}", e.World())
	}
}

func TestNewHumanBuildsEndpoint(t *testing.T) {
	t.Parallel()

	h, err := NewHuman(HumanConfig{BaseURL: "ws://localhost:8765", HumanID: "operator-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasSuffix(h.endpoint, "/human/operator-1") {
		t.Fatalf("endpoint=%q want suffix /human/operator-1", h.endpoint)
	}
}
