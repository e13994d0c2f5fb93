package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"starhub/client"
	"starhub/protocol"
)

// smoke validates (English), against a running hub:
//   - agent and environment both connect and are admitted
//   - agent move action reaches the environment's on_action handler
//   - environment's send_outcome resolves the agent's send_and_wait
//   - environment's broadcast_event reaches the agent's on_event handler
func newSmokeCmd() *cobra.Command {
	var (
		url     string
		envID   string
		agentID string
		timeout time.Duration
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "smoke",
		Short: "Run an end-to-end smoke test against a Star Protocol hub",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSmoke(url, envID, agentID, timeout, verbose)
		},
	}

	cmd.Flags().StringVar(&url, "url", "ws://127.0.0.1:8765", "hub base URL (ws:// or wss://)")
	cmd.Flags().StringVar(&envID, "env", "smoke-env", "environment id to use")
	cmd.Flags().StringVar(&agentID, "agent", "smoke-agent", "agent id to use")
	cmd.Flags().DurationVar(&timeout, "timeout", 7*time.Second, "per-step timeout")
	cmd.Flags().BoolVar(&verbose, "v", false, "verbose output")

	return cmd
}

func runSmoke(url, envID, agentID string, timeout time.Duration, verbose bool) error {
	eventCh := make(chan protocol.EventPayload, 4)
	actionCh := make(chan struct {
		from protocol.Identity
		p    protocol.ActionPayload
	}, 4)

	env, err := client.NewEnvironment(client.EnvironmentConfig{
		BaseURL: url,
		EnvID:   envID,
		Handlers: client.Handlers{
			OnAction: func(from protocol.Identity, p protocol.ActionPayload) error {
				actionCh <- struct {
					from protocol.Identity
					p    protocol.ActionPayload
				}{from, p}
				return nil
			},
		},
	})
	if err != nil {
		return fmt.Errorf("build environment: %w", err)
	}

	agent, err := client.NewAgent(client.AgentConfig{
		BaseURL: url,
		EnvID:   envID,
		AgentID: agentID,
		Handlers: client.Handlers{
			OnEvent: func(from protocol.Identity, p protocol.EventPayload) error {
				eventCh <- p
				return nil
			},
		},
	})
	if err != nil {
		return fmt.Errorf("build agent: %w", err)
	}

	root, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = env.Connect(root) }()
	go func() { _ = agent.Connect(root) }()
	defer env.Close(2 * time.Second)
	defer agent.Close(2 * time.Second)

	if !waitForState(root, env.Client, timeout) {
		return fmt.Errorf("environment never reached open state")
	}
	if !waitForState(root, agent.Client, timeout) {
		return fmt.Errorf("agent never reached open state")
	}
	logVerbose(verbose, "connected: env=%s agent=%s", envID, agentID)

	actionDone := make(chan protocol.OutcomePayload, 1)
	actionErr := make(chan error, 1)
	go func() {
		outcome, err := agent.Move(root, map[string]any{"direction": "north"})
		if err != nil {
			actionErr <- err
			return
		}
		actionDone <- outcome
	}()

	select {
	case recv := <-actionCh:
		logVerbose(verbose, "environment received action=%s from=%s", recv.p.Action, recv.from.String())
		if recv.p.Action != "move" {
			return fmt.Errorf("unexpected action: %q", recv.p.Action)
		}
		outcome, _ := json.Marshal(struct {
			Status string `json:"status"`
		}{Status: string(protocol.OutcomeSuccess)})
		if err := env.SendOutcome(recv.from.ID, recv.p.ID, json.RawMessage(outcome)); err != nil {
			return fmt.Errorf("send_outcome: %w", err)
		}
	case <-time.After(timeout):
		return fmt.Errorf("timed out waiting for environment to receive action")
	}

	select {
	case outcome := <-actionDone:
		status, err := outcome.Status()
		if err != nil {
			return fmt.Errorf("outcome status: %w", err)
		}
		logVerbose(verbose, "agent move outcome status=%s", status)
	case err := <-actionErr:
		return fmt.Errorf("agent move: %w", err)
	case <-time.After(timeout):
		return fmt.Errorf("timed out waiting for move outcome")
	}

	if err := env.BroadcastEvent("world_tick", map[string]any{"tick": 1}); err != nil {
		return fmt.Errorf("broadcast_event: %w", err)
	}

	select {
	case ev := <-eventCh:
		if ev.Event != "world_tick" {
			return fmt.Errorf("unexpected event: %q", ev.Event)
		}
		logVerbose(verbose, "agent received event=%s", ev.Event)
	case <-time.After(timeout):
		return fmt.Errorf("timed out waiting for broadcast event")
	}

	fmt.Fprintf(os.Stdout, "OK: env=%s agent=%s\n", envID, agentID)
	return nil
}

func waitForState(ctx context.Context, c *client.Client, timeout time.Duration) bool {
	deadline := time.After(timeout)
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		if c.State() == client.StateOpen {
			return true
		}
		select {
		case <-deadline:
			return false
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}

func logVerbose(verbose bool, format string, args ...any) {
	if !verbose {
		return
	}
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}
