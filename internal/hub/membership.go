package hub

import "sync"

// Membership tracks which agent ids are currently attached to each
// environment id (the env_id -> {agent_id} map from spec section 3,
// invariant I2). It is separate from Registry because membership outlives
// any one session lookup: it is consulted only when an environment
// broadcasts to (agent, "*"), scoping delivery to agents that joined at
// that environment's endpoint.
type Membership struct {
	mu     sync.RWMutex
	agents map[string]map[string]struct{} // env_id -> set of agent_id
}

// NewMembership constructs an empty Membership.
func NewMembership() *Membership {
	return &Membership{agents: make(map[string]map[string]struct{})}
}

// Join records that agentID is attached to envID.
func (m *Membership) Join(envID, agentID string) {
	if envID == "" || agentID == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	set, ok := m.agents[envID]
	if !ok {
		set = make(map[string]struct{})
		m.agents[envID] = set
	}
	set[agentID] = struct{}{}
}

// Leave removes agentID from envID's roster. Safe to call even if the agent
// was never a member.
func (m *Membership) Leave(envID, agentID string) {
	if envID == "" || agentID == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	set, ok := m.agents[envID]
	if !ok {
		return
	}
	delete(set, agentID)
	if len(set) == 0 {
		delete(m.agents, envID)
	}
}

// AgentsIn returns a snapshot of the agent ids currently attached to envID.
func (m *Membership) AgentsIn(envID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	set, ok := m.agents[envID]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}
