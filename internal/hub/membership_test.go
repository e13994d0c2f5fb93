package hub

import "testing"

func TestMembershipJoinLeave(t *testing.T) {
	t.Parallel()

	m := NewMembership()
	m.Join("world_a", "scout-1")
	m.Join("world_a", "scout-2")

	got := m.AgentsIn("world_a")
	if len(got) != 2 {
		t.Fatalf("AgentsIn should report both joined agents, got %d", len(got))
	}

	m.Leave("world_a", "scout-1")
	got = m.AgentsIn("world_a")
	if len(got) != 1 || got[0] != "scout-2" {
		t.Fatalf("AgentsIn after Leave should report only scout-2, got %v", got)
	}

	m.Leave("world_a", "scout-2")
	if got := m.AgentsIn("world_a"); got != nil {
		t.Fatalf("AgentsIn for an emptied environment should be nil, got %v", got)
	}
}

func TestMembershipLeaveUnknownIsNoop(t *testing.T) {
	t.Parallel()

	m := NewMembership()
	m.Leave("nope", "nobody") // must not panic

	if got := m.AgentsIn("nope"); got != nil {
		t.Fatalf("AgentsIn for an unknown environment should be nil, got %v", got)
	}
}

func TestMembershipJoinIgnoresEmptyIDs(t *testing.T) {
	t.Parallel()

	m := NewMembership()
	m.Join("", "scout-1")
	m.Join("world_a", "")

	if got := m.AgentsIn("world_a"); len(got) != 0 {
		t.Fatalf("Join with an empty id must be a no-op, got %v", got)
	}
}
