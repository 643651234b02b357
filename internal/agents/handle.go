package agents

import "github.com/consensusnet/core/internal/messagebus"

// Handle is an opaque reference to an agent: an id plus a send operation,
// used by the Debate Engine so it never holds a pointer to a full agent
// object — only the bus-mediated channel to it (spec §9 design notes,
// "cyclic referencing between Debate Engine and agents").
type Handle struct {
	AgentID string
	bus     *messagebus.Bus
}

// NewHandle constructs a Handle bound to bus.
func NewHandle(agentID string, bus *messagebus.Bus) Handle {
	return Handle{AgentID: agentID, bus: bus}
}

// Send publishes msg with From set to this handle's AgentID.
func (h Handle) Send(msg messagebus.Message) error {
	msg.From = h.AgentID
	return h.bus.Publish(msg)
}
