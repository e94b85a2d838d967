package p2p

//go:generate scalegen -types Envelope

// Envelope carries a message of a local agent to the agent with the same id
// on the remote.
type Envelope struct {
	AgentID string `scale:"max=256"`
	Data    []byte `scale:"max=4194304"`
}
