package message

// Identity is what a node learns about itself from the handshake. It is set
// once and never changes afterwards.
type Identity struct {
	NodeID  string
	PeerIDs []string
}

// Others returns every peer id except the node's own, in handshake order.
func (id Identity) Others() []string {
	out := make([]string, 0, len(id.PeerIDs))
	for _, p := range id.PeerIDs {
		if p != id.NodeID {
			out = append(out, p)
		}
	}
	return out
}
