package message

const (
	TypeInit        = "init"
	TypeInitOk      = "init_ok"
	TypeEcho        = "echo"
	TypeEchoOk      = "echo_ok"
	TypeGenerate    = "generate"
	TypeGenerateOk  = "generate_ok"
	TypeBroadcast   = "broadcast"
	TypeBroadcastOk = "broadcast_ok"
	TypeRead        = "read"
	TypeReadOk      = "read_ok"
	TypeTopology    = "topology"
	TypeTopologyOk  = "topology_ok"
	TypeGossip      = "gossip"
)

// Init is the handshake the environment sends first.
type Init struct {
	NodeID  string   `json:"node_id"`
	NodeIDs []string `json:"node_ids"`
}

func (Init) Type() string { return TypeInit }

// Identity returns the identity carried by the handshake.
func (i Init) Identity() Identity {
	return Identity{NodeID: i.NodeID, PeerIDs: append([]string(nil), i.NodeIDs...)}
}

type InitOk struct{}

func (InitOk) Type() string { return TypeInitOk }

type Echo struct {
	Echo string `json:"echo"`
}

func (Echo) Type() string { return TypeEcho }

type EchoOk struct {
	Echo string `json:"echo"`
}

func (EchoOk) Type() string { return TypeEchoOk }

type Generate struct{}

func (Generate) Type() string { return TypeGenerate }

type GenerateOk struct {
	ID string `json:"id"`
}

func (GenerateOk) Type() string { return TypeGenerateOk }

type Broadcast struct {
	Message int64 `json:"message"`
}

func (Broadcast) Type() string { return TypeBroadcast }

type BroadcastOk struct{}

func (BroadcastOk) Type() string { return TypeBroadcastOk }

type Read struct{}

func (Read) Type() string { return TypeRead }

// ReadOk carries a set of values; encoders should keep Messages sorted and
// free of duplicates.
type ReadOk struct {
	Messages []int64 `json:"messages"`
}

func (ReadOk) Type() string { return TypeReadOk }

type Topology struct {
	Topology map[string][]string `json:"topology"`
}

func (Topology) Type() string { return TypeTopology }

type TopologyOk struct{}

func (TopologyOk) Type() string { return TypeTopologyOk }

// Gossip is exchanged between nodes only, never with clients.
type Gossip struct {
	Messages []int64 `json:"messages"`
}

func (Gossip) Type() string { return TypeGossip }
