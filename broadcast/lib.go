package broadcast

import (
	"log"

	"maelstrom-node/protocol"
)

// Node is the local node: its id and the logger diagnostics go to.
type Node interface {
	ID() string
	Logger() *log.Logger
}

// BroadcastServer keeps every broadcast value this node accepted, in
// arrival order. Topology is acknowledged but not used: values are never
// forwarded to other nodes.
type BroadcastServer struct {
	n        Node
	messages []int
}

func NewBroadcastServer(n Node) *BroadcastServer {
	return &BroadcastServer{
		n:        n,
		messages: make([]int, 0),
	}
}

func (s *BroadcastServer) getMessages() []int {
	stored_messages := make([]int, len(s.messages))
	copy(stored_messages, s.messages)
	return stored_messages
}

func (s *BroadcastServer) Read(msg *protocol.ReadMessage) protocol.ReadOkMessage {
	return msg.Reply(s.getMessages())
}

func (s *BroadcastServer) Broadcast(msg *protocol.BroadcastMessage) protocol.BroadcastOkMessage {
	s.messages = append(s.messages, msg.Message)
	s.n.Logger().Printf("%s: stored message %d (%d total)", s.n.ID(), msg.Message, len(s.messages))

	return msg.Reply()
}

func (s *BroadcastServer) Topology(msg *protocol.TopologyMessage) protocol.TopologyOkMessage {
	s.n.Logger().Printf("%s: ignoring topology of %d nodes", s.n.ID(), len(msg.Topology))
	return msg.Reply()
}
