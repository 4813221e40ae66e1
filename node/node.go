// Package node runs the message-driven state machine: it owns the outbound
// message counter, answers init, and dispatches every other request to the
// handler registered for its type. Requests are processed one at a time.
package node

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	maelstrom "github.com/jepsen-io/maelstrom/demo/go"

	"maelstrom-node/protocol"
)

var ErrNoHandler = errors.New("no handler registered")

// HandlerFunc handles one request. It replies through Node.Reply.
type HandlerFunc func(msg protocol.Message) error

// Encoder is the output side of the line codec.
type Encoder interface {
	Encode(m protocol.Message) error
}

type Node struct {
	id      string
	nodeIDs []string

	nextMsgID uint64
	out       Encoder
	handlers  map[string]HandlerFunc
	logger    *log.Logger
}

type Option func(*Node)

func WithLogger(l *log.Logger) Option {
	return func(n *Node) {
		n.logger = l
	}
}

func NewNode(out Encoder, opts ...Option) *Node {
	log.SetOutput(os.Stderr)
	n := &Node{
		out:      out,
		handlers: make(map[string]HandlerFunc),
		logger:   log.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// ID returns the node id recorded by the last init, or "" before init.
func (n *Node) ID() string {
	return n.id
}

func (n *Node) NodeIDs() []string {
	return n.nodeIDs
}

// Logger returns the logger node diagnostics are written to.
func (n *Node) Logger() *log.Logger {
	return n.logger
}

// NextMsgID returns the msg_id the next reply will carry.
func (n *Node) NextMsgID() uint64 {
	return n.nextMsgID
}

// Handle registers fn for requests of type typ. It panics on duplicate
// registration and for init, which the node answers itself.
func (n *Node) Handle(typ string, fn HandlerFunc) {
	if typ == protocol.Init {
		panic("init is handled by the node")
	}
	if _, ok := n.handlers[typ]; ok {
		panic(fmt.Sprintf("duplicate message handler for %q message type", typ))
	}
	n.handlers[typ] = fn
}

// Reply sends body back to the sender of req, stamped with the next msg_id
// and correlated with req's msg_id.
func (n *Node) Reply(req protocol.Message, body protocol.Payload) error {
	msgID := n.nextMsgID
	reply := protocol.Message{
		Src:  req.Dest,
		Dest: req.Src,
		Body: protocol.Body{
			MsgID:     &msgID,
			InReplyTo: req.Body.MsgID,
			Payload:   body,
		},
	}

	if err := n.out.Encode(reply); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	n.nextMsgID++
	return nil
}

// Step processes a single message, writing at most one reply.
func (n *Node) Step(msg protocol.Message) error {
	switch body := msg.Body.Payload.(type) {
	case nil:
		return errors.New("message has no payload")
	case protocol.InitMessage:
		return n.init(msg, body)
	case protocol.Unknown:
		n.logger.Printf("%s: skipping message of unknown type %q from %s", n.id, body.Tag, msg.Src)
		return nil
	}

	if protocol.IsReply(msg.Body.Payload) {
		return nil
	}

	typ := msg.Body.Payload.Type()
	h, ok := n.handlers[typ]
	if !ok {
		return fmt.Errorf("%w: %w", ErrNoHandler, maelstrom.NewRPCError(maelstrom.NotSupported, typ))
	}
	return h(msg)
}

func (n *Node) init(msg protocol.Message, body protocol.InitMessage) error {
	n.id = body.NodeID
	n.nodeIDs = body.NodeIDs
	n.logger.Printf("node %s initialized with %d nodes", n.id, len(n.nodeIDs))

	return n.Reply(msg, body.Reply())
}

// Run steps every message from dec until the input ends. It returns nil on
// a clean end of input and the first decode or step error otherwise.
func (n *Node) Run(dec *protocol.Decoder) error {
	for {
		msg, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("decode input: %w", err)
		}

		if err := n.Step(msg); err != nil {
			return fmt.Errorf("step %s: %w", msg.Body.Payload.Type(), err)
		}
	}
}
