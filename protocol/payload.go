package protocol

// Payload type tags.
const (
	Init        = "init"
	InitOk      = "init_ok"
	Echo        = "echo"
	EchoOk      = "echo_ok"
	Generate    = "generate"
	GenerateOk  = "generate_ok"
	Broadcast   = "broadcast"
	BroadcastOk = "broadcast_ok"
	Read        = "read"
	ReadOk      = "read_ok"
	Topology    = "topology"
	TopologyOk  = "topology_ok"
)

// Payload is the type-tagged part of a message body. Its JSON fields are
// flattened next to msg_id, in_reply_to and type.
type Payload interface {
	Type() string
}

// reply is implemented by every *_ok payload.
type reply interface {
	Payload
	isReply()
}

// IsReply reports whether p is one of the *_ok variants.
func IsReply(p Payload) bool {
	_, ok := p.(reply)
	return ok
}

type InitMessage struct {
	NodeID  string   `json:"node_id"`
	NodeIDs []string `json:"node_ids"`
}

func (InitMessage) Type() string { return Init }

func (m *InitMessage) Reply() InitOkMessage {
	return InitOkMessage{}
}

type InitOkMessage struct{}

func (InitOkMessage) Type() string { return InitOk }
func (InitOkMessage) isReply()     {}

type EchoMessage struct {
	Echo string `json:"echo"`
}

func (EchoMessage) Type() string { return Echo }

func (m *EchoMessage) Reply() EchoOkMessage {
	return EchoOkMessage{Echo: m.Echo}
}

type EchoOkMessage struct {
	Echo string `json:"echo"`
}

func (EchoOkMessage) Type() string { return EchoOk }
func (EchoOkMessage) isReply()     {}

type GenerateMessage struct{}

func (GenerateMessage) Type() string { return Generate }

func (m *GenerateMessage) Reply(id string) GenerateOkMessage {
	return GenerateOkMessage{ID: id}
}

type GenerateOkMessage struct {
	ID string `json:"id"`
}

func (GenerateOkMessage) Type() string { return GenerateOk }
func (GenerateOkMessage) isReply()     {}

type BroadcastMessage struct {
	Message int `json:"message"`
}

func (BroadcastMessage) Type() string { return Broadcast }

func (m *BroadcastMessage) Reply() BroadcastOkMessage {
	return BroadcastOkMessage{}
}

type BroadcastOkMessage struct{}

func (BroadcastOkMessage) Type() string { return BroadcastOk }
func (BroadcastOkMessage) isReply()     {}

type ReadMessage struct{}

func (ReadMessage) Type() string { return Read }

func (m *ReadMessage) Reply(messages []int) ReadOkMessage {
	return ReadOkMessage{Messages: messages}
}

type ReadOkMessage struct {
	Messages []int `json:"messages"`
}

func (ReadOkMessage) Type() string { return ReadOk }
func (ReadOkMessage) isReply()     {}

type TopologyMessage struct {
	Topology map[string][]string `json:"topology"`
}

func (TopologyMessage) Type() string { return Topology }

func (m *TopologyMessage) Reply() TopologyOkMessage {
	return TopologyOkMessage{}
}

type TopologyOkMessage struct{}

func (TopologyOkMessage) Type() string { return TopologyOk }
func (TopologyOkMessage) isReply()     {}

// Unknown carries a body whose type tag is not part of the protocol. It is
// only produced by a decoder built with WithUnknownTypes.
type Unknown struct {
	Tag    string `json:"-"`
	Fields []byte `json:"-"`
}

func (u Unknown) Type() string { return u.Tag }
