package node

import (
	"bytes"
	"errors"
	"io"
	"log"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maelstrom-node/protocol"
)

type recorder struct {
	sent []protocol.Message
	err  error
}

func (r *recorder) Encode(m protocol.Message) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, m)
	return nil
}

func newTestNode(t *testing.T) (*Node, *recorder, *bytes.Buffer) {
	t.Helper()
	out := &recorder{}
	var logs bytes.Buffer
	return NewNode(out, WithLogger(log.New(&logs, "", 0))), out, &logs
}

func request(id uint64, p protocol.Payload) protocol.Message {
	return protocol.Message{Src: "c1", Dest: "n1", Body: protocol.Body{MsgID: &id, Payload: p}}
}

func echoHandler(n *Node) HandlerFunc {
	return func(msg protocol.Message) error {
		body, err := protocol.As[protocol.EchoMessage](msg)
		if err != nil {
			return err
		}
		return n.Reply(msg, body.Reply())
	}
}

func TestInitRecordsIdentity(t *testing.T) {
	n, out, logs := newTestNode(t)

	err := n.Step(request(1, protocol.InitMessage{NodeID: "n1", NodeIDs: []string{"n1", "n2"}}))
	require.NoError(t, err)

	assert.Equal(t, "n1", n.ID())
	assert.Equal(t, []string{"n1", "n2"}, n.NodeIDs())
	assert.Contains(t, logs.String(), "node n1 initialized")

	require.Len(t, out.sent, 1)
	reply := out.sent[0]
	assert.Equal(t, "n1", reply.Src)
	assert.Equal(t, "c1", reply.Dest)
	assert.Equal(t, uint64(0), *reply.Body.MsgID)
	assert.Equal(t, uint64(1), *reply.Body.InReplyTo)
	assert.Equal(t, protocol.InitOkMessage{}, reply.Body.Payload)
}

func TestLoggerIsShared(t *testing.T) {
	n, _, logs := newTestNode(t)

	n.Logger().Printf("from a workload")
	assert.Contains(t, logs.String(), "from a workload")
}

func TestReplyCountersAreSequential(t *testing.T) {
	n, out, _ := newTestNode(t)
	n.Handle(protocol.Echo, echoHandler(n))

	for i := uint64(0); i < 5; i++ {
		require.NoError(t, n.Step(request(100+i, protocol.EchoMessage{Echo: "x"})))
	}

	require.Len(t, out.sent, 5)
	for i, reply := range out.sent {
		assert.Equal(t, uint64(i), *reply.Body.MsgID)
		assert.Equal(t, uint64(100+i), *reply.Body.InReplyTo)
	}
	assert.Equal(t, uint64(5), n.NextMsgID())
}

func TestReplyWithoutRequestMsgID(t *testing.T) {
	n, out, _ := newTestNode(t)
	n.Handle(protocol.Echo, echoHandler(n))

	msg := protocol.Message{Src: "c1", Dest: "n1", Body: protocol.Body{Payload: protocol.EchoMessage{Echo: "x"}}}
	require.NoError(t, n.Step(msg))

	require.Len(t, out.sent, 1)
	assert.Nil(t, out.sent[0].Body.InReplyTo)
	assert.Equal(t, uint64(0), *out.sent[0].Body.MsgID)
}

func TestReplyPayloadsAreInert(t *testing.T) {
	n, out, _ := newTestNode(t)
	n.Handle(protocol.Echo, echoHandler(n))

	inert := []protocol.Payload{
		protocol.InitOkMessage{},
		protocol.EchoOkMessage{Echo: "x"},
		protocol.GenerateOkMessage{ID: "01ARZ3NDEKTSV4RRFFQ69G5FAV"},
		protocol.BroadcastOkMessage{},
		protocol.ReadOkMessage{Messages: []int{1}},
		protocol.TopologyOkMessage{},
	}
	for i, p := range inert {
		require.NoError(t, n.Step(request(uint64(i), p)), p.Type())
	}
	assert.Empty(t, out.sent)
	assert.Equal(t, uint64(0), n.NextMsgID())

	require.NoError(t, n.Step(request(5, protocol.EchoMessage{Echo: "y"})))
	require.Len(t, out.sent, 1)
	assert.Equal(t, uint64(0), *out.sent[0].Body.MsgID)
	assert.Equal(t, uint64(5), *out.sent[0].Body.InReplyTo)
}

func TestUnknownPayloadIsSkipped(t *testing.T) {
	n, out, logs := newTestNode(t)

	require.NoError(t, n.Step(request(1, protocol.Unknown{Tag: "cas"})))
	assert.Empty(t, out.sent)
	assert.Equal(t, uint64(0), n.NextMsgID())
	assert.Contains(t, logs.String(), `unknown type "cas"`)
}

func TestMissingHandler(t *testing.T) {
	n, out, _ := newTestNode(t)

	err := n.Step(request(1, protocol.ReadMessage{}))
	assert.ErrorIs(t, err, ErrNoHandler)
	assert.Empty(t, out.sent)
}

func TestHandlePanics(t *testing.T) {
	n, _, _ := newTestNode(t)
	n.Handle(protocol.Echo, echoHandler(n))

	assert.Panics(t, func() { n.Handle(protocol.Echo, echoHandler(n)) })
	assert.Panics(t, func() { n.Handle(protocol.Init, echoHandler(n)) })
}

func TestEncodeFailureDoesNotAdvanceCounter(t *testing.T) {
	n, out, _ := newTestNode(t)
	out.err = io.ErrClosedPipe

	err := n.Step(request(1, protocol.InitMessage{NodeID: "n1", NodeIDs: []string{"n1"}}))
	assert.ErrorIs(t, err, io.ErrClosedPipe)
	assert.Equal(t, uint64(0), n.NextMsgID())
}

func TestHandlerErrorPropagates(t *testing.T) {
	n, _, _ := newTestNode(t)
	boom := errors.New("boom")
	n.Handle(protocol.Read, func(protocol.Message) error { return boom })

	assert.ErrorIs(t, n.Step(request(1, protocol.ReadMessage{})), boom)
}

func TestRun(t *testing.T) {
	t.Run("stops cleanly at end of input", func(t *testing.T) {
		n, out, _ := newTestNode(t)
		n.Handle(protocol.Echo, echoHandler(n))

		in := `{"src":"c1","dest":"n1","body":{"msg_id":1,"type":"init","node_id":"n1","node_ids":["n1"]}}
{"src":"c1","dest":"n1","body":{"msg_id":2,"type":"echo","echo":"hi"}}
`
		require.NoError(t, n.Run(protocol.NewDecoder(strings.NewReader(in))))
		require.Len(t, out.sent, 2)
		assert.Equal(t, protocol.EchoOkMessage{Echo: "hi"}, out.sent[1].Body.Payload)
	})

	t.Run("fails on malformed input", func(t *testing.T) {
		n, out, _ := newTestNode(t)

		in := `{"src":"c1","dest":"n1","body":{"msg_id":1,"type":"init","node_id":"n1","node_ids":["n1"]}}
{"src":"c1","dest":"n1","body":{"msg_id":2,"type":"mystery"}}
`
		err := n.Run(protocol.NewDecoder(strings.NewReader(in)))
		assert.ErrorIs(t, err, protocol.ErrUnknownType)
		assert.ErrorContains(t, err, "decode input")
		assert.Len(t, out.sent, 1)
	})

	t.Run("fails on write error", func(t *testing.T) {
		n, out, _ := newTestNode(t)
		out.err = io.ErrClosedPipe

		in := `{"src":"c1","dest":"n1","body":{"msg_id":1,"type":"init","node_id":"n1","node_ids":["n1"]}}`
		err := n.Run(protocol.NewDecoder(strings.NewReader(in)))
		assert.ErrorIs(t, err, io.ErrClosedPipe)
		assert.ErrorContains(t, err, "step init")
	})
}
