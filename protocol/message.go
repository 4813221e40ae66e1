// Package protocol models the newline-delimited JSON envelopes exchanged
// with the harness and the closed set of payload variants they carry.
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrUnknownType  = errors.New("unknown message type")
	ErrMissingField = errors.New("missing field")
	ErrInvalidUTF8  = errors.New("invalid UTF-8 in input")
)

// Message is the envelope: the sender, the recipient and the body.
type Message struct {
	Src  string `json:"src"`
	Dest string `json:"dest"`
	Body Body   `json:"body"`
}

// Body holds the optional correlation ids and the payload. Outbound bodies
// always carry a MsgID; harness requests may omit it.
type Body struct {
	MsgID     *uint64
	InReplyTo *uint64
	Payload   Payload
}

// Replier sends a reply correlated with req.
type Replier interface {
	Reply(req Message, body Payload) error
}

// As returns the payload of m as a T.
func As[T Payload](m Message) (T, error) {
	body, ok := m.Body.Payload.(T)
	if !ok {
		return body, fmt.Errorf("payload %T is not a %T", m.Body.Payload, body)
	}
	return body, nil
}

type header struct {
	MsgID     *uint64 `json:"msg_id,omitempty"`
	InReplyTo *uint64 `json:"in_reply_to,omitempty"`
	Type      string  `json:"type"`
}

func (b Body) MarshalJSON() ([]byte, error) {
	if b.Payload == nil {
		return nil, errors.New("body has no payload")
	}

	head, err := json.Marshal(header{MsgID: b.MsgID, InReplyTo: b.InReplyTo, Type: b.Payload.Type()})
	if err != nil {
		return nil, err
	}
	fields, err := json.Marshal(b.Payload)
	if err != nil {
		return nil, err
	}
	if len(fields) < 2 || fields[0] != '{' {
		return nil, fmt.Errorf("payload %s does not encode as an object", b.Payload.Type())
	}
	if len(fields) == 2 {
		return head, nil
	}

	out := append(head[:len(head)-1], ',')
	return append(out, fields[1:]...), nil
}

func (b *Body) UnmarshalJSON(data []byte) error {
	body, err := parseBody(data, false)
	if err != nil {
		return err
	}
	*b = body
	return nil
}

type variant struct {
	decode   func([]byte) (Payload, error)
	required []string
}

func decodeAs[T Payload](data []byte) (Payload, error) {
	var p T
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return p, nil
}

var variants = map[string]variant{
	Init:        {decodeAs[InitMessage], []string{"node_id", "node_ids"}},
	InitOk:      {decodeAs[InitOkMessage], nil},
	Echo:        {decodeAs[EchoMessage], []string{"echo"}},
	EchoOk:      {decodeAs[EchoOkMessage], []string{"echo"}},
	Generate:    {decodeAs[GenerateMessage], nil},
	GenerateOk:  {decodeAs[GenerateOkMessage], []string{"id"}},
	Broadcast:   {decodeAs[BroadcastMessage], []string{"message"}},
	BroadcastOk: {decodeAs[BroadcastOkMessage], nil},
	Read:        {decodeAs[ReadMessage], nil},
	ReadOk:      {decodeAs[ReadOkMessage], []string{"messages"}},
	Topology:    {decodeAs[TopologyMessage], []string{"topology"}},
	TopologyOk:  {decodeAs[TopologyOkMessage], nil},
}

var null = []byte("null")

func present(fields map[string]json.RawMessage, name string) bool {
	raw, ok := fields[name]
	return ok && !bytes.Equal(bytes.TrimSpace(raw), null)
}

// parseBody selects the payload variant by the type field. With
// allowUnknown set, an unrecognised tag yields an Unknown payload instead
// of ErrUnknownType.
func parseBody(data []byte, allowUnknown bool) (Body, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return Body{}, err
	}
	if !present(fields, "type") {
		return Body{}, fmt.Errorf("%w: type", ErrMissingField)
	}

	var head header
	if err := json.Unmarshal(data, &head); err != nil {
		return Body{}, err
	}
	body := Body{MsgID: head.MsgID, InReplyTo: head.InReplyTo}

	v, ok := variants[head.Type]
	if !ok {
		if !allowUnknown {
			return Body{}, fmt.Errorf("%w: %q", ErrUnknownType, head.Type)
		}
		body.Payload = Unknown{Tag: head.Type, Fields: bytes.Clone(data)}
		return body, nil
	}

	for _, name := range v.required {
		if !present(fields, name) {
			return Body{}, fmt.Errorf("%w: %s in %s", ErrMissingField, name, head.Type)
		}
	}

	payload, err := v.decode(data)
	if err != nil {
		return Body{}, fmt.Errorf("decode %s: %w", head.Type, err)
	}
	body.Payload = payload
	return body, nil
}
