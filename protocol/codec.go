package protocol

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"unicode/utf8"

	maelstrom "github.com/jepsen-io/maelstrom/demo/go"
)

// Decoder reads envelopes from a stream of JSON values. Values may be
// separated by any whitespace, newlines included.
type Decoder struct {
	dec          *json.Decoder
	allowUnknown bool
}

type DecoderOption func(*Decoder)

// WithUnknownTypes makes the decoder return an Unknown payload for type tags
// outside the protocol rather than failing.
func WithUnknownTypes() DecoderOption {
	return func(d *Decoder) {
		d.allowUnknown = true
	}
}

func NewDecoder(r io.Reader, opts ...DecoderOption) *Decoder {
	d := &Decoder{dec: json.NewDecoder(r)}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decode returns the next envelope. It returns io.EOF once the stream ends
// cleanly between values.
func (d *Decoder) Decode() (Message, error) {
	var line json.RawMessage
	if err := d.dec.Decode(&line); err != nil {
		return Message{}, err
	}
	if !utf8.Valid(line) {
		return Message{}, ErrInvalidUTF8
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(line, &fields); err != nil {
		return Message{}, err
	}
	for _, name := range []string{"src", "dest", "body"} {
		if !present(fields, name) {
			return Message{}, fmt.Errorf("%w: %s", ErrMissingField, name)
		}
	}

	var raw maelstrom.Message
	if err := json.Unmarshal(line, &raw); err != nil {
		return Message{}, err
	}

	body, err := parseBody(raw.Body, d.allowUnknown)
	if err != nil {
		return Message{}, fmt.Errorf("message from %s: %w", raw.Src, err)
	}
	return Message{Src: raw.Src, Dest: raw.Dest, Body: body}, nil
}

// Encoder writes one envelope per line and flushes after each one.
type Encoder struct {
	w *bufio.Writer
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: bufio.NewWriter(w)}
}

func (e *Encoder) Encode(m Message) error {
	line, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("serialize: %w", err)
	}
	line = append(line, '\n')

	if _, err := e.w.Write(line); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := e.w.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	return nil
}
