package echo

import (
	"maelstrom-node/protocol"
)

// HandleEcho answers an echo request with the same string.
func HandleEcho(msg protocol.Message, n protocol.Replier) error {
	body, err := protocol.As[protocol.EchoMessage](msg)
	if err != nil {
		return err
	}

	return n.Reply(msg, body.Reply())
}
