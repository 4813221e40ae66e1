package main

import (
	"io"
	"log"
	"os"

	"maelstrom-node/broadcast"
	"maelstrom-node/echo"
	"maelstrom-node/node"
	"maelstrom-node/protocol"
	uniqueidgeneration "maelstrom-node/unique-id-generation"
)

func main() {
	log.SetOutput(os.Stderr)

	// The node owns stdout; anything else writing to os.Stdout lands on stderr.
	stdout := os.Stdout
	os.Stdout = os.Stderr

	if err := run(os.Stdin, stdout); err != nil {
		log.Fatal(err)
	}
}

func run(in io.Reader, out io.Writer) error {
	n := node.NewNode(protocol.NewEncoder(out))

	n.Handle(protocol.Echo, func(msg protocol.Message) error {
		return echo.HandleEcho(msg, n)
	})

	s := uniqueidgeneration.NewUniqueIdServer(n)
	n.Handle(protocol.Generate, s.HandleMessage)

	b := broadcast.NewBroadcastServer(n)
	n.Handle(protocol.Read, func(msg protocol.Message) error {
		body, err := protocol.As[protocol.ReadMessage](msg)
		if err != nil {
			return err
		}

		return n.Reply(msg, b.Read(&body))
	})

	n.Handle(protocol.Topology, func(msg protocol.Message) error {
		body, err := protocol.As[protocol.TopologyMessage](msg)
		if err != nil {
			return err
		}

		return n.Reply(msg, b.Topology(&body))
	})

	n.Handle(protocol.Broadcast, func(msg protocol.Message) error {
		body, err := protocol.As[protocol.BroadcastMessage](msg)
		if err != nil {
			return err
		}

		return n.Reply(msg, b.Broadcast(&body))
	})

	return n.Run(protocol.NewDecoder(in))
}
