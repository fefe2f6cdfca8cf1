package main

/*
 * tcpctl is a small demonstration CLI for the transport package: start an
 * endpoint that echoes back whatever it receives, or dial one and send it
 * a message.
 */

import (
	"fmt"
	"os"
	"time"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli"

	"github.com/agrinman/transport"
)

func init() {
	if isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return
	}
	// Not a real terminal (piped output, Windows cmd.exe without ANSI) —
	// route through go-colorable so fatih/color's escapes still render
	// where the platform needs translating, and are stripped where they'd
	// otherwise corrupt a log file.
	os.Stdout = colorable.NewColorableStdout()
}

func printFatal(msg string, args ...interface{}) {
	fmt.Fprintln(os.Stderr, fail(msg, args...))
	os.Exit(1)
}

func listenCommand(c *cli.Context) error {
	host := c.String("host")
	service := c.String("port")

	t, err := transport.NewTCPTransport(host, service)
	if err != nil {
		printFatal("bind failed: %v", err)
	}
	defer t.Close()

	ep, err := t.NewEndPoint()
	if err != nil {
		printFatal("new endpoint failed: %v", err)
	}
	defer ep.Close()

	fmt.Println(notice("listening as %s", ep.Address()))

	peers := make(map[transport.ConnectionId]transport.EndPointAddress)
	for {
		event, err := ep.Receive()
		if err != nil {
			fmt.Println(warn("endpoint closed: %v", err))
			return nil
		}
		switch e := event.(type) {
		case transport.ConnectionOpened:
			peers[e.ConnectionId] = e.Peer
			fmt.Println(colorizeEvent(e, "connection %d opened from %s", e.ConnectionId, e.Peer))
		case transport.Received:
			fmt.Println(fmt.Sprintf("connection %d: %s", e.ConnectionId, string(e.Payload)))
			peer, ok := peers[e.ConnectionId]
			if !ok {
				continue
			}
			echoTo(ep, peer, e.Payload)
		case transport.ConnectionClosed:
			delete(peers, e.ConnectionId)
			fmt.Println(colorizeEvent(e, "connection %d closed", e.ConnectionId))
		case transport.ErrorEvent:
			fmt.Println(colorizeEvent(e, "error: %v", e.Err))
		case transport.EndPointClosed:
			return nil
		}
	}
}

// echoTo opens a short-lived outbound connection back to peer and writes
// payload prefixed with "echo: ". Receiving and sending share no Connection
// handle in this model — an inbound message only ever carries a
// ConnectionId, never a handle — so replying means dialing back out.
func echoTo(ep *transport.EndPoint, peer transport.EndPointAddress, payload []byte) {
	conn, err := ep.Connect(peer, transport.ReliableOrdered, transport.ConnectHints{})
	if err != nil {
		fmt.Println(fail("echo to %s failed: %v", peer, err))
		return
	}
	defer conn.Close()
	if err := conn.Send([]byte("echo: "), payload); err != nil {
		fmt.Println(fail("echo to %s failed: %v", peer, err))
	}
}

func sendCommand(c *cli.Context) error {
	host := c.String("host")
	service := c.String("port")
	to := c.String("to")
	message := c.Args().First()
	if to == "" || message == "" {
		printFatal("usage: tcpctl send --to host:service:id \"message\"")
	}

	peer, err := transport.DecodeEndPointAddress([]byte(to))
	if err != nil {
		printFatal("bad --to address %q: %v", to, err)
	}

	t, err := transport.NewTCPTransport(host, service)
	if err != nil {
		printFatal("bind failed: %v", err)
	}
	defer t.Close()

	ep, err := t.NewEndPoint()
	if err != nil {
		printFatal("new endpoint failed: %v", err)
	}
	defer ep.Close()

	conn, err := ep.Connect(peer, transport.ReliableOrdered, transport.ConnectHints{})
	if err != nil {
		printFatal("connect to %s failed: %v", peer, err)
	}
	if err := conn.Send([]byte(message)); err != nil {
		printFatal("send failed: %v", err)
	}
	fmt.Println(notice("sent to %s", peer))

	replies := make(chan transport.Event, 1)
	go func() {
		for {
			e, err := ep.Receive()
			if err != nil {
				return
			}
			if _, ok := e.(transport.Received); ok {
				replies <- e
				return
			}
		}
	}()
	select {
	case e := <-replies:
		fmt.Println(colorizeEvent(e, "%s", string(e.(transport.Received).Payload)))
	case <-time.After(3 * time.Second):
		fmt.Println(warn("no reply within 3s"))
	}
	return nil
}

func main() {
	app := cli.NewApp()
	app.Name = "tcpctl"
	app.Usage = "start or dial a transport endpoint"
	app.Version = "1.0.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "host", Value: "127.0.0.1", Usage: "local bind/advertise host"},
		cli.StringFlag{Name: "port", Value: "0", Usage: "local bind/advertise service (port)"},
	}
	app.Commands = []cli.Command{
		{
			Name:   "listen",
			Usage:  "start an endpoint that prints and echoes received messages",
			Action: listenCommand,
		},
		{
			Name:      "send",
			Usage:     "tcpctl send --to host:service:id \"message\" -- dial a peer and send it a message",
			ArgsUsage: "<message>",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "to", Usage: "peer endpoint address (host:service:id)"},
			},
			Action: sendCommand,
		},
	}
	if err := app.Run(os.Args); err != nil {
		printFatal("%v", err)
	}
}
