// Package chatclient implements the CRS CLI client: a command-mode REPL
// that issues CREATE/DELETE/JOIN/LIST requests against the control server,
// and a chat-mode loop entered after a successful JOIN.
package chatclient

import (
	"bufio"
	"fmt"
	"net"
	"strings"

	prompt "github.com/c-bata/go-prompt"
	"github.com/fatih/color"

	"github.com/barnden/roomline/internal/crs/wire"
)

// Client drives the command-mode and chat-mode halves of a CRS session
// against a single control-server address.
type Client struct {
	ControlAddr string
}

// New returns a Client targeting host:port.
func New(host string, port int) *Client {
	return &Client{ControlAddr: fmt.Sprintf("%s:%d", host, port)}
}

// Run drives the command-mode REPL until the user quits or a JOIN succeeds
// and chat mode runs to completion, then loops back to command mode.
func (c *Client) Run() error {
	for {
		line := prompt.Input("crs> ", func(d prompt.Document) []prompt.Suggest {
			return []prompt.Suggest{
				{Text: "create", Description: "create a room"},
				{Text: "delete", Description: "delete a room"},
				{Text: "join", Description: "join a room"},
				{Text: "list", Description: "list rooms"},
				{Text: "quit", Description: "exit"},
			}
		})
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		cmd := strings.ToLower(fields[0])
		if cmd == "quit" || cmd == "exit" {
			return nil
		}

		if err := c.dispatch(cmd, fields[1:]); err != nil {
			color.Red("error: %v", err)
		}
	}
}

func (c *Client) dispatch(cmd string, args []string) error {
	switch cmd {
	case "create":
		if len(args) != 1 {
			return fmt.Errorf("usage: create <room>")
		}
		return c.create(args[0])
	case "delete":
		if len(args) != 1 {
			return fmt.Errorf("usage: delete <room>")
		}
		return c.delete(args[0])
	case "join":
		if len(args) != 1 {
			return fmt.Errorf("usage: join <room>")
		}
		return c.join(args[0])
	case "list":
		return c.list()
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (c *Client) dial() (net.Conn, error) {
	return net.Dial("tcp", c.ControlAddr)
}

func (c *Client) create(room string) error {
	conn, err := c.dial()
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := wire.WriteNullTerminated(conn, wire.Create, room); err != nil {
		return err
	}
	resp, err := wire.ReadResponse(bufio.NewReader(conn), wire.Create)
	if err != nil {
		return err
	}
	if resp.Status != wire.StatusSuccess {
		color.Yellow("create failed: %s", resp.Status)
		return nil
	}
	color.Green("room %q created", room)
	return nil
}

func (c *Client) delete(room string) error {
	conn, err := c.dial()
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := wire.WriteNullTerminated(conn, wire.Delete, room); err != nil {
		return err
	}
	resp, err := wire.ReadResponse(bufio.NewReader(conn), wire.Delete)
	if err != nil {
		return err
	}
	if resp.Status != wire.StatusSuccess {
		color.Yellow("delete failed: %s", resp.Status)
		return nil
	}
	color.Green("room %q deleted", room)
	return nil
}

func (c *Client) list() error {
	conn, err := c.dial()
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := wire.WriteTag(conn, wire.List); err != nil {
		return err
	}
	resp, err := wire.ReadResponse(bufio.NewReader(conn), wire.List)
	if err != nil {
		return err
	}
	if resp.RoomList == "empty" || resp.RoomList == "" {
		fmt.Println("(no rooms)")
		return nil
	}
	for _, name := range strings.Split(strings.Trim(resp.RoomList, ","), ",") {
		fmt.Println(" -", name)
	}
	return nil
}

func (c *Client) join(room string) error {
	conn, err := c.dial()
	if err != nil {
		return err
	}

	if err := wire.WriteNullTerminated(conn, wire.Join, room); err != nil {
		conn.Close()
		return err
	}
	resp, err := wire.ReadResponse(bufio.NewReader(conn), wire.Join)
	conn.Close()
	if err != nil {
		return err
	}
	if resp.Status != wire.StatusSuccess {
		color.Yellow("join failed: %s", resp.Status)
		return nil
	}

	host := strings.SplitN(c.ControlAddr, ":", 2)[0]
	chatAddr := fmt.Sprintf("%s:%d", host, resp.Port)
	color.Green("joined %q (%d members) at %s", room, resp.MemberCount, chatAddr)
	return c.chatLoop(chatAddr)
}

// chatLoop handles one room session: a background reader that prints
// inbound chat bytes and watches for the DELETE teardown tag, plus a
// foreground loop reading lines from the user and writing them raw.
//
// prompt.Input blocks until a line is submitted with no way to cancel it
// directly, so it runs on its own goroutine feeding lineCh; the select
// below reacts to a teardown the instant chatReader sees it, even while
// the user hasn't typed anything, instead of waiting for their next
// keystroke.
func (c *Client) chatLoop(addr string) error {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	torn := make(chan struct{})
	go chatReader(conn, torn)

	lineCh := make(chan string)
	go readLines(lineCh, torn)

	for {
		select {
		case <-torn:
			color.Red("room was deleted")
			return nil
		case line := <-lineCh:
			if line == "/quit" {
				return nil
			}
			if _, err := conn.Write(append([]byte(line), 0)); err != nil {
				return err
			}
		}
	}
}

// readLines feeds successive prompt.Input lines to lineCh until torn is
// closed, at which point it stops delivering further lines (the prompt
// goroutine itself may still be blocked waiting on the user's next
// keystroke, but chatLoop no longer waits on it).
func readLines(lineCh chan<- string, torn <-chan struct{}) {
	for {
		line := prompt.Input("", func(d prompt.Document) []prompt.Suggest { return nil })
		select {
		case <-torn:
			return
		case lineCh <- line:
		}
	}
}

// chatReader copies room traffic to stdout, recognizing a DELETE tag as the
// teardown signal and closing torn when seen.
func chatReader(conn net.Conn, torn chan struct{}) {
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			if wire.IsDeleteTag(buf[:n]) {
				close(torn)
				return
			}
			fmt.Print(strings.ReplaceAll(string(buf[:n]), "\x00", "\n"))
		}
		if err != nil {
			close(torn)
			return
		}
	}
}
