// Package snsclient implements the SNS CLI client: Login at startup, a
// command REPL for List/Follow/UnFollow, and a background Timeline stream
// printing posts from followed users as they arrive.
package snsclient

import (
	"context"
	"fmt"
	"io"
	"strings"

	prompt "github.com/c-bata/go-prompt"
	"github.com/fatih/color"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/barnden/roomline/internal/sns/rpcwire"
)

// Client drives one SNS user session against a server address.
type Client struct {
	Username string
	rpc      rpcwire.SNSClient
	conn     *grpc.ClientConn
}

// Dial connects to addr and logs in as username.
func Dial(ctx context.Context, addr, username string) (*Client, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(rpcwire.CodecName)),
	)
	if err != nil {
		return nil, fmt.Errorf("snsclient: dial: %w", err)
	}

	rpc := rpcwire.NewClient(conn)
	if _, err := rpc.Login(ctx, &rpcwire.Request{Username: username}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("snsclient: login: %w", err)
	}

	return &Client{Username: username, rpc: rpc, conn: conn}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Run starts the background Timeline stream and drives the command REPL
// until the user quits.
func (c *Client) Run(ctx context.Context) error {
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := c.rpc.Timeline(streamCtx)
	if err != nil {
		return fmt.Errorf("snsclient: open timeline: %w", err)
	}
	if err := stream.Send(&rpcwire.PostMsg{Username: c.Username, Msg: "0xFEE1DEAD"}); err != nil {
		return fmt.Errorf("snsclient: handshake: %w", err)
	}
	go c.printTimeline(stream)

	for {
		line := prompt.Input("sns> ", func(d prompt.Document) []prompt.Suggest {
			return []prompt.Suggest{
				{Text: "list", Description: "list all users and followers"},
				{Text: "follow", Description: "follow a user"},
				{Text: "unfollow", Description: "stop following a user"},
				{Text: "post", Description: "post to your timeline"},
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

		if err := c.dispatch(ctx, cmd, fields[1:], stream); err != nil {
			color.Red("error: %v", err)
		}
	}
}

func (c *Client) dispatch(ctx context.Context, cmd string, args []string, stream grpc.BidiStreamingClient[rpcwire.PostMsg, rpcwire.PostMsg]) error {
	switch cmd {
	case "list":
		return c.list(ctx)
	case "follow":
		if len(args) != 1 {
			return fmt.Errorf("usage: follow <username>")
		}
		return c.follow(ctx, args[0])
	case "unfollow":
		if len(args) != 1 {
			return fmt.Errorf("usage: unfollow <username>")
		}
		return c.unfollow(ctx, args[0])
	case "post":
		if len(args) == 0 {
			return fmt.Errorf("usage: post <text>")
		}
		return stream.Send(&rpcwire.PostMsg{Username: c.Username, Msg: strings.Join(args, " ")})
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (c *Client) list(ctx context.Context) error {
	reply, err := c.rpc.List(ctx, &rpcwire.Request{Username: c.Username})
	if err != nil {
		return err
	}
	fmt.Println("users:", strings.Join(reply.AllUsers, ", "))
	fmt.Println("followers:", strings.Join(reply.FollowingUsers, ", "))
	return nil
}

func (c *Client) follow(ctx context.Context, target string) error {
	_, err := c.rpc.Follow(ctx, &rpcwire.Request{Username: c.Username, Arguments: []string{target}})
	if err != nil {
		return err
	}
	color.Green("now following %s", target)
	return nil
}

func (c *Client) unfollow(ctx context.Context, target string) error {
	_, err := c.rpc.UnFollow(ctx, &rpcwire.Request{Username: c.Username, Arguments: []string{target}})
	if err != nil {
		return err
	}
	color.Green("unfollowed %s", target)
	return nil
}

// printTimeline prints every post delivered over stream (replayed history
// followed by live fan-out) until it closes.
func (c *Client) printTimeline(stream grpc.BidiStreamingClient[rpcwire.PostMsg, rpcwire.PostMsg]) {
	for {
		msg, err := stream.Recv()
		if err != nil {
			if err != io.EOF {
				color.Red("timeline stream closed: %v", err)
			}
			return
		}
		fmt.Printf("\n[%s] %s\n", msg.Username, msg.Msg)
	}
}
