// Command sns-client is the SNS CLI: logs in as -u USERNAME against
// -h HOST [-p PORT], then drives a command REPL alongside a live timeline
// stream.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/barnden/roomline/internal/logging"
	"github.com/barnden/roomline/internal/sns/snsclient"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "sns-client:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		host     = flag.String("h", "localhost", "SNS server host")
		port     = flag.Int("p", 3010, "SNS server port")
		username = flag.String("u", "", "username to log in as")
		dev      = flag.Bool("dev", false, "enable development logging")
	)
	flag.Parse()

	if *username == "" {
		return fmt.Errorf("usage: sns-client -h HOST -u USERNAME [-p PORT]")
	}

	if err := logging.Initialize(*dev, "sns-client"); err != nil {
		return fmt.Errorf("logging init: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", *host, *port)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := snsclient.Dial(ctx, addr, *username)
	if err != nil {
		return err
	}
	defer client.Close()

	return client.Run(ctx)
}
