// Command crs-client is the CRS CLI: a command REPL (CREATE/DELETE/JOIN/
// LIST) that drops into chat mode after a successful JOIN.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/barnden/roomline/internal/config"
	"github.com/barnden/roomline/internal/crs/chatclient"
	"github.com/barnden/roomline/internal/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "crs-client:", err)
		os.Exit(1)
	}
}

func run() error {
	dev := flag.Bool("dev", false, "enable development logging")
	flag.Parse()

	if flag.NArg() != 2 {
		return fmt.Errorf("usage: crs-client [flags] <host> <port>")
	}
	host := flag.Arg(0)
	port, err := config.ParsePort(flag.Arg(1))
	if err != nil {
		return err
	}

	if err := logging.Initialize(*dev, "crs-client"); err != nil {
		return fmt.Errorf("logging init: %w", err)
	}

	return chatclient.New(host, port).Run()
}
