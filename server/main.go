package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"

	"github.com/akamensky/argparse"

	"pico_command_center/constants"
	"pico_command_center/logging"
	server "pico_command_center/server/controller"
)

func main() {
	args := argparse.NewParser("server", constants.Title+" device emulator")

	announce := args.String("a", "announce", &argparse.Options{Required: false, Help: "Handshake destination address",
		Default: constants.DEFAULT_ANNOUNCE})
	compress := args.Flag("z", "compress", &argparse.Options{Help: "Store received images as LZ4 frames"})
	bind := args.String("l", "listen", &argparse.Options{Required: false, Help: "Listen on address",
		Default: constants.DEFAULT_LISTEN})
	port := args.Int("p", "port", &argparse.Options{Required: false, Help: "Command port",
		Default: constants.DEFAULT_TCP_PORT})
	reject := args.Flag("e", "reject", &argparse.Options{Help: "Refuse ROM loads and launcher boots with ER"})
	path := args.String("r", "root", &argparse.Options{Required: false, Help: "Root path for storing received images"})
	udp := args.Int("u", "udp", &argparse.Options{Required: false, Help: "Handshake destination port",
		Default: constants.DEFAULT_UDP_PORT})
	verbose := args.Flag("v", "verbose", &argparse.Options{Help: "Log protocol details"})

	err := args.Parse(os.Args)

	if err != nil {
		fmt.Print(args.Usage(err))
		os.Exit(1)
	}

	root := *path
	if root != "" {
		root = filepath.Clean(root)
		// Check path validity.
		info, err := os.Stat(root)
		if err != nil || !info.IsDir() {
			fmt.Println("Invalid root folder -", root)
			os.Exit(1)
		}
	}

	log := logging.New(*verbose)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	bindTo := net.JoinHostPort(*bind, strconv.Itoa(*port))
	fmt.Println("Listening on " + bindTo)

	srv := server.New(server.Options{
		Listen:   bindTo,
		Announce: net.JoinHostPort(*announce, strconv.Itoa(*udp)),
		Root:     root,
		Reject:   *reject,
		Compress: *compress,
		Log:      log,
	})
	if err := srv.Serve(ctx); err != nil {
		fmt.Println("Could not serve on " + bindTo + ": " + err.Error())
		os.Exit(1)
	}
}
