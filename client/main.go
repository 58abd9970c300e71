package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/akamensky/argparse"

	"pico_command_center/client/comms"
	"pico_command_center/config"
	"pico_command_center/constants"
	"pico_command_center/fileio"
	"pico_command_center/logging"
	"pico_command_center/networking"
)

func main() {
	fmt.Println(constants.Banner())

	args := argparse.NewParser("client", constants.Title)

	cfgFile := args.String("c", "config", &argparse.Options{Required: false, Help: "Config file path",
		Default: config.DefaultPath()})
	dscp := args.Int("d", "dscp", &argparse.Options{Required: false, Help: "DSCP field for QoS (0-63)",
		Default: -1})
	listen := args.String("l", "listen", &argparse.Options{Required: false, Help: "Discovery listen address"})
	timeout := args.Int("t", "timeout", &argparse.Options{Required: false,
		Help: "Seconds to wait for the device handshake (0 waits forever)", Default: -1})
	verbose := args.Flag("v", "verbose", &argparse.Options{Help: "Log protocol details"})
	compressed := args.Flag("z", "lz4", &argparse.Options{Help: "Image file is an LZ4 frame (implied by a .lz4 suffix)"})

	commands := make(map[string]*argparse.Command)
	files := make(map[string]*string)
	for _, c := range comms.Commands {
		cmd := args.NewCommand(c.Name, c.Description)
		commands[c.Name] = cmd
		if c.NeedsFile {
			files[c.Name] = cmd.StringPositional(&argparse.Options{Required: true, Help: "Image file path"})
		}
	}

	err := args.Parse(os.Args)
	if err != nil {
		fmt.Print(args.Usage(err))
		os.Exit(1)
	}

	cfg, err := config.Load(*cfgFile)
	if err != nil {
		fmt.Println("Invalid config:", err.Error())
		os.Exit(1)
	}
	if *dscp >= 0 {
		cfg.DSCP = *dscp
	}
	if *listen != "" {
		cfg.ListenAddress = *listen
	}
	if *timeout >= 0 {
		cfg.DiscoveryTimeout = time.Duration(*timeout) * time.Second
	}
	cfg.Verbose = cfg.Verbose || *verbose
	if err := cfg.Validate(); err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	}

	var command comms.Command
	for _, c := range comms.Commands {
		if commands[c.Name].Happened() {
			command = c
		}
	}

	var fileName string
	if command.NeedsFile {
		fileName = filepath.Clean(*files[command.Name])
		// Do nothing if there's no such file.
		finfo, err := os.Stat(fileName)
		if *files[command.Name] == "" || err != nil || finfo.IsDir() {
			fmt.Println("Please provide a valid image file path.")
			os.Exit(1)
		}
	}

	job, err := comms.NewJob(command, fileName, *compressed)
	if err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	}
	if command.NeedsFile {
		fmt.Println("Checksum", hex.EncodeToString(fileio.ChecksumCRC32(job.Payload.Data[:job.Payload.TotalSize])))
	}

	log := logging.New(cfg.Verbose)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err = comms.Execute(ctx, comms.Options{
		ListenAddress:    cfg.ListenAddress,
		UDPPort:          cfg.UDPPort,
		TCPPort:          cfg.TCPPort,
		Handshake:        cfg.Handshake,
		DiscoveryTimeout: cfg.DiscoveryTimeout,
		DSCP:             cfg.DSCP,
		Log:              log,
		Progress:         os.Stdout,
	}, job)

	if err != nil {
		fmt.Println(err.Error())
		stop()
		os.Exit(exitCode(err))
	}
}

// exitCode maps engine errors to process exit codes
func exitCode(err error) int {
	switch {
	case errors.Is(err, networking.ErrMalformedFrame),
		errors.Is(err, networking.ErrUnexpectedSequence),
		errors.Is(err, networking.ErrPeerError):
		return 2
	case errors.Is(err, networking.ErrConnectionFault),
		errors.Is(err, networking.ErrDiscoveryBind),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return 3
	}
	return 1
}
