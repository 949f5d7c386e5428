package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"webcall/native/internal/api"
	"webcall/native/internal/bridge"
	"webcall/native/internal/call"
	"webcall/native/internal/config"
	"webcall/native/internal/domain"
	"webcall/native/internal/keycodec"
	"webcall/native/internal/logging"
	"webcall/native/internal/media"
	"webcall/native/internal/protocol"
	"webcall/native/internal/webrtc"
)

const helpText = `webcall - peer-to-peer call engine with end-to-end encrypted media

Usage:
  webcall [options]
  webcall keygen

The engine listens for one host on a WebSocket and executes call commands
(capabilities, start, accept, answer, ice, end, media) sent as JSON,
optionally wrapped as {"corrId":n,"command":{...}}.

keygen prints a fresh base64 AES-256 key for the aesKey field.

Environment Variables:
  WEBCALL_ADDR              listen address (default 127.0.0.1:8765)
  WEBCALL_ICE_SERVERS       comma-separated STUN/TURN URLs
  WEBCALL_ICE_USERNAME      TURN username
  WEBCALL_ICE_CREDENTIAL    TURN credential
  WEBCALL_ICE_SERVERS_URL   endpoint returning ICE servers as JSON
  WEBCALL_ICE_TOKEN         bearer token for WEBCALL_ICE_SERVERS_URL
  WEBCALL_ICE_WAIT          first ICE gathering phase (default 4s)
  WEBCALL_ICE_EXTRA_WAIT    second ICE gathering phase (default 4s)
  WEBCALL_UDP_PORT_MIN/MAX  UDP port range for ICE
  WEBCALL_ENCRYPTION        frame encryption support (default true)
  WEBCALL_LOG_LEVEL         debug, info, warn or error (default info)

Options:
`

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		addr      string
		logLevel  string
		envFile   string
		noCapture bool
		loopback  bool
	)
	flagSet := pflag.NewFlagSet("webcall", pflag.ContinueOnError)
	flagSet.StringVar(&addr, "addr", "", "listen address, overrides WEBCALL_ADDR")
	flagSet.StringVar(&logLevel, "log-level", "", "log level, overrides WEBCALL_LOG_LEVEL")
	flagSet.StringVar(&envFile, "env-file", "", "read environment from this file instead of .env")
	flagSet.BoolVar(&noCapture, "no-capture", false, "refuse media capture (calls fail to start)")
	flagSet.BoolVar(&loopback, "loopback", false, "offer loopback ICE candidates")
	flagSet.BoolP("help", "h", false, "show help")
	flagSet.Usage = func() {
		fmt.Fprint(os.Stderr, helpText)
		flagSet.PrintDefaults()
	}

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		flagSet.Usage()
		return nil
	}

	if args := flagSet.Args(); len(args) > 0 {
		if args[0] != "keygen" {
			return fmt.Errorf("unknown command %q", args[0])
		}
		key, err := keycodec.Generate()
		if err != nil {
			return err
		}
		fmt.Println(key)
		return nil
	}

	var envFiles []string
	if envFile != "" {
		envFiles = append(envFiles, envFile)
	}
	cfg, err := config.Load(envFiles...)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Addr = addr
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Named("main")

	ctx, cancel := ossignal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	iceServers := cfg.ICEServers
	if cfg.ICEServersURL != "" {
		log.Info("fetching ICE servers", zap.String("url", cfg.ICEServersURL))
		fetched, err := api.NewClient().FetchICEServers(ctx, cfg.ICEServersURL, cfg.ICEToken)
		if err != nil {
			return fmt.Errorf("fetch ICE servers: %w", err)
		}
		iceServers = append(iceServers, fetched...)
	}
	log.Info("ICE servers configured", zap.Int("count", len(iceServers)))

	factory, err := webrtc.NewFactory(webrtc.Options{
		ICEServers:      iceServers,
		UDPPortMin:      cfg.UDPPortMin,
		UDPPortMax:      cfg.UDPPortMax,
		IncludeLoopback: loopback,
		Logger:          logger,
	})
	if err != nil {
		return fmt.Errorf("create peer factory: %w", err)
	}

	var devices domain.MediaDevices = media.SilenceDevices{Logger: logger}
	if noCapture {
		devices = media.DeniedDevices{}
	}
	playback := &media.CountingSink{}
	go playback.Report(ctx, 10*time.Second, logger.Named("playback"))

	proc := call.New(call.Config{
		Encryption:   cfg.Encryption,
		ICEWait:      cfg.ICEWait,
		ICEExtraWait: cfg.ICEExtraWait,
	}, factory, devices, playback, logger)

	// The call ends with the host connection.
	server := bridge.New(proc, bridge.Options{}, func() {
		if proc.Active() {
			log.Info("host gone, ending call")
			proc.Process(context.Background(), protocol.EndCommand{})
		}
	}, logger)
	proc.SetNotifier(server)

	listener, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	httpServer := &http.Server{Handler: server, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", listener.Addr().String()), zap.Bool("encryption", cfg.Encryption))
		errCh <- httpServer.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
	}

	if proc.Active() {
		proc.Process(context.Background(), protocol.EndCommand{})
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	log.Info("done")
	return nil
}
