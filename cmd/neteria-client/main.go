// Command neteria-client runs an interactive Neteria client: it discovers
// and registers with a server, then sends each line of stdin as an EVENT.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"neteria/application"
	"neteria/client"
	"neteria/infrastructure/codec"
	"neteria/infrastructure/encryption"
	"neteria/infrastructure/logging"
	"neteria/infrastructure/network"
	"neteria/infrastructure/scheduler"
	"neteria/infrastructure/settings"
	"neteria/protocol"
)

func main() {
	configPath := flag.String("config", "", "path to a client config JSON file (optional)")
	serverPort := flag.Int("server-port", 0, "override the configured discovery port")
	flag.Parse()

	cfg := settings.DefaultClientConfig()
	if *configPath != "" {
		loaded, err := settings.LoadClientConfig(*configPath)
		if err != nil {
			log.Fatalf("neteria-client: %v", err)
		}
		cfg = loaded
	}
	if *serverPort != 0 {
		cfg.ServerPort = *serverPort
	}

	if err := run(cfg); err != nil {
		log.Fatalf("neteria-client: %v", err)
	}
}

func run(cfg settings.ClientConfig) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := logging.NewLogLogger()

	cuuid, err := protocol.NewClientID()
	if err != nil {
		return fmt.Errorf("mint client id: %w", err)
	}

	bindAddr, err := cfg.BindAddrPort(randomClientPort)
	if err != nil {
		return fmt.Errorf("resolve bind address: %w", err)
	}

	transport, err := network.NewUDPTransport(bindAddr, logger, cfg.Stats, 0)
	if err != nil {
		return fmt.Errorf("bind transport: %w", err)
	}
	defer transport.Close()

	var enc application.Encryption
	if cfg.Encryption.Enabled() {
		rsaEnc, encErr := encryption.NewRSAEncryption(cfg.KeyBits.Int())
		if encErr != nil {
			return fmt.Errorf("generate keypair: %w", encErr)
		}
		enc = rsaEnc
	}

	engineCfg := client.Config{
		Version:    cfg.Version,
		ServerPort: cfg.ServerPort,
		Timeout:    cfg.Retry.Timeout.Duration(),
		MaxRetries: cfg.Retry.MaxRetries,
	}

	engine := client.New(
		cuuid,
		engineCfg,
		transport,
		codec.New(cfg.Compression, enc),
		scheduler.New(0),
		logger,
		enc,
	)

	runErrCh := make(chan error, 1)
	go func() { runErrCh <- engine.Run(ctx) }()

	fmt.Println("Discovering Neteria servers...")
	for !engine.Registered() {
		if err := engine.Discover(ctx, true); err != nil {
			return fmt.Errorf("discover: %w", err)
		}
		select {
		case <-ctx.Done():
			return <-runErrCh
		case <-time.After(time.Second):
		}
	}
	fmt.Println("Connected!")

	go readEventsFromStdin(ctx, engine)

	return <-runErrCh
}

// readEventsFromStdin sends each line of stdin as an EVENT until "quit" or
// "exit", or the line reader hits EOF.
func readEventsFromStdin(ctx context.Context, engine *client.Engine) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "quit" || line == "exit" {
			return
		}
		if line == "" {
			continue
		}
		if _, err := engine.Event(ctx, line, protocol.PriorityNormal); err != nil {
			fmt.Fprintf(os.Stderr, "event error: %v\n", err)
		}
	}
}

// randomClientPort picks a port in the default client listen-port range.
func randomClientPort() int {
	return settings.DefaultClientPortLow + rand.Intn(settings.DefaultClientPortHigh-settings.DefaultClientPortLow)
}
