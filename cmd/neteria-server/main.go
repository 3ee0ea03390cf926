// Command neteria-server runs a Neteria server wired with
// policy.DefaultPolicy: every event is judged legal and executing it does
// nothing.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"neteria/application"
	"neteria/infrastructure/codec"
	"neteria/infrastructure/encryption"
	"neteria/infrastructure/logging"
	"neteria/infrastructure/network"
	"neteria/infrastructure/registry"
	"neteria/infrastructure/scheduler"
	"neteria/infrastructure/settings"
	"neteria/policy"
	"neteria/server"
)

func main() {
	configPath := flag.String("config", "", "path to a server config JSON file (optional)")
	name := flag.String("name", "", "override the configured server name")
	flag.Parse()

	cfg := settings.DefaultServerConfig()
	if *configPath != "" {
		loaded, err := settings.LoadServerConfig(*configPath)
		if err != nil {
			log.Fatalf("neteria-server: %v", err)
		}
		cfg = loaded
	}
	if *name != "" {
		cfg.ServerName = *name
	}

	if err := run(cfg); err != nil {
		log.Fatalf("neteria-server: %v", err)
	}
}

func run(cfg settings.ServerConfig) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := logging.NewLogLogger()

	bindAddr, err := cfg.BindAddrPort()
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

	reg := wireRegistry(ctx, registry.NewConcurrentRegistry(registry.NewMapRegistry()), cfg)

	engineCfg := server.Config{
		Version:           cfg.Version,
		ServerName:        cfg.ServerName,
		AllowedVersions:   cfg.AllowedVersions,
		Timeout:           cfg.Retry.Timeout.Duration(),
		MaxRetries:        cfg.Retry.MaxRetries,
		RegistrationLimit: cfg.RegistrationLimit.Int(),
		ExecWorkers:       0,
	}

	engine := server.New(
		engineCfg,
		reg,
		transport,
		codec.New(cfg.Compression, enc),
		scheduler.New(0),
		logger,
		enc,
		policy.DefaultPolicy{},
	)

	logger.Printf("neteria-server: listening on %s (version=%s name=%s)", bindAddr, cfg.Version, cfg.ServerName)

	runErr := engine.Run(ctx)
	waitErr := engine.Wait()
	if runErr != nil {
		return runErr
	}
	return waitErr
}

// wireRegistry layers idle-session eviction over base when the configured
// TTL is non-zero; this is opt-in, on top of the base behavior of removing
// entries only on retry exhaustion.
func wireRegistry(ctx context.Context, base application.ClientRegistry, cfg settings.ServerConfig) application.ClientRegistry {
	if cfg.TTL.Idle <= 0 {
		return base
	}
	sweep := cfg.TTL.Sweep
	if sweep <= 0 {
		sweep = cfg.TTL.Idle
	}
	return registry.NewTTLRegistry(ctx, base, cfg.TTL.Idle, sweep)
}
