package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"aethersecure/api"
	"aethersecure/auth"
	"aethersecure/config"
	"aethersecure/crypto"
	"aethersecure/discovery"
	"aethersecure/storage"
	"aethersecure/vault"
	"aethersecure/ws"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second
)

type serveOptions struct {
	listenAddress string
	noMDNS        bool
	// ready is called with the bound address once the listener is open.
	ready func(net.Addr)
}

func newServeCommand(global *globalOptions) *cobra.Command {
	opts := serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the vault HTTP and websocket server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runServe(ctx, global, opts, cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVarP(&opts.listenAddress, "listen", "l", "", "Listen address (overrides listen_address in config)")
	cmd.Flags().BoolVar(&opts.noMDNS, "no-mdns", false, "Do not advertise this instance on the LAN")

	return cmd
}

func runServe(ctx context.Context, global *globalOptions, opts serveOptions, logOut io.Writer) error {
	cfg, dataDir, err := config.LoadOrCreate()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := newLogger(cfg, global, logOut)
	if err != nil {
		return err
	}
	if opts.listenAddress != "" {
		cfg.ListenAddress = opts.listenAddress
	}

	keys, err := crypto.EnsureSigningKeyPair(cfg.SigningPrivateKeyPath, cfg.SigningPublicKeyPath)
	if err != nil {
		return fmt.Errorf("prepare token signing keypair: %w", err)
	}
	fingerprint := crypto.KeyFingerprint(keys.Public)

	store, dbPath, err := storage.Open(dataDir)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.WithError(err).Warn("database close failed")
		}
	}()

	hub := ws.NewHub(logger)
	server := api.NewServer(api.Options{
		Accounts:       auth.NewAuthenticator(store, cfg.RequireFaceMatch),
		Tokens:         auth.NewTokenIssuer(keys, time.Duration(cfg.TokenTTLMinutes)*time.Minute),
		Vault:          vault.NewService(store, hub, logger),
		Users:          store,
		Sockets:        hub,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Logger:         logger,
	})

	listener, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.ListenAddress, err)
	}
	httpServer := &http.Server{
		Handler:           server,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	logger.WithFields(logrus.Fields{
		"instance_id": cfg.InstanceID,
		"address":     listener.Addr().String(),
		"database":    dbPath,
		"fingerprint": crypto.FormatFingerprint(fingerprint),
	}).Info("vault listening")

	if cfg.ShouldAdvertise() && !opts.noMDNS {
		advertiser, err := discovery.StartAdvertiser(discovery.Config{
			InstanceID:     cfg.InstanceID,
			InstanceName:   cfg.InstanceName,
			Port:           listener.Addr().(*net.TCPAddr).Port,
			KeyFingerprint: fingerprint,
		})
		if err != nil {
			logger.WithError(err).Warn("mDNS advertisement unavailable")
		} else {
			defer advertiser.Stop()
		}
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		hub.Run(groupCtx)
		return nil
	})
	group.Go(func() error {
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http: %w", err)
		}
		return nil
	})

	if opts.ready != nil {
		opts.ready(listener.Addr())
	}

	err = group.Wait()
	logger.Info("vault stopped")
	return err
}
