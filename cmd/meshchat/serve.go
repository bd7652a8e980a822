package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/1ureka/1ureka.net.chat/internal/config"
	"github.com/1ureka/1ureka.net.chat/internal/httpapi"
	"github.com/1ureka/1ureka.net.chat/internal/registry"
	"github.com/1ureka/1ureka.net.chat/internal/relay"
)

var serveListenAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the signaling relay server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(config.Options{ListenAddr: serveListenAddr})
		if err != nil {
			return err
		}
		return runServe(cfg)
	},
}

func init() {
	serveCmd.Flags().StringVarP(&serveListenAddr, "listen", "l", "", "address to listen on (default "+config.DefaultListenAddr+")")
}

func runServe(cfg *config.Config) error {
	w := zerolog.ConsoleWriter{Out: os.Stdout}
	log := zerolog.New(w).With().Timestamp().Logger()

	rooms := registry.NewRooms()
	dir := registry.NewDirectory()
	hub := relay.NewHub(rooms, dir, log)
	go hub.Run()

	api := httpapi.NewServer(hub, log)

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: api.Router(),
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("relay server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errc:
		hub.Stop()
		return err
	case <-quit:
	}

	log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}

	hub.Stop()
	log.Info().Msg("relay server exited")
	return nil
}
