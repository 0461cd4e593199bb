// Command game-server runs the authoritative multiplayer server: it loads
// the map config, restores saved state, serves the HTTP/JSON API and
// drives the simulation either on an automatic tick or through explicit
// tick requests.
package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/artndx/game-server/api"
	"github.com/artndx/game-server/game/app"
	"github.com/artndx/game-server/game/config"
	"github.com/artndx/game-server/storage"
	"github.com/artndx/game-server/transport/websocket"
)

const serverAddr = "0.0.0.0:8080"

func main() {
	cmd := &cli.Command{
		Name:  "game-server",
		Usage: "authoritative game server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config-file",
				Aliases:  []string{"c"},
				Usage:    "set config file path",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "www-root",
				Aliases:  []string{"w"},
				Usage:    "set static files root",
				Required: true,
			},
			&cli.IntFlag{
				Name:    "tick-period",
				Aliases: []string{"t"},
				Usage:   "set tick period in milliseconds; without it time advances through the tick endpoint",
			},
			&cli.BoolFlag{
				Name:  "randomize-spawn-points",
				Usage: "spawn dogs at random road positions",
			},
			&cli.StringFlag{
				Name:  "state-file",
				Usage: "set file path for saving and restoring the game state",
			},
			&cli.IntFlag{
				Name:  "save-state-period",
				Usage: "set period for automatic state saving in milliseconds",
			},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()
	log := logger.Sugar()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warnw("failed to load .env", "err", err)
	}

	dbURL := os.Getenv("GAME_DB_URL")
	if dbURL == "" {
		return errors.New("GAME_DB_URL is not specified")
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	game, err := config.Load(cmd.String("config-file"), rnd)
	if err != nil {
		return fmt.Errorf("load game config: %w", err)
	}

	workers := runtime.NumCPU()
	store, err := storage.New(ctx, dbURL, workers)
	if err != nil {
		return fmt.Errorf("open leaderboard store: %w", err)
	}
	defer store.Close()
	if err := store.Bootstrap(ctx); err != nil {
		return fmt.Errorf("bootstrap leaderboard store: %w", err)
	}

	opts := app.Options{
		RandomizeSpawnPoints: cmd.Bool("randomize-spawn-points"),
		StateFile:            cmd.String("state-file"),
	}
	// Tick and save periods are plain milliseconds.
	if cmd.IsSet("tick-period") {
		period := time.Duration(cmd.Int("tick-period")) * time.Millisecond
		opts.TickPeriod = &period
	}
	if cmd.IsSet("save-state-period") {
		period := time.Duration(cmd.Int("save-state-period")) * time.Millisecond
		opts.SaveStatePeriod = &period
	}

	application := app.New(game, store, log, opts)
	application.LoadState()

	hub := websocket.NewHub(log)
	application.SetStateListener(hub)

	server := api.NewServer(application, log, api.Options{
		WWWRoot: cmd.String("www-root"),
		Hub:     hub,
	})
	httpServer := &http.Server{
		Addr:    serverAddr,
		Handler: server.Router(),
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Infow("server started", "addr", serverAddr, "manual_ticks", application.ManualTicks())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		hub.Run(groupCtx)
		return nil
	})

	group.Go(func() error {
		application.RunTickers(groupCtx)
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	err = group.Wait()

	// The final snapshot happens after every tick handler has finished.
	application.SaveState()
	log.Infow("server stopped")
	return err
}
