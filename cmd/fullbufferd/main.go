package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/urfave/cli/v2"

	"mpv-fullbuffer/internal/buffering"
	"mpv-fullbuffer/internal/mpv"
	"mpv-fullbuffer/internal/platform/config"
	"mpv-fullbuffer/internal/platform/logger"
	"mpv-fullbuffer/internal/platform/metrics"
	"mpv-fullbuffer/internal/schedule"
	"mpv-fullbuffer/internal/session"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()

	app := &cli.App{
		Name:  "fullbufferd",
		Usage: "force mpv to buffer the whole loaded file, then restore playback",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "socket", Usage: "mpv IPC socket path (--input-ipc-server)", Value: config.GetEnv("MPV_SOCKET", "/tmp/mpvsocket")},
			&cli.StringFlag{Name: "port", Usage: "HTTP control port", Value: config.GetEnv("PORT", "8080")},
			&cli.BoolFlag{Name: "http", Usage: "serve the HTTP control API and metrics", Value: config.GetEnvBool("HTTP_ENABLED", true)},
			&cli.StringFlag{Name: "log-level", Value: config.GetEnv("LOG_LEVEL", "info")},
			&cli.StringFlag{Name: "log-format", Value: config.GetEnv("LOG_FORMAT", "json")},
			&cli.StringFlag{Name: "log-file", Usage: "rotate logs into this file instead of stdout", Value: config.GetEnv("LOG_FILE", "")},
			&cli.StringFlag{Name: "tuning", Usage: "YAML file overriding buffering options", Value: config.GetEnv("TUNING_FILE", "fullbuffer.yaml")},
			&cli.DurationFlag{Name: "socket-wait", Usage: "how long to wait for mpv to create its socket", Value: config.GetEnvDuration("SOCKET_WAIT", 30*time.Second)},
			&cli.DurationFlag{Name: "command-timeout", Value: config.GetEnvDuration("COMMAND_TIMEOUT", mpv.DefaultCommandTimeout)},
			&cli.DurationFlag{Name: "frame-interval", Usage: "stall check interval", Value: config.GetEnvDuration("FRAME_INTERVAL", schedule.DefaultFrameInterval)},
			&cli.IntFlag{Name: "poll-ceiling", Usage: "give up after this many coverage polls per target (0 = never)", Value: config.GetEnvInt("POLL_CEILING", 0)},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	out, closeLog := logger.Output(c.String("log-file"))
	defer closeLog()
	log := logger.New(c.String("log-level"), c.String("log-format"), out)

	opts := buffering.DefaultOptions()
	if err := config.LoadYAML(c.String("tuning"), &opts); err != nil {
		return err
	}
	if n := c.Int("poll-ceiling"); n != 0 || c.IsSet("poll-ceiling") {
		opts.PollCeiling = n
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	socket := c.String("socket")
	waitCtx, cancelWait := context.WithTimeout(ctx, c.Duration("socket-wait"))
	err := mpv.WaitForSocket(waitCtx, socket)
	cancelWait()
	if err != nil {
		return err
	}

	client, err := mpv.Dial(ctx, socket, log.With(slog.String("component", "mpv")))
	if err != nil {
		return err
	}
	defer client.Close()

	loop := schedule.NewLoop(c.Duration("frame-interval"), log.With(slog.String("component", "loop")))
	loopCtx, cancelLoop := context.WithCancel(context.Background())
	defer cancelLoop()
	go loop.Run(loopCtx)

	met := metrics.New()
	repo := session.NewInMemoryRepository()
	mgr := session.NewManager(repo, loop, log.With(slog.String("component", "session")), opts, met)

	player := mpv.NewPlayer(client, loop, log.With(slog.String("component", "player")), c.Duration("command-timeout"))
	player.OnLoad = func(h *mpv.Handle) { mgr.Attach(h) }
	player.OnUnload = func(h *mpv.Handle) { mgr.Detach(h) }

	var srv *http.Server
	if c.Bool("http") {
		h := session.NewHandler(mgr, repo, loop, log.With(slog.String("component", "http")))

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(logger.RequestLogger(log))
		r.Use(metrics.RequestMiddleware(met))
		r.Method(http.MethodGet, "/metrics", met.Handler(func() { met.SetActiveSessions(repo.ActiveSessionCount()) }))
		h.Routes(r)

		srv = &http.Server{Addr: ":" + c.String("port"), Handler: r}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("server error", slog.String("error", err.Error()))
				stop()
			}
		}()
	}

	playerDone := make(chan error, 1)
	go func() { playerDone <- player.Run(ctx) }()

	log.Info("fullbufferd started",
		slog.String("socket", socket),
		slog.Bool("http", srv != nil),
		slog.String("port", c.String("port")),
		slog.Duration("window_size", opts.WindowSize),
		slog.Int("poll_ceiling", opts.PollCeiling),
	)

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-playerDone:
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Warn("player connection ended", slog.String("error", err.Error()))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown error", slog.String("error", err.Error()))
		}
	}
	// Sessions restore playback before the connection goes away.
	if err := loop.Do(shutdownCtx, mgr.StopAll); err != nil {
		log.Error("stop sessions", slog.String("error", err.Error()))
	}

	log.Info("fullbufferd stopped")
	return nil
}
