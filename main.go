package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"edu-arena/internal/config"
	"edu-arena/internal/console"
	"edu-arena/internal/logger"
	"edu-arena/internal/models"
	"edu-arena/internal/rendezvous"
	"edu-arena/internal/repository"
	"edu-arena/internal/room"
	"edu-arena/internal/server"
	"edu-arena/internal/services"
	"edu-arena/internal/state"
	"edu-arena/internal/transport"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
	}
	cfg := config.Load()
	log := logger.New(cfg.LogLevel)
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch cfg.Mode {
	case "rendezvous":
		err = runRendezvous(ctx, cfg, log)
	case "host":
		err = runHost(ctx, cfg, log)
	case "student":
		err = runStudent(ctx, cfg, log)
	case "local":
		err = runLocal(ctx, cfg, log)
	default:
		err = fmt.Errorf("unknown ARENA_MODE %q", cfg.Mode)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("exiting", "mode", cfg.Mode, "error", err)
		os.Exit(1)
	}
}

func runRendezvous(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	var registry repository.Registry
	if cfg.DatabaseURL != "" {
		pg, err := repository.NewPostgresRegistry(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer pg.Close()
		log.Info("using postgres registry")
		registry = pg
	} else {
		log.Info("using in-memory registry (development mode)")
		registry = repository.NewInMemoryRegistry()
	}

	srv := server.NewServer(cfg, registry, log)
	g, ctx := errgroup.WithContext(ctx)
	serve(ctx, g, ":"+cfg.Port, srv.Handler(), log)
	return g.Wait()
}

func runHost(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	code := cfg.RoomCode
	if code == "" {
		code = room.GenerateCode()
	}
	if !room.ValidCode(code) {
		return fmt.Errorf("room code %q must be %d letters or digits", code, room.CodeLength)
	}

	rv := rendezvous.NewClient(cfg.RendezvousURL)
	peer := transport.NewPeerHost(code, rv, log)
	manager := room.NewManager()
	defer manager.Close()

	r, err := manager.Create(code, room.Options{
		Mode:      room.ModeHost,
		Transport: peer,
		Quizzes:   services.NewQuestionDatabase().Quizzes(),
		Logger:    log,
	})
	if err != nil {
		peer.Close()
		return err
	}
	watch(r, os.Stdout)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)
	serve(ctx, g, ":"+cfg.Port, peer.Handler(), log)

	advertise := cfg.AdvertiseURL
	if advertise == "" {
		advertise = "ws://localhost:" + cfg.Port + "/peer"
	}
	if err := peer.Register(ctx, advertise); err != nil {
		cancel()
		g.Wait()
		return err
	}
	fmt.Printf("hosting room %s\n", code)

	c := console.New(os.Stdout, &console.Session{Room: r})
	g.Go(func() error {
		defer cancel()
		return c.Run(ctx, os.Stdin)
	})
	return g.Wait()
}

func runStudent(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	if cfg.RoomCode == "" {
		return services.ErrMissingRoomCode
	}
	rv := rendezvous.NewClient(cfg.RendezvousURL)

	dialCtx, cancelDial := context.WithTimeout(ctx, 10*time.Second)
	peer, err := transport.DialPeer(dialCtx, rv, cfg.RoomCode, time.Duration(cfg.HeartbeatSeconds)*time.Second, log)
	cancelDial()
	if err != nil {
		return err
	}

	r, err := room.New(cfg.RoomCode, room.Options{Mode: room.ModeStudent, Transport: peer, Logger: log})
	if err != nil {
		peer.Close()
		return err
	}
	defer r.Close()
	watch(r, os.Stdout)

	session := &console.Session{Room: r}
	if cfg.PlayerName != "" {
		id, err := r.Join(models.JoinRequest{
			RoomCode:  cfg.RoomCode,
			Name:      cfg.PlayerName,
			TeamID:    cfg.TeamID,
			Role:      models.Role(cfg.Role),
			ClassType: models.ClassType(cfg.ClassType),
		})
		if err != nil {
			return err
		}
		session.PlayerID = id
		fmt.Printf("join sent as %s, waiting for host\n", id)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-peer.Done():
			fmt.Println("connection to host lost")
			cancel()
		case <-ctx.Done():
		}
	}()
	return console.New(os.Stdout, session).Run(ctx, os.Stdin)
}

// runLocal plays two same-device tabs over a local broadcast channel.
func runLocal(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	code := cfg.RoomCode
	if code == "" {
		code = room.GenerateCode()
	}
	bus := transport.NewBus(log)

	var sessions []*console.Session
	for i := 1; i <= 2; i++ {
		r, err := room.New(code, room.Options{
			Mode:      room.ModeBroadcast,
			Transport: bus.Open(code),
			Quizzes:   services.NewQuestionDatabase().Quizzes(),
			Logger:    log.With("tab", i),
		})
		if err != nil {
			return err
		}
		defer r.Close()
		sessions = append(sessions, &console.Session{Room: r})
	}
	watch(sessions[0].Room, os.Stdout)
	fmt.Printf("local room %s with %d tabs, use \"tab N\" to switch\n", code, len(sessions))

	return console.New(os.Stdout, sessions...).Run(ctx, os.Stdin)
}

func watch(r *room.Room, out io.Writer) {
	r.Subscribe(state.EventStateChange, func(e state.Event) {
		fmt.Fprint(out, console.Summary(e.State))
	})
	r.Subscribe(state.EventNotice, func(e state.Event) {
		fmt.Fprintf(out, "! %s\n", e.Notice)
	})
}

func serve(ctx context.Context, g *errgroup.Group, addr string, h http.Handler, log *slog.Logger) {
	srv := &http.Server{Addr: addr, Handler: h}
	g.Go(func() error {
		log.Info("listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}
