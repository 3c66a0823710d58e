package main

import (
	"context"
	"ctchen222/tictactoe-minimax/internal/bot"
	"ctchen222/tictactoe-minimax/internal/config"
	"ctchen222/tictactoe-minimax/internal/hub/types"
	"ctchen222/tictactoe-minimax/internal/logger"
	"ctchen222/tictactoe-minimax/internal/player"
	"ctchen222/tictactoe-minimax/internal/session"
	"ctchen222/tictactoe-minimax/internal/terminal"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
)

func main() {
	mode := flag.String("mode", string(session.ModeSingle), "single (against the computer) or multi (two players)")
	delay := flag.Duration("delay", session.DefaultComputerDelay, "pause before the computer answers")
	autoplay := flag.Bool("autoplay", false, "let the computer play the human seat too and watch")
	flag.Parse()

	level, err := config.ParseLogLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if os.Getenv("LOG_LEVEL") == "" {
		level = slog.LevelWarn
	}
	slog.SetDefault(logger.New(logger.Options{Console: os.Stderr, Level: level}))

	m, err := session.ParseMode(*mode)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := session.New(uuid.New().String(), m, session.Options{
		Calculator:    &bot.Calculator{},
		ComputerDelay: *delay,
	})
	s.Start(ctx)
	defer s.Close()

	conn := terminal.NewConnection(os.Stdin, os.Stdout)
	p := player.NewPlayer("terminal", conn)
	if err := s.Attach(ctx, p); err != nil {
		slog.Error("failed to attach terminal", "error", err)
		os.Exit(1)
	}

	departures := make(chan *types.Departure, 2)
	if *autoplay {
		watch(ctx, s, departures, *delay)
		fmt.Println("Bye.")
		return
	}

	go s.ReadPump(p, departures)

	select {
	case <-departures:
	case <-ctx.Done():
		conn.Close()
	}
	fmt.Println("Bye.")
}

// watch seats an autoplayer and returns when its game has finished.
func watch(ctx context.Context, s *session.Session, departures chan *types.Departure, delay time.Duration) {
	ac := bot.NewAutoConnection("autoplayer", delay)
	auto := player.NewPlayer("autoplayer", ac)
	if err := s.Attach(ctx, auto); err != nil {
		slog.Error("failed to attach autoplayer", "error", err)
		return
	}
	go s.ReadPump(auto, departures)
	defer ac.Close()

	select {
	case <-ac.Finished():
	case <-departures:
	case <-ctx.Done():
	}
}
