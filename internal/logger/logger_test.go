package logger

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingHandler struct{ slog.Handler }

func (failingHandler) Handle(context.Context, slog.Record) error { return errors.New("exporter down") }

func TestMultiHandlerFansOut(t *testing.T) {
	var debugBuf, warnBuf bytes.Buffer
	debug := slog.NewTextHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug})
	warn := slog.NewTextHandler(&warnBuf, &slog.HandlerOptions{Level: slog.LevelWarn})

	log := slog.New(NewMultiHandler(debug, warn)).With("session.id", "s-1")
	log.Info("move applied", "index", 4)
	log.Warn("invalid move", "index", 9)

	assert.Contains(t, debugBuf.String(), "move applied")
	assert.Contains(t, debugBuf.String(), "session.id=s-1")
	assert.Contains(t, debugBuf.String(), "invalid move")
	assert.NotContains(t, warnBuf.String(), "move applied")
	assert.Contains(t, warnBuf.String(), "invalid move")
}

func TestMultiHandlerEnabled(t *testing.T) {
	var buf bytes.Buffer
	h := NewMultiHandler(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelError}))
	assert.False(t, h.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, h.Enabled(context.Background(), slog.LevelError))
}

func TestMultiHandlerKeepsGoingAfterFailure(t *testing.T) {
	var buf bytes.Buffer
	ok := slog.NewTextHandler(&buf, nil)
	failing := failingHandler{Handler: slog.NewTextHandler(&bytes.Buffer{}, nil)}

	h := NewMultiHandler(failing, ok)
	err := h.Handle(context.Background(), slog.NewRecord(time.Time{}, slog.LevelInfo, "finished", 0))
	require.Error(t, err)
	assert.Contains(t, buf.String(), "finished")
}

func TestNewConsoleOnly(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Console: &buf, Level: slog.LevelWarn})

	log.Info("computer thinking")
	log.Warn("failed to save snapshot", "session.id", "s-2")

	assert.NotContains(t, buf.String(), "computer thinking")
	assert.Contains(t, buf.String(), "failed to save snapshot")
	assert.Contains(t, buf.String(), "session.id=s-2")
	assert.IsType(t, &slog.TextHandler{}, log.Handler())
}

func TestNewWithOtel(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Console: &buf, Level: slog.LevelInfo, Otel: true})
	require.IsType(t, &MultiHandler{}, log.Handler())

	log.Info("game finished", "outcome", "draw")
	assert.Contains(t, buf.String(), "outcome=draw")
}
