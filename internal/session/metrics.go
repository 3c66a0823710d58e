package session

import (
	"ctchen222/tictactoe-minimax/internal/game"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("session")

var (
	gamesStarted         metric.Int64Counter
	gamesFinished        metric.Int64Counter
	movesApplied         metric.Int64Counter
	computerMoveDuration metric.Float64Histogram
)

func init() {
	var err error
	if gamesStarted, err = meter.Int64Counter("games.started",
		metric.WithDescription("Games started, including resets")); err != nil {
		otel.Handle(err)
	}
	if gamesFinished, err = meter.Int64Counter("games.finished",
		metric.WithDescription("Games that reached a win or a draw")); err != nil {
		otel.Handle(err)
	}
	if movesApplied, err = meter.Int64Counter("moves.applied",
		metric.WithDescription("Accepted moves by mode and actor")); err != nil {
		otel.Handle(err)
	}
	if computerMoveDuration, err = meter.Float64Histogram("computer.move.duration",
		metric.WithDescription("Time spent searching for the computer's move"),
		metric.WithUnit("ms")); err != nil {
		otel.Handle(err)
	}
}

func modeAttr(mode Mode) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("session.mode", string(mode)))
}

func actorAttr(actor string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("move.actor", actor))
}

func outcomeAttr(outcome game.Outcome) metric.MeasurementOption {
	return metric.WithAttributes(
		attribute.String("game.outcome", string(outcome.Status)),
		attribute.String("game.winner", string(outcome.Winner)),
	)
}
