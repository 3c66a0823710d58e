package server

import (
	"context"
	"ctchen222/tictactoe-minimax/internal/api/controller"
	"ctchen222/tictactoe-minimax/internal/api/middleware"
	"ctchen222/tictactoe-minimax/internal/hub/types"
	"ctchen222/tictactoe-minimax/internal/player"
	"log/slog"
	"net/http"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("server")

// Registrar accepts websocket registrations.
type Registrar interface {
	Register() chan<- *types.RegistrationRequest
}

// Option configures a Server.
type Option func(*Server)

// WithProfiling mounts the runtime profiling handlers under /debug/pprof.
func WithProfiling() Option {
	return func(s *Server) { s.profiling = true }
}

type Server struct {
	hub            Registrar
	userController *controller.UserController
	gameController *controller.GameController
	tokens         middleware.TokenParser
	upgrader       websocket.Upgrader
	engine         *gin.Engine
	profiling      bool
}

func NewServer(h Registrar, userController *controller.UserController, gameController *controller.GameController, tokens middleware.TokenParser, opts ...Option) *Server {
	s := &Server{
		hub:            h,
		userController: userController,
		gameController: gameController,
		tokens:         tokens,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.engine = s.routes()
	return s
}

// Engine returns the gin engine serving every route.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/ws", middleware.Auth(s.tokens, false), s.handleWebSocket)
	if s.profiling {
		pprof.Register(r)
	}

	api := r.Group("/api")
	optionalAuth := middleware.Auth(s.tokens, false)

	games := api.Group("/games", optionalAuth)
	games.POST("", s.gameController.Create)
	games.GET("/:id", s.gameController.Get)
	games.POST("/:id/moves", s.gameController.Move)
	games.POST("/:id/reset", s.gameController.Reset)

	api.GET("/stats", s.gameController.Stats)
	api.GET("/results", s.gameController.Results)

	users := api.Group("/users")
	users.POST("/register", s.userController.Register)
	users.POST("/login", s.userController.Login)
	users.POST("/guest", s.userController.GuestLogin)
	users.GET("/me/stats", middleware.Auth(s.tokens, true), s.gameController.MyStats)

	return r
}

// handleWebSocket's only responsibility is to upgrade the connection and
// pass a registration request to the hub.
func (s *Server) handleWebSocket(c *gin.Context) {
	r := c.Request
	ctx, span := tracer.Start(r.Context(), "server.handleWebSocket", trace.WithAttributes(
		attribute.String("http.url", r.URL.String()),
		attribute.String("http.method", r.Method),
	))
	defer span.End()

	mode := c.Query("mode")
	if mode != "" && mode != "single" && mode != "multi" {
		c.String(http.StatusBadRequest, "mode must be single or multi")
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, r, nil)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to upgrade connection", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to upgrade connection")
		return
	}

	// Get playerID from URL, or generate a new one.
	playerID := c.Query("playerId")
	if playerID == "" {
		playerID = uuid.New().String()
	}
	sessionID := c.Query("sessionId")
	span.SetAttributes(
		attribute.String("player.id", playerID),
		attribute.String("session.id", sessionID),
		attribute.String("session.mode", mode),
	)

	// The request context ends with this handler; the connection outlives it.
	req := &types.RegistrationRequest{
		Player:    player.NewPlayer(playerID, conn),
		PlayerID:  playerID,
		SessionID: sessionID,
		Mode:      mode,
		Owner:     middleware.Username(c),
		Ctx:       context.WithoutCancel(ctx),
	}
	s.hub.Register() <- req
}
