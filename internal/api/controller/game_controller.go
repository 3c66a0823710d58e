package controller

import (
	"ctchen222/tictactoe-minimax/internal/api/middleware"
	"ctchen222/tictactoe-minimax/internal/api/models"
	"ctchen222/tictactoe-minimax/internal/api/response"
	"ctchen222/tictactoe-minimax/internal/api/service"
	"ctchen222/tictactoe-minimax/internal/game"
	"ctchen222/tictactoe-minimax/internal/repository"
	"ctchen222/tictactoe-minimax/internal/session"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// GameController handles game-related HTTP requests.
type GameController struct {
	gameService service.GameService
}

// NewGameController creates a new GameController.
func NewGameController(gameService service.GameService) *GameController {
	return &GameController{
		gameService: gameService,
	}
}

// Create starts a new game session.
func (gc *GameController) Create(c *gin.Context) {
	var req models.CreateGameRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	state, err := gc.gameService.Create(c.Request.Context(), req.Mode, middleware.Username(c))
	if err != nil {
		gc.fail(c, err)
		return
	}
	response.CreatedResponse(c, state)
}

// Get returns a session's current state.
func (gc *GameController) Get(c *gin.Context) {
	state, err := gc.gameService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		gc.fail(c, err)
		return
	}
	response.SuccessResponse(c, state)
}

// Move applies a human move to a session.
func (gc *GameController) Move(c *gin.Context) {
	var req models.MoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	state, err := gc.gameService.Move(c.Request.Context(), c.Param("id"), *req.Index)
	if err != nil {
		gc.fail(c, err)
		return
	}
	response.SuccessResponse(c, state)
}

// Reset starts a new game in the same session.
func (gc *GameController) Reset(c *gin.Context) {
	var req models.ResetRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	state, err := gc.gameService.Reset(c.Request.Context(), c.Param("id"), req.Mode)
	if err != nil {
		gc.fail(c, err)
		return
	}
	response.SuccessResponse(c, state)
}

// Stats returns aggregate results for every finished game.
func (gc *GameController) Stats(c *gin.Context) {
	stats, err := gc.gameService.Stats(c.Request.Context(), "")
	if err != nil {
		gc.fail(c, err)
		return
	}
	response.SuccessResponse(c, stats)
}

// MyStats returns aggregate results for the authenticated user.
func (gc *GameController) MyStats(c *gin.Context) {
	stats, err := gc.gameService.Stats(c.Request.Context(), middleware.Username(c))
	if err != nil {
		gc.fail(c, err)
		return
	}
	response.SuccessResponse(c, stats)
}

// Results lists recent finished games, optionally filtered by ?owner=.
func (gc *GameController) Results(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			response.ErrorResponse(c, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	results, err := gc.gameService.RecentResults(c.Request.Context(), c.Query("owner"), limit)
	if err != nil {
		gc.fail(c, err)
		return
	}
	list := make([]any, len(results))
	for i := range results {
		list[i] = results[i]
	}
	response.SuccessResponseList(c, list)
}

var gameErrors = []response.Error{
	response.NewError(repository.ErrSessionNotFound, http.StatusNotFound, "session not found"),
	response.NewError(session.ErrSessionClosed, http.StatusNotFound, "session not found"),
	response.NewError(session.ErrInvalidMode, http.StatusBadRequest, ""),
	response.NewError(service.ErrInvalidLimit, http.StatusBadRequest, ""),
	response.NewError(game.ErrInvalidMove, http.StatusUnprocessableEntity, ""),
	response.NewError(session.ErrNotYourTurn, http.StatusConflict, ""),
}

func (gc *GameController) fail(c *gin.Context, err error) {
	response.ErrorResponseFor(c, err, "internal error", gameErrors...)
}
