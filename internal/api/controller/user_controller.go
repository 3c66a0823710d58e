package controller

import (
	"ctchen222/tictactoe-minimax/internal/api/models"
	"ctchen222/tictactoe-minimax/internal/api/response"
	"ctchen222/tictactoe-minimax/internal/api/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

// UserController handles user-related HTTP requests.
type UserController struct {
	userService service.UserService
}

// NewUserController creates a new UserController.
func NewUserController(userService service.UserService) *UserController {
	return &UserController{
		userService: userService,
	}
}

// Register handles the user registration endpoint.
func (uc *UserController) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := uc.userService.Register(c.Request.Context(), &req); err != nil {
		response.ErrorResponseFor(c, err, "could not create user",
			response.NewError(service.ErrUsernameTaken, http.StatusConflict, ""))
		return
	}

	response.CreatedResponse(c, models.RegisterResponse{Username: req.Username})
}

// Login handles the user login endpoint.
func (uc *UserController) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	token, err := uc.userService.Login(c.Request.Context(), &req)
	if err != nil {
		response.ErrorResponseFor(c, err, "could not log in",
			response.NewError(service.ErrInvalidCredentials, http.StatusUnauthorized, ""))
		return
	}

	response.SuccessResponse(c, models.LoginResponse{Token: token})
}

// GuestLogin handles guest login, returning a generated player ID.
func (uc *UserController) GuestLogin(c *gin.Context) {
	playerID, err := uc.userService.GuestLogin(c.Request.Context())
	if err != nil {
		response.ErrorResponse(c, http.StatusInternalServerError, "could not create guest")
		return
	}

	response.SuccessResponse(c, models.GuestResponse{PlayerID: playerID})
}
