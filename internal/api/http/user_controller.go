package http

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/astrolink/consult-rtc/internal/domain"
	"github.com/astrolink/consult-rtc/internal/repository"
	"github.com/astrolink/consult-rtc/internal/service"
	"github.com/astrolink/consult-rtc/lib/logger/sl"
)

type UserController struct {
	users service.UserInteractor
	log   *slog.Logger
}

func NewUserController(users service.UserInteractor, log *slog.Logger) *UserController {
	return &UserController{users: users, log: log}
}

type createUserRequest struct {
	Name         string `json:"name" binding:"required"`
	Email        string `json:"email"`
	IsAstrologer bool   `json:"is_astrologer"`
}

type userResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email,omitempty"`
	IsAstrologer bool      `json:"is_astrologer"`
	IsGuest      bool      `json:"is_guest"`
	CreatedAt    time.Time `json:"created_at"`
}

func toUserResponse(u *domain.User) userResponse {
	return userResponse{
		ID:           u.ID.String(),
		Name:         u.Name,
		Email:        u.Email,
		IsAstrologer: u.IsAstrologer,
		IsGuest:      u.IsGuest,
		CreatedAt:    u.CreatedAt,
	}
}

func (ctrl *UserController) CreateUser(c *gin.Context) {
	const op = "UserController.CreateUser"
	log := ctrl.log.With(slog.String("op", op))

	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	user, err := ctrl.users.CreateUser(c.Request.Context(), req.Name, req.Email, req.IsAstrologer)
	if err != nil {
		if errors.Is(err, repository.ErrUserEmailExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
			return
		}
		log.Error("failed to create user", sl.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
		return
	}

	c.JSON(http.StatusCreated, toUserResponse(user))
}

func (ctrl *UserController) GetUser(c *gin.Context) {
	id, err := uuid.Parse(c.Param("userID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	user, err := ctrl.users.GetUser(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		ctrl.log.Error("failed to get user", sl.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get user"})
		return
	}

	c.JSON(http.StatusOK, toUserResponse(user))
}
