package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/astrolink/consult-rtc/internal/domain"
	"github.com/astrolink/consult-rtc/internal/service"
	"github.com/astrolink/consult-rtc/lib/logger/sl"
)

type AuthController struct {
	users     service.UserInteractor
	jwtSecret string
	tokenTTL  time.Duration
	log       *slog.Logger
}

func NewAuthController(users service.UserInteractor, jwtSecret string, tokenTTL time.Duration, log *slog.Logger) *AuthController {
	return &AuthController{users: users, jwtSecret: jwtSecret, tokenTTL: tokenTTL, log: log}
}

type loginRequest struct {
	UserID string `json:"user_id"`
	Name   string `json:"name" binding:"required"`
}

type loginResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

// Login issues a signaling token. A known user_id reuses the stored profile,
// otherwise a guest account is created for the given name.
func (ctrl *AuthController) Login(c *gin.Context) {
	const op = "AuthController.Login"
	log := ctrl.log.With(slog.String("op", op))

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	user, err := ctrl.resolveUser(c, req)
	if err != nil {
		log.Error("failed to resolve user", sl.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve user"})
		return
	}

	claims := JWTClaims{
		UserID: user.ID.String(),
		Name:   user.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ctrl.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(ctrl.jwtSecret))
	if err != nil {
		log.Error("failed to sign token", sl.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}

	c.JSON(http.StatusOK, loginResponse{Token: signed, User: toUserResponse(user)})
}

func (ctrl *AuthController) resolveUser(c *gin.Context, req loginRequest) (*domain.User, error) {
	if req.UserID != "" {
		if id, err := uuid.Parse(req.UserID); err == nil {
			if user, err := ctrl.users.GetUser(c.Request.Context(), id); err == nil {
				return user, nil
			}
		}
	}
	return ctrl.users.CreateGuest(c.Request.Context(), req.Name)
}
