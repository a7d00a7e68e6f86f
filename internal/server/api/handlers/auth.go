package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/VersatilVC/cybra-content-flow-sub002/internal/database"
	"github.com/VersatilVC/cybra-content-flow-sub002/internal/server/api/middleware"
	"github.com/danielgtaylor/huma/v2"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

type AuthHandler struct {
	store     *database.Store
	jwtSecret string
	jwtExpiry time.Duration
}

func NewAuthHandler(store *database.Store, jwtSecret string, jwtExpiry time.Duration) *AuthHandler {
	return &AuthHandler{store: store, jwtSecret: jwtSecret, jwtExpiry: jwtExpiry}
}

type LoginInput struct {
	Body struct {
		Username string `json:"username" minLength:"1" doc:"Account username"`
		Password string `json:"password" minLength:"1" doc:"Account password"`
	}
}

type LoginBody struct {
	Token     string    `json:"token" doc:"JWT bearer token"`
	ExpiresAt time.Time `json:"expires_at" doc:"Token expiry"`
}

type LoginOutput struct {
	Body LoginBody
}

func (h *AuthHandler) Login(ctx context.Context, input *LoginInput) (*LoginOutput, error) {
	user, err := h.store.GetUserByUsername(ctx, input.Body.Username)
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			return nil, huma.Error401Unauthorized("invalid credentials")
		}
		return nil, huma.Error500InternalServerError(err.Error())
	}
	if !user.IsActive {
		return nil, huma.Error403Forbidden("account disabled")
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Body.Password)) != nil {
		return nil, huma.Error401Unauthorized("invalid credentials")
	}

	expiresAt := time.Now().Add(h.jwtExpiry)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  user.ID,
		"role": user.Role,
		"iat":  time.Now().Unix(),
		"exp":  expiresAt.Unix(),
	})
	signed, err := token.SignedString([]byte(h.jwtSecret))
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to sign token")
	}

	return &LoginOutput{Body: LoginBody{Token: signed, ExpiresAt: expiresAt}}, nil
}

type MeBody struct {
	ID       string `json:"id" doc:"User ID"`
	Username string `json:"username" doc:"Username"`
	Role     string `json:"role" doc:"User role"`
}

type MeOutput struct {
	Body MeBody
}

func (h *AuthHandler) Me(ctx context.Context, _ *struct{}) (*MeOutput, error) {
	user, err := h.store.GetUserByID(ctx, middleware.GetUserID(ctx))
	if err != nil {
		return nil, huma.Error404NotFound("user not found")
	}
	return &MeOutput{Body: MeBody{ID: user.ID, Username: user.Username, Role: user.Role}}, nil
}
