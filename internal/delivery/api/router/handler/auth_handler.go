package handler

import (
	"net/http"

	"clubinex/internal/delivery/api/response"
	domainerrors "clubinex/internal/domain/errors"
	"clubinex/internal/domain/service"
	"clubinex/internal/presentation"
	"clubinex/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// AuthHandler serves registration and token endpoints.
type AuthHandler struct {
	users     usecase.UserUsecase
	tokens    service.TokenService
	formatter *presentation.Formatter
}

// NewAuthHandler is the constructor for AuthHandler, injected by Fx.
func NewAuthHandler(users usecase.UserUsecase, tokens service.TokenService, formatter *presentation.Formatter) *AuthHandler {
	return &AuthHandler{
		users:     users,
		tokens:    tokens,
		formatter: formatter,
	}
}

type registerRequest struct {
	Mobile    string `json:"mobile" validate:"required,mobile"`
	Email     string `json:"email" validate:"omitempty,email,max=255"`
	Password  string `json:"password" validate:"required,max=72"`
	FirstName string `json:"firstName" validate:"max=100"`
	LastName  string `json:"lastName" validate:"max=100"`
	// ReferralCode accepts a referral code or the referrer's mobile.
	ReferralCode string `json:"referralCode" validate:"omitempty,max=32"`
}

type registerResponse struct {
	User           presentation.UserView `json:"user"`
	ReferrerID     string                `json:"referrerId,omitempty"`
	ReferralLevels int                   `json:"referralLevels"`
}

type verifyMobileRequest struct {
	UserID string `json:"userId" validate:"required,uuid"`
	Code   string `json:"code" validate:"required,numeric"`
}

type loginRequest struct {
	Mobile   string `json:"mobile" validate:"required,mobile"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type tokenResponse struct {
	AccessToken  string                `json:"accessToken"`
	RefreshToken string                `json:"refreshToken"`
	TokenType    string                `json:"tokenType"`
	ExpiresIn    int64                 `json:"expiresIn"`
	User         presentation.UserView `json:"user"`
}

// Register handles member sign-up, optionally under a referrer.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	output, err := h.users.Register(c.Request().Context(), usecase.RegisterInput{
		Mobile:       req.Mobile,
		Email:        req.Email,
		Password:     req.Password,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		ReferralCode: req.ReferralCode,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	resp := registerResponse{
		User:           h.formatter.User(output.User),
		ReferralLevels: len(output.Edges),
	}
	if output.Referrer != nil {
		resp.ReferrerID = output.Referrer.ID.String()
	}

	return response.Success(c, http.StatusCreated, resp)
}

// VerifyMobile activates a pending member with their OTP code.
func (h *AuthHandler) VerifyMobile(c echo.Context) error {
	var req verifyMobileRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		return domainerrors.ErrValidationFailed.WithDetails("userId must be a UUID")
	}

	user, err := h.users.VerifyMobile(c.Request().Context(), userID, req.Code)
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, h.formatter.User(user))
}

// Login exchanges mobile and password for a token pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	output, err := h.users.Login(c.Request().Context(), usecase.LoginInput{
		Mobile:   req.Mobile,
		Password: req.Password,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, h.tokenResponse(output))
}

// Refresh rotates a token pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	output, err := h.users.Refresh(c.Request().Context(), req.RefreshToken)
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, h.tokenResponse(output))
}

func (h *AuthHandler) tokenResponse(output *usecase.LoginOutput) tokenResponse {
	return tokenResponse{
		AccessToken:  output.AccessToken,
		RefreshToken: output.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(h.tokens.GetAccessTokenDuration().Seconds()),
		User:         h.formatter.User(output.User),
	}
}
