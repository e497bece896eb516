// Package router contains routing and server setup for the HTTP delivery.
package router

import (
	"clubinex/internal/delivery/api/middleware"
	"clubinex/internal/delivery/api/router/handler"
	"clubinex/internal/domain/entity"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

type RouterParams struct {
	fx.In

	AuthHandler    *handler.AuthHandler
	MeHandler      *handler.MeHandler
	AgentHandler   *handler.AgentHandler
	AdminHandler   *handler.AdminHandler
	AuthMiddleware *middleware.AuthMiddleware
}

// router holds all the handlers that need to be registered.
type router struct {
	authHandler    *handler.AuthHandler
	meHandler      *handler.MeHandler
	agentHandler   *handler.AgentHandler
	adminHandler   *handler.AdminHandler
	authMiddleware *middleware.AuthMiddleware
}

// NewRouter is the constructor for the Router.
// Fx will inject the required handlers here.
func NewRouter(params RouterParams) *router {
	return &router{
		authHandler:    params.AuthHandler,
		meHandler:      params.MeHandler,
		agentHandler:   params.AgentHandler,
		adminHandler:   params.AdminHandler,
		authMiddleware: params.AuthMiddleware,
	}
}

// RegisterRoutes sets up all the API routes for the application.
func (r *router) RegisterRoutes(e *echo.Echo) {
	// Health check endpoint
	e.GET("/health", handler.HealthCheck)

	// Auth routes
	authGroup := e.Group("/auth")
	{
		authGroup.POST("/register", r.authHandler.Register)
		authGroup.POST("/verify-mobile", r.authHandler.VerifyMobile)
		authGroup.POST("/login", r.authHandler.Login)
		authGroup.POST("/refresh", r.authHandler.Refresh)
	}

	// API v1 routes
	apiV1 := e.Group("/api/v1")
	apiV1.Use(r.authMiddleware.Authenticate) // All API v1 routes require authentication

	meGroup := apiV1.Group("/me")
	{
		meGroup.GET("", r.meHandler.Profile)
		meGroup.GET("/points", r.meHandler.Points)
		meGroup.POST("/points/redeem", r.meHandler.Redeem)
		meGroup.GET("/referrals", r.meHandler.Referrals)
		meGroup.GET("/referrals/stats", r.meHandler.ReferralStats)
		meGroup.GET("/referral-qrcode", r.meHandler.ReferralQRCode)
	}

	agentsGroup := apiV1.Group("/agents")
	{
		agentsGroup.POST("", r.agentHandler.RegisterAgent)
		agentsGroup.POST("/clients", r.agentHandler.AddClient)
	}

	// Operator routes
	adminGroup := e.Group("/admin")
	adminGroup.Use(r.authMiddleware.Authenticate)
	adminGroup.Use(r.authMiddleware.RequireRole(entity.RoleAdmin))
	{
		adminGroup.POST("/point-transactions", r.adminHandler.EarnPoints)
		adminGroup.POST("/users/:id/disable", r.adminHandler.DisableUser)
		adminGroup.POST("/agents/:id/verify", r.adminHandler.VerifyAgent)
		adminGroup.POST("/agents/:id/active", r.adminHandler.SetAgentActive)
		adminGroup.GET("/failed-jobs", r.adminHandler.ListFailedJobs)
		adminGroup.POST("/failed-jobs/:id/retry", r.adminHandler.RetryFailedJob)
	}
}
