package server

import (
	"log"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/halcyon-wallet/gateway/internal/approval"
	"github.com/halcyon-wallet/gateway/internal/auth"
	"github.com/halcyon-wallet/gateway/internal/config"
	"github.com/halcyon-wallet/gateway/internal/gateway"
	"github.com/halcyon-wallet/gateway/internal/session"
	"github.com/halcyon-wallet/gateway/internal/store"
)

// NewRouter assembles both HTTP surfaces: the provider endpoint dApp
// webviews talk to, and the authenticated API the wallet UI talks to.
func NewRouter(cfg config.Config, authSvc *auth.Service, gw *gateway.Gateway, queue *approval.Queue, sessions *session.Manager, repo *store.Repository, hub *EventHub, logger *log.Logger) *gin.Engine {
	r := gin.New()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"*"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/healthz", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })

	dapp := newDappHandler(gw, logger)
	r.POST("/rpc", dapp.HandleRPC)
	r.POST("/windows/:windowId/closed", dapp.WindowClosed)

	ui := newUIHandler(authSvc, repo, queue, sessions, gw, cfg.Gateway, logger)
	r.POST("/auth/login", ui.Login)
	r.GET("/ws/events", hub.ServeWS)

	guard := auth.JWTMiddleware(authSvc)
	api := r.Group("/api/v1", guard)
	{
		api.GET("/me", ui.Me)
		api.POST("/ws-ticket", ui.WSTicket)

		api.GET("/approvals", ui.ListApprovals)
		api.POST("/approvals/:id/respond", ui.RespondApproval)
		api.POST("/approvals/:id/cancel", ui.CancelApproval)
		api.GET("/approvals/history", ui.ApprovalHistory)

		api.GET("/sessions", ui.ListSessions)
		api.DELETE("/sessions/:windowId", ui.CloseSession)

		api.GET("/networks", ui.ListNetworks)
		api.GET("/assets", ui.ListAssets)

		api.GET("/trusted-dapps", ui.ListTrustedDapps)
		api.POST("/trusted-dapps", ui.AddTrustedDapp)
		api.DELETE("/trusted-dapps", ui.RemoveTrustedDapp)
	}

	return r
}
