package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/halcyon-wallet/gateway/internal/approval"
	"github.com/halcyon-wallet/gateway/internal/auth"
	"github.com/halcyon-wallet/gateway/internal/config"
	"github.com/halcyon-wallet/gateway/internal/gateway"
	"github.com/halcyon-wallet/gateway/internal/session"
	"github.com/halcyon-wallet/gateway/internal/store"
)

// uiHandler serves the wallet frontend: approval decisions, session and
// registry management. Everything here sits behind the JWT guard except
// login itself.
type uiHandler struct {
	authSvc  *auth.Service
	repo     *store.Repository
	queue    *approval.Queue
	sessions *session.Manager
	gw       *gateway.Gateway
	cfg      config.GatewayConfig
	logger   *log.Logger
}

func newUIHandler(authSvc *auth.Service, repo *store.Repository, queue *approval.Queue, sessions *session.Manager, gw *gateway.Gateway, cfg config.GatewayConfig, logger *log.Logger) *uiHandler {
	return &uiHandler{
		authSvc:  authSvc,
		repo:     repo,
		queue:    queue,
		sessions: sessions,
		gw:       gw,
		cfg:      cfg,
		logger:   logger,
	}
}

func (h *uiHandler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	token, err := h.authSvc.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (h *uiHandler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"operatorId": c.GetUint("operatorID"),
		"username":   c.GetString("operatorUsername"),
	})
}

func (h *uiHandler) WSTicket(c *gin.Context) {
	ticket, err := h.authSvc.IssueWSTicket()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ticket issue failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ticket": ticket})
}

func (h *uiHandler) ListApprovals(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"approvals": h.queue.ListPending()})
}

func (h *uiHandler) RespondApproval(c *gin.Context) {
	id := c.Param("id")
	var req struct {
		Approved bool            `json:"approved"`
		Data     json.RawMessage `json:"data"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if err := h.queue.Respond(id, req.Approved, req.Data); err != nil {
		if errors.Is(err, approval.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "approval not found or already resolved"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "respond failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *uiHandler) CancelApproval(c *gin.Context) {
	if err := h.queue.Cancel(c.Param("id")); err != nil {
		if errors.Is(err, approval.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "approval not found or already resolved"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cancel failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *uiHandler) ListSessions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sessions": h.sessions.List()})
}

func (h *uiHandler) CloseSession(c *gin.Context) {
	windowID := c.Param("windowId")
	if windowID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing window id"})
		return
	}
	h.gw.CloseWindow(windowID)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *uiHandler) ListNetworks(c *gin.Context) {
	nets, err := h.repo.ListNetworks(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list networks failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"networks": nets})
}

func (h *uiHandler) ListAssets(c *gin.Context) {
	ctx := c.Request.Context()
	var chainID uint64
	if q := c.Query("chainId"); q != "" {
		id, err := strconv.ParseUint(q, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chainId"})
			return
		}
		chainID = id
	} else {
		active, err := h.repo.GetActiveNetwork(ctx)
		if err != nil || active == nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "no active network"})
			return
		}
		chainID = active.ChainID
	}
	assets, err := h.repo.ListAssets(ctx, chainID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list assets failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"assets": assets})
}

func (h *uiHandler) ListTrustedDapps(c *gin.Context) {
	dapps, err := h.repo.ListTrustedDapps(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list trusted dapps failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"dapps": dapps})
}

func (h *uiHandler) AddTrustedDapp(c *gin.Context) {
	var req struct {
		Origin string `json:"origin"`
		Name   string `json:"name"`
		Icon   string `json:"icon"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Origin == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "origin is required"})
		return
	}
	if err := h.repo.UpsertTrustedDapp(c.Request.Context(), &store.TrustedDapp{
		Origin: req.Origin,
		Name:   req.Name,
		Icon:   req.Icon,
	}); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *uiHandler) RemoveTrustedDapp(c *gin.Context) {
	origin := c.Query("origin")
	if origin == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "origin is required"})
		return
	}
	if err := h.repo.DeleteTrustedDapp(c.Request.Context(), origin); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *uiHandler) ApprovalHistory(c *gin.Context) {
	logs, err := h.repo.ListApprovalLogs(c.Request.Context(), h.cfg.ApprovalLogLimit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list history failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": logs})
}
