package server

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/halcyon-wallet/gateway/internal/gateway"
)

const windowHeader = "X-Wallet-Window"

// dappHandler is the provider surface injected into dApp webviews. Origin
// comes from the browser; the window id is stamped onto every request by
// the host shell so sessions stay window scoped.
type dappHandler struct {
	gw     *gateway.Gateway
	logger *log.Logger
}

func newDappHandler(gw *gateway.Gateway, logger *log.Logger) *dappHandler {
	return &dappHandler{gw: gw, logger: logger}
}

func (h *dappHandler) HandleRPC(c *gin.Context) {
	var req rpcRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, rpcErr(nil, -32700, "parse error", nil))
		return
	}
	origin := c.GetHeader("Origin")
	windowID := c.GetHeader(windowHeader)
	if origin == "" || windowID == "" {
		c.JSON(http.StatusOK, rpcErr(req.ID, -32600, "missing origin or window id", nil))
		return
	}

	result, err := h.gw.Handle(c.Request.Context(), gateway.Call{
		Origin:   origin,
		WindowID: windowID,
		Method:   req.Method,
		Params:   req.Params,
		AppName:  c.GetHeader("X-Wallet-App-Name"),
		AppIcon:  c.GetHeader("X-Wallet-App-Icon"),
	})
	if err != nil {
		pe, ok := err.(*gateway.Error)
		if !ok {
			pe = &gateway.Error{Code: gateway.CodeInternal, Message: "internal error"}
		}
		c.JSON(http.StatusOK, rpcErr(req.ID, pe.Code, pe.Message, pe.Data))
		return
	}
	if result == nil {
		// EIP-3326 style methods succeed with a literal null.
		result = json.RawMessage("null")
	}
	c.JSON(http.StatusOK, rpcOK(req.ID, result))
}

// WindowClosed is called by the host shell when a dApp window goes away.
func (h *dappHandler) WindowClosed(c *gin.Context) {
	windowID := c.Param("windowId")
	if windowID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing window id"})
		return
	}
	h.gw.CloseWindow(windowID)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
