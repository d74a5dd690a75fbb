package handlers

import (
	"net/http"
	"sort"

	"mines_client/internal/controller"
	"mines_client/internal/domain"

	"github.com/gin-gonic/gin"
)

type RevealRequest struct {
	Cell *int `json:"cell"`
}

// Start sends start_game. The session itself appears once the server confirms.
func (h *Handler) Start(c *gin.Context) {
	var req controller.StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	id, err := h.Game.Start(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"request_id": id})
}

// Reveal sends reveal_cell.
func (h *Handler) Reveal(c *gin.Context) {
	var req RevealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	if req.Cell == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cell is required"})
		return
	}

	if err := h.Game.Reveal(c.Request.Context(), *req.Cell); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"cell": *req.Cell})
}

func (h *Handler) CashOut(c *gin.Context) {
	if err := h.Game.CashOut(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	h.State(c)
}

// Acknowledge clears a settled result.
func (h *Handler) Acknowledge(c *gin.Context) {
	if err := h.Game.Acknowledge(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	h.State(c)
}

// State returns the derived view.
func (h *Handler) State(c *gin.Context) {
	v, err := h.Game.View(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *Handler) Verify(c *gin.Context) {
	res, err := h.Game.Verify(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Balance(c *gin.Context) {
	bal, ok := h.Game.Balance()
	if !ok {
		c.JSON(http.StatusOK, gin.H{"user_id": h.Game.UserID(), "known": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": h.Game.UserID(), "known": true, "balance": bal})
}

type presetInfo struct {
	Name string `json:"name"`
	domain.Configuration
}

// PresetList returns the named difficulty presets.
func (h *Handler) PresetList(c *gin.Context) {
	out := make([]presetInfo, 0, len(h.Presets))
	for name, cfg := range h.Presets {
		out = append(out, presetInfo{Name: name, Configuration: cfg})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Hazards != out[j].Hazards {
			return out[i].Hazards < out[j].Hazards
		}
		return out[i].Name < out[j].Name
	})
	c.JSON(http.StatusOK, gin.H{"presets": out})
}
