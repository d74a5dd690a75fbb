package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

const maxRoundsLimit = 500

// RoundHistory lists the user's settled rounds, newest first.
func (h *Handler) RoundHistory(c *gin.Context) {
	if h.Rounds == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "round history not configured"})
		return
	}
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}

	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = min(n, maxRoundsLimit)
	}

	rounds, err := h.Rounds.ListRounds(c.Request.Context(), userID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rounds": rounds})
}
