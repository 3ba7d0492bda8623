package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"vanguard-platform/internal/prices"
)

type PriceSource interface {
	Fetch(ctx context.Context) (prices.Quotes, error)
}

type PriceHandler struct {
	Prices PriceSource
}

func (h *PriceHandler) Get(c *gin.Context) {
	q, err := h.Prices.Fetch(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}
