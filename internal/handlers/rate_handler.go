package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	apierrors "github.com/stwalsh4118/tokkosync/internal/errors"
	"github.com/stwalsh4118/tokkosync/internal/rates"
)

// RateSource returns the current dollar quote.
type RateSource interface {
	Get(ctx context.Context) (rates.Rate, error)
}

// RateHandler serves the exchange rate.
type RateHandler struct {
	source RateSource
}

// NewRateHandler creates a new RateHandler instance.
func NewRateHandler(source RateSource) *RateHandler {
	return &RateHandler{source: source}
}

// Get handles GET /api/v1/exchange-rate.
func (h *RateHandler) Get(c *gin.Context) {
	rate, err := h.source.Get(c.Request.Context())
	if err != nil {
		if errors.Is(err, rates.ErrUnavailable) {
			apierrors.ServiceUnavailable(c, "Exchange rate is temporarily unavailable", err)
			return
		}
		apierrors.InternalServerError(c, "Failed to load exchange rate", err)
		return
	}

	c.JSON(http.StatusOK, rate)
}
