package httpgin

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kirinyoku/washq/internal/domain"
	"github.com/kirinyoku/washq/internal/repository"
)

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

// respondErr maps service errors onto status codes. Anything unknown is a
// 500 and is attached to the context so the logging middleware records it.
func respondErr(c *gin.Context, err error) {
	var (
		invalid    *domain.ValidationError
		transition *domain.InvalidTransitionError
	)

	switch {
	case errors.As(err, &invalid):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: invalid.Msg})
	case errors.Is(err, domain.ErrBookingNotFound), errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found"})
	case errors.Is(err, domain.ErrSlotUnavailable):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "slot unavailable"})
	case errors.As(err, &transition):
		c.JSON(http.StatusConflict, ErrorResponse{Error: transition.Error()})
	case errors.Is(err, domain.ErrHoldExpired):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "hold expired"})
	case errors.Is(err, domain.ErrNotPendingPayment):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "booking is not pending payment"})
	case errors.Is(err, repository.ErrConflict):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "conflict"})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}
