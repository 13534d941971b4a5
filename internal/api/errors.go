package api

import (
	"errors"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"marketplace-service/internal/entity"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

func statusFor(err error) int {
	switch {
	case errors.Is(err, entity.ErrValidation):
		return 400
	case errors.Is(err, entity.ErrForbidden):
		return 403
	case errors.Is(err, entity.ErrNotFound):
		return 404
	case errors.Is(err, entity.ErrConflict),
		errors.Is(err, entity.ErrInvalidTransition),
		errors.Is(err, entity.ErrInsufficientStock):
		return 409
	}
	return 500
}

// respondError writes err as {"error": ...} with the status its kind maps to.
func respondError(c echo.Context, err error) error {
	code := statusFor(err)
	if code == 500 {
		logger.Error().Err(err).Str("path", c.Path()).Msg("Request failed")
		return c.JSON(500, map[string]string{"error": "internal server error"})
	}

	var stockErr *entity.InsufficientStockError
	if errors.As(err, &stockErr) {
		return c.JSON(code, map[string]interface{}{
			"error":      err.Error(),
			"product_id": stockErr.ProductID,
			"available":  stockErr.Available,
			"requested":  stockErr.Requested,
		})
	}
	return c.JSON(code, map[string]string{"error": err.Error()})
}
