package extract

import (
	"context"
	"net/http"
	"slices"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/utils"
)

// Runner executes a single extraction and returns the uniform result envelope.
type Runner interface {
	Run(ctx context.Context, req models.ExtractRequest) models.ExtractResult
}

// Handler serves the extract endpoint.
type Handler struct {
	service Runner
}

// NewHandler creates a new extract handler
func NewHandler(service Runner) *Handler {
	return &Handler{service: service}
}

// Register registers the extract routes
func (h *Handler) Register(g *echo.Group) {
	g.POST("", h.Extract)
}

// Extract handles POST /extract. The response body is always the result
// envelope; the HTTP status mirrors its status_code.
func (h *Handler) Extract(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "ExtractHandler.Extract")
	defer span.End()

	req, err := utils.BindRequest[models.ExtractRequest](c)
	if err != nil {
		return err
	}

	if !slices.Contains(models.AvailableAPIs(), req.APIName) {
		return httperror.NewHTTPErrorf(http.StatusBadRequest,
			"unknown api_name %q, valid names: %v", req.APIName, models.AvailableAPIs())
	}

	result := h.service.Run(ctx, req)
	return c.JSON(result.StatusCode, result)
}
