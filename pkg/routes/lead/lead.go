// Package lead serves lead creation and lookup
package lead

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	reqctx "github.com/Ramsey-B/clover/pkg/context"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
	"github.com/Ramsey-B/clover/pkg/utils"
)

type Store interface {
	Create(ctx context.Context, tenantID string, req *models.CreateLeadRequest) (*models.Lead, error)
	GetByID(ctx context.Context, tenantID, id string) (*models.Lead, error)
}

type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/leads", h.CreateLead)
	g.GET("/leads/:id", h.GetLead)
}

func (h *Handler) CreateLead(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "lead.CreateLead")
	defer span.End()

	req, err := utils.BindRequest[models.CreateLeadRequest](c)
	if err != nil {
		return err
	}

	lead, err := h.store.Create(ctx, reqctx.GetTenantID(ctx), &req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, lead)
}

func (h *Handler) GetLead(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "lead.GetLead")
	defer span.End()

	lead, err := h.store.GetByID(ctx, reqctx.GetTenantID(ctx), c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, lead)
}
