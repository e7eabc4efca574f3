// Package duplicates serves duplicate detection and lead merging over HTTP
package duplicates

import (
	"context"
	"net/http"
	"strconv"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	reqctx "github.com/Ramsey-B/clover/pkg/context"
	dedupeerrors "github.com/Ramsey-B/clover/pkg/errors"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
	"github.com/Ramsey-B/clover/pkg/utils"
)

// Finder runs duplicate detection
type Finder interface {
	FindDuplicatesForLead(ctx context.Context, tenantID, leadID string, threshold float64) ([]models.DuplicateMatch, error)
	FindAllDuplicates(ctx context.Context, tenantID string, threshold float64) (*models.DuplicateReport, error)
	DefaultThreshold() float64
}

// Merger executes merges
type Merger interface {
	MergeLeads(ctx context.Context, tenantID, primaryID string, duplicateIDs []string, strategy models.MergeStrategy, performedBy string) (*models.MergeResult, error)
	AutoMergeDuplicates(ctx context.Context, tenantID string, exactOnly bool, performedBy string) (*models.AutoMergeResult, error)
}

// LeadReader resolves a lead within its tenant, NotFound otherwise
type LeadReader interface {
	GetByID(ctx context.Context, tenantID, id string) (*models.Lead, error)
}

// History lists completed merges
type History interface {
	ListByPrimary(ctx context.Context, tenantID, primaryID string) ([]models.MergeAudit, error)
}

// Lineage resolves leads folded into a survivor across merges
type Lineage interface {
	MergedInto(ctx context.Context, tenantID, primaryID string) ([]string, error)
}

type Handler struct {
	logger  ectologger.Logger
	finder  Finder
	merger  Merger
	leads   LeadReader
	history History
	lineage Lineage
}

// NewHandler creates the duplicate routes. lineage may be nil.
func NewHandler(logger ectologger.Logger, finder Finder, merger Merger, leads LeadReader, history History, lineage Lineage) *Handler {
	return &Handler{
		logger:  logger,
		finder:  finder,
		merger:  merger,
		leads:   leads,
		history: history,
		lineage: lineage,
	}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/leads/:id/duplicates", h.FindDuplicatesForLead)
	g.GET("/leads/:id/merge-history", h.MergeHistory)
	g.GET("/duplicates", h.FindAllDuplicates)
	g.POST("/leads/merge", h.MergeLeads)
	g.POST("/duplicates/auto-merge", h.AutoMergeDuplicates)
}

type LeadDuplicatesResponse struct {
	LeadID     string                  `json:"lead_id"`
	Threshold  float64                 `json:"threshold"`
	Duplicates []models.DuplicateMatch `json:"duplicates"`
}

func (h *Handler) FindDuplicatesForLead(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "duplicates.FindDuplicatesForLead")
	defer span.End()

	threshold, err := h.threshold(c)
	if err != nil {
		return err
	}

	leadID := c.Param("id")
	matches, err := h.finder.FindDuplicatesForLead(ctx, reqctx.GetTenantID(ctx), leadID, threshold)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, LeadDuplicatesResponse{
		LeadID:     leadID,
		Threshold:  threshold,
		Duplicates: matches,
	})
}

type DuplicateReportResponse struct {
	Threshold float64 `json:"threshold"`
	*models.DuplicateReport
}

func (h *Handler) FindAllDuplicates(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "duplicates.FindAllDuplicates")
	defer span.End()

	threshold, err := h.threshold(c)
	if err != nil {
		return err
	}

	report, err := h.finder.FindAllDuplicates(ctx, reqctx.GetTenantID(ctx), threshold)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, DuplicateReportResponse{Threshold: threshold, DuplicateReport: report})
}

func (h *Handler) MergeLeads(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "duplicates.MergeLeads")
	defer span.End()

	req, err := utils.BindRequest[models.MergeRequest](c)
	if err != nil {
		return err
	}

	result, err := h.merger.MergeLeads(
		ctx,
		reqctx.GetTenantID(ctx),
		req.PrimaryLeadID,
		req.DuplicateLeadIDs,
		models.ParseMergeStrategy(req.Strategy),
		reqctx.GetUserID(ctx),
	)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

func (h *Handler) AutoMergeDuplicates(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "duplicates.AutoMergeDuplicates")
	defer span.End()

	req, err := utils.BindRequest[models.AutoMergeRequest](c)
	if err != nil {
		return err
	}
	exactOnly := true
	if req.ExactMatchOnly != nil {
		exactOnly = *req.ExactMatchOnly
	}

	result, err := h.merger.AutoMergeDuplicates(ctx, reqctx.GetTenantID(ctx), exactOnly, reqctx.GetUserID(ctx))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

type MergeHistoryResponse struct {
	LeadID        string              `json:"lead_id"`
	Merges        []models.MergeAudit `json:"merges"`
	MergedLeadIDs []string            `json:"merged_lead_ids,omitempty"`
}

func (h *Handler) MergeHistory(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "duplicates.MergeHistory")
	defer span.End()

	tenantID := reqctx.GetTenantID(ctx)
	leadID := c.Param("id")

	// history is only served for a lead the tenant still owns
	if _, err := h.leads.GetByID(ctx, tenantID, leadID); err != nil {
		return err
	}

	audits, err := h.history.ListByPrimary(ctx, tenantID, leadID)
	if err != nil {
		return err
	}
	resp := MergeHistoryResponse{LeadID: leadID, Merges: audits}

	if h.lineage != nil {
		ids, err := h.lineage.MergedInto(ctx, tenantID, leadID)
		if err != nil {
			metrics.LineageFailures.Inc()
			h.logger.WithContext(ctx).WithError(err).Warn("Failed to read merge lineage")
		} else {
			resp.MergedLeadIDs = ids
		}
	}

	return c.JSON(http.StatusOK, resp)
}

// threshold reads ?threshold=, falling back to the configured default
func (h *Handler) threshold(c echo.Context) (float64, error) {
	raw := c.QueryParam("threshold")
	if raw == "" {
		return h.finder.DefaultThreshold(), nil
	}
	t, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, dedupeerrors.InvalidArgument("threshold must be a number, got %q", raw)
	}
	return t, nil
}
