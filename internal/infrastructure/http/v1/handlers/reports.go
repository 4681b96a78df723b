package handlers

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"salesbi/internal/domain/reports"
	"salesbi/internal/infrastructure/http/v1/dto"
	"salesbi/internal/infrastructure/spreadsheet"
)

// ReportsHandler handles HTTP requests for revenue reports.
type ReportsHandler struct {
	*BaseHandler
	service *reports.Service
}

// NewReportsHandler creates a new reports handler.
func NewReportsHandler(base *BaseHandler, service *reports.Service) *ReportsHandler {
	return &ReportsHandler{
		BaseHandler: base,
		service:     service,
	}
}

func (h *ReportsHandler) filter(c *gin.Context) (reports.Filter, bool) {
	var req dto.ReportRequest
	if !h.BindQuery(c, &req) {
		return reports.Filter{}, false
	}
	filter, err := req.ToFilter()
	if err != nil {
		h.Error(c, err)
		return reports.Filter{}, false
	}
	return filter, true
}

// GetSummary handles GET /reports/summary
func (h *ReportsHandler) GetSummary(c *gin.Context) {
	filter, ok := h.filter(c)
	if !ok {
		return
	}

	totals, err := h.service.GetTotals(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromTotals(totals))
}

// GetMonthly handles GET /reports/monthly
func (h *ReportsHandler) GetMonthly(c *gin.Context) {
	filter, ok := h.filter(c)
	if !ok {
		return
	}

	rows, err := h.service.GetMonthly(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	respondList(c, dto.FromMonthly(rows))
}

// GetBranches handles GET /reports/branches
func (h *ReportsHandler) GetBranches(c *gin.Context) {
	filter, ok := h.filter(c)
	if !ok {
		return
	}

	rows, err := h.service.GetBranches(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	respondList(c, dto.FromBreakdown(rows))
}

// GetCategories handles GET /reports/categories
func (h *ReportsHandler) GetCategories(c *gin.Context) {
	filter, ok := h.filter(c)
	if !ok {
		return
	}

	rows, err := h.service.GetCategories(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	respondList(c, dto.FromBreakdown(rows))
}

// GetInvoices handles GET /reports/invoices (top-N ranking, default 10)
func (h *ReportsHandler) GetInvoices(c *gin.Context) {
	filter, ok := h.filter(c)
	if !ok {
		return
	}

	rows, err := h.service.GetTopInvoices(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	respondList(c, dto.FromInvoices(rows))
}

// GetInvoiceShare handles GET /reports/invoice-share
func (h *ReportsHandler) GetInvoiceShare(c *gin.Context) {
	filter, ok := h.filter(c)
	if !ok {
		return
	}

	rows, err := h.service.GetInvoiceShare(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	respondList(c, dto.FromInvoices(rows))
}

// GetDistribution handles GET /reports/invoice-distribution
func (h *ReportsHandler) GetDistribution(c *gin.Context) {
	filter, ok := h.filter(c)
	if !ok {
		return
	}

	rows, err := h.service.GetDistribution(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	respondList(c, dto.FromDistribution(rows))
}

// ExportXLSX handles GET /reports/export.xlsx
func (h *ReportsHandler) ExportXLSX(c *gin.Context) {
	filter, ok := h.filter(c)
	if !ok {
		return
	}

	report, err := h.service.Build(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	f, err := spreadsheet.NewWorkbook(report.ResultSets())
	if err != nil {
		h.Error(c, err)
		return
	}
	defer f.Close()

	name := fmt.Sprintf("sales-report-%s.xlsx", time.Now().UTC().Format("20060102"))
	c.Header("Content-Type", spreadsheet.ContentTypeXLSX)
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	if err := f.Write(c.Writer); err != nil {
		h.Error(c, err)
	}
}

// RegisterRoutes registers report routes.
func (h *ReportsHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/summary", h.GetSummary)
	rg.GET("/monthly", h.GetMonthly)
	rg.GET("/branches", h.GetBranches)
	rg.GET("/categories", h.GetCategories)
	rg.GET("/invoices", h.GetInvoices)
	rg.GET("/invoice-share", h.GetInvoiceShare)
	rg.GET("/invoice-distribution", h.GetDistribution)
	rg.GET("/export.xlsx", h.ExportXLSX)
}
