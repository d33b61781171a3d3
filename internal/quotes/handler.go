package quotes

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/thermaquote/thermaquote/internal/platform/httpx"
	"github.com/thermaquote/thermaquote/internal/shared"
)

// IdempotencyHeader names the request header that makes quote creation safe to retry.
const IdempotencyHeader = "Idempotency-Key"

const (
	contentTypePDF  = "application/pdf"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Handler exposes quote endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	exporter *Exporter
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, service *Service, exporter *Exporter) *Handler {
	return &Handler{logger: logger, service: service, exporter: exporter}
}

// MountRoutes registers authenticated quote routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Post("/preview", h.preview)
	r.Post("/preview/select-product", h.selectProduct)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.show)
		r.Put("/", h.update)
		r.Post("/status", h.changeStatus)
		r.Post("/duplicate", h.duplicate)
		r.Post("/recalculate", h.recalculate)
		r.Get("/export.pdf", h.exportPDF)
		r.Get("/export.xlsx", h.exportXLSX)
	})
}

// MountPublicRoutes registers the client share links.
func (h *Handler) MountPublicRoutes(r chi.Router) {
	r.Get("/{token}", h.sharedQuote)
	r.Get("/{token}/quote.pdf", h.sharedPDF)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page := shared.PageFromRequest(r)
	filters := ListFilters{
		Search: r.URL.Query().Get("search"),
		Limit:  page.Limit,
		Offset: page.Offset,
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		st, err := ParseStatus(strings.ToUpper(raw))
		if err != nil {
			httpx.RespondError(w, &httpx.ValidationError{Fields: map[string]string{"status": err.Error()}})
			return
		}
		filters.Status = &st
	}
	var err error
	if filters.CompanyID, err = httpx.QueryID(r, "company_id"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if filters.OpportunityID, err = httpx.QueryID(r, "opportunity_id"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, total, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.fail(w, "list quotes", err)
		return
	}
	if items == nil {
		items = []Quote{}
	}
	httpx.JSON(w, http.StatusOK, httpx.List[Quote]{Items: items, Total: total, Limit: page.Limit, Offset: page.Offset})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	q, ok := h.load(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req QuoteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Body", err.Error())
		return
	}
	key := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
	q, replayed, err := h.service.Create(r.Context(), req, key, shared.UserIDFromContext(r.Context()))
	if err != nil {
		h.fail(w, "create quote", err)
		return
	}
	status := http.StatusCreated
	if replayed {
		w.Header().Set("Idempotent-Replayed", "true")
		status = http.StatusOK
	}
	httpx.JSON(w, status, q)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req QuoteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Body", err.Error())
		return
	}
	q, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		h.fail(w, "update quote", err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

func (h *Handler) preview(w http.ResponseWriter, r *http.Request) {
	var req QuoteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Body", err.Error())
		return
	}
	q, err := h.service.Preview(r.Context(), req)
	if err != nil {
		h.fail(w, "preview quote", err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

func (h *Handler) selectProduct(w http.ResponseWriter, r *http.Request) {
	var req SelectProductRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Body", err.Error())
		return
	}
	res, err := h.service.SelectProduct(r.Context(), req)
	if err != nil {
		h.fail(w, "select product", err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) changeStatus(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req StatusRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	q, err := h.service.ChangeStatus(r.Context(), id, req)
	if err != nil {
		h.fail(w, "change quote status", err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

func (h *Handler) duplicate(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	q, err := h.service.Duplicate(r.Context(), id, shared.UserIDFromContext(r.Context()))
	if err != nil {
		h.fail(w, "duplicate quote", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, q)
}

func (h *Handler) recalculate(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	q, err := h.service.Recalculate(r.Context(), id)
	if err != nil {
		h.fail(w, "recalculate quote", err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

func (h *Handler) exportPDF(w http.ResponseWriter, r *http.Request) {
	q, ok := h.load(w, r)
	if !ok {
		return
	}
	h.writePDF(w, q)
}

func (h *Handler) exportXLSX(w http.ResponseWriter, r *http.Request) {
	q, ok := h.load(w, r)
	if !ok {
		return
	}
	body, err := h.exporter.RenderXLSX(q)
	if err != nil {
		h.fail(w, "export xlsx", err)
		return
	}
	h.attachment(w, contentTypeXLSX, FileName(q, "xlsx"), body)
}

func (h *Handler) sharedQuote(w http.ResponseWriter, r *http.Request) {
	q, err := h.service.GetShared(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		h.fail(w, "shared quote", err)
		return
	}
	httpx.JSON(w, http.StatusOK, clientView(q))
}

func (h *Handler) sharedPDF(w http.ResponseWriter, r *http.Request) {
	q, err := h.service.GetShared(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		h.fail(w, "shared quote pdf", err)
		return
	}
	h.writePDF(w, q)
}

func (h *Handler) writePDF(w http.ResponseWriter, q Quote) {
	body, err := h.exporter.RenderPDF(q)
	if err != nil {
		h.fail(w, "export pdf", err)
		return
	}
	h.attachment(w, contentTypePDF, FileName(q, "pdf"), body)
}

func (h *Handler) load(w http.ResponseWriter, r *http.Request) (Quote, bool) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return Quote{}, false
	}
	q, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "show quote", err)
		return Quote{}, false
	}
	return q, true
}

func (h *Handler) attachment(w http.ResponseWriter, contentType, name string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Warn(op, slog.Any("error", err))
	if errors.Is(err, ErrInvalidStatus) {
		httpx.Problem(w, http.StatusConflict, "Invalid Status", err.Error())
		return
	}
	httpx.RespondError(w, err)
}

// clientView strips internal costing from a quote shown to its client.
func clientView(q Quote) Quote {
	q.CreatedBy = 0
	q.MarkupPercent = decimal.Zero
	q.Totals.TotalCostExTax = decimal.Zero
	q.Totals.GrossProfit = decimal.Zero
	q.Totals.GrossProfitPercent = decimal.Zero
	sections := make([]Section, len(q.Sections))
	for i, s := range q.Sections {
		lines := make([]LineItem, len(s.Lines))
		for j, l := range s.Lines {
			l.LineCost = decimal.Zero
			l.MarginPercent = decimal.Zero
			lines[j] = l
		}
		s.Lines = lines
		sections[i] = s
	}
	q.Sections = sections
	return q
}
