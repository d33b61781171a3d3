package opportunities

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/thermaquote/thermaquote/internal/platform/httpx"
	"github.com/thermaquote/thermaquote/internal/shared"
)

// Handler exposes pipeline endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers opportunity routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/board", h.board)
	r.Get("/{id}", h.show)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
	r.Post("/{id}/move", h.move)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page := shared.PageFromRequest(r)
	filters := ListFilters{Search: r.URL.Query().Get("search"), Limit: page.Limit, Offset: page.Offset}
	if raw := r.URL.Query().Get("stage"); raw != "" {
		stage, err := ParseStage(raw)
		if err != nil {
			httpx.RespondError(w, &httpx.ValidationError{Fields: map[string]string{"stage": err.Error()}})
			return
		}
		filters.Stage = &stage
	}
	companyID, err := httpx.QueryID(r, "company_id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	filters.CompanyID = companyID

	items, total, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.fail(w, "list opportunities", err)
		return
	}
	if items == nil {
		items = []Opportunity{}
	}
	httpx.JSON(w, http.StatusOK, httpx.List[Opportunity]{Items: items, Total: total, Limit: page.Limit, Offset: page.Offset})
}

func (h *Handler) board(w http.ResponseWriter, r *http.Request) {
	columns, err := h.service.Board(r.Context())
	if err != nil {
		h.fail(w, "opportunity board", err)
		return
	}
	httpx.JSON(w, http.StatusOK, columns)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	o, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "show opportunity", err)
		return
	}
	httpx.JSON(w, http.StatusOK, o)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req OpportunityRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Body", err.Error())
		return
	}
	o, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.fail(w, "create opportunity", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, o)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req OpportunityRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Body", err.Error())
		return
	}
	o, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		h.fail(w, "update opportunity", err)
		return
	}
	httpx.JSON(w, http.StatusOK, o)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.fail(w, "delete opportunity", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) move(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req MoveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Body", err.Error())
		return
	}
	o, err := h.service.Move(r.Context(), id, req)
	if err != nil {
		h.fail(w, "move opportunity", err)
		return
	}
	httpx.JSON(w, http.StatusOK, o)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Warn(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}
