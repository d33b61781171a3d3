package catalog

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/thermaquote/thermaquote/internal/platform/httpx"
	"github.com/thermaquote/thermaquote/internal/shared"
)

const maxUploadBytes = 10 << 20

// Handler exposes catalog endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/products", h.listProducts)
	r.Post("/products", h.createProduct)
	r.Get("/products/picker", h.picker)
	r.Post("/products/import", h.importProducts)
	r.Get("/products/{id}", h.showProduct)
	r.Put("/products/{id}", h.updateProduct)
	r.Delete("/products/{id}", h.deactivateProduct)
	r.Get("/application-types", h.listApplicationTypes)
	r.Post("/application-types", h.createApplicationType)
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	page := shared.PageFromRequest(r)
	appType, err := httpx.QueryID(r, "application_type_id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	filters := ListFilters{
		Search:            r.URL.Query().Get("search"),
		Active:            httpx.QueryBool(r, "active"),
		Labour:            httpx.QueryBool(r, "labour"),
		ApplicationTypeID: appType,
		Limit:             page.Limit,
		Offset:            page.Offset,
	}
	products, total, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.fail(w, "list products", err)
		return
	}
	if products == nil {
		products = []Product{}
	}
	httpx.JSON(w, http.StatusOK, httpx.List[Product]{Items: products, Total: total, Limit: page.Limit, Offset: page.Offset})
}

func (h *Handler) picker(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.Picker(r.Context())
	if err != nil {
		h.fail(w, "product picker", err)
		return
	}
	httpx.JSON(w, http.StatusOK, products)
}

func (h *Handler) showProduct(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	product, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "show product", err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Body", err.Error())
		return
	}
	product, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.fail(w, "create product", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, product)
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req ProductRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Body", err.Error())
		return
	}
	product, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		h.fail(w, "update product", err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) deactivateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Deactivate(r.Context(), id); err != nil {
		h.fail(w, "deactivate product", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) importProducts(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Upload", err.Error())
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Upload", "file field is required")
		return
	}
	defer file.Close()

	result, err := h.service.Import(r.Context(), header.Filename, file)
	if err != nil {
		h.fail(w, "import products", err)
		return
	}
	h.logger.Info("catalog imported",
		slog.String("file", header.Filename),
		slog.Int("created", result.Created),
		slog.Int("updated", result.Updated),
		slog.Int("rejected", len(result.Errors)))
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) listApplicationTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.service.ApplicationTypes(r.Context())
	if err != nil {
		h.fail(w, "list application types", err)
		return
	}
	if types == nil {
		types = []ApplicationType{}
	}
	httpx.JSON(w, http.StatusOK, types)
}

func (h *Handler) createApplicationType(w http.ResponseWriter, r *http.Request) {
	var req ApplicationTypeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Body", err.Error())
		return
	}
	t, err := h.service.CreateApplicationType(r.Context(), req)
	if err != nil {
		h.fail(w, "create application type", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, t)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Warn(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}
