package session

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/stockcount/internal/catalog"
	"github.com/odyssey-erp/stockcount/internal/counting"
	"github.com/odyssey-erp/stockcount/internal/export"
	"github.com/odyssey-erp/stockcount/internal/platform/httpx"
)

// DefaultImportMaxBytes caps uploaded catalog files.
const DefaultImportMaxBytes int64 = 10 << 20

// Handler exposes the session over JSON endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
	errors    httpx.ErrorMapper
	maxBytes  int64
}

// NewHandler constructs the session handler. maxBytes <= 0 uses
// DefaultImportMaxBytes.
func NewHandler(logger *slog.Logger, service *Service, maxBytes int64) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if maxBytes <= 0 {
		maxBytes = DefaultImportMaxBytes
	}
	return &Handler{
		logger:    logger,
		service:   service,
		validator: validator.New(),
		maxBytes:  maxBytes,
		errors: httpx.ErrorMapper{
			Logger: logger,
			Mappings: []httpx.Mapping{
				{Target: ErrValidationRejected, Status: http.StatusUnprocessableEntity, Title: "Validation Rejected"},
				{Target: catalog.ErrDuplicateBarcode, Status: http.StatusConflict, Title: "Duplicate Barcode"},
				{Target: catalog.ErrEmptyImport, Status: http.StatusUnprocessableEntity, Title: "Empty Import"},
				{Target: catalog.ErrMissingHeader, Status: http.StatusUnprocessableEntity, Title: "Missing Header"},
				{Target: counting.ErrCountNotFound, Status: http.StatusNotFound, Title: "Not Found"},
				{Target: counting.ErrInvalidMode, Status: http.StatusBadRequest, Title: "Invalid Mode"},
				{Target: counting.ErrInvalidField, Status: http.StatusBadRequest, Title: "Invalid Field"},
				{Target: counting.ErrInvalidLocation, Status: http.StatusBadRequest, Title: "Invalid Location"},
				{Target: counting.ErrNegativeQuantity, Status: http.StatusBadRequest, Title: "Invalid Quantity"},
				{Target: export.ErrEmptyExport, Status: http.StatusUnprocessableEntity, Title: "Empty Export"},
				{Target: export.ErrUnknownFormat, Status: http.StatusBadRequest, Title: "Unknown Format"},
			},
		},
	}
}

// MountRoutes registers session routes under the given router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/state", h.handleState)
	r.Get("/locations", h.handleLocations)

	r.Route("/session", func(r chi.Router) {
		r.Put("/quantity", h.handleSetQuantity)
		r.Put("/mode", h.handleSetMode)
		r.Put("/location", h.handleSetLocation)
		r.Delete("/", h.handleClearAll)
	})

	r.Route("/catalog", func(r chi.Router) {
		r.Post("/import", h.handleImport)
		r.Get("/products", h.handleProducts)
		r.Post("/quick-register", h.handleQuickRegister)
	})
	r.Post("/scan", h.handleScan)

	r.Route("/counts", func(r chi.Router) {
		r.Get("/", h.handleCounts)
		r.Post("/", h.handleAddCount)
		r.Get("/summary", h.handleSummary)
		r.Patch("/{id}", h.handleEditCount)
		r.Delete("/{id}", h.handleRemoveCount)
	})
	r.Get("/export", h.handleExport)
}

type quantityRequest struct {
	Quantity string `json:"quantity"`
}

type modeRequest struct {
	Mode string `json:"mode" validate:"required,oneof=loja estoque"`
}

type locationRequest struct {
	Location string `json:"location" validate:"required,oneof=loja-1 loja-2 deposito estoque-central"`
}

type scanRequest struct {
	Barcode string `json:"barcode" validate:"required"`
}

type quickRegisterRequest struct {
	Barcode     string `json:"barcode" validate:"required"`
	Description string `json:"description" validate:"required"`
	Quantity    string `json:"quantity" validate:"required"`
}

type addCountRequest struct {
	Quantity *string `json:"quantity"`
}

type editCountRequest struct {
	Field string `json:"field" validate:"required,oneof=quant_loja quant_estoque"`
	Value *int   `json:"value" validate:"required,min=0"`
}

type productsResponse struct {
	Products []catalog.Product `json:"products"`
	BarCodes []catalog.BarCode `json:"barCodes"`
}

type countsResponse struct {
	Counts []counting.ProductCount `json:"productCounts"`
}

func (h *Handler) decode(r *http.Request, target any) error {
	if err := httpx.DecodeJSON(r, target); err != nil {
		return err
	}
	return h.validator.Struct(target)
}

func (h *Handler) handleState(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.service.State(r.Context()))
}

func (h *Handler) handleLocations(w http.ResponseWriter, _ *http.Request) {
	httpx.JSON(w, http.StatusOK, counting.Locations())
}

func (h *Handler) handleSetQuantity(w http.ResponseWriter, r *http.Request) {
	var req quantityRequest
	if err := h.decode(r, &req); err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	h.service.SetQuantity(r.Context(), req.Quantity)
	httpx.JSON(w, http.StatusOK, h.service.State(r.Context()))
}

func (h *Handler) handleSetMode(w http.ResponseWriter, r *http.Request) {
	var req modeRequest
	if err := h.decode(r, &req); err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	if err := h.service.SetMode(r.Context(), counting.Mode(req.Mode)); err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.service.State(r.Context()))
}

func (h *Handler) handleSetLocation(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if err := h.decode(r, &req); err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	if err := h.service.SetLocation(r.Context(), counting.Location(req.Location)); err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.service.State(r.Context()))
}

func (h *Handler) handleClearAll(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ClearAll(r.Context()); err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)

	var src io.Reader = r.Body
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, _, err := r.FormFile("file")
		if err != nil {
			if tooLarge(err) {
				httpx.Problem(w, http.StatusRequestEntityTooLarge, "File Too Large", err.Error())
				return
			}
			h.errors.Respond(w, r, fmt.Errorf("%w: file: %w", httpx.ErrBadRequest, err))
			return
		}
		defer file.Close()
		src = file
	}

	result, err := h.service.Import(r.Context(), src)
	switch {
	case err == nil:
		httpx.JSON(w, http.StatusOK, result)
	case errors.Is(err, catalog.ErrImportRejected):
		httpx.WriteProblem(w, httpx.ProblemDetail{
			Title:  "Import Rejected",
			Status: http.StatusUnprocessableEntity,
			Detail: fmt.Sprintf("%d linha(s) com erro", len(result.Errors)),
			Errors: result.Messages(),
		})
	case tooLarge(err):
		httpx.Problem(w, http.StatusRequestEntityTooLarge, "File Too Large", err.Error())
	case errors.Is(err, catalog.ErrEmptyImport), errors.Is(err, catalog.ErrMissingHeader), errors.Is(err, catalog.ErrUnknownCharset):
		h.errors.Respond(w, r, err)
	default:
		h.logger.Warn("catalog file unreadable", slog.Any("error", err))
		h.errors.Respond(w, r, fmt.Errorf("%w: %w", httpx.ErrBadRequest, err))
	}
}

func tooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}

func (h *Handler) handleProducts(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, productsResponse{
		Products: h.service.Products(r.Context()),
		BarCodes: h.service.BarCodes(r.Context()),
	})
}

func (h *Handler) handleScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := h.decode(r, &req); err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	res, err := h.service.Scan(r.Context(), req.Barcode)
	if err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	status := http.StatusOK
	if !res.Found {
		status = http.StatusNotFound
	}
	httpx.JSON(w, status, res)
}

func (h *Handler) handleQuickRegister(w http.ResponseWriter, r *http.Request) {
	var req quickRegisterRequest
	if err := h.decode(r, &req); err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	p, err := h.service.QuickRegister(r.Context(), QuickRegisterInput{
		Barcode:     req.Barcode,
		Description: req.Description,
		Quantity:    req.Quantity,
	})
	if err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *Handler) handleCounts(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, countsResponse{Counts: h.service.Counts(r.Context())})
}

func (h *Handler) handleAddCount(w http.ResponseWriter, r *http.Request) {
	var req addCountRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
			h.errors.Respond(w, r, err)
			return
		}
	}
	if req.Quantity != nil {
		h.service.SetQuantity(r.Context(), *req.Quantity)
	}
	rec, err := h.service.AddCount(r.Context())
	if err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.service.Summary(r.Context()))
}

func (h *Handler) handleEditCount(w http.ResponseWriter, r *http.Request) {
	var req editCountRequest
	if err := h.decode(r, &req); err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	rec, err := h.service.EditCount(r.Context(), chi.URLParam(r, "id"), counting.Field(req.Field), *req.Value)
	if err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

func (h *Handler) handleRemoveCount(w http.ResponseWriter, r *http.Request) {
	if err := h.service.RemoveCount(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	file, err := h.service.Export(r.Context(), format)
	if err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Name))
	w.Header().Set("Content-Length", strconv.Itoa(len(file.Body)))
	w.Header().Set("X-Export-Rows", strconv.Itoa(file.Rows))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(file.Body)
}
