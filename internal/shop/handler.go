// AngelaMos | 2026
// handler.go

package shop

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/carterperez-dev/bizdesk/internal/core"
	"github.com/carterperez-dev/bizdesk/internal/middleware"
)

type Handler struct {
	service   *Service
	validator *validator.Validate
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, staffOnly func(http.Handler) http.Handler,
) {
	r.Route("/shop", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(staffOnly)

		r.Post("/sell", h.Sell)
		r.Post("/reverse-sale", h.ReverseSale)
		r.Get("/revenue", h.Revenue)

		r.Get("/sales", h.ListSales)
		r.Get("/sales/{saleID}", h.GetSale)

		r.Post("/products", h.CreateProduct)
		r.Get("/products", h.ListProducts)
		r.Get("/products/{productID}", h.GetProduct)
	})
}

func (h *Handler) Sell(w http.ResponseWriter, r *http.Request) {
	var req SellRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.service.SellProduct(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		writeError(w, err, "product")
		return
	}

	core.Created(w, resp)
}

func (h *Handler) ReverseSale(w http.ResponseWriter, r *http.Request) {
	var req ReverseSaleRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.service.ReverseSale(r.Context(), middleware.GetUserID(r.Context()), req.SaleID)
	if err != nil {
		writeError(w, err, "sale")
		return
	}

	core.OK(w, resp)
}

func (h *Handler) Revenue(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.TotalRevenue(r.Context())
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, resp)
}

func (h *Handler) ListSales(w http.ResponseWriter, r *http.Request) {
	productID := r.URL.Query().Get("product_id")
	if productID != "" && !isUUID(productID) {
		core.BadRequest(w, "product_id must be a valid UUID")
		return
	}

	params := SaleListParams{
		Page:            parseIntQuery(r, "page", 1),
		PageSize:        parseIntQuery(r, "page_size", 20),
		ProductID:       productID,
		IncludeReversed: parseBoolQuery(r, "include_reversed"),
	}
	params.Normalize()

	sales, total, err := h.service.ListSales(r.Context(), params)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.Paginated(w, ToSaleResponseList(sales), params.Page, params.PageSize, total)
}

func (h *Handler) GetSale(w http.ResponseWriter, r *http.Request) {
	saleID := chi.URLParam(r, "saleID")
	if !isUUID(saleID) {
		core.NotFound(w, "sale")
		return
	}

	sale, err := h.service.GetSale(r.Context(), saleID)
	if err != nil {
		writeError(w, err, "sale")
		return
	}

	core.OK(w, ToSaleResponse(sale))
}

func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if !h.decode(w, r, &req) {
		return
	}

	product, err := h.service.CreateProduct(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		writeError(w, err, "product")
		return
	}

	core.Created(w, ToProductResponse(product))
}

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	params := ProductListParams{
		Page:        parseIntQuery(r, "page", 1),
		PageSize:    parseIntQuery(r, "page_size", 20),
		Search:      r.URL.Query().Get("search"),
		Category:    r.URL.Query().Get("category"),
		InStockOnly: parseBoolQuery(r, "in_stock"),
	}
	params.Normalize()

	products, total, err := h.service.ListProducts(r.Context(), params)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.Paginated(w, ToProductResponseList(products), params.Page, params.PageSize, total)
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")
	if !isUUID(productID) {
		core.NotFound(w, "product")
		return
	}

	product, err := h.service.GetProduct(r.Context(), productID)
	if err != nil {
		writeError(w, err, "product")
		return
	}

	core.OK(w, ToProductResponse(product))
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		core.BadRequest(w, "invalid request body")
		return false
	}

	if err := h.validator.Struct(dst); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return false
	}

	return true
}

func writeError(w http.ResponseWriter, err error, resource string) {
	switch {
	case errors.Is(err, ErrInsufficientStock):
		core.JSONError(w, core.ConflictError(
			"INSUFFICIENT_STOCK",
			"not enough stock for this sale",
		))
	case errors.Is(err, ErrAlreadyReversed):
		core.JSONError(w, core.ConflictError(
			"ALREADY_REVERSED",
			"sale has already been reversed",
		))
	case errors.Is(err, ErrAmountTooLarge):
		core.BadRequest(w, "sale amount is too large")
	case errors.Is(err, ErrInvalidQuantity):
		core.BadRequest(w, "quantity must be positive")
	case errors.Is(err, core.ErrInvalidInput):
		core.BadRequest(w, "invalid product values")
	case errors.Is(err, core.ErrNotFound):
		core.NotFound(w, resource)
	default:
		core.InternalServerError(w, err)
	}
}

func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}

	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}

	return parsed
}

// isUUID guards UUID columns; anything else can never match a row.
func isUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

func parseBoolQuery(r *http.Request, key string) bool {
	parsed, err := strconv.ParseBool(r.URL.Query().Get(key))
	return err == nil && parsed
}
