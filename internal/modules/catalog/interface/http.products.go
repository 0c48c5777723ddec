package transport

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"stockcast/internal/modules/catalog/application"
	"stockcast/internal/modules/catalog/domain"
	"stockcast/internal/modules/catalog/ports"
	"stockcast/internal/shared/auth"
	"stockcast/internal/shared/httputil"
)

type createProductRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Quantity    int     `json:"quantity"`
	Category    string  `json:"category"`
}

type updateProductRequest struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price"`
	Quantity    *int     `json:"quantity"`
	Category    *string  `json:"category"`
}

type productListResponse struct {
	Items []domain.Product `json:"items"`
	Total int64            `json:"total"`
	Page  int              `json:"page"`
	Limit int              `json:"limit"`
}

// ProductHandler serves the seller-scoped catalog API that drives the event
// pipeline.
type ProductHandler struct {
	service   *application.Service
	validator auth.TokenValidator
	errors    *httputil.ErrorMapper
}

func NewProductHandler(service *application.Service, validator auth.TokenValidator) *ProductHandler {
	mapper := httputil.NewErrorMapper().
		WithMapping(domain.ErrProductNotFound, http.StatusNotFound, "product not found").
		WithMapping(domain.ErrInvalidProduct, http.StatusBadRequest, "invalid product").
		WithMapping(domain.ErrMissingSeller, http.StatusBadRequest, "missing seller id").
		WithMapping(auth.ErrMissingSellerID, http.StatusBadRequest, "missing seller id").
		WithMapping(auth.ErrInvalidToken, http.StatusUnauthorized, "invalid token").
		WithMapping(auth.ErrMissingToken, http.StatusUnauthorized, "missing token")
	return &ProductHandler{service: service, validator: validator, errors: mapper}
}

func (h *ProductHandler) Register(e *echo.Echo) {
	e.POST("/products", h.create)
	e.GET("/products", h.list)
	e.GET("/products/:id", h.get)
	e.PUT("/products/:id", h.update)
	e.DELETE("/products/:id", h.delete)
	e.GET("/events", h.events)
}

func (h *ProductHandler) create(c echo.Context) error {
	sellerID, err := auth.ResolveSellerID(c.Request(), h.validator)
	if err != nil {
		return h.httpError(err)
	}
	var req createProductRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	product, err := h.service.CreateProduct(c.Request().Context(), ports.CreateProductInput{
		SellerID:    sellerID,
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Quantity:    req.Quantity,
		Category:    req.Category,
	})
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusCreated, product)
}

func (h *ProductHandler) list(c echo.Context) error {
	sellerID, err := auth.ResolveSellerID(c.Request(), h.validator)
	if err != nil {
		return h.httpError(err)
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if page <= 0 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	items, total, err := h.service.ListProducts(c.Request().Context(), ports.ProductFilter{
		SellerID: sellerID,
		Category: c.QueryParam("category"),
		Page:     page,
		Limit:    limit,
	})
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, productListResponse{Items: items, Total: total, Page: page, Limit: limit})
}

func (h *ProductHandler) get(c echo.Context) error {
	sellerID, productID, err := h.sellerAndID(c)
	if err != nil {
		return err
	}
	product, err := h.service.GetProduct(c.Request().Context(), sellerID, productID)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, product)
}

func (h *ProductHandler) update(c echo.Context) error {
	sellerID, productID, err := h.sellerAndID(c)
	if err != nil {
		return err
	}
	var req updateProductRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	product, err := h.service.UpdateProduct(c.Request().Context(), sellerID, productID, ports.UpdateProductInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Quantity:    req.Quantity,
		Category:    req.Category,
	})
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, product)
}

func (h *ProductHandler) delete(c echo.Context) error {
	sellerID, productID, err := h.sellerAndID(c)
	if err != nil {
		return err
	}
	if err := h.service.DeleteProduct(c.Request().Context(), sellerID, productID); err != nil {
		return h.httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *ProductHandler) events(c echo.Context) error {
	sellerID, err := auth.ResolveSellerID(c.Request(), h.validator)
	if err != nil {
		return h.httpError(err)
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	events, err := h.service.ListEvents(c.Request().Context(), sellerID, limit)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, events)
}

func (h *ProductHandler) sellerAndID(c echo.Context) (string, int64, error) {
	sellerID, err := auth.ResolveSellerID(c.Request(), h.validator)
	if err != nil {
		return "", 0, h.httpError(err)
	}
	productID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return "", 0, echo.NewHTTPError(http.StatusBadRequest, "invalid product id")
	}
	return sellerID, productID, nil
}

func (h *ProductHandler) httpError(err error) error {
	info := h.errors.Map(err)
	return echo.NewHTTPError(info.Status, info.Message)
}
