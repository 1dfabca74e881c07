package handlers

import (
	"errors"
	"net/http"

	"github.com/vedran77/reviewhub/internal/service"
	"github.com/vedran77/reviewhub/pkg/validator"
)

type ProductHandler struct {
	productService *service.ProductService
	images         *validator.ImagePolicy
}

func NewProductHandler(productService *service.ProductService, images *validator.ImagePolicy) *ProductHandler {
	return &ProductHandler{productService: productService, images: images}
}

func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.productService.List(r.Context())
	if err != nil {
		writeInternal(w, "list products", err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	product, err := h.productService.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeProductError(w, "get product", err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input service.ProductInput
	if !decodeJSON(w, r, &input) {
		return
	}

	errs := validator.ValidateProduct(input.Name, input.Description, input.Category, input.ImageURL, input.Price, h.images)
	if errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	product, err := h.productService.Create(r.Context(), input)
	if err != nil {
		writeInternal(w, "create product", err)
		return
	}
	writeJSON(w, http.StatusCreated, product)
}

func (h *ProductHandler) AddReview(w http.ResponseWriter, r *http.Request) {
	var input service.ReviewInput
	if !decodeJSON(w, r, &input) {
		return
	}

	if errs := validator.ValidateReview(input.UserName, input.Rating, input.Comment, input.Photos, h.images); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	product, err := h.productService.AddReview(r.Context(), r.PathValue("id"), input)
	if err != nil {
		h.writeProductError(w, "add review", err)
		return
	}
	writeJSON(w, http.StatusCreated, product)
}

func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.productService.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.writeProductError(w, "delete product", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Product deleted"})
}

func (h *ProductHandler) writeProductError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, service.ErrProductNotFound) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Product not found")
		return
	}
	writeInternal(w, op, err)
}
