package handlers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/submitflow/submitflow/store"
	"github.com/submitflow/submitflow/types"
)

// ProductHandler serves product CRUD.
type ProductHandler struct {
	store  store.Store
	logger *zap.Logger
}

// ProductRequest is the create/update payload.
type ProductRequest struct {
	Name         string `json:"name"`
	WebsiteURL   string `json:"website_url"`
	Description  string `json:"description,omitempty"`
	Category     string `json:"category,omitempty"`
	Logo         string `json:"logo,omitempty"`
	ContactEmail string `json:"contact_email,omitempty"`
}

func (r *ProductRequest) validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return types.NewError(types.ErrInvalidRequest, "name is required")
	}
	if strings.TrimSpace(r.WebsiteURL) == "" {
		return types.NewError(types.ErrInvalidRequest, "website_url is required")
	}
	return nil
}

// NewProductHandler creates a ProductHandler.
func NewProductHandler(st store.Store, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{store: st, logger: logger}
}

func (h *ProductHandler) HandleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if err := req.validate(); err != nil {
		WriteError(w, err, h.logger)
		return
	}

	product := &types.Product{
		Name:         req.Name,
		WebsiteURL:   req.WebsiteURL,
		Description:  req.Description,
		Category:     req.Category,
		Logo:         req.Logo,
		ContactEmail: req.ContactEmail,
	}
	if err := h.store.CreateProduct(r.Context(), product); err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteCreated(w, product)
}

func (h *ProductHandler) HandleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.store.ListProducts(r.Context())
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, products)
}

func (h *ProductHandler) HandleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, h.logger)
	if !ok {
		return
	}
	product, err := h.store.GetProduct(r.Context(), id)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, product)
}

func (h *ProductHandler) HandleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, h.logger)
	if !ok {
		return
	}
	var req ProductRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if err := req.validate(); err != nil {
		WriteError(w, err, h.logger)
		return
	}

	product, err := h.store.GetProduct(r.Context(), id)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	product.Name = req.Name
	product.WebsiteURL = req.WebsiteURL
	product.Description = req.Description
	product.Category = req.Category
	product.Logo = req.Logo
	product.ContactEmail = req.ContactEmail
	if err := h.store.UpdateProduct(r.Context(), product); err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, product)
}

func (h *ProductHandler) HandleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, h.logger)
	if !ok {
		return
	}
	if _, err := h.store.GetProduct(r.Context(), id); err != nil {
		WriteError(w, err, h.logger)
		return
	}
	if err := h.store.DeleteProduct(r.Context(), id); err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, map[string]string{"deleted": id.String()})
}
