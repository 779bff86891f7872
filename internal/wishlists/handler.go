package wishlists

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/vicentepr/storefront/internal/domain"
)

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateWishlistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	list, err := h.service.CreateWithProducts(r.Context(), req)
	if err != nil {
		h.writeDomainError(w, err, "failed to create wishlist")
		return
	}

	h.writeJSON(w, http.StatusCreated, list)
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing wishlist id")
		return
	}

	var req CreateWishlistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	list, err := h.service.UpdateWithProducts(r.Context(), id, req)
	if err != nil {
		h.writeDomainError(w, err, "failed to update wishlist")
		return
	}

	h.writeJSON(w, http.StatusOK, list)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing wishlist id")
		return
	}

	list, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err, "failed to get wishlist")
		return
	}

	h.writeJSON(w, http.StatusOK, list)
}

func (h *Handler) HandleGetByUser(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")
	if userID == "" {
		h.writeError(w, http.StatusBadRequest, "missing user id")
		return
	}

	list, err := h.service.GetByUserID(r.Context(), userID)
	if err != nil {
		h.writeDomainError(w, err, "failed to get wishlist by user")
		return
	}

	h.writeJSON(w, http.StatusOK, list)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	lists, err := h.service.List(r.Context())
	if err != nil {
		h.writeDomainError(w, err, "failed to list wishlists")
		return
	}

	h.writeJSON(w, http.StatusOK, lists)
}

func (h *Handler) HandleAddProduct(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	productID := r.PathValue("productId")
	if id == "" || productID == "" {
		h.writeError(w, http.StatusBadRequest, "missing wishlist or product id")
		return
	}

	list, err := h.service.AddProduct(r.Context(), id, productID)
	if err != nil {
		h.writeDomainError(w, err, "failed to add product to wishlist")
		return
	}

	h.writeJSON(w, http.StatusOK, list)
}

func (h *Handler) HandleRemoveProduct(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	productID := r.PathValue("productId")
	if id == "" || productID == "" {
		h.writeError(w, http.StatusBadRequest, "missing wishlist or product id")
		return
	}

	list, err := h.service.RemoveProduct(r.Context(), id, productID)
	if err != nil {
		h.writeDomainError(w, err, "failed to remove product from wishlist")
		return
	}

	h.writeJSON(w, http.StatusOK, list)
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing wishlist id")
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		h.writeDomainError(w, err, "failed to delete wishlist")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeDomainError(w http.ResponseWriter, err error, logMsg string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrBusinessRule):
		h.writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error(logMsg, "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
