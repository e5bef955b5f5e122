package httpx

import (
	"github.com/ariefcatur/go-cart-lifecycle/internal/cartstore"
	"github.com/go-chi/chi/v5"
	"net/http"
)

// CartHandler exposes the store contract over JSON. Pricing, stock checks and
// cookie handling belong to the storefront and are not done here.
type CartHandler struct {
	Store cartstore.Store
}

type cartResp struct {
	ID   string         `json:"id"`
	Cart cartstore.Cart `json:"cart"`
}

type addItemReq struct {
	SKU    string                `json:"sku"`
	Qty    int                   `json:"qty"`
	Size   string                `json:"size,omitempty"`
	Rental *cartstore.RentalMeta `json:"rental,omitempty"`
}

type setQtyReq struct {
	Qty *int `json:"qty"`
}

func (h *CartHandler) Register(r chi.Router) {
	r.Post("/carts", h.createCart)
	r.Get("/carts/{id}", h.getCart)
	r.Put("/carts/{id}", h.setCart)
	r.Delete("/carts/{id}", h.deleteCart)
	r.Post("/carts/{id}/items", h.addItem)
	r.Patch("/carts/{id}/items/{line}", h.setQty)
	r.Delete("/carts/{id}/items/{line}", h.removeItem)
}

func (h *CartHandler) createCart(w http.ResponseWriter, r *http.Request) {
	id := h.Store.CreateCart(r.Context())
	writeJSON(w, http.StatusCreated, cartResp{ID: id, Cart: cartstore.Cart{}})
}

func (h *CartHandler) getCart(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	writeJSON(w, http.StatusOK, cartResp{ID: id, Cart: h.Store.GetCart(r.Context(), id)})
}

func (h *CartHandler) setCart(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var cart cartstore.Cart
	if err := decode(r, &cart); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	for key, line := range cart {
		if line.Qty < 0 {
			writeError(w, http.StatusBadRequest, "negative qty for "+key)
			return
		}
	}
	h.Store.SetCart(r.Context(), id, cart)
	writeJSON(w, http.StatusOK, cartResp{ID: id, Cart: h.Store.GetCart(r.Context(), id)})
}

func (h *CartHandler) deleteCart(w http.ResponseWriter, r *http.Request) {
	h.Store.DeleteCart(r.Context(), chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandler) addItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req addItemReq
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.SKU == "" || req.Qty <= 0 {
		writeError(w, http.StatusBadRequest, "sku and positive qty required")
		return
	}
	cart := h.Store.IncrementQty(r.Context(), id, req.SKU, req.Qty, req.Size, req.Rental)
	writeJSON(w, http.StatusOK, cartResp{ID: id, Cart: cart})
}

func (h *CartHandler) setQty(w http.ResponseWriter, r *http.Request) {
	id, line := chi.URLParam(r, "id"), chi.URLParam(r, "line")
	var req setQtyReq
	if err := decode(r, &req); err != nil || req.Qty == nil || *req.Qty < 0 {
		writeError(w, http.StatusBadRequest, "qty >= 0 required")
		return
	}
	cart, ok := h.Store.SetQty(r.Context(), id, line, *req.Qty)
	if !ok {
		writeError(w, http.StatusNotFound, "item not in cart")
		return
	}
	writeJSON(w, http.StatusOK, cartResp{ID: id, Cart: cart})
}

func (h *CartHandler) removeItem(w http.ResponseWriter, r *http.Request) {
	id, line := chi.URLParam(r, "id"), chi.URLParam(r, "line")
	cart, ok := h.Store.RemoveItem(r.Context(), id, line)
	if !ok {
		writeError(w, http.StatusNotFound, "item not in cart")
		return
	}
	writeJSON(w, http.StatusOK, cartResp{ID: id, Cart: cart})
}
