package httpx

import (
	"context"
	"errors"
	"github.com/ariefcatur/go-cart-lifecycle/internal/lifecycle"
	"github.com/go-chi/chi/v5"
	"log"
	"net/http"
	"time"
)

type CheckoutHandler struct {
	Tracker *lifecycle.Tracker
}

type sessionReq struct {
	SessionID string `json:"sessionId"`
}

type completeReq struct {
	SessionID string `json:"sessionId"`
	OrderID   string `json:"orderId"`
}

func (h *CheckoutHandler) Register(r chi.Router) {
	r.Route("/shops/{shop}/carts/{cart}", func(r chi.Router) {
		r.Get("/lifecycle", h.get)
		r.Post("/checkout", h.initiate)
		r.Post("/pending", h.pending)
		r.Post("/complete", h.complete)
		r.Post("/failed", h.failed)
	})
}

func (h *CheckoutHandler) get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	rec, err := h.Tracker.GetCartLifecycle(ctx, chi.URLParam(r, "shop"), chi.URLParam(r, "cart"))
	if err != nil {
		writeLifecycleError(w, err)
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "no lifecycle record")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *CheckoutHandler) initiate(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, h.Tracker.InitiateCheckout)
}

func (h *CheckoutHandler) pending(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, h.Tracker.MarkOrderPending)
}

func (h *CheckoutHandler) failed(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, h.Tracker.MarkOrderFailed)
}

func (h *CheckoutHandler) complete(w http.ResponseWriter, r *http.Request) {
	var req completeReq
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	rec, err := h.Tracker.ClearCartForOrder(ctx, chi.URLParam(r, "shop"), chi.URLParam(r, "cart"), req.OrderID, req.SessionID)
	if err != nil {
		writeLifecycleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type sessionOp func(ctx context.Context, shopID, cartID, sessionID string) (*lifecycle.Record, error)

func (h *CheckoutHandler) withSession(w http.ResponseWriter, r *http.Request, op sessionOp) {
	var req sessionReq
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	rec, err := op(ctx, chi.URLParam(r, "shop"), chi.URLParam(r, "cart"), req.SessionID)
	if err != nil {
		writeLifecycleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func writeLifecycleError(w http.ResponseWriter, err error) {
	var lerr *lifecycle.Error
	switch {
	case errors.As(err, &lerr):
		writeJSON(w, http.StatusConflict, lerr)
	case errors.Is(err, lifecycle.ErrMissingArgument):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		log.Printf("httpx: lifecycle: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
