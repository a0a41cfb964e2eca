// Package api is the REST collaborator the hub serves. It owns all
// persisted business state; after every write it publishes a
// notification event so connected dashboards re-fetch.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"medhub/contract"
	"medhub/domain"
	"medhub/domain/event"
	apperrors "medhub/errors"
	"medhub/search"
	"medhub/store"
)

// Handler bundles dependencies for HTTP handlers.
type Handler struct {
	log       *slog.Logger
	store     *store.Store
	index     *search.Index
	publisher contract.Publisher
}

func New(log *slog.Logger, st *store.Store, index *search.Index, publisher contract.Publisher) *Handler {
	return &Handler{log: log, store: st, index: index, publisher: publisher}
}

// Router wires up the HTTP API.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.health)

	r.Route("/medicines", func(r chi.Router) {
		r.Post("/", h.createMedicine)
		r.Get("/", h.listMedicines)
		r.Get("/search", h.searchMedicines)
		r.Get("/{id}", h.getMedicine)
		r.Put("/{id}", h.updateMedicine)
		r.Post("/{id}/stock", h.adjustStock)
	})

	r.Post("/sales", h.createSale)
	r.Post("/payments", h.createPayment)

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) createMedicine(w http.ResponseWriter, r *http.Request) {
	var m domain.Medicine
	if err := decodeJSON(r, &m); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(m.Name) == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	created, err := h.store.CreateMedicine(r.Context(), m)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := h.index.Upsert(created); err != nil {
		h.log.Warn("failed to index medicine", "medicine_id", created.ID, "error", err)
	}

	h.publisher.Publish(event.InventoryUpdated{
		MedicineID: created.ID,
		Medicine:   created,
		UserID:     actingUser(r),
	}, "")
	respondJSON(w, http.StatusCreated, created)
}

func (h *Handler) listMedicines(w http.ResponseWriter, r *http.Request) {
	medicines, err := h.store.ListMedicines(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, medicines)
}

func (h *Handler) getMedicine(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid id")
		return
	}
	m, err := h.store.GetMedicine(r.Context(), id)
	if errors.Is(err, apperrors.ErrNotFound) {
		respondError(w, http.StatusNotFound, "medicine not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, m)
}

func (h *Handler) updateMedicine(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var m domain.Medicine
	if err := decodeJSON(r, &m); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	m.ID = id

	updated, err := h.store.UpdateMedicine(r.Context(), m)
	if errors.Is(err, apperrors.ErrNotFound) {
		respondError(w, http.StatusNotFound, "medicine not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := h.index.Upsert(updated); err != nil {
		h.log.Warn("failed to index medicine", "medicine_id", updated.ID, "error", err)
	}

	h.publisher.Publish(event.InventoryUpdated{
		MedicineID: updated.ID,
		Medicine:   updated,
		UserID:     actingUser(r),
	}, "")
	if updated.LowStock() {
		h.publisher.Publish(event.InventoryLowStock{
			MedicineID:   updated.ID,
			Name:         updated.Name,
			Stock:        updated.Stock,
			ReorderLevel: updated.ReorderLevel,
		}, "")
	}
	respondJSON(w, http.StatusOK, updated)
}

type stockRequest struct {
	Delta int `json:"delta"`
}

func (h *Handler) adjustStock(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req stockRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	before, after, err := h.store.AdjustStock(r.Context(), id, req.Delta)
	if errors.Is(err, apperrors.ErrNotFound) {
		respondError(w, http.StatusNotFound, "medicine not found")
		return
	}
	if errors.Is(err, apperrors.ErrInsufficientStock) {
		respondError(w, http.StatusConflict, "insufficient stock")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.publisher.Publish(event.InventoryUpdated{
		MedicineID: after.ID,
		Medicine:   after,
		UserID:     actingUser(r),
	}, "")
	h.notifyLowStock(before, after)
	respondJSON(w, http.StatusOK, after)
}

func (h *Handler) searchMedicines(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		respondError(w, http.StatusBadRequest, "q is required")
		return
	}

	ids, err := h.index.Search(r.Context(), q, 20)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	results := make([]domain.Medicine, 0, len(ids))
	for _, id := range ids {
		m, err := h.store.GetMedicine(r.Context(), id)
		if err != nil {
			// Index can briefly lag a delete; skip the stale hit.
			continue
		}
		results = append(results, m)
	}
	respondJSON(w, http.StatusOK, results)
}

type saleRequest struct {
	InvoiceNo string `json:"invoiceNo"`
	Customer  string `json:"customer"`
	Items     []struct {
		MedicineID int64 `json:"medicineId"`
		Quantity   int   `json:"quantity"`
	} `json:"items"`
}

func (h *Handler) createSale(w http.ResponseWriter, r *http.Request) {
	var req saleRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.InvoiceNo == "" || len(req.Items) == 0 {
		respondError(w, http.StatusBadRequest, "invoiceNo and items are required")
		return
	}

	sale := domain.Sale{
		InvoiceNo: req.InvoiceNo,
		Customer:  req.Customer,
		UserID:    actingUser(r),
	}
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			respondError(w, http.StatusBadRequest, "quantity must be positive")
			return
		}
		sale.Items = append(sale.Items, domain.SaleItem{MedicineID: item.MedicineID, Quantity: item.Quantity})
	}

	created, updated, err := h.store.CreateSale(r.Context(), sale)
	if errors.Is(err, apperrors.ErrNotFound) {
		respondError(w, http.StatusNotFound, "medicine not found")
		return
	}
	if errors.Is(err, apperrors.ErrInsufficientStock) {
		respondError(w, http.StatusConflict, "insufficient stock")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.publisher.Publish(event.SaleCompleted{
		SaleID:    created.ID,
		InvoiceNo: created.InvoiceNo,
		Total:     created.Total,
		UserID:    created.UserID,
	}, "")
	for i, m := range updated {
		h.publisher.Publish(event.InventoryUpdated{MedicineID: m.ID, Medicine: m, UserID: created.UserID}, "")
		before := m
		before.Stock += created.Items[i].Quantity
		h.notifyLowStock(before, m)
	}
	respondJSON(w, http.StatusCreated, created)
}

func (h *Handler) createPayment(w http.ResponseWriter, r *http.Request) {
	var p domain.Payment
	if err := decodeJSON(r, &p); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if p.Customer == "" || p.Amount <= 0 {
		respondError(w, http.StatusBadRequest, "customer and positive amount are required")
		return
	}
	p.UserID = actingUser(r)

	created, err := h.store.CreatePayment(r.Context(), p)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.publisher.Publish(event.PaymentReceived{
		PaymentID: created.ID,
		Customer:  created.Customer,
		Amount:    created.Amount,
		Method:    created.Method,
		UserID:    created.UserID,
	}, "")
	respondJSON(w, http.StatusCreated, created)
}

// notifyLowStock publishes a low-stock notice only on a downward
// crossing of the reorder threshold, so the alert fires once instead
// of on every subsequent sale.
func (h *Handler) notifyLowStock(before, after domain.Medicine) {
	if after.LowStock() && !before.LowStock() {
		h.publisher.Publish(event.InventoryLowStock{
			MedicineID:   after.ID,
			Name:         after.Name,
			Stock:        after.Stock,
			ReorderLevel: after.ReorderLevel,
		}, "")
	}
}

// actingUser identifies the dashboard user a write came from.
// Authentication itself lives in front of this service; the header is
// only used to attribute hub notifications.
func actingUser(r *http.Request) string {
	return r.Header.Get("X-User-Id")
}

// Helpers

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func decodeJSON(r *http.Request, dest interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	_ = encoder.Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
