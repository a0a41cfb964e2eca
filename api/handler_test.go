package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"medhub/domain"
	"medhub/domain/event"
	"medhub/search"
	"medhub/store"
)

// recordingPublisher captures everything the handlers publish.
type recordingPublisher struct {
	mu     sync.Mutex
	events []event.DomainEvent
}

func (p *recordingPublisher) Publish(e event.DomainEvent, originSessionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) kinds() []event.Kind {
	p.mu.Lock()
	defer p.mu.Unlock()
	kinds := make([]event.Kind, 0, len(p.events))
	for _, e := range p.events {
		kinds = append(kinds, e.Kind())
	}
	return kinds
}

func (p *recordingPublisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}

func newTestAPI(t *testing.T) (*httptest.Server, *recordingPublisher, *store.Store) {
	t.Helper()
	db, err := store.Connect(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, store.Migrate(db))

	st := store.New(db, slog.Default())
	index, err := search.NewIndex()
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	publisher := &recordingPublisher{}
	server := httptest.NewServer(New(slog.Default(), st, index, publisher).Router())
	t.Cleanup(server.Close)
	return server, publisher, st
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-Id", "u1")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestCreateMedicine_Publishes_InventoryUpdated(t *testing.T) {
	req := require.New(t)
	server, publisher, _ := newTestAPI(t)

	resp := doJSON(t, http.MethodPost, server.URL+"/medicines", domain.Medicine{
		Name: "Paracetamol", UnitPrice: 2.5, Stock: 100, ReorderLevel: 10,
	})
	req.Equal(http.StatusCreated, resp.StatusCode)

	created := decodeBody[domain.Medicine](t, resp)
	req.NotZero(created.ID)
	req.Equal([]event.Kind{event.KindInventoryUpdated}, publisher.kinds())
}

func TestCreateMedicine_Requires_Name(t *testing.T) {
	req := require.New(t)
	server, publisher, _ := newTestAPI(t)

	resp := doJSON(t, http.MethodPost, server.URL+"/medicines", domain.Medicine{UnitPrice: 1})
	req.Equal(http.StatusBadRequest, resp.StatusCode)
	req.Empty(publisher.kinds())
}

func TestGetMedicine_Unknown_Is_404(t *testing.T) {
	req := require.New(t)
	server, _, _ := newTestAPI(t)

	resp, err := http.Get(server.URL + "/medicines/9999")
	req.NoError(err)
	defer resp.Body.Close()
	req.Equal(http.StatusNotFound, resp.StatusCode)
}

func TestAdjustStock_LowStock_Fires_Only_On_Crossing(t *testing.T) {
	req := require.New(t)
	server, publisher, _ := newTestAPI(t)

	resp := doJSON(t, http.MethodPost, server.URL+"/medicines", domain.Medicine{
		Name: "Amoxicillin", Stock: 12, ReorderLevel: 10,
	})
	req.Equal(http.StatusCreated, resp.StatusCode)
	created := decodeBody[domain.Medicine](t, resp)
	publisher.reset()

	// When stock drops through the threshold
	url := fmt.Sprintf("%s/medicines/%d/stock", server.URL, created.ID)
	resp = doJSON(t, http.MethodPost, url, map[string]int{"delta": -3})
	req.Equal(http.StatusOK, resp.StatusCode)
	req.Equal([]event.Kind{event.KindInventoryUpdated, event.KindInventoryLow}, publisher.kinds())
	publisher.reset()

	// And drops again while already below it
	resp = doJSON(t, http.MethodPost, url, map[string]int{"delta": -2})
	req.Equal(http.StatusOK, resp.StatusCode)

	// Then the alert does not repeat
	req.Equal([]event.Kind{event.KindInventoryUpdated}, publisher.kinds())
}

func TestAdjustStock_Insufficient_Is_409(t *testing.T) {
	req := require.New(t)
	server, publisher, _ := newTestAPI(t)

	resp := doJSON(t, http.MethodPost, server.URL+"/medicines", domain.Medicine{Name: "Zinc", Stock: 2})
	created := decodeBody[domain.Medicine](t, resp)
	publisher.reset()

	url := fmt.Sprintf("%s/medicines/%d/stock", server.URL, created.ID)
	resp = doJSON(t, http.MethodPost, url, map[string]int{"delta": -5})
	req.Equal(http.StatusConflict, resp.StatusCode)
	req.Empty(publisher.kinds())
}

func TestCreateSale_Publishes_Completion_And_Inventory(t *testing.T) {
	req := require.New(t)
	server, publisher, _ := newTestAPI(t)

	resp := doJSON(t, http.MethodPost, server.URL+"/medicines", domain.Medicine{
		Name: "Paracetamol", UnitPrice: 2.5, Stock: 11, ReorderLevel: 10,
	})
	created := decodeBody[domain.Medicine](t, resp)
	publisher.reset()

	resp = doJSON(t, http.MethodPost, server.URL+"/sales", map[string]any{
		"invoiceNo": "INV-001",
		"customer":  "walk-in",
		"items":     []map[string]any{{"medicineId": created.ID, "quantity": 2}},
	})
	req.Equal(http.StatusCreated, resp.StatusCode)

	sale := decodeBody[domain.Sale](t, resp)
	req.Equal(5.0, sale.Total)
	req.Equal("u1", sale.UserID)

	// Sale announcement, inventory refresh, and the threshold crossing
	req.Equal([]event.Kind{
		event.KindSaleCompleted,
		event.KindInventoryUpdated,
		event.KindInventoryLow,
	}, publisher.kinds())
}

func TestCreateSale_Requires_Invoice_And_Items(t *testing.T) {
	req := require.New(t)
	server, _, _ := newTestAPI(t)

	resp := doJSON(t, http.MethodPost, server.URL+"/sales", map[string]any{"customer": "walk-in"})
	req.Equal(http.StatusBadRequest, resp.StatusCode)
}

func TestCreatePayment_Publishes_PaymentReceived(t *testing.T) {
	req := require.New(t)
	server, publisher, _ := newTestAPI(t)

	resp := doJSON(t, http.MethodPost, server.URL+"/payments", domain.Payment{
		Customer: "Mrs. Rahman", Amount: 150, Method: "cash",
	})
	req.Equal(http.StatusCreated, resp.StatusCode)
	req.Equal([]event.Kind{event.KindPaymentReceived}, publisher.kinds())
}

func TestSearchMedicines_Returns_Indexed_Rows(t *testing.T) {
	req := require.New(t)
	server, _, _ := newTestAPI(t)

	resp := doJSON(t, http.MethodPost, server.URL+"/medicines", domain.Medicine{
		Name: "Napa Extra", GenericName: "Paracetamol", Category: "Analgesic", Stock: 10,
	})
	req.Equal(http.StatusCreated, resp.StatusCode)
	resp = doJSON(t, http.MethodPost, server.URL+"/medicines", domain.Medicine{
		Name: "Zinc", GenericName: "Zinc Sulfate", Category: "Supplement", Stock: 10,
	})
	req.Equal(http.StatusCreated, resp.StatusCode)

	resp, err := http.Get(server.URL + "/medicines/search?q=paracetamol")
	req.NoError(err)
	defer resp.Body.Close()
	req.Equal(http.StatusOK, resp.StatusCode)

	results := decodeBody[[]domain.Medicine](t, resp)
	req.Len(results, 1)
	req.Equal("Napa Extra", results[0].Name)
}

func TestSearchMedicines_Requires_Query(t *testing.T) {
	req := require.New(t)
	server, _, _ := newTestAPI(t)

	resp, err := http.Get(server.URL + "/medicines/search")
	req.NoError(err)
	defer resp.Body.Close()
	req.Equal(http.StatusBadRequest, resp.StatusCode)
}
