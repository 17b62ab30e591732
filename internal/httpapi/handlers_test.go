package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/racmathafidz/POS-Invoice/internal/service"
	"github.com/racmathafidz/POS-Invoice/internal/store/memory"
)

// newTestAPI builds a full open-mode API over the seeded in-memory store so
// handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	svc := service.New(memory.NewSeeded(), nil, 30*time.Second)
	auth := NewAuthManager("", 0, "", "")
	return New(svc, auth, "*")
}

func doJSON(t *testing.T, handler http.Handler, method, target string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func newJSONRequest(t *testing.T, method, target string, body []byte) *http.Request {
	t.Helper()

	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func record(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeErrorEnvelope(t *testing.T, rec *httptest.ResponseRecorder) (code string, message string, details map[string]any) {
	t.Helper()

	var body struct {
		Error struct {
			Code    string         `json:"code"`
			Message string         `json:"message"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	return body.Error.Code, body.Error.Message, body.Error.Details
}

func createPayload() map[string]any {
	return map[string]any{
		"date":            "2025-01-05",
		"customerName":    "Budi",
		"salespersonName": "Sari",
		"notes":           "walk-in",
		"items": []map[string]any{
			{"productId": 1, "qty": 2},
		},
	}
}

func TestHandleHealth(t *testing.T) {
	handler := newTestAPI(t).Handler()

	rec := doJSON(t, handler, http.MethodGet, "/health", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body)
	}
}

func TestUnknownRouteReturnsNotFoundEnvelope(t *testing.T) {
	handler := newTestAPI(t).Handler()

	rec := doJSON(t, handler, http.MethodGet, "/api/unknown", nil)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	code, _, _ := decodeErrorEnvelope(t, rec)
	if code != "NOT_FOUND" {
		t.Fatalf("expected NOT_FOUND, got %q", code)
	}
}

func TestCreateInvoiceReturns201WithTotal(t *testing.T) {
	handler := newTestAPI(t).Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/invoices", createPayload())

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var body struct {
		ID         int64   `json:"id"`
		TotalCents int64   `json:"totalCents"`
		Notes      *string `json:"notes"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.ID != 1 || body.TotalCents != 2*89000 {
		t.Fatalf("unexpected invoice summary: %+v", body)
	}
	if body.Notes == nil || *body.Notes != "walk-in" {
		t.Fatalf("expected notes in response, got %v", body.Notes)
	}
}

func TestCreateInvoiceValidationError(t *testing.T) {
	handler := newTestAPI(t).Handler()

	payload := createPayload()
	payload["items"] = []map[string]any{}
	rec := doJSON(t, handler, http.MethodPost, "/api/invoices", payload)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	code, _, details := decodeErrorEnvelope(t, rec)
	if code != "VALIDATION_ERROR" {
		t.Fatalf("expected VALIDATION_ERROR, got %q", code)
	}
	if _, ok := details["items"]; !ok {
		t.Fatalf("expected items detail, got %v", details)
	}
}

func TestCreateInvoiceMalformedBody(t *testing.T) {
	handler := newTestAPI(t).Handler()

	req := httptest.NewRequest(http.MethodPost, "/api/invoices", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	code, _, _ := decodeErrorEnvelope(t, rec)
	if code != "VALIDATION_ERROR" {
		t.Fatalf("expected VALIDATION_ERROR, got %q", code)
	}
}

func TestCreateInvoiceRejectsUnknownFields(t *testing.T) {
	handler := newTestAPI(t).Handler()

	payload := createPayload()
	payload["discount"] = 5
	rec := doJSON(t, handler, http.MethodPost, "/api/invoices", payload)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rec.Code)
	}
	code, _, _ := decodeErrorEnvelope(t, rec)
	if code != "VALIDATION_ERROR" {
		t.Fatalf("expected VALIDATION_ERROR, got %q", code)
	}
}

func TestCreateInvoiceProductNotFoundListsMissingIDs(t *testing.T) {
	handler := newTestAPI(t).Handler()

	payload := createPayload()
	payload["items"] = []map[string]any{
		{"productId": 98, "qty": 1},
		{"productId": 99, "qty": 1},
	}
	rec := doJSON(t, handler, http.MethodPost, "/api/invoices", payload)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	code, _, details := decodeErrorEnvelope(t, rec)
	if code != "PRODUCT_NOT_FOUND" {
		t.Fatalf("expected PRODUCT_NOT_FOUND, got %q", code)
	}
	missing, ok := details["missingIds"].([]any)
	if !ok || len(missing) != 2 {
		t.Fatalf("expected two missing ids, got %v", details)
	}
}

func TestCreateInvoiceOutOfStockNamesProduct(t *testing.T) {
	handler := newTestAPI(t).Handler()

	payload := createPayload()
	payload["items"] = []map[string]any{
		{"productId": 4, "qty": 31}, // Chocolate Syrup has stock 30
	}
	rec := doJSON(t, handler, http.MethodPost, "/api/invoices", payload)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	code, message, _ := decodeErrorEnvelope(t, rec)
	if code != "OUT_OF_STOCK" {
		t.Fatalf("expected OUT_OF_STOCK, got %q", code)
	}
	if message != "Insufficient stock for Chocolate Syrup" {
		t.Fatalf("unexpected message: %q", message)
	}
}

func TestInvoiceListingCursorFlow(t *testing.T) {
	handler := newTestAPI(t).Handler()

	for i := 0; i < 3; i++ {
		rec := doJSON(t, handler, http.MethodPost, "/api/invoices", createPayload())
		if rec.Code != http.StatusCreated {
			t.Fatalf("create %d failed: %d %s", i, rec.Code, rec.Body.String())
		}
	}

	rec := doJSON(t, handler, http.MethodGet, "/api/invoices?limit=2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var page struct {
		Nodes []struct {
			ID int64 `json:"id"`
		} `json:"nodes"`
		NextCursor *int64 `json:"nextCursor"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&page); err != nil {
		t.Fatalf("decode page: %v", err)
	}
	if len(page.Nodes) != 2 || page.Nodes[0].ID != 3 || page.Nodes[1].ID != 2 {
		t.Fatalf("expected ids [3 2], got %+v", page.Nodes)
	}
	if page.NextCursor == nil || *page.NextCursor != 2 {
		t.Fatalf("expected nextCursor 2, got %v", page.NextCursor)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/invoices?limit=2&cursor=2", nil)
	if err := json.NewDecoder(rec.Body).Decode(&page); err != nil {
		t.Fatalf("decode second page: %v", err)
	}
	if len(page.Nodes) != 1 || page.Nodes[0].ID != 1 {
		t.Fatalf("expected the oldest invoice, got %+v", page.Nodes)
	}
	if page.NextCursor != nil {
		t.Fatalf("expected null nextCursor, got %v", *page.NextCursor)
	}
}

func TestRevenueEndpoint(t *testing.T) {
	handler := newTestAPI(t).Handler()

	payload := createPayload()
	payload["date"] = "2025-01-10"
	if rec := doJSON(t, handler, http.MethodPost, "/api/invoices", payload); rec.Code != http.StatusCreated {
		t.Fatalf("create failed: %d", rec.Code)
	}

	rec := doJSON(t, handler, http.MethodGet, "/api/revenue?granularity=daily&from=2025-01-01&to=2025-01-31", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var points []struct {
		At    time.Time `json:"at"`
		Total int64     `json:"total"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&points); err != nil {
		t.Fatalf("decode points: %v", err)
	}
	if len(points) != 1 || points[0].Total != 2*89000 {
		t.Fatalf("unexpected revenue series: %+v", points)
	}
	if !points[0].At.Equal(time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected bucket timestamp: %v", points[0].At)
	}
}

func TestRevenueRejectsUnknownGranularity(t *testing.T) {
	handler := newTestAPI(t).Handler()

	rec := doJSON(t, handler, http.MethodGet, "/api/revenue?granularity=hourly", nil)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	code, _, _ := decodeErrorEnvelope(t, rec)
	if code != "VALIDATION_ERROR" {
		t.Fatalf("expected VALIDATION_ERROR, got %q", code)
	}
}

func TestRevenueWindowEndpointIsDense(t *testing.T) {
	handler := newTestAPI(t).Handler()

	payload := createPayload()
	payload["date"] = "2025-01-10"
	if rec := doJSON(t, handler, http.MethodPost, "/api/invoices", payload); rec.Code != http.StatusCreated {
		t.Fatalf("create failed: %d", rec.Code)
	}

	rec := doJSON(t, handler, http.MethodGet, "/api/revenue/window?granularity=daily&from=2025-01-01&to=2025-01-31", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var points []struct {
		At    time.Time `json:"at"`
		Total int64     `json:"total"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&points); err != nil {
		t.Fatalf("decode points: %v", err)
	}
	if len(points) != 30 {
		t.Fatalf("expected 30 buckets, got %d", len(points))
	}
	if last := points[len(points)-1]; last.Total != 2*89000 {
		t.Fatalf("expected the sale in the final bucket, got %+v", last)
	}
}

func TestProductSearch(t *testing.T) {
	handler := newTestAPI(t).Handler()

	rec := doJSON(t, handler, http.MethodGet, "/api/products?q=beans", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var products []struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&products); err != nil {
		t.Fatalf("decode products: %v", err)
	}
	if len(products) != 2 {
		t.Fatalf("expected both bean products, got %+v", products)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	handler := newTestAPI(t).Handler()

	rec := doJSON(t, handler, http.MethodDelete, "/api/invoices", nil)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	handler := newTestAPI(t).Handler()

	rec := doJSON(t, handler, http.MethodOptions, "/api/invoices", nil)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for preflight, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("expected wildcard origin, got %q", got)
	}
}
