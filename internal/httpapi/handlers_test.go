package httpapi

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pharmapos/backend/internal/metrics"
	"pharmapos/backend/internal/service"
	"pharmapos/backend/internal/store/memory"
)

const testSecret = "test-secret-key-with-at-least-32-chars"

// newTestAPI builds a full API over a seeded in-memory store so handler
// tests exercise the complete request path.
func newTestAPI(t *testing.T) http.Handler {
	t.Helper()

	repo := memory.NewSeeded()
	m := metrics.New()
	svc := service.New(repo, service.Options{Metrics: m})
	auth := NewAuthManager(testSecret, time.Hour, svc)

	return New(svc, auth, Config{AllowedOrigin: "http://127.0.0.1:3000", Metrics: m}).Handler()
}

func doJSON(t *testing.T, h http.Handler, method string, path string, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func login(t *testing.T, h http.Handler, username string, password string) string {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": username,
		"password": password,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: expected 200, got %d (body: %s)", username, rec.Code, rec.Body.String())
	}
	var resp struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	return resp.AccessToken
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body
}

func TestHandleHealth(t *testing.T) {
	h := newTestAPI(t)
	rec := doJSON(t, h, http.MethodGet, "/healthz", "", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestLoginDefaultAdmin(t *testing.T) {
	h := newTestAPI(t)
	rec := doJSON(t, h, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": "admin", "password": "123"})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var resp struct {
		AccessToken string `json:"access_token"`
		Role        string `json:"role"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.AccessToken == "" || resp.Role != "admin" {
		t.Fatalf("unexpected login response %+v", resp)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	h := newTestAPI(t)
	rec := doJSON(t, h, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": "admin", "password": "wrong"})

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if body := decodeError(t, rec); body.Code != "INVALID_CREDENTIALS" {
		t.Fatalf("unexpected code %s", body.Code)
	}
}

func TestProtectedRouteRequiresToken(t *testing.T) {
	h := newTestAPI(t)

	rec := doJSON(t, h, http.MethodGet, "/api/v1/medicines", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	rec = doJSON(t, h, http.MethodGet, "/api/v1/medicines", "not-a-token", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token, got %d", rec.Code)
	}
}

func TestListMedicines(t *testing.T) {
	h := newTestAPI(t)
	token := login(t, h, "admin", "123")

	rec := doJSON(t, h, http.MethodGet, "/api/v1/medicines", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var list []map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 seeded medicines, got %d", len(list))
	}

	rec = doJSON(t, h, http.MethodGet, "/api/v1/medicines?q=amox", token, nil)
	list = nil
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected one search hit, got %d", len(list))
	}

	rec = doJSON(t, h, http.MethodGet, "/api/v1/medicines/lookup?q=8991001000011", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("lookup expected 200, got %d", rec.Code)
	}
}

func TestSaleInsufficientStockReturnsConflict(t *testing.T) {
	h := newTestAPI(t)
	token := login(t, h, "admin", "123")

	rec := doJSON(t, h, http.MethodPost, "/api/v1/sales", token, map[string]any{
		"items": []map[string]any{{"medicine_id": 3, "quantity": 9}},
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	if body := decodeError(t, rec); body.Code != "INSUFFICIENT_STOCK" {
		t.Fatalf("unexpected code %s", body.Code)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/v1/medicines/3", token, nil)
	var med struct {
		Quantity int `json:"quantity"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&med); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if med.Quantity != 8 {
		t.Fatalf("expected quantity 8 after rejected sale, got %d", med.Quantity)
	}
}

func TestSaleAndReceipt(t *testing.T) {
	h := newTestAPI(t)
	token := login(t, h, "admin", "123")

	rec := doJSON(t, h, http.MethodPost, "/api/v1/sales", token, map[string]any{
		"doctor_name": "Dr. Salma",
		"items":       []map[string]any{{"medicine_id": 1, "quantity": 2}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var sale struct {
		ID    int64  `json:"id"`
		Total string `json:"total"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&sale); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sale.Total != "3" {
		t.Fatalf("expected total 3, got %s", sale.Total)
	}

	rec = doJSON(t, h, http.MethodGet, fmt.Sprintf("/api/v1/sales/%d/receipt?format=text", sale.ID), token, nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Paracetamol 500mg") {
		t.Fatalf("unexpected text receipt %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodGet, fmt.Sprintf("/api/v1/sales/%d/receipt", sale.ID), token, nil)
	var bundle struct {
		EscposBase64 string `json:"escpos_base64"`
		FileName     string `json:"file_name"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&bundle); err != nil {
		t.Fatalf("decode: %v", err)
	}
	raw, err := base64.StdEncoding.DecodeString(bundle.EscposBase64)
	if err != nil || len(raw) < 2 || raw[0] != 0x1b || raw[1] != 0x40 {
		t.Fatalf("expected ESC/POS payload, got %v (%v)", raw, err)
	}
	if bundle.FileName != fmt.Sprintf("invoice_%d.bin", sale.ID) {
		t.Fatalf("unexpected file name %s", bundle.FileName)
	}

	rec = doJSON(t, h, http.MethodGet, fmt.Sprintf("/api/v1/sales/%d/receipt?format=pdf", sale.ID), token, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown format, got %d", rec.Code)
	}
}

func TestDeleteSoldMedicineSuggestsClearStock(t *testing.T) {
	h := newTestAPI(t)
	token := login(t, h, "admin", "123")

	rec := doJSON(t, h, http.MethodPost, "/api/v1/sales", token, map[string]any{
		"items": []map[string]any{{"medicine_id": 2, "quantity": 1}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("sale expected 201, got %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodDelete, "/api/v1/medicines/2", token, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	body := decodeError(t, rec)
	if body.Code != "REFERENTIAL_CONFLICT" || !strings.Contains(body.Hint, "clear-stock") {
		t.Fatalf("unexpected body %+v", body)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/v1/medicines/2/clear-stock", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("clear-stock expected 200, got %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/v1/reports/reconcile", token, nil)
	var report struct {
		Balanced bool `json:"balanced"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !report.Balanced {
		t.Fatalf("expected balanced ledger")
	}
}

func TestPharmacistCannotUseAdminRoutes(t *testing.T) {
	h := newTestAPI(t)
	admin := login(t, h, "admin", "123")

	rec := doJSON(t, h, http.MethodPost, "/api/v1/users", admin, map[string]string{"username": "rana", "password": "secret"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create user expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	token := login(t, h, "rana", "secret")

	for _, tc := range []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/v1/medicines/1/clear-stock"},
		{http.MethodDelete, "/api/v1/medicines/1"},
		{http.MethodGet, "/api/v1/users"},
		{http.MethodPost, "/api/v1/purchases"},
	} {
		rec := doJSON(t, h, tc.method, tc.path, token, nil)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("%s %s expected 403, got %d", tc.method, tc.path, rec.Code)
		}
	}

	rec = doJSON(t, h, http.MethodGet, "/api/v1/reports/dashboard", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("dashboard expected 200, got %d", rec.Code)
	}
}

func TestCreateMedicineErrors(t *testing.T) {
	h := newTestAPI(t)
	token := login(t, h, "admin", "123")

	rec := doJSON(t, h, http.MethodPost, "/api/v1/medicines", token, map[string]any{
		"barcode":     "8991001000011",
		"name":        "Copy",
		"quantity":    1,
		"expiry_date": "2027-01-01",
	})
	if rec.Code != http.StatusConflict || decodeError(t, rec).Code != "DUPLICATE_BARCODE" {
		t.Fatalf("expected duplicate barcode conflict, got %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/v1/medicines", token, map[string]any{
		"barcode":     "123",
		"name":        "Mystery",
		"expiry_date": "2027-01-01",
		"colour":      "red",
	})
	if rec.Code != http.StatusBadRequest || decodeError(t, rec).Code != "VALIDATION_FAILURE" {
		t.Fatalf("expected validation failure for unknown field, got %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/v1/medicines/abc", token, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad id, got %d", rec.Code)
	}
	rec = doJSON(t, h, http.MethodGet, "/api/v1/medicines/999", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestPurchaseIntakeEndpoint(t *testing.T) {
	h := newTestAPI(t)
	token := login(t, h, "admin", "123")

	rec := doJSON(t, h, http.MethodPost, "/api/v1/purchases", token, map[string]any{
		"supplier_id":    1,
		"invoice_number": "A17",
		"invoice_date":   "2025-03-10",
		"items": []map[string]any{
			{"medicine_id": 3, "quantity": 20, "unit_cost": "1.10", "expiry_date": "2026-12-31"},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodGet, "/api/v1/medicines/3/batches", token, nil)
	var batches []struct {
		BatchNumber string `json:"batch_number"`
		Quantity    int    `json:"quantity"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&batches); err != nil {
		t.Fatalf("decode: %v", err)
	}
	found := false
	for _, b := range batches {
		if b.BatchNumber == "INV-A17-01" && b.Quantity == 20 {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected INV-A17-01 batch, got %+v", batches)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestAPI(t)
	doJSON(t, h, http.MethodGet, "/healthz", "", nil)

	rec := doJSON(t, h, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `pharmapos_http_requests_total{method="GET",route="/healthz",status="200"} 1`) {
		t.Fatalf("expected request counter in metrics output")
	}
}
