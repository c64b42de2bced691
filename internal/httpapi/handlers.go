package httpapi

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pharmapos/backend/internal/domain"
	"pharmapos/backend/internal/service"
	"pharmapos/backend/internal/store"
)

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "too many login attempts", Code: "RATE_LIMITED"})
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	resp, err := a.auth.Login(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleListMedicines(w http.ResponseWriter, r *http.Request) {
	out, err := a.service.ListMedicines(r.Context(), r.URL.Query().Get("q"))
	respond(w, r, http.StatusOK, out, err)
}

func (a *API) handleCreateMedicine(w http.ResponseWriter, r *http.Request) {
	var req domain.MedicineCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	out, err := a.service.CreateMedicine(r.Context(), req)
	respond(w, r, http.StatusCreated, out, err)
}

func (a *API) handleLookupMedicine(w http.ResponseWriter, r *http.Request) {
	out, err := a.service.LookupMedicine(r.Context(), r.URL.Query().Get("q"))
	respond(w, r, http.StatusOK, out, err)
}

func (a *API) handleGetMedicine(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := a.service.GetMedicine(r.Context(), id)
	respond(w, r, http.StatusOK, out, err)
}

func (a *API) handleUpdateMedicine(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req domain.MedicineUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	out, err := a.service.UpdateMedicine(r.Context(), id, req)
	respond(w, r, http.StatusOK, out, err)
}

func (a *API) handleDeleteMedicine(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	err = a.service.DeleteMedicine(r.Context(), id)
	if errors.Is(err, store.ErrReferentialConflict) {
		writeJSON(w, http.StatusConflict, errorBody{
			Error: "medicine has sales or purchases",
			Code:  service.ErrorCode(err),
			Hint:  "use POST /api/v1/medicines/" + strconv.FormatInt(id, 10) + "/clear-stock instead",
		})
		return
	}
	respond(w, r, http.StatusNoContent, nil, err)
}

func (a *API) handleListBatches(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := a.service.ListBatches(r.Context(), id)
	respond(w, r, http.StatusOK, out, err)
}

func (a *API) handleClearStock(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := a.service.ClearStock(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	out, err := a.service.GetMedicine(r.Context(), id)
	respond(w, r, http.StatusOK, out, err)
}

func (a *API) handleCreateSale(w http.ResponseWriter, r *http.Request) {
	var req domain.SaleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	out, err := a.service.CreateSale(r.Context(), req)
	respond(w, r, http.StatusCreated, out, err)
}

func (a *API) handleGetSale(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := a.service.GetSale(r.Context(), id)
	respond(w, r, http.StatusOK, out, err)
}

// handleReceipt serves ?format=text, escpos or html, and a JSON bundle by default.
func (a *API) handleReceipt(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	doc, err := a.service.Receipt(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	switch strings.ToLower(r.URL.Query().Get("format")) {
	case "text":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(doc.Text))
	case "escpos":
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Disposition", `attachment; filename="`+doc.FileName+`.bin"`)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(doc.ESCPOS)
	case "html":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(doc.HTML))
	case "", "json":
		writeJSON(w, http.StatusOK, domain.ReceiptResponse{
			SaleID:       doc.SaleID,
			PreviewText:  doc.Text,
			EscposBase64: base64.StdEncoding.EncodeToString(doc.ESCPOS),
			FileName:     doc.FileName + ".bin",
		})
	default:
		writeError(w, r, fmt.Errorf("%w: format must be text, escpos, html or json", store.ErrValidation))
	}
}

func (a *API) handleCreatePurchase(w http.ResponseWriter, r *http.Request) {
	var req domain.PurchaseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	out, err := a.service.CreatePurchase(r.Context(), req)
	respond(w, r, http.StatusCreated, out, err)
}

func (a *API) handleGetPurchase(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := a.service.GetPurchase(r.Context(), id)
	respond(w, r, http.StatusOK, out, err)
}

func (a *API) handleListSuppliers(w http.ResponseWriter, r *http.Request) {
	out, err := a.service.ListSuppliers(r.Context(), r.URL.Query().Get("q"))
	respond(w, r, http.StatusOK, out, err)
}

func (a *API) handleCreateSupplier(w http.ResponseWriter, r *http.Request) {
	var req domain.SupplierRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	out, err := a.service.CreateSupplier(r.Context(), req)
	respond(w, r, http.StatusCreated, out, err)
}

func (a *API) handleGetSupplier(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := a.service.GetSupplier(r.Context(), id)
	respond(w, r, http.StatusOK, out, err)
}

func (a *API) handleUpdateSupplier(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req domain.SupplierRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	out, err := a.service.UpdateSupplier(r.Context(), id, req)
	respond(w, r, http.StatusOK, out, err)
}

func (a *API) handleDeleteSupplier(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, r, http.StatusNoContent, nil, a.service.DeleteSupplier(r.Context(), id))
}

func (a *API) handleListCustomers(w http.ResponseWriter, r *http.Request) {
	out, err := a.service.ListCustomers(r.Context(), r.URL.Query().Get("q"))
	respond(w, r, http.StatusOK, out, err)
}

func (a *API) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req domain.CustomerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	out, err := a.service.CreateCustomer(r.Context(), req)
	respond(w, r, http.StatusCreated, out, err)
}

func (a *API) handleUpdateCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req domain.CustomerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	out, err := a.service.UpdateCustomer(r.Context(), id, req)
	respond(w, r, http.StatusOK, out, err)
}

func (a *API) handleDeleteCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, r, http.StatusNoContent, nil, a.service.DeleteCustomer(r.Context(), id))
}

func (a *API) handleListUsers(w http.ResponseWriter, r *http.Request) {
	out, err := a.service.ListUsers(r.Context())
	respond(w, r, http.StatusOK, out, err)
}

func (a *API) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req domain.UserCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	out, err := a.service.CreateUser(r.Context(), req)
	respond(w, r, http.StatusCreated, out, err)
}

func (a *API) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req domain.PasswordChangeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, r, http.StatusNoContent, nil, a.service.ChangePassword(r.Context(), id, req))
}

func (a *API) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, r, http.StatusNoContent, nil, a.service.DeleteUser(r.Context(), id))
}

func (a *API) handleDashboard(w http.ResponseWriter, r *http.Request) {
	out, err := a.service.Dashboard(r.Context())
	respond(w, r, http.StatusOK, out, err)
}

func (a *API) handleLowStock(w http.ResponseWriter, r *http.Request) {
	out, err := a.service.LowStock(r.Context())
	respond(w, r, http.StatusOK, out, err)
}

func (a *API) handleExpiring(w http.ResponseWriter, r *http.Request) {
	days := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("days")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, r, fmt.Errorf("%w: days must be a positive integer", store.ErrValidation))
			return
		}
		days = parsed
	}
	out, err := a.service.ExpiringBatches(r.Context(), days)
	respond(w, r, http.StatusOK, out, err)
}

func (a *API) handleSalesReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	out, err := a.service.SalesReport(r.Context(), q.Get("from"), q.Get("to"))
	respond(w, r, http.StatusOK, out, err)
}

func (a *API) handlePurchasesReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	out, err := a.service.PurchasesReport(r.Context(), q.Get("from"), q.Get("to"))
	respond(w, r, http.StatusOK, out, err)
}

func (a *API) handleFinancial(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	out, err := a.service.FinancialSummary(r.Context(), q.Get("from"), q.Get("to"))
	respond(w, r, http.StatusOK, out, err)
}

func (a *API) handleReconcile(w http.ResponseWriter, r *http.Request) {
	out, err := a.service.Reconcile(r.Context())
	respond(w, r, http.StatusOK, map[string]any{
		"balanced":      len(out) == 0,
		"discrepancies": out,
	}, err)
}

func respond(w http.ResponseWriter, r *http.Request, status int, payload any, err error) {
	if err != nil {
		writeError(w, r, err)
		return
	}
	if status == http.StatusNoContent {
		w.WriteHeader(status)
		return
	}
	writeJSON(w, status, payload)
}
