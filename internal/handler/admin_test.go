package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chenwt/key-reservation/internal/service"
)

func doJSON(t *testing.T, h echo.HandlerFunc, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	require.NoError(t, h(e.NewContext(req, rec)))

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return rec, out
}

func seedLease(t *testing.T, svc *service.Booking) {
	t.Helper()
	rh := NewRentHandler(svc)
	rec, _ := postForm(t, rh.SubmitRent, "/v1/rents", rentForm())
	require.Equal(t, http.StatusCreated, rec.Code)
}

func TestAdminUpdateLeaseStatusHandler(t *testing.T) {
	svc := newTestService()
	h := NewAdminHandler(svc)
	seedLease(t, svc)

	rec, body := doJSON(t, h.UpdateLeaseStatus, http.MethodPatch, "/v1/admin/leases/status",
		`{"key_id":"K001","phone":"0912345678","date":"2024-02-12","status":"CHECKED_OUT"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "CHECKED_OUT", body["status"])
	assert.NotContains(t, body, "returned_at")

	rec, body = doJSON(t, h.UpdateLeaseStatus, http.MethodPatch, "/v1/admin/leases/status",
		`{"key_id":"K001","phone":"0912345678","date":"2024-02-12","status":"RETURNED"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "RETURNED", body["status"])
	assert.NotEmpty(t, body["returned_at"])

	// A returned lease is frozen.
	rec, body = doJSON(t, h.UpdateLeaseStatus, http.MethodPatch, "/v1/admin/leases/status",
		`{"key_id":"K001","phone":"0912345678","date":"2024-02-12","status":"CHECKED_OUT"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "lease already returned", body["error"])
}

func TestAdminUpdateLeaseStatusHandlerErrors(t *testing.T) {
	svc := newTestService()
	h := NewAdminHandler(svc)

	rec, _ := doJSON(t, h.UpdateLeaseStatus, http.MethodPatch, "/v1/admin/leases/status",
		`{"key_id":"K001","phone":"0912345678","date":"2024-02-12","status":"CHECKED_OUT"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = doJSON(t, h.UpdateLeaseStatus, http.MethodPatch, "/v1/admin/leases/status",
		`{"key_id":"K001","phone":"0912345678","date":"2024-02-12","status":"LOST"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminReplaceKeysHandler(t *testing.T) {
	svc := newTestService()
	h := NewAdminHandler(svc)

	rec, body := doJSON(t, h.ReplaceKeys, http.MethodPut, "/v1/admin/keys",
		`{"keys":[{"key_id":"K001","label":"大門"},{"key_id":"","label":"dropped"},{"key_id":"K002","label":"會議室"}]}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), body["kept"])

	ch := NewCatalogHandler(svc)
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/keys", nil)
	lrec := httptest.NewRecorder()
	require.NoError(t, ch.ListKeys(e.NewContext(req, lrec)))
	assert.Equal(t, http.StatusOK, lrec.Code)
	var listed struct {
		Items []struct {
			KeyID string `json:"key_id"`
			Label string `json:"label"`
		} `json:"items"`
	}
	require.NoError(t, json.Unmarshal(lrec.Body.Bytes(), &listed))
	require.Len(t, listed.Items, 2)
	assert.Equal(t, "K001", listed.Items[0].KeyID)
	assert.Equal(t, "會議室", listed.Items[1].Label)
}

func TestAdminListLeasesHandler(t *testing.T) {
	svc := newTestService()
	h := NewAdminHandler(svc)
	seedLease(t, svc)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/admin/leases?key_id=K001&date=2024-02-12", nil)
	rec := httptest.NewRecorder()
	require.NoError(t, h.ListLeases(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		Items []struct {
			KeyID   string   `json:"key_id"`
			Slots   []string `json:"slots"`
			Status  string   `json:"status"`
			Weekday string   `json:"weekday"`
		} `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Items, 1)
	assert.Equal(t, "K001", out.Items[0].KeyID)
	assert.Equal(t, []string{"第一節", "第二節"}, out.Items[0].Slots)
	assert.Equal(t, "PENDING_REVIEW", out.Items[0].Status)
	assert.Equal(t, "星期一", out.Items[0].Weekday)

	// key_id is required.
	req = httptest.NewRequest(http.MethodGet, "/v1/admin/leases", nil)
	rec = httptest.NewRecorder()
	require.NoError(t, h.ListLeases(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScheduleHandler(t *testing.T) {
	ch := NewCatalogHandler(newTestService())
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/schedule", nil)
	rec := httptest.NewRecorder()
	require.NoError(t, ch.GetSchedule(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		Items []struct {
			Name  string `json:"name"`
			Start string `json:"start"`
		} `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Items, 7)
	assert.Equal(t, "第一節", out.Items[0].Name)
	assert.Equal(t, "08:10", out.Items[0].Start)
}
