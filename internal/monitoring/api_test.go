package monitoring

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAPIHandler_ParamChange(t *testing.T) {
	var params ParamStore
	handler := APIHandler(nil, &params)

	body := `{"frequency": 738000000, "gain": 0.5, "antenna": "LNAW"}`
	req := httptest.NewRequest(http.MethodPost, "/params", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("Expected status 204, got %d: %s", rec.Code, rec.Body.String())
	}

	p, ok := params.Consume()
	if !ok {
		t.Fatal("Expected a pending parameter request")
	}
	if p.Frequency != 738_000_000 || p.Antenna != "LNAW" {
		t.Errorf("Unexpected request tuple: %+v", p)
	}
}

func TestAPIHandler_RejectsBadRequests(t *testing.T) {
	var params ParamStore
	handler := APIHandler(nil, &params)

	req := httptest.NewRequest(http.MethodGet, "/params", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405 for GET, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/params", strings.NewReader(`{"gain": 0.5}`))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for a missing frequency, got %d", rec.Code)
	}

	if params.Pending() {
		t.Error("Expected no request to be stored for rejected calls")
	}
}

func TestCollector_NilSafe(t *testing.T) {
	var c *Collector

	// A disabled monitoring endpoint must cost nothing at the call sites.
	c.SetState(2)
	c.Update(Snapshot{CINRdB: 20})
}
