package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/lcalzada-xor/mlmed/internal/core/domain"
)

type mockEngine struct {
	submitted []*domain.ScanRequest
	submitErr error
}

func (m *mockEngine) SubmitScan(req *domain.ScanRequest) error {
	if m.submitErr != nil {
		return m.submitErr
	}
	m.submitted = append(m.submitted, req)
	return nil
}

func (m *mockEngine) DeviceInfo() domain.WlanInfo {
	return domain.WlanInfo{
		MAC:           domain.MAC{0x02, 0, 0, 0, 0, 0x01},
		DriverName:    "sim",
		HwScanOffload: true,
	}
}

func (m *mockEngine) Stats() domain.StatsSnapshot {
	return domain.StatsSnapshot{}
}

type mockStore struct {
	results map[string][]domain.ScanResult
	listErr error
}

func (m *mockStore) SaveResult(ctx context.Context, res domain.ScanResult) error {
	if m.results == nil {
		m.results = make(map[string][]domain.ScanResult)
	}
	m.results[res.ScanID] = append(m.results[res.ScanID], res)
	return nil
}

func (m *mockStore) ListResults(ctx context.Context, scanID string) ([]domain.ScanResult, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.results[scanID], nil
}

func (m *mockStore) ListScans(ctx context.Context) ([]string, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	ids := make([]string, 0, len(m.results))
	for id := range m.results {
		ids = append(ids, id)
	}
	return ids, nil
}

type mockVendors struct{}

func (mockVendors) Lookup(ctx context.Context, mac domain.MAC) (string, error) {
	return "Acme Wireless", nil
}

func newTestServer() (*Server, *mockEngine, *mockStore) {
	engine := &mockEngine{}
	store := &mockStore{results: map[string][]domain.ScanResult{
		"scan-a": {
			{
				TxID:   1,
				ScanID: "scan-a",
				Bss: domain.Bss{
					BSSID:   domain.MAC{0x00, 0x11, 0x22, 0x33, 0x44, 0x55},
					SSID:    "HomeNetwork",
					Channel: 6,
					RSSI:    -48,
					HasRSN:  true,
				},
			},
		},
	}}
	return NewServer(":0", engine, store, mockVendors{}), engine, store
}

func TestHandleScan_QueuesRequest(t *testing.T) {
	s, engine, _ := newTestServer()

	body, _ := json.Marshal(domain.ScanRequest{
		TxID:           7,
		ScanType:       domain.ScanTypePassive,
		Channels:       []uint8{1, 6, 11},
		MaxChannelTime: 100,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/scan", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	s.Routes().ServeHTTP(rr, req)

	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	require.Len(t, engine.submitted, 1)
	assert.Equal(t, uint32(7), engine.submitted[0].TxID)
}

func TestHandleScan_RejectsInvalidRequest(t *testing.T) {
	s, engine, _ := newTestServer()

	// Empty channel list never reaches the engine.
	body, _ := json.Marshal(domain.ScanRequest{TxID: 7})
	req := httptest.NewRequest(http.MethodPost, "/api/scan", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	s.Routes().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Empty(t, engine.submitted)

	req = httptest.NewRequest(http.MethodPost, "/api/scan", strings.NewReader("{not json"))
	rr = httptest.NewRecorder()
	s.Routes().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandleScan_EngineBusy(t *testing.T) {
	s, engine, _ := newTestServer()
	engine.submitErr = assert.AnError

	body, _ := json.Marshal(domain.ScanRequest{Channels: []uint8{1}, MaxChannelTime: 50})
	req := httptest.NewRequest(http.MethodPost, "/api/scan", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	s.Routes().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestHandleDeviceInfo(t *testing.T) {
	s, _, _ := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/api/device-info", nil)
	rr := httptest.NewRecorder()
	s.Routes().ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var got map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, "02:00:00:00:00:01", got["mac"])
	assert.Equal(t, "sim", got["driver"])
	assert.Equal(t, true, got["hw_scan_offload"])
}

func TestHandleStats(t *testing.T) {
	s, _, _ := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	rr := httptest.NewRecorder()
	s.Routes().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
}

func TestHandleListScans(t *testing.T) {
	s, _, _ := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/api/scans", nil)
	rr := httptest.NewRecorder()
	s.Routes().ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var got struct {
		Scans []string `json:"scans"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, []string{"scan-a"}, got.Scans)
}

func TestHandleScanResults(t *testing.T) {
	s, _, _ := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/api/scans/scan-a/results", nil)
	rr := httptest.NewRecorder()
	s.Routes().ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var got struct {
		ScanID  string              `json:"scan_id"`
		Results []domain.ScanResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, "scan-a", got.ScanID)
	require.Len(t, got.Results, 1)
	assert.Equal(t, "HomeNetwork", got.Results[0].Bss.SSID)
}

func TestHandleScanReport_PDF(t *testing.T) {
	s, _, _ := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/api/scans/scan-a/report", nil)
	rr := httptest.NewRecorder()
	s.Routes().ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/pdf", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "scan-a.pdf")
	assert.True(t, bytes.HasPrefix(rr.Body.Bytes(), []byte("%PDF-")))
}

func TestHandleScanReport_UnknownScan(t *testing.T) {
	s, _, _ := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/api/scans/nope/report", nil)
	rr := httptest.NewRecorder()
	s.Routes().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestStorageDisabled(t *testing.T) {
	engine := &mockEngine{}
	s := NewServer(":0", engine, nil, nil)

	for _, path := range []string{"/api/scans", "/api/scans/x/results", "/api/scans/x/report"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rr := httptest.NewRecorder()
		s.Routes().ServeHTTP(rr, req)
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code, path)
	}
}

func TestAPIKeyMiddleware(t *testing.T) {
	s, _, _ := newTestServer()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret-key"), bcrypt.MinCost)
	require.NoError(t, err)
	s.APIKeyHash = hash
	routes := s.Routes()

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	rr := httptest.NewRecorder()
	routes.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code, "missing key")

	req = httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rr = httptest.NewRecorder()
	routes.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code, "bad key")

	req = httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	req.Header.Set("Authorization", "Bearer secret-key")
	rr = httptest.NewRecorder()
	routes.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code, "valid key")

	// Metrics sit behind the same gate.
	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr = httptest.NewRecorder()
	routes.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"), "limits are per source")
}

func TestMetricsEndpoint(t *testing.T) {
	s, _, _ := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	s.Routes().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
}
