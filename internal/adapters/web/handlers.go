package web

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/lcalzada-xor/mlmed/internal/adapters/reporting"
	"github.com/lcalzada-xor/mlmed/internal/core/domain"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("web: encode response: %v", err)
	}
}

// handleScan queues a scan request on the event loop.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req domain.ScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := req.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.Engine.SubmitScan(&req); err != nil {
		log.Printf("web: submit scan: %v", err)
		http.Error(w, "Scan submission failed", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status": "scan_queued",
		"txid":   req.TxID,
	})
}

func (s *Server) handleDeviceInfo(w http.ResponseWriter, r *http.Request) {
	info := s.Engine.DeviceInfo()
	writeJSON(w, http.StatusOK, map[string]any{
		"mac":             info.MAC.String(),
		"driver":          info.DriverName,
		"hw_scan_offload": info.HwScanOffload,
		"bands":           info.Bands,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Engine.Stats())
}

func (s *Server) handleListScans(w http.ResponseWriter, r *http.Request) {
	if s.Store == nil {
		http.Error(w, "Persistence disabled", http.StatusServiceUnavailable)
		return
	}
	ids, err := s.Store.ListScans(r.Context())
	if err != nil {
		log.Printf("web: list scans: %v", err)
		http.Error(w, "Storage error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"scans": ids})
}

func (s *Server) handleScanResults(w http.ResponseWriter, r *http.Request) {
	if s.Store == nil {
		http.Error(w, "Persistence disabled", http.StatusServiceUnavailable)
		return
	}
	scanID := mux.Vars(r)["id"]
	results, err := s.Store.ListResults(r.Context(), scanID)
	if err != nil {
		log.Printf("web: list results for %s: %v", scanID, err)
		http.Error(w, "Storage error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"scan_id": scanID,
		"results": results,
	})
}

// handleScanReport renders one scan as a downloadable PDF.
func (s *Server) handleScanReport(w http.ResponseWriter, r *http.Request) {
	if s.Store == nil {
		http.Error(w, "Persistence disabled", http.StatusServiceUnavailable)
		return
	}
	scanID := mux.Vars(r)["id"]
	results, err := s.Store.ListResults(r.Context(), scanID)
	if err != nil {
		log.Printf("web: report for %s: %v", scanID, err)
		http.Error(w, "Storage error", http.StatusInternalServerError)
		return
	}
	if len(results) == 0 {
		http.Error(w, "Unknown scan", http.StatusNotFound)
		return
	}

	report := &reporting.ScanReport{
		ScanID:      scanID,
		GeneratedAt: time.Now(),
		Results:     results,
		Vendors:     s.resolveVendors(r, results),
	}
	data, err := s.exporter.ExportScanReport(report)
	if err != nil {
		log.Printf("web: render report for %s: %v", scanID, err)
		http.Error(w, "Report generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", "scan-"+scanID+".pdf"))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		log.Printf("web: write report: %v", err)
	}
}

func (s *Server) resolveVendors(r *http.Request, results []domain.ScanResult) map[string]string {
	if s.Vendors == nil {
		return nil
	}
	vendors := make(map[string]string, len(results))
	for _, res := range results {
		name, err := s.Vendors.Lookup(r.Context(), res.Bss.BSSID)
		if err != nil {
			// Unregistered prefixes are common; the report shows a dash.
			continue
		}
		vendors[res.Bss.BSSID.String()] = name
	}
	return vendors
}
