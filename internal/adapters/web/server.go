// Package web exposes the engine over HTTP: scan submission, stored scan
// introspection, a PDF report download, Prometheus metrics, and a websocket
// stream of live scan events.
package web

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/lcalzada-xor/mlmed/internal/adapters/reporting"
	"github.com/lcalzada-xor/mlmed/internal/core/domain"
	"github.com/lcalzada-xor/mlmed/internal/core/ports"
)

// Engine is the slice of the event loop the web surface consumes. SubmitScan
// hands the request off to the loop; it returns once the request is queued.
type Engine interface {
	SubmitScan(req *domain.ScanRequest) error
	DeviceInfo() domain.WlanInfo
	Stats() domain.StatsSnapshot
}

// VendorLookup resolves the manufacturer behind a BSSID.
type VendorLookup interface {
	Lookup(ctx context.Context, mac domain.MAC) (string, error)
}

// Server handles HTTP and websocket connections.
type Server struct {
	Addr    string
	Engine  Engine
	Store   ports.BssStore
	Vendors VendorLookup
	Hub     *Hub

	// APIKeyHash gates the API when non-empty (bcrypt hash).
	APIKeyHash []byte

	exporter *reporting.PDFExporter
	srv      *http.Server
}

// NewServer wires the web surface. Store and Vendors may be nil; the
// corresponding endpoints then report 503.
func NewServer(addr string, engine Engine, store ports.BssStore, vendors VendorLookup) *Server {
	return &Server{
		Addr:     addr,
		Engine:   engine,
		Store:    store,
		Vendors:  vendors,
		Hub:      NewHub(),
		exporter: reporting.NewPDFExporter(),
	}
}

// Routes builds the HTTP handler tree.
func (s *Server) Routes() http.Handler {
	r := mux.NewRouter()

	auth := APIKeyMiddleware(s.APIKeyHash)
	scanLimiter := NewRateLimiter(10, time.Minute)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(auth)
	api.Handle("/scan", RateLimitMiddleware(scanLimiter)(http.HandlerFunc(s.handleScan))).Methods(http.MethodPost)
	api.HandleFunc("/device-info", s.handleDeviceInfo).Methods(http.MethodGet)
	api.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	api.HandleFunc("/scans", s.handleListScans).Methods(http.MethodGet)
	api.HandleFunc("/scans/{id}/results", s.handleScanResults).Methods(http.MethodGet)
	api.HandleFunc("/scans/{id}/report", s.handleScanReport).Methods(http.MethodGet)

	r.Handle("/ws", auth(http.HandlerFunc(s.Hub.HandleWebSocket)))
	r.Handle("/metrics", auth(promhttp.Handler())).Methods(http.MethodGet)

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	handler := otelhttp.NewHandler(s.Routes(), "mlmed-server")

	s.srv = &http.Server{
		Addr:              s.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		log.Println("web server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("web server shutdown error: %v", err)
		}
	}()

	log.Printf("web server listening on %s", s.Addr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
