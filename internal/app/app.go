// Package app wires the engine together and drives the single event loop:
// captured packets, timer wakeups, service messages, and hardware-scan
// completions all funnel through one goroutine, so the core services stay
// free of locks.
package app

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/lcalzada-xor/mlmed/internal/adapters/device"
	"github.com/lcalzada-xor/mlmed/internal/adapters/scheduler"
	"github.com/lcalzada-xor/mlmed/internal/adapters/storage"
	"github.com/lcalzada-xor/mlmed/internal/adapters/timer"
	"github.com/lcalzada-xor/mlmed/internal/adapters/vendor"
	"github.com/lcalzada-xor/mlmed/internal/adapters/web"
	"github.com/lcalzada-xor/mlmed/internal/adapters/wire"
	"github.com/lcalzada-xor/mlmed/internal/config"
	"github.com/lcalzada-xor/mlmed/internal/core/domain"
	"github.com/lcalzada-xor/mlmed/internal/core/ports"
	"github.com/lcalzada-xor/mlmed/internal/core/services/clientmlme"
	"github.com/lcalzada-xor/mlmed/internal/core/services/dispatch"
	"github.com/lcalzada-xor/mlmed/internal/telemetry"
)

// Application holds the wired components and the event-loop channels.
type Application struct {
	Config     *config.Config
	Device     *device.Sim
	Timer      *timer.Manager
	Scheduler  *scheduler.Scheduler
	Dispatcher *dispatch.Dispatcher
	Mlme       *clientmlme.ClientMlme
	Store      *storage.SQLiteStore
	Vendors    *vendor.Registry
	WebServer  *web.Server

	packets  chan *domain.Packet
	portKeys chan domain.PortKey
	service  chan []byte
	hwDone   chan bool
	queries  chan statsQuery
}

type statsQuery struct {
	reply chan domain.StatsSnapshot
}

// New bootstraps the application.
func New(cfg *config.Config) (*Application, error) {
	telemetry.InitMetrics()

	a := &Application{
		Config: cfg,
		// The simulated radio emits beacons synchronously on retune; the
		// buffer absorbs a full channel's worth before the loop drains it.
		packets:  make(chan *domain.Packet, 256),
		portKeys: make(chan domain.PortKey, 64),
		service:  make(chan []byte, 16),
		hwDone:   make(chan bool, 4),
		queries:  make(chan statsQuery, 8),
	}

	a.Device = device.NewSim(
		domain.MAC{0x02, 0x4d, 0x4c, 0x4d, 0x45, 0x00},
		cfg.HwScanOffload,
		a.packets,
		a.hwDone,
	)
	for _, ap := range parseSimNetworks(cfg.SimNetworks) {
		a.Device.AddAP(ap)
	}

	a.Timer = timer.NewManager(timer.RealClock{}, a.portKeys)
	a.Scheduler = scheduler.NewScheduler(a.Device, a.Timer, uint8(cfg.OperatingChannel))

	if err := a.initStorage(); err != nil {
		return nil, fmt.Errorf("application bootstrap: %w", err)
	}
	a.initVendors()

	a.WebServer = web.NewServer(cfg.Addr, a, storeOrNil(a.Store), vendorsOrNil(a.Vendors))
	if cfg.APIKeyHash != "" {
		a.WebServer.APIKeyHash = []byte(cfg.APIKeyHash)
	}

	sender := &fanoutSender{hub: a.WebServer.Hub, store: a.Store}
	a.Dispatcher = dispatch.NewDispatcher(a.Device, sender)
	a.Mlme = clientmlme.NewClientMlme(a.Device, a.Timer, a.Scheduler, sender)
	a.Dispatcher.Bind(a.Mlme)

	return a, nil
}

func (a *Application) initStorage() error {
	if err := os.MkdirAll(filepath.Dir(a.Config.DBPath), 0o755); err != nil {
		return fmt.Errorf("create database directory: %w", err)
	}
	store, err := storage.NewSQLiteStore(a.Config.DBPath)
	if err != nil {
		return err
	}
	a.Store = store
	return nil
}

// initVendors opens the OUI registry and seeds it on first run. The engine
// works without it; reports then omit manufacturer names.
func (a *Application) initVendors() {
	reg, err := vendor.NewRegistry(a.Config.OUIPath)
	if err != nil {
		log.Printf("warning: OUI registry unavailable: %v", err)
		return
	}
	a.Vendors = reg

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if n, err := reg.Count(ctx); err == nil && n == 0 {
		if err := reg.BulkInsert(ctx, builtinOUIs); err != nil {
			log.Printf("warning: OUI seed failed: %v", err)
		}
	}
}

// builtinOUIs covers the simulated air, so first-run reports carry names.
var builtinOUIs = []vendor.Entry{
	{Prefix: "00:11:22", Vendor: "CIMSYS Inc", Country: "KR"},
	{Prefix: "B8:27:EB", Vendor: "Raspberry Pi Foundation", Country: "GB"},
	{Prefix: "F4:F5:E8", Vendor: "Google, Inc.", Country: "US"},
	{Prefix: "3C:5A:B4", Vendor: "Google, Inc.", Country: "US"},
	{Prefix: "00:03:93", Vendor: "Apple, Inc.", Country: "US"},
}

// Run serves until ctx is cancelled. The calling goroutine becomes the event
// loop; everything the core services see runs here.
func (a *Application) Run(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		if err := a.WebServer.Run(ctx); err != nil {
			errChan <- fmt.Errorf("web server: %w", err)
		}
	}()

	if err := a.Device.TuneChannel(uint8(a.Config.OperatingChannel)); err != nil {
		log.Printf("warning: initial tune to channel %d failed: %v", a.Config.OperatingChannel, err)
	}

	slog.Info("event loop running",
		"addr", a.Config.Addr,
		"channel", a.Config.OperatingChannel,
		"hw_scan", a.Config.HwScanOffload)

	for {
		select {
		case <-ctx.Done():
			slog.Info("termination signal received")
			return a.cleanup()

		case err := <-errChan:
			a.cleanup()
			return err

		case pkt := <-a.packets:
			if err := a.Dispatcher.HandlePacket(pkt); err != nil {
				slog.Warn("packet dropped", "error", err)
			}

		case key := <-a.portKeys:
			if err := a.Dispatcher.HandlePortPacket(key); err != nil {
				slog.Warn("port wakeup dropped", "error", err)
			}

		case data := <-a.service:
			pkt := &domain.Packet{Data: data, Peer: domain.PeerService}
			if err := a.Dispatcher.HandlePacket(pkt); err != nil {
				slog.Warn("service message rejected", "error", err)
			}

		case aborted := <-a.hwDone:
			// Frames the radio queued before completing must land first, or
			// the scan would flush without them.
			a.drainPackets()
			if err := a.Dispatcher.HwScanComplete(aborted); err != nil {
				slog.Warn("hardware scan completion dropped", "error", err)
			}

		case q := <-a.queries:
			q.reply <- a.snapshot()
		}
	}
}

func (a *Application) drainPackets() {
	for {
		select {
		case pkt := <-a.packets:
			if err := a.Dispatcher.HandlePacket(pkt); err != nil {
				slog.Warn("packet dropped", "error", err)
			}
		default:
			return
		}
	}
}

func (a *Application) snapshot() domain.StatsSnapshot {
	return domain.StatsSnapshot{
		Dispatcher: a.Dispatcher.Stats(),
		Mlme:       a.Mlme.GetMlmeStats(),
		UpdatedAt:  a.Timer.Now(),
	}
}

func (a *Application) cleanup() error {
	slog.Info("cleaning up resources")
	if a.Vendors != nil {
		if err := a.Vendors.Close(); err != nil {
			log.Printf("warning: OUI registry close: %v", err)
		}
	}
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}

// SubmitScan implements web.Engine: the request is encoded onto the service
// plane and queued for the event loop.
func (a *Application) SubmitScan(req *domain.ScanRequest) error {
	data, err := wire.Encode(wire.OrdinalStartScan, req.TxID, req)
	if err != nil {
		return err
	}
	select {
	case a.service <- data:
		return nil
	default:
		return fmt.Errorf("submit scan: service queue full: %w", domain.ErrInternal)
	}
}

// DeviceInfo implements web.Engine.
func (a *Application) DeviceInfo() domain.WlanInfo {
	return a.Device.GetWlanInfo()
}

// Stats implements web.Engine: the snapshot is taken on the event loop so
// the counters are never read mid-update.
func (a *Application) Stats() domain.StatsSnapshot {
	q := statsQuery{reply: make(chan domain.StatsSnapshot, 1)}
	select {
	case a.queries <- q:
	case <-time.After(2 * time.Second):
		return domain.StatsSnapshot{}
	}
	select {
	case snap := <-q.reply:
		return snap
	case <-time.After(2 * time.Second):
		return domain.StatsSnapshot{}
	}
}

// parseSimNetworks turns "ssid@channel" entries into simulated access
// points with deterministic addressing.
func parseSimNetworks(entries []string) []device.SimAP {
	aps := make([]device.SimAP, 0, len(entries))
	for i, entry := range entries {
		ssid := entry
		channel := 1
		if at := strings.LastIndex(entry, "@"); at >= 0 {
			ssid = entry[:at]
			if ch, err := strconv.Atoi(entry[at+1:]); err == nil {
				channel = ch
			}
		}
		aps = append(aps, device.SimAP{
			BSSID:   domain.MAC{0x00, 0x11, 0x22, 0x33, 0x44, byte(0x10 + i)},
			SSID:    ssid,
			Channel: uint8(channel),
			RSSI:    -40 - 7*i,
			WPA2:    i%2 == 0,
		})
	}
	return aps
}

// fanoutSender implements ports.MessageSender by streaming scan events to
// websocket clients and persisting results. Query replies are streamed as
// typed events.
type fanoutSender struct {
	hub   *web.Hub
	store ports.BssStore
}

func (s *fanoutSender) SendScanResult(res domain.ScanResult) error {
	s.hub.BroadcastScanResult(res)
	if s.store == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.store.SaveResult(ctx, res); err != nil {
		return fmt.Errorf("persist scan result: %w", err)
	}
	return nil
}

func (s *fanoutSender) SendScanEnd(end domain.ScanEnd) error {
	slog.Info("scan finished", "txid", end.TxID, "scan_id", end.ScanID, "code", end.Code.String())
	s.hub.BroadcastScanEnd(end)
	return nil
}

func (s *fanoutSender) SendDeviceInfo(txid uint32, info domain.WlanInfo) error {
	s.hub.BroadcastEvent("device_info", map[string]any{"txid": txid, "info": info})
	return nil
}

func (s *fanoutSender) SendStats(txid uint32, stats domain.StatsSnapshot) error {
	s.hub.BroadcastEvent("stats", map[string]any{"txid": txid, "stats": stats})
	return nil
}

func (s *fanoutSender) SendMinstrelPeers(txid uint32, peers []domain.MinstrelPeer) error {
	s.hub.BroadcastEvent("minstrel.peers", map[string]any{"txid": txid, "peers": peers})
	return nil
}

func (s *fanoutSender) SendMinstrelStats(txid uint32, stats domain.MinstrelStats) error {
	s.hub.BroadcastEvent("minstrel.stats", map[string]any{"txid": txid, "stats": stats})
	return nil
}

// storeOrNil avoids handing the web server a typed-nil interface.
func storeOrNil(s *storage.SQLiteStore) ports.BssStore {
	if s == nil {
		return nil
	}
	return s
}

func vendorsOrNil(v *vendor.Registry) web.VendorLookup {
	if v == nil {
		return nil
	}
	return v
}
