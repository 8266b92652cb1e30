// Package storage persists emitted scan results with GORM over SQLite, so
// the introspection API can serve past scans.
package storage

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/lcalzada-xor/mlmed/internal/core/domain"
	"github.com/lcalzada-xor/mlmed/internal/core/ports"
)

// SQLiteStore implements ports.BssStore using GORM and SQLite.
type SQLiteStore struct {
	db *gorm.DB
}

// ScanResultModel is the GORM model for one emitted scan result. A scan
// emits each BSSID at most once; the composite unique index enforces that.
type ScanResultModel struct {
	ID             uint   `gorm:"primaryKey"`
	ScanID         string `gorm:"uniqueIndex:idx_scan_bssid;index"`
	TxID           uint32
	BSSID          string `gorm:"uniqueIndex:idx_scan_bssid"`
	SSID           string `gorm:"index"`
	Hidden         bool
	BSSType        int
	Channel        uint8
	RSSI           int
	BeaconInterval uint16
	Capabilities   uint16
	HasRSN         bool
	Rates          string // comma-separated, 0.5 Mbps units
	Timestamp      uint64
	FirstSeen      time.Time
	LastSeen       time.Time `gorm:"index"`
	CreatedAt      time.Time
}

// NewSQLiteStore opens (or creates) the database, installs query tracing,
// and migrates the schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open scan store %q: %w", path, err)
	}

	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, fmt.Errorf("install tracing plugin: %w", err)
	}

	if err := db.AutoMigrate(&ScanResultModel{}); err != nil {
		return nil, fmt.Errorf("migrate scan store: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// SaveResult upserts one result keyed by (scan_id, bssid).
func (s *SQLiteStore) SaveResult(ctx context.Context, res domain.ScanResult) error {
	model := toModel(res)
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "scan_id"}, {Name: "bss_id"}},
		UpdateAll: true,
	}).Create(&model).Error
}

// ListResults returns every result of one scan, strongest signal first.
func (s *SQLiteStore) ListResults(ctx context.Context, scanID string) ([]domain.ScanResult, error) {
	var models []ScanResultModel
	if err := s.db.WithContext(ctx).
		Where("scan_id = ?", scanID).
		Order("rssi DESC").
		Find(&models).Error; err != nil {
		return nil, err
	}

	results := make([]domain.ScanResult, 0, len(models))
	for _, m := range models {
		res, err := toDomainResult(m)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}

// ListScans returns the known scan ids.
func (s *SQLiteStore) ListScans(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).
		Model(&ScanResultModel{}).
		Distinct().
		Order("scan_id").
		Pluck("scan_id", &ids).Error
	return ids, err
}

// Close releases the underlying connection pool.
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toModel(res domain.ScanResult) ScanResultModel {
	return ScanResultModel{
		ScanID:         res.ScanID,
		TxID:           res.TxID,
		BSSID:          res.Bss.BSSID.String(),
		SSID:           res.Bss.SSID,
		Hidden:         res.Bss.Hidden,
		BSSType:        int(res.Bss.BSSType),
		Channel:        res.Bss.Channel,
		RSSI:           res.Bss.RSSI,
		BeaconInterval: res.Bss.BeaconInterval,
		Capabilities:   res.Bss.Capabilities,
		HasRSN:         res.Bss.HasRSN,
		Rates:          encodeRates(res.Bss.Rates),
		Timestamp:      res.Bss.Timestamp,
		FirstSeen:      res.Bss.FirstSeen,
		LastSeen:       res.Bss.LastSeen,
	}
}

func toDomainResult(m ScanResultModel) (domain.ScanResult, error) {
	bssid, err := domain.ParseMAC(m.BSSID)
	if err != nil {
		return domain.ScanResult{}, fmt.Errorf("scan store row %d: %w", m.ID, err)
	}
	return domain.ScanResult{
		TxID:   m.TxID,
		ScanID: m.ScanID,
		Bss: domain.Bss{
			BSSID:          bssid,
			SSID:           m.SSID,
			Hidden:         m.Hidden,
			BSSType:        domain.BSSType(m.BSSType),
			Channel:        m.Channel,
			RSSI:           m.RSSI,
			BeaconInterval: m.BeaconInterval,
			Capabilities:   m.Capabilities,
			HasRSN:         m.HasRSN,
			Rates:          decodeRates(m.Rates),
			Timestamp:      m.Timestamp,
			FirstSeen:      m.FirstSeen,
			LastSeen:       m.LastSeen,
		},
	}, nil
}

func encodeRates(rates []uint8) string {
	if len(rates) == 0 {
		return ""
	}
	parts := make([]string, len(rates))
	for i, r := range rates {
		parts[i] = strconv.Itoa(int(r))
	}
	return strings.Join(parts, ",")
}

func decodeRates(s string) []uint8 {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	rates := make([]uint8, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			continue
		}
		rates = append(rates, uint8(v))
	}
	return rates
}

var _ ports.BssStore = (*SQLiteStore)(nil)
