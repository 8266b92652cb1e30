package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/mlmed/internal/core/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "scans.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleResult(scanID string, bssid byte, rssi int) domain.ScanResult {
	return domain.ScanResult{
		TxID:   7,
		ScanID: scanID,
		Bss: domain.Bss{
			BSSID:          domain.MAC{0x00, 0x11, 0x22, 0x33, 0x44, bssid},
			SSID:           "HomeNetwork",
			BSSType:        domain.BSSTypeInfrastructure,
			BeaconInterval: 100,
			Capabilities:   0x0431,
			Channel:        6,
			RSSI:           rssi,
			Rates:          []uint8{0x82, 0x84, 0x8b, 0x96},
			HasRSN:         true,
			Timestamp:      123456,
			FirstSeen:      time.Unix(1700000000, 0).UTC(),
			LastSeen:       time.Unix(1700000090, 0).UTC(),
		},
	}
}

func TestSaveResult_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	want := sampleResult("scan-a", 0x55, -48)
	require.NoError(t, store.SaveResult(ctx, want))

	got, err := store.ListResults(ctx, "scan-a")
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, want.TxID, got[0].TxID)
	assert.Equal(t, want.Bss.BSSID, got[0].Bss.BSSID)
	assert.Equal(t, want.Bss.SSID, got[0].Bss.SSID)
	assert.Equal(t, want.Bss.Rates, got[0].Bss.Rates)
	assert.True(t, got[0].Bss.HasRSN)
	assert.Equal(t, want.Bss.Timestamp, got[0].Bss.Timestamp)
	assert.Equal(t, want.Bss.FirstSeen.Unix(), got[0].Bss.FirstSeen.Unix())
}

func TestSaveResult_UpsertsByScanAndBSSID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveResult(ctx, sampleResult("scan-a", 0x55, -70)))

	fresher := sampleResult("scan-a", 0x55, -40)
	fresher.Bss.SSID = "HomeNetwork5G"
	require.NoError(t, store.SaveResult(ctx, fresher))

	got, err := store.ListResults(ctx, "scan-a")
	require.NoError(t, err)
	require.Len(t, got, 1, "same bssid in the same scan must not duplicate")
	assert.Equal(t, -40, got[0].Bss.RSSI)
	assert.Equal(t, "HomeNetwork5G", got[0].Bss.SSID)
}

func TestListResults_OrderedByRSSI(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveResult(ctx, sampleResult("scan-a", 0x01, -80)))
	require.NoError(t, store.SaveResult(ctx, sampleResult("scan-a", 0x02, -40)))
	require.NoError(t, store.SaveResult(ctx, sampleResult("scan-a", 0x03, -60)))
	require.NoError(t, store.SaveResult(ctx, sampleResult("scan-b", 0x04, -50)))

	got, err := store.ListResults(ctx, "scan-a")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, -40, got[0].Bss.RSSI)
	assert.Equal(t, -60, got[1].Bss.RSSI)
	assert.Equal(t, -80, got[2].Bss.RSSI)
}

func TestListScans_Distinct(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveResult(ctx, sampleResult("scan-a", 0x01, -50)))
	require.NoError(t, store.SaveResult(ctx, sampleResult("scan-a", 0x02, -55)))
	require.NoError(t, store.SaveResult(ctx, sampleResult("scan-b", 0x03, -60)))

	ids, err := store.ListScans(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"scan-a", "scan-b"}, ids)
}

func TestListResults_EmptyScan(t *testing.T) {
	store := newTestStore(t)
	got, err := store.ListResults(context.Background(), "no-such-scan")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRatesCodec(t *testing.T) {
	assert.Equal(t, "", encodeRates(nil))
	assert.Nil(t, decodeRates(""))
	assert.Equal(t, []uint8{0x82, 0x04}, decodeRates(encodeRates([]uint8{0x82, 0x04})))
}
