// Package reporting renders scan results into shareable documents.
package reporting

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/lcalzada-xor/mlmed/internal/core/domain"
)

// ScanReport is the input for one rendered survey document.
type ScanReport struct {
	ScanID      string
	GeneratedAt time.Time
	Results     []domain.ScanResult
	// Vendors maps BSSID (string form) to manufacturer, when known.
	Vendors map[string]string
}

// PDFExporter renders scan reports as PDF.
type PDFExporter struct{}

// NewPDFExporter creates a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// ExportScanReport renders one scan's results into a PDF document.
func (e *PDFExporter) ExportScanReport(report *ScanReport) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	e.addHeader(pdf, report)
	e.addSummary(pdf, report)
	e.addNetworkTable(pdf, report)
	e.addFooter(pdf, report)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render scan report: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *PDFExporter) addHeader(pdf *gofpdf.Fpdf, report *ScanReport) {
	pdf.SetFont("Arial", "B", 22)
	pdf.SetTextColor(0, 51, 102)
	pdf.CellFormat(0, 14, "Wireless Network Survey", "", 1, "L", false, 0, "")
	pdf.Ln(1)

	pdf.SetFont("Arial", "", 10)
	pdf.SetTextColor(120, 120, 120)
	pdf.CellFormat(0, 6, fmt.Sprintf("Scan ID: %s", report.ScanID), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6,
		fmt.Sprintf("Generated: %s", report.GeneratedAt.Format("2006-01-02 15:04")),
		"", 1, "L", false, 0, "")
	pdf.Ln(6)
}

func (e *PDFExporter) addSummary(pdf *gofpdf.Fpdf, report *ScanReport) {
	var hidden, protected int
	channels := map[uint8]struct{}{}
	for _, res := range report.Results {
		if res.Bss.Hidden {
			hidden++
		}
		if res.Bss.HasRSN {
			protected++
		}
		channels[res.Bss.Channel] = struct{}{}
	}

	pdf.SetFont("Arial", "B", 14)
	pdf.SetTextColor(0, 51, 102)
	pdf.CellFormat(0, 10, "Overview", "", 1, "L", false, 0, "")
	pdf.Ln(1)

	stats := []struct {
		label string
		value string
	}{
		{"Networks Found", fmt.Sprintf("%d", len(report.Results))},
		{"Channels Occupied", fmt.Sprintf("%d", len(channels))},
		{"RSN Protected", fmt.Sprintf("%d", protected)},
		{"Hidden SSIDs", fmt.Sprintf("%d", hidden)},
	}
	for i, stat := range stats {
		x := 20.0
		if i%2 == 1 {
			x = 105.0
		}
		pdf.SetXY(x, pdf.GetY())

		pdf.SetFont("Arial", "", 10)
		pdf.SetTextColor(100, 100, 100)
		pdf.CellFormat(45, 7, stat.label+":", "", 0, "L", false, 0, "")

		pdf.SetFont("Arial", "B", 11)
		pdf.SetTextColor(0, 102, 204)
		pdf.CellFormat(30, 7, stat.value, "", 0, "R", false, 0, "")

		if i%2 == 1 {
			pdf.Ln(7)
		}
	}
	pdf.Ln(10)
}

func (e *PDFExporter) addNetworkTable(pdf *gofpdf.Fpdf, report *ScanReport) {
	pdf.SetFont("Arial", "B", 14)
	pdf.SetTextColor(0, 51, 102)
	pdf.CellFormat(0, 10, "Discovered Networks", "", 1, "L", false, 0, "")
	pdf.Ln(1)

	if len(report.Results) == 0 {
		pdf.SetFont("Arial", "I", 10)
		pdf.SetTextColor(100, 100, 100)
		pdf.CellFormat(0, 7, "No networks observed during this scan", "", 1, "L", false, 0, "")
		pdf.Ln(5)
		return
	}

	results := make([]domain.ScanResult, len(report.Results))
	copy(results, report.Results)
	sort.Slice(results, func(i, j int) bool {
		return results[i].Bss.RSSI > results[j].Bss.RSSI
	})

	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Arial", "B", 9)
	pdf.SetTextColor(60, 60, 60)
	pdf.CellFormat(42, 8, "SSID", "1", 0, "L", true, 0, "")
	pdf.CellFormat(36, 8, "BSSID", "1", 0, "C", true, 0, "")
	pdf.CellFormat(14, 8, "Ch", "1", 0, "C", true, 0, "")
	pdf.CellFormat(18, 8, "RSSI", "1", 0, "C", true, 0, "")
	pdf.CellFormat(20, 8, "Security", "1", 0, "C", true, 0, "")
	pdf.CellFormat(40, 8, "Vendor", "1", 1, "L", true, 0, "")

	pdf.SetFont("Arial", "", 8)
	for _, res := range results {
		if pdf.GetY() > 265 {
			pdf.AddPage()
		}

		ssid := res.Bss.SSID
		if res.Bss.Hidden {
			ssid = "<hidden>"
		}
		if len(ssid) > 26 {
			ssid = ssid[:23] + "..."
		}

		security := "open"
		if res.Bss.HasRSN {
			security = "RSN"
		}

		vendor := report.Vendors[res.Bss.BSSID.String()]
		if vendor == "" {
			vendor = "-"
		}
		if len(vendor) > 26 {
			vendor = vendor[:23] + "..."
		}

		pdf.SetTextColor(60, 60, 60)
		pdf.CellFormat(42, 7, ssid, "1", 0, "L", false, 0, "")
		pdf.CellFormat(36, 7, strings.ToUpper(res.Bss.BSSID.String()), "1", 0, "C", false, 0, "")
		pdf.CellFormat(14, 7, fmt.Sprintf("%d", res.Bss.Channel), "1", 0, "C", false, 0, "")

		r, g, b := e.signalColor(res.Bss.RSSI)
		pdf.SetTextColor(r, g, b)
		pdf.CellFormat(18, 7, fmt.Sprintf("%d", res.Bss.RSSI), "1", 0, "C", false, 0, "")

		pdf.SetTextColor(60, 60, 60)
		pdf.CellFormat(20, 7, security, "1", 0, "C", false, 0, "")
		pdf.CellFormat(40, 7, vendor, "1", 1, "L", false, 0, "")
	}
	pdf.Ln(6)
}

// signalColor maps RSSI to a traffic-light color.
func (e *PDFExporter) signalColor(rssi int) (r, g, b int) {
	switch {
	case rssi >= -55:
		return 52, 199, 89 // strong
	case rssi >= -75:
		return 255, 149, 0 // usable
	default:
		return 220, 53, 69 // weak
	}
}

func (e *PDFExporter) addFooter(pdf *gofpdf.Fpdf, report *ScanReport) {
	pdf.SetY(-20)
	pdf.SetDrawColor(200, 200, 200)
	pdf.Line(20, pdf.GetY(), 190, pdf.GetY())
	pdf.Ln(3)

	pdf.SetFont("Arial", "I", 8)
	pdf.SetTextColor(120, 120, 120)
	pdf.CellFormat(0, 5, fmt.Sprintf("Generated by mlmed | Scan %s", report.ScanID), "", 1, "C", false, 0, "")
}
