// Command ouiload imports an IEEE OUI registry CSV into the vendor
// database used to annotate scan reports.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"io"
	"log"
	"os"
	"strings"

	"github.com/lcalzada-xor/mlmed/internal/adapters/vendor"
)

func main() {
	csvPath := flag.String("csv", "oui.csv", "Path to the registry CSV")
	dbPath := flag.String("db", "oui.db", "Path to the OUI database")
	verbose := flag.Bool("verbose", false, "Verbose output")
	flag.Parse()

	f, err := os.Open(*csvPath)
	if err != nil {
		log.Fatalf("open CSV: %v", err)
	}
	defer f.Close()

	reg, err := vendor.NewRegistry(*dbPath)
	if err != nil {
		log.Fatalf("open OUI database: %v", err)
	}
	defer reg.Close()

	reader := csv.NewReader(f)
	if _, err := reader.Read(); err != nil { // header
		log.Fatalf("read CSV header: %v", err)
	}

	ctx := context.Background()
	var batch []vendor.Entry
	line, imported := 0, 0

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := reg.BulkInsert(ctx, batch); err != nil {
			log.Fatalf("bulk insert: %v", err)
		}
		imported += len(batch)
		if *verbose {
			log.Printf("  imported %d entries", imported)
		}
		batch = batch[:0]
	}

	// CSV format: Mac Prefix,Vendor Name[,Private,Block Type,Last Update]
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			log.Printf("warning: line %d: %v", line, err)
			continue
		}
		if len(record) < 2 {
			continue
		}

		prefix := strings.TrimSpace(record[0])
		name := shortVendorName(record[1])
		if prefix == "" || name == "" {
			continue
		}
		batch = append(batch, vendor.Entry{Prefix: prefix, Vendor: name})

		if len(batch) >= 1000 {
			flush()
		}
	}
	flush()

	count, err := reg.Count(ctx)
	if err != nil {
		log.Fatalf("count entries: %v", err)
	}
	log.Printf("import complete: %d entries in registry", count)
}

// shortVendorName strips the legal-form suffixes registries carry.
func shortVendorName(vendor string) string {
	vendor = strings.TrimSpace(vendor)
	for _, suffix := range []string{
		" Inc.", " Inc", " Corporation", " Corp.", " Corp",
		" Ltd.", " Ltd", " Limited", " Co., Ltd.", " Co.",
		" LLC", " GmbH", " S.A.", " AG",
	} {
		vendor = strings.TrimSuffix(vendor, suffix)
	}
	if idx := strings.Index(vendor, ","); idx > 0 {
		vendor = vendor[:idx]
	}
	return strings.TrimSpace(vendor)
}
