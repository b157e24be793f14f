package export

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/tealeg/xlsx/v2"

	"github.com/unidata/uni-rankings-scraper/internal/models"
)

// WriteXLSX writes the combined records to a single-sheet workbook using the
// same column layout as the CSV export.
func WriteXLSX(records []models.CompositeRecord, opts Options) (string, error) {
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}

	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Universities")
	if err != nil {
		return "", fmt.Errorf("add sheet: %w", err)
	}

	header := sheet.AddRow()
	for _, col := range csvHeader {
		header.AddCell().SetString(col)
	}

	for _, rec := range records {
		row := sheet.AddRow()
		for _, val := range csvRow(rec) {
			row.AddCell().SetString(val)
		}
	}

	path := opts.path("universities_combined_{timestamp}.xlsx")
	if err := file.Save(path); err != nil {
		return "", fmt.Errorf("save workbook: %w", err)
	}

	slog.Default().With("component", "export").Info("wrote xlsx export",
		"file", path, "records", len(records))
	return path, nil
}
