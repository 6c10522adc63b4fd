// Package export writes stored results to an .xlsx workbook.
package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/Evgen-rus/Tg-mtproto/internal/models"
)

// SheetName is the name of the single worksheet.
const SheetName = "inn_results"

// Layout constants.
const (
	minColWidth   = 10
	maxColWidth   = 30
	dataRowHeight = 100
	timeLayout    = "2006-01-02 15:04:05"
)

// Headers are the column titles, in column order.
var Headers = []string{
	"ИНН",
	"ОГРН",
	"Название",
	"ОКВЭД",
	"Дата регистрации",
	"Статус",
	"Директор (ФИО)",
	"Директор (ИНН)",
	"Сотрудников",
	"Выручка 2024",
	"Доход 2024",
	"Расходы 2024",
	"Уставный капитал",
	"Адрес",
	"Учредители",
	"Исходный запрос",
	"Создано (UTC)",
	"raw_text",
}

// RowSource supplies the rows to export.
type RowSource interface {
	ListExportRows(ctx context.Context) ([]*models.ExportRow, error)
}

// DefaultFileName returns inn_results_YYYYMMDD_HHMMSS.xlsx for now.
func DefaultFileName(now time.Time) string {
	return "inn_results_" + now.Format("20060102_150405") + ".xlsx"
}

// FormatFounders renders founders one per line: "Name (ИНН x, n%)" or "Name (ИНН x)".
// Entries that were not parsed are rendered by their raw line. Returns "" for none.
func FormatFounders(founders []models.Founder) string {
	parts := make([]string, 0, len(founders))
	for _, f := range founders {
		var s string
		switch {
		case f.Structured() && f.SharePercent != nil:
			s = fmt.Sprintf("%s (ИНН %s, %d%%)", *f.Name, *f.INN, *f.SharePercent)
		case f.Structured():
			s = fmt.Sprintf("%s (ИНН %s)", *f.Name, *f.INN)
		default:
			s = f.RawLine
		}
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n")
}

// rowValues returns the cell values for one row. Absent fields are nil and leave the cell empty.
func rowValues(r *models.ExportRow) []interface{} {
	str := func(p *string) interface{} {
		if p == nil {
			return nil
		}
		return *p
	}
	num := func(p *int64) interface{} {
		if p == nil {
			return nil
		}
		return *p
	}
	var founders interface{}
	if s := FormatFounders(r.Founders); s != "" {
		founders = s
	}
	return []interface{}{
		r.INN,
		str(r.OGRN),
		str(r.CompanyName),
		str(r.OKVED),
		str(r.RegDate),
		str(r.CompanyStatus),
		str(r.DirectorName),
		str(r.DirectorINN),
		num(r.EmployeesCount),
		num(r.Revenue2024),
		num(r.Income2024),
		num(r.Expenses2024),
		num(r.AuthorizedCapital),
		str(r.Address),
		founders,
		r.SourceQueryText,
		r.CreatedAt.UTC().Format(timeLayout),
		r.RawText,
	}
}

// cellLen is the displayed length of a value in characters.
func cellLen(v interface{}) int {
	switch x := v.(type) {
	case nil:
		return 0
	case string:
		return utf8.RuneCountInString(x)
	case int64:
		return len(strconv.FormatInt(x, 10))
	default:
		return utf8.RuneCountInString(fmt.Sprint(x))
	}
}

func colWidth(maxLen int) float64 {
	w := maxLen + 2
	if w < minColWidth {
		w = minColWidth
	}
	if w > maxColWidth {
		w = maxColWidth
	}
	return float64(w)
}

// Build creates the workbook for rows. The caller closes it.
func Build(rows []*models.ExportRow) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := fill(f, rows); err != nil {
		_ = f.Close()
		return nil, err
	}
	return f, nil
}

func fill(f *excelize.File, rows []*models.ExportRow) error {
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Vertical: "top", WrapText: true},
	})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	cellStyle, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Vertical: "top", WrapText: true},
	})
	if err != nil {
		return fmt.Errorf("cell style: %w", err)
	}

	widths := make([]int, len(Headers))
	header := make([]interface{}, len(Headers))
	for i, h := range Headers {
		header[i] = h
		widths[i] = cellLen(h)
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return err
	}

	for i, r := range rows {
		values := rowValues(r)
		for c, v := range values {
			if n := cellLen(v); n > widths[c] {
				widths[c] = n
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return fmt.Errorf("row %d: %w", i+2, err)
		}
		if err := f.SetRowHeight(SheetName, i+2, dataRowHeight); err != nil {
			return err
		}
	}

	lastCol, err := excelize.ColumnNumberToName(len(Headers))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetName, "A1", lastCol+"1", headerStyle); err != nil {
		return err
	}
	if len(rows) > 0 {
		if err := f.SetCellStyle(SheetName, "A2", lastCol+strconv.Itoa(len(rows)+1), cellStyle); err != nil {
			return err
		}
	}

	for i, n := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(SheetName, col, col, colWidth(n)); err != nil {
			return err
		}
	}

	return f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

// Write writes the workbook for rows to w.
func Write(w io.Writer, rows []*models.ExportRow) error {
	f, err := Build(rows)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

// WriteFile writes the workbook for rows to path, creating parent directories.
func WriteFile(path string, rows []*models.ExportRow) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := Build(rows)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}

// Export loads every row from src and writes them to path. Returns the row count.
func Export(ctx context.Context, src RowSource, path string) (int, error) {
	rows, err := src.ListExportRows(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load rows: %w", err)
	}
	if err := WriteFile(path, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}
