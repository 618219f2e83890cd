// Package excel parses the first worksheet of .xlsx and legacy .xls workbooks
// into candidate expenses.
package excel

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"

	"github.com/rumor-ml/commons.systems/expenseimport/internal/domain"
	"github.com/rumor-ml/commons.systems/expenseimport/internal/parser"
)

// Parser reads spreadsheet workbooks. Stateless and safe for concurrent use.
type Parser struct{}

var parserInstance = &Parser{}

// NewParser returns the shared Excel parser instance.
func NewParser() *Parser {
	return parserInstance
}

// Type returns the import file type
func (p *Parser) Type() domain.ImportFileType {
	return domain.FileTypeExcel
}

// errNoSheets marks a workbook without any worksheet.
var errNoSheets = errors.New("no sheets")

// sheet is the first worksheet as a header row plus data rows of typed cells.
type sheet struct {
	headers []string
	rows    []parser.Row
}

// Parse reads the first worksheet. Numeric cells in the date column are
// spreadsheet serial dates and are converted before date parsing.
func (p *Parser) Parse(ctx context.Context, f *parser.File) (result domain.ParseResult) {
	select {
	case <-ctx.Done():
		return domain.FailedParse(domain.FileTypeExcel, ctx.Err().Error())
	default:
	}

	// Workbook decoders can panic on corrupted archives.
	defer func() {
		if r := recover(); r != nil {
			log.Error("excel decoder panicked", "file", f.Name(), "panic", r)
			result = domain.FailedParse(domain.FileTypeExcel, fmt.Sprintf("Failed to read Excel file: %v", r))
		}
	}()

	data, err := f.Bytes()
	if err != nil {
		return domain.FailedParse(domain.FileTypeExcel, fmt.Sprintf("Failed to read Excel file: %v", err))
	}

	var (
		s        *sheet
		date1904 bool
	)
	if f.Ext() == "xls" {
		s, err = readXLS(data)
	} else {
		s, date1904, err = readXLSX(data)
	}
	if errors.Is(err, errNoSheets) {
		return domain.FailedParse(domain.FileTypeExcel, "No sheets found in Excel file")
	}
	if err != nil {
		return domain.FailedParse(domain.FileTypeExcel, fmt.Sprintf("Failed to read Excel file: %v", err))
	}

	if len(s.rows) == 0 {
		return domain.FailedParse(domain.FileTypeExcel, "No data found in Excel file")
	}

	return parser.ParseTable(domain.FileTypeExcel, parser.Table{Headers: s.headers, Rows: s.rows}, parser.TableOptions{
		DateCell: func(v any) (string, bool) {
			serial, ok := v.(float64)
			if !ok {
				return "", false
			}
			return SerialToDate(serial, date1904)
		},
	})
}

// SerialToDate converts a spreadsheet serial day number to YYYY-MM-DD.
func SerialToDate(serial float64, date1904 bool) (string, bool) {
	if serial <= 0 {
		return "", false
	}
	t, err := excelize.ExcelDateToTime(serial, date1904)
	if err != nil {
		return "", false
	}
	return t.Format("2006-01-02"), true
}

func readXLSX(data []byte) (*sheet, bool, error) {
	wb, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, false, err
	}
	defer func() {
		if err := wb.Close(); err != nil {
			log.Warn("failed to close workbook", "err", err)
		}
	}()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, false, errNoSheets
	}

	date1904 := false
	if props, err := wb.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		date1904 = *props.Date1904
	}

	rows, err := wb.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, false, err
	}
	return buildSheet(rows), date1904, nil
}

func readXLS(data []byte) (*sheet, error) {
	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, err
	}
	if wb.NumSheets() == 0 {
		return nil, errNoSheets
	}
	ws := wb.GetSheet(0)
	if ws == nil {
		return nil, errNoSheets
	}

	var rows [][]string
	for i := 0; i <= int(ws.MaxRow); i++ {
		row := ws.Row(i)
		if row == nil {
			rows = append(rows, nil)
			continue
		}
		cells := make([]string, row.LastCol())
		for c := 0; c < row.LastCol(); c++ {
			cells[c] = row.Col(c)
		}
		rows = append(rows, cells)
	}
	return buildSheet(rows), nil
}

// buildSheet treats the first non-empty row as the header and drops fully
// blank data rows. Header cells left empty are named __EMPTY, __EMPTY_1, ...
func buildSheet(rows [][]string) *sheet {
	s := &sheet{}
	start := -1
	for i, r := range rows {
		if !blankRow(r) {
			start = i
			break
		}
	}
	if start < 0 {
		return s
	}

	empty := 0
	for _, h := range rows[start] {
		h = strings.TrimSpace(h)
		if h == "" {
			if empty == 0 {
				h = "__EMPTY"
			} else {
				h = fmt.Sprintf("__EMPTY_%d", empty)
			}
			empty++
		}
		s.headers = append(s.headers, h)
	}

	for _, r := range rows[start+1:] {
		if blankRow(r) {
			continue
		}
		row := make(parser.Row, len(s.headers))
		for i, h := range s.headers {
			if i < len(r) {
				row[h] = parser.TypeCell(r[i])
			}
		}
		s.rows = append(s.rows, row)
	}
	return s
}

func blankRow(r []string) bool {
	for _, c := range r {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
