package statement

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/ndewijer/portfolio-sync/internal/apperrors"
	"github.com/ndewijer/portfolio-sync/internal/model"
	"github.com/xuri/excelize/v2"
)

type column int

const (
	colDate column = iota
	colFolio
	colScheme
	colPrice
	colUnits
	colAmount
	colType
	numColumns
)

// headerVocabulary is checked in order; a header binds to the first field whose
// fragment it contains. "Unit Price" therefore binds to price, not units.
var headerVocabulary = []struct {
	col       column
	fragments []string
	exclude   []string
}{
	{col: colDate, fragments: []string{"date"}},
	{col: colFolio, fragments: []string{"folio"}},
	{col: colScheme, fragments: []string{"scheme", "scrip", "symbol"}, exclude: []string{"description"}},
	{col: colPrice, fragments: []string{"price", "nav", "rate"}},
	{col: colUnits, fragments: []string{"unit", "quantity", "qty"}},
	{col: colAmount, fragments: []string{"amount", "value"}},
	{col: colType, fragments: []string{"type", "desc"}},
}

var spreadsheetDateLayouts = []string{
	"2006-01-02",
	"02-Jan-2006",
	"02 Jan 2006",
	"02/01/2006",
	"02-01-2006",
	"2006/01/02",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// parseXLSX reads the first sheet of a workbook. Cell values are read raw so
// that date cells arrive as Excel serial numbers regardless of display format.
func parseXLSX(data []byte, password string) ([]model.ParsedScheme, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data), excelize.Options{Password: password})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open workbook: %v", apperrors.ErrParseFailure, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", apperrors.ErrParseFailure)
	}

	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read sheet %q: %v", apperrors.ErrParseFailure, sheets[0], err)
	}
	return parseRows(rows, true), nil
}

func parseCSV(data []byte) ([]model.ParsedScheme, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.LazyQuotes = true

	var rows [][]string
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: malformed CSV: %v", apperrors.ErrParseFailure, err)
		}
		rows = append(rows, record)
	}
	return parseRows(rows, false), nil
}

// parseRows turns tabular rows into schemes. The first non-empty row is the header.
// Rows missing a date, scheme or amount are skipped. Schemes are keyed by
// (scheme, folio) and returned in first-seen order.
func parseRows(rows [][]string, excelDates bool) []model.ParsedScheme {
	headerIdx := -1
	for i, row := range rows {
		if !isEmptyRow(row) {
			headerIdx = i
			break
		}
	}
	if headerIdx < 0 {
		return nil
	}

	binding := bindHeaders(rows[headerIdx])
	if binding[colDate] < 0 || binding[colScheme] < 0 || binding[colAmount] < 0 {
		return nil
	}

	var schemes []model.ParsedScheme
	index := make(map[string]int)

	for _, row := range rows[headerIdx+1:] {
		cell := func(c column) string {
			i := binding[c]
			if i < 0 || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		name := cell(colScheme)
		if name == "" {
			continue
		}
		date, ok := parseCellDate(cell(colDate), excelDates)
		if !ok {
			continue
		}
		amount, ok := parseNumber(cell(colAmount))
		if !ok {
			continue
		}

		folio := cell(colFolio)
		if folio == "" {
			folio = model.UnknownFolio
		}

		units, _ := parseNumber(cell(colUnits))
		price, _ := parseNumber(cell(colPrice))
		description := cell(colType)

		kind := model.KindPurchase
		lower := strings.ToLower(description)
		if amount < 0 || strings.Contains(lower, "redemption") || strings.Contains(lower, "sell") {
			kind = model.KindRedemption
		}

		key := name + "\x00" + folio
		i, seen := index[key]
		if !seen {
			schemes = append(schemes, model.ParsedScheme{Name: name, Folio: folio})
			i = len(schemes) - 1
			index[key] = i
		}

		schemes[i].Transactions = append(schemes[i].Transactions, finalize(model.ParsedTransaction{
			Date:        date,
			Description: description,
			Amount:      amount,
			Units:       units,
			Price:       price,
			Kind:        kind,
		}))
	}

	return schemes
}

// bindHeaders maps each vocabulary field to a column index, -1 when absent.
// The first header that matches a field wins.
func bindHeaders(header []string) [numColumns]int {
	var binding [numColumns]int
	for i := range binding {
		binding[i] = -1
	}

	for i, h := range header {
		n := normalizeHeader(h)
		if n == "" {
			continue
		}
		for _, v := range headerVocabulary {
			if !containsAny(n, v.fragments...) || containsAny(n, v.exclude...) {
				continue
			}
			if binding[v.col] < 0 {
				binding[v.col] = i
			}
			break
		}
	}
	return binding
}

func normalizeHeader(h string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(h) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func parseCellDate(s string, excelDates bool) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}

	if excelDates {
		if serial, err := strconv.ParseFloat(s, 64); err == nil {
			t, err := excelize.ExcelDateToTime(serial, false)
			if err != nil {
				return time.Time{}, false
			}
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
		}
	}

	if t, ok := parseStatementDate(s); ok {
		return t, true
	}
	for _, layout := range spreadsheetDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

func isEmptyRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
