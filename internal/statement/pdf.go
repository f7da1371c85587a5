package statement

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
	"github.com/ndewijer/portfolio-sync/internal/apperrors"
	"github.com/ndewijer/portfolio-sync/internal/model"
)

var (
	folioPattern   = regexp.MustCompile(`(?i)Folio\s*No\s*[:.]\s*(\d+(?:\s*/\s*\d+)*)`)
	txnDatePattern = regexp.MustCompile(`^(\d{2}-[A-Za-z]{3}-\d{4})\b`)
	numberPattern  = regexp.MustCompile(`-?[\d,]+\.\d+|-?\d+`)
)

// wordGap is the horizontal distance, in text space units, above which two text
// runs on one row are treated as separate words.
const wordGap = 1.0

// parsePDF extracts text rows from every page and runs the line parser over them.
// The PDF library panics on some malformed inputs; those are reported as parse failures.
func (p *Parser) parsePDF(data []byte, password string) (schemes []model.ParsedScheme, err error) {
	defer func() {
		if r := recover(); r != nil {
			schemes = nil
			err = fmt.Errorf("%w: corrupt PDF: %v", apperrors.ErrParseFailure, r)
		}
	}()

	lines, err := extractPDFLines(data, password)
	if err != nil {
		return nil, err
	}
	return p.ParseText(lines), nil
}

func extractPDFLines(data []byte, password string) ([]string, error) {
	// The reader asks for a password until it gets an empty string.
	asked := false
	pw := func() string {
		if asked {
			return ""
		}
		asked = true
		return password
	}

	r, err := pdf.NewReaderEncrypted(bytes.NewReader(data), int64(len(data)), pw)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open PDF: %v", apperrors.ErrParseFailure, err)
	}

	var lines []string
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}

		rows, err := page.GetTextByRow()
		if err != nil {
			continue
		}
		for _, row := range rows {
			if line := joinRow(row.Content); line != "" {
				lines = append(lines, line)
			}
		}
	}
	return lines, nil
}

// joinRow concatenates the text runs of one row, inserting a space where the runs
// are visually apart.
func joinRow(texts []pdf.Text) string {
	var b strings.Builder
	for i, t := range texts {
		if i > 0 {
			prev := texts[i-1]
			if t.X-(prev.X+prev.W) > wordGap {
				b.WriteByte(' ')
			}
		}
		b.WriteString(t.S)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// ParseText parses statement text lines into schemes.
//
// A folio line opens a new block. Inside a block every line starting with a
// DD-Mon-YYYY date and carrying at least two numbers is a transaction; stamp duty
// and STT lines are dropped. The scheme name is looked up once per block, from
// its first transaction, with the configured SchemeNameResolver; later lines of
// the block never start another scheme. Transactions seen while no name could
// be resolved are dropped.
func (p *Parser) ParseText(lines []string) []model.ParsedScheme {
	var (
		schemes []model.ParsedScheme
		current = -1
		folio   string
	)

	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		if m := folioPattern.FindStringSubmatch(line); m != nil {
			folio = strings.Join(strings.Fields(m[1]), "")
			current = -1
			continue
		}

		tx, ok := parseTransactionLine(line)
		if !ok {
			continue
		}

		if current < 0 {
			heading, found := p.resolver.ResolveName(lines, i)
			if !found {
				continue
			}
			name, isin := splitISIN(heading)
			schemes = append(schemes, model.ParsedScheme{
				Name:  name,
				Folio: folio,
				ISIN:  isin,
			})
			current = len(schemes) - 1
		}
		schemes[current].Transactions = append(schemes[current].Transactions, tx)
	}

	return withTransactions(schemes)
}

// parseTransactionLine parses a single statement line into a transaction.
//
// When at least two numbers carry a decimal point only those are used, so counters
// in the description (for example "Instalment 3/12") are not mistaken for amounts.
// Two numbers are (amount, units); three or more are (amount, units, price).
func parseTransactionLine(line string) (model.ParsedTransaction, bool) {
	m := txnDatePattern.FindStringSubmatch(line)
	if m == nil {
		return model.ParsedTransaction{}, false
	}

	date, ok := parseStatementDate(m[1])
	if !ok {
		return model.ParsedTransaction{}, false
	}

	remaining := strings.TrimSpace(line[len(m[1]):])
	if IsFeeLine(remaining) {
		return model.ParsedTransaction{}, false
	}

	locs := numberPattern.FindAllStringIndex(remaining, -1)
	if decimals := withDecimalPoint(remaining, locs); len(decimals) >= 2 {
		locs = decimals
	}
	if len(locs) < 2 {
		return model.ParsedTransaction{}, false
	}

	values := make([]float64, 0, 3)
	for _, loc := range locs {
		v, ok := parseNumber(remaining[loc[0]:loc[1]])
		if !ok {
			return model.ParsedTransaction{}, false
		}
		values = append(values, v)
		if len(values) == 3 {
			break
		}
	}
	if len(values) < 2 {
		return model.ParsedTransaction{}, false
	}

	description := strings.TrimSpace(strings.TrimRight(remaining[:locs[0][0]], " ("))
	tx := model.ParsedTransaction{
		Date:        date,
		Description: description,
		Amount:      values[0],
		Units:       values[1],
		Kind:        Classify(description),
	}
	if len(values) == 3 {
		tx.Price = values[2]
	}
	return finalize(tx), true
}

func withDecimalPoint(s string, locs [][]int) [][]int {
	var out [][]int
	for _, loc := range locs {
		if strings.Contains(s[loc[0]:loc[1]], ".") {
			out = append(out, loc)
		}
	}
	return out
}

// parseStatementDate parses DD-Mon-YYYY regardless of the month's letter case.
func parseStatementDate(s string) (time.Time, bool) {
	if len(s) != 11 {
		return time.Time{}, false
	}
	normalized := s[:3] + strings.ToUpper(s[3:4]) + strings.ToLower(s[4:6]) + s[6:]
	t, err := time.Parse("02-Jan-2006", normalized)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
