// Package statement extracts transactions from broker and registrar account
// statements. Two strategies are supported: free-text PDF statements and tabular
// spreadsheets (XLSX or CSV). Both feed the same transaction classifier.
package statement

import (
	"archive/zip"
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ndewijer/portfolio-sync/internal/apperrors"
	"github.com/ndewijer/portfolio-sync/internal/model"
)

// Format is a detected document format.
type Format string

const (
	FormatPDF         Format = "pdf"
	FormatXLSX        Format = "xlsx"
	FormatCSV         Format = "csv"
	FormatUnsupported Format = ""
)

var (
	pdfSignature = []byte("%PDF-")
	zipSignature = []byte("PK\x03\x04")
	// OLE compound files hold legacy .xls workbooks and password protected .xlsx workbooks.
	oleSignature = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// Parser converts statement documents into parsed schemes.
// A Parser holds no mutable state and is safe for concurrent use.
type Parser struct {
	resolver SchemeNameResolver
}

// Option configures a Parser.
type Option func(*Parser)

// WithResolver replaces the scheme name resolver used by the PDF strategy.
func WithResolver(r SchemeNameResolver) Option {
	return func(p *Parser) {
		p.resolver = r
	}
}

// NewParser creates a Parser using the registrar lookback resolver unless another is given.
func NewParser(opts ...Option) *Parser {
	p := &Parser{resolver: NewLookbackResolver()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse extracts schemes and their transactions from a document.
//
// Parameters:
//   - data: raw document bytes
//   - kind: file name, extension or MIME type supplied with the upload (may be empty)
//   - password: optional password for encrypted PDFs and workbooks
//
// Returns:
//   - ErrUnsupportedFormat when the bytes are neither a PDF nor a recognised spreadsheet
//   - ErrParseFailure when the document cannot be read or yields no schemes
func (p *Parser) Parse(data []byte, kind, password string) ([]model.ParsedScheme, error) {
	var (
		schemes []model.ParsedScheme
		err     error
	)

	switch DetectFormat(data, kind, password) {
	case FormatPDF:
		schemes, err = p.parsePDF(data, password)
	case FormatXLSX:
		schemes, err = parseXLSX(data, password)
	case FormatCSV:
		schemes, err = parseCSV(data)
	default:
		return nil, fmt.Errorf("%w: %s", apperrors.ErrUnsupportedFormat, describeKind(kind))
	}
	if err != nil {
		return nil, err
	}

	schemes = withTransactions(schemes)
	if len(schemes) == 0 {
		return nil, fmt.Errorf("%w: no schemes found", apperrors.ErrParseFailure)
	}
	return schemes, nil
}

// DetectFormat identifies the document format from its byte signature, falling back
// to the declared kind for CSV which has no signature.
//
// OLE files are treated as encrypted workbooks only when a password is supplied;
// without one they are assumed to be legacy .xls files, which are not supported.
func DetectFormat(data []byte, kind, password string) Format {
	head := bytes.TrimLeft(data[:min(len(data), 1024)], "\xef\xbb\xbf \t\r\n")

	switch {
	case bytes.HasPrefix(head, pdfSignature):
		return FormatPDF
	case bytes.HasPrefix(data, zipSignature):
		return detectArchive(data, normalizeKind(kind))
	case bytes.HasPrefix(data, oleSignature):
		if password != "" {
			return FormatXLSX
		}
		return FormatUnsupported
	}

	switch normalizeKind(kind) {
	case ".csv", "csv", "text/csv", "application/csv":
		return FormatCSV
	}
	return FormatUnsupported
}

const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// detectArchive accepts a ZIP container as XLSX only when it holds a workbook part.
// An unreadable archive declared as XLSX is passed on so the workbook reader can
// report it as corrupt.
func detectArchive(data []byte, kind string) Format {
	declared := kind == ".xlsx" || kind == "xlsx" || kind == xlsxMIME

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		if declared {
			return FormatXLSX
		}
		return FormatUnsupported
	}
	for _, f := range zr.File {
		if f.Name == "xl/workbook.xml" {
			return FormatXLSX
		}
	}
	return FormatUnsupported
}

// normalizeKind reduces a file name, extension or MIME type to a lowercase
// extension or bare MIME type.
func normalizeKind(kind string) string {
	k := strings.ToLower(strings.TrimSpace(kind))
	if i := strings.IndexByte(k, ';'); i >= 0 {
		k = strings.TrimSpace(k[:i])
	}
	if strings.HasPrefix(k, "text/") || strings.HasPrefix(k, "application/") {
		return k
	}
	if ext := filepath.Ext(k); ext != "" {
		return ext
	}
	return k
}

func describeKind(kind string) string {
	if kind == "" {
		return "unrecognised content"
	}
	return kind
}

// withTransactions drops schemes without any transactions.
func withTransactions(schemes []model.ParsedScheme) []model.ParsedScheme {
	out := schemes[:0]
	for _, s := range schemes {
		if len(s.Transactions) > 0 {
			out = append(out, s)
		}
	}
	return out
}

// finalize normalizes a transaction after extraction: signs are dropped and a
// missing unit price is derived from amount and units.
func finalize(tx model.ParsedTransaction) model.ParsedTransaction {
	tx.Amount = abs(tx.Amount)
	tx.Units = abs(tx.Units)
	tx.Price = abs(tx.Price)
	if tx.Price == 0 && tx.Units > 0 {
		tx.Price = round(tx.Amount/tx.Units, 4)
	}
	return tx
}
