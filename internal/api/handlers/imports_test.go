package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ndewijer/portfolio-sync/internal/model"
	"github.com/ndewijer/portfolio-sync/internal/testutil"
)

const statementCSV = "Txn Date,Scheme Name,Folio,Amount,Units,Type\n" +
	"2024-03-10,ABC Fund,123/45,5000,100,Purchase\n" +
	"2024-04-10,ABC Fund,123/45,5000,98.5,SIP Purchase\n"

func newUploadRequest(t *testing.T, filename string, content []byte, password string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if filename != "" {
		part, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("Failed to create form file: %v", err)
		}
		if _, err := part.Write(content); err != nil {
			t.Fatalf("Failed to write form file: %v", err)
		}
	}
	if password != "" {
		if err := mw.WriteField("password", password); err != nil {
			t.Fatalf("Failed to write password field: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("Failed to close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/import/parse", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestImportHandler_Parse(t *testing.T) {
	t.Run("returns parsed schemes for a CSV statement", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		handler := NewImportHandler(testutil.NewTestImportService(t, db))

		w := httptest.NewRecorder()
		handler.Parse(w, newUploadRequest(t, "statement.csv", []byte(statementCSV), ""))

		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
		}

		var schemes []model.ParsedScheme
		//nolint:errcheck // Test assertion - decode failure would cause test to fail anyway
		json.NewDecoder(w.Body).Decode(&schemes)

		if len(schemes) != 1 {
			t.Fatalf("Expected 1 scheme, got %d", len(schemes))
		}
		if len(schemes[0].Transactions) != 2 {
			t.Errorf("Expected 2 transactions, got %d", len(schemes[0].Transactions))
		}
		testutil.AssertRowCount(t, db, "lot", 0)
	})

	t.Run("returns 400 without a file", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		handler := NewImportHandler(testutil.NewTestImportService(t, db))

		w := httptest.NewRecorder()
		handler.Parse(w, newUploadRequest(t, "", nil, "secret"))

		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d: %s", w.Code, w.Body.String())
		}
	})

	t.Run("returns 422 for unsupported documents", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		handler := NewImportHandler(testutil.NewTestImportService(t, db))

		w := httptest.NewRecorder()
		handler.Parse(w, newUploadRequest(t, "photo.png", []byte("\x89PNG\r\n"), ""))

		if w.Code != http.StatusUnprocessableEntity {
			t.Errorf("Expected 422, got %d: %s", w.Code, w.Body.String())
		}
	})

	t.Run("returns 422 when no scheme is found", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		handler := NewImportHandler(testutil.NewTestImportService(t, db))

		w := httptest.NewRecorder()
		handler.Parse(w, newUploadRequest(t, "empty.csv", []byte("Txn Date,Scheme Name,Amount\n"), ""))

		if w.Code != http.StatusUnprocessableEntity {
			t.Errorf("Expected 422, got %d: %s", w.Code, w.Body.String())
		}
	})
}

func TestImportHandler_Confirm(t *testing.T) {
	confirmBody := `{"schemes":[{"name":"ABC Fund","folio":"123/45","transactions":[
		{"date":"2024-03-10T00:00:00Z","amount":5000,"units":100,"kind":"PURCHASE"},
		{"date":"2024-04-10T00:00:00Z","amount":2000,"units":40,"kind":"REDEMPTION"}]}]}`

	t.Run("creates lots and skips them on a second confirm", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		handler := NewImportHandler(testutil.NewTestImportService(t, db))

		var results []model.ImportResult
		for range 2 {
			req := httptest.NewRequest(http.MethodPost, "/api/import/confirm", strings.NewReader(confirmBody))
			w := httptest.NewRecorder()

			handler.Confirm(w, req)

			if w.Code != http.StatusOK {
				t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
			}
			var result model.ImportResult
			//nolint:errcheck // Test assertion - decode failure would cause test to fail anyway
			json.NewDecoder(w.Body).Decode(&result)
			results = append(results, result)
		}

		if results[0].Created != 1 || results[0].Ignored != 1 {
			t.Errorf("Expected first import to create 1 and ignore 1, got %+v", results[0])
		}
		if results[1].Created != 0 || results[1].Skipped != 1 {
			t.Errorf("Expected second import to skip 1, got %+v", results[1])
		}
		testutil.AssertRowCount(t, db, "lot", 1)
	})

	t.Run("returns 400 with field errors", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		handler := NewImportHandler(testutil.NewTestImportService(t, db))

		req := httptest.NewRequest(http.MethodPost, "/api/import/confirm", strings.NewReader(`{"schemes":[]}`))
		w := httptest.NewRecorder()

		handler.Confirm(w, req)

		if w.Code != http.StatusBadRequest {
			t.Fatalf("Expected 400, got %d: %s", w.Code, w.Body.String())
		}
		if !strings.Contains(w.Body.String(), `"schemes"`) {
			t.Errorf("Expected field error for schemes, got %s", w.Body.String())
		}
	})

	t.Run("returns 400 for malformed JSON", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		handler := NewImportHandler(testutil.NewTestImportService(t, db))

		req := httptest.NewRequest(http.MethodPost, "/api/import/confirm", strings.NewReader(`{"schemes":`))
		w := httptest.NewRecorder()

		handler.Confirm(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d: %s", w.Code, w.Body.String())
		}
	})
}
