package extractions_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"docutext-backend/internal/bootstrap"
	"docutext-backend/internal/shared/config"
)

func newTestApp(t *testing.T) *bootstrap.App {
	t.Helper()
	gin.SetMode(gin.TestMode)

	app, err := bootstrap.Build(config.Config{
		Port:            "0",
		Env:             "dev",
		CORSAllowOrigin: []string{"http://localhost:5173"},
		LocalStoreDir:   t.TempDir(),
	})
	if err != nil {
		t.Fatalf("bootstrap build: %v", err)
	}
	t.Cleanup(func() { _ = app.Close() })
	return app
}

func addGuestHeader(req *http.Request) {
	req.Header.Set("X-Guest-Id", "test-guest")
}

func uploadFiles(t *testing.T, router *gin.Engine, files map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for name, content := range files {
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename="%s"`, name))
		header.Set("Content-Type", "text/plain")
		part, err := writer.CreatePart(header)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		if _, err := part.Write([]byte(content)); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/extractions", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	addGuestHeader(req)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

type outcomePayload struct {
	FileName        string  `json:"fileName"`
	Success         bool    `json:"success"`
	ExtractionID    string  `json:"extractionId"`
	ExtractedText   string  `json:"extractedText"`
	ConfidenceScore float64 `json:"confidenceScore"`
	Error           string  `json:"error"`
}

func decodeResults(t *testing.T, resp *httptest.ResponseRecorder) []outcomePayload {
	t.Helper()
	var payload struct {
		Results []outcomePayload `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode results: %v", err)
	}
	return payload.Results
}

func TestExtractionsUploadAndList(t *testing.T) {
	app := newTestApp(t)

	resp := uploadFiles(t, app.Router, map[string]string{
		"invoice.txt": "Invoice #7\nTotal: $42.00",
		"memo.txt":    "Meeting moved to Thursday.",
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}

	results := decodeResults(t, resp)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for _, r := range results {
		if !r.Success {
			t.Fatalf("result %s failed: %s", r.FileName, r.Error)
		}
		if r.ExtractionID == "" {
			t.Fatalf("result %s missing extractionId", r.FileName)
		}
		if r.ConfidenceScore != 0.99 {
			t.Errorf("result %s confidence = %v, want 0.99", r.FileName, r.ConfidenceScore)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/extractions?limit=10", nil)
	addGuestHeader(req)
	listResp := httptest.NewRecorder()
	app.Router.ServeHTTP(listResp, req)
	if listResp.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", listResp.Code)
	}

	var list struct {
		Extractions []map[string]any `json:"extractions"`
		Total       int              `json:"total"`
		Page        int              `json:"page"`
		Limit       int              `json:"limit"`
	}
	if err := json.NewDecoder(listResp.Body).Decode(&list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if list.Total != 2 || len(list.Extractions) != 2 {
		t.Fatalf("total=%d len=%d, want 2/2", list.Total, len(list.Extractions))
	}
	if list.Page != 1 || list.Limit != 10 {
		t.Fatalf("page=%d limit=%d, want 1/10", list.Page, list.Limit)
	}
}

func TestExtractionsSearchFilters(t *testing.T) {
	app := newTestApp(t)

	resp := uploadFiles(t, app.Router, map[string]string{
		"invoice.txt": "Invoice #7",
		"memo.txt":    "Meeting notes",
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("upload: %d", resp.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/extractions?search=invoice", nil)
	addGuestHeader(req)
	listResp := httptest.NewRecorder()
	app.Router.ServeHTTP(listResp, req)

	var list struct {
		Extractions []struct {
			FileName string `json:"fileName"`
		} `json:"extractions"`
		Total int `json:"total"`
	}
	if err := json.NewDecoder(listResp.Body).Decode(&list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if list.Total != 1 || len(list.Extractions) != 1 || list.Extractions[0].FileName != "invoice.txt" {
		t.Fatalf("unexpected search result: %+v", list)
	}
}

func TestExtractionsGetUpdateDelete(t *testing.T) {
	app := newTestApp(t)

	resp := uploadFiles(t, app.Router, map[string]string{"memo.txt": "original text"})
	results := decodeResults(t, resp)
	if len(results) != 1 || results[0].ExtractionID == "" {
		t.Fatalf("upload failed: %+v", results)
	}
	id := results[0].ExtractionID

	getReq := httptest.NewRequest(http.MethodGet, "/api/v1/extractions/"+id, nil)
	addGuestHeader(getReq)
	getResp := httptest.NewRecorder()
	app.Router.ServeHTTP(getResp, getReq)
	if getResp.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", getResp.Code)
	}

	patchBody := strings.NewReader(`{"extractedText":"corrected text"}`)
	patchReq := httptest.NewRequest(http.MethodPatch, "/api/v1/extractions/"+id, patchBody)
	patchReq.Header.Set("Content-Type", "application/json")
	addGuestHeader(patchReq)
	patchResp := httptest.NewRecorder()
	app.Router.ServeHTTP(patchResp, patchReq)
	if patchResp.Code != http.StatusOK {
		t.Fatalf("patch: expected 200, got %d: %s", patchResp.Code, patchResp.Body.String())
	}
	var patched struct {
		ExtractedText string `json:"extractedText"`
	}
	if err := json.NewDecoder(patchResp.Body).Decode(&patched); err != nil {
		t.Fatalf("decode patch: %v", err)
	}
	if patched.ExtractedText != "corrected text" {
		t.Fatalf("patched text = %q", patched.ExtractedText)
	}

	delReq := httptest.NewRequest(http.MethodDelete, "/api/v1/extractions/"+id, nil)
	addGuestHeader(delReq)
	delResp := httptest.NewRecorder()
	app.Router.ServeHTTP(delResp, delReq)
	if delResp.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", delResp.Code)
	}

	getReq2 := httptest.NewRequest(http.MethodGet, "/api/v1/extractions/"+id, nil)
	addGuestHeader(getReq2)
	getResp2 := httptest.NewRecorder()
	app.Router.ServeHTTP(getResp2, getReq2)
	if getResp2.Code != http.StatusNotFound {
		t.Fatalf("get after delete: expected 404, got %d", getResp2.Code)
	}
}

func TestExtractionsRequireIdentity(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/extractions", nil)
	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestExtractionsRejectEmptyBatch(t *testing.T) {
	app := newTestApp(t)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	_ = writer.WriteField("enhance", "false")
	_ = writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/extractions", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	addGuestHeader(req)
	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestAnalyticsReflectsUploads(t *testing.T) {
	app := newTestApp(t)

	resp := uploadFiles(t, app.Router, map[string]string{
		"a.txt": "first document",
		"b.txt": "second document",
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("upload: %d", resp.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/analytics", nil)
	addGuestHeader(req)
	aResp := httptest.NewRecorder()
	app.Router.ServeHTTP(aResp, req)
	if aResp.Code != http.StatusOK {
		t.Fatalf("analytics: expected 200, got %d", aResp.Code)
	}

	var report struct {
		UserAnalytics struct {
			TotalExtractions  int64   `json:"totalExtractions"`
			AverageConfidence float64 `json:"averageConfidence"`
		} `json:"userAnalytics"`
		DailyExtractions       []map[string]any `json:"dailyExtractions"`
		ConfidenceDistribution []struct {
			Label string `json:"label"`
			Count int    `json:"count"`
		} `json:"confidenceDistribution"`
	}
	if err := json.NewDecoder(aResp.Body).Decode(&report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.UserAnalytics.TotalExtractions != 2 {
		t.Fatalf("totalExtractions = %d, want 2", report.UserAnalytics.TotalExtractions)
	}
	if report.UserAnalytics.AverageConfidence != 0.99 {
		t.Fatalf("averageConfidence = %v, want 0.99", report.UserAnalytics.AverageConfidence)
	}
	if len(report.DailyExtractions) != 7 {
		t.Fatalf("daily entries = %d, want 7", len(report.DailyExtractions))
	}
	high := 0
	for _, b := range report.ConfidenceDistribution {
		if b.Label == "High" {
			high = b.Count
		}
	}
	if high != 2 {
		t.Fatalf("High bucket = %d, want 2", high)
	}
}

func TestHealthEndpoint(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var payload map[string]bool
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if !payload["ok"] {
		t.Fatalf("expected ok=true, got %v", payload)
	}
}
