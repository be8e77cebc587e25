package handler

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/valentinpelus/voiceboard/pkg/csvimport"
	"github.com/valentinpelus/voiceboard/pkg/feedback"
	"github.com/valentinpelus/voiceboard/pkg/slack"
)

const sampleCSV = "问题类型,异动时间区间,异动原因,产品类型\n" +
	"登录异常/密码,2024/5/1-2024/5/3,无法登录,\n" +
	"页面卡顿,2024-05-10,加载很慢,基金\n" +
	"登录失败,,验证码收不到,理财通\n"

func importRouter(h *ImportHandler) http.Handler {
	r := chi.NewRouter()
	r.Post("/import/csv", h.Upload)
	r.Post("/import/{stageID}/confirm", h.Confirm)
	r.Delete("/import/{stageID}", h.Discard)
	return r
}

func uploadRequest(t *testing.T, field, fileName, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile(field, fileName)
	if err != nil {
		t.Fatal(err)
	}
	io.WriteString(fw, content)
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, "/import/csv", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

type uploadResult struct {
	StageID string             `json:"stageId"`
	File    string             `json:"fileName"`
	Preview csvimport.Preview  `json:"preview"`
	Sample  []sampleRow `json:"sample"`
}

type sampleRow struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Date    string `json:"date"`
	Product string `json:"product"`
}

func TestUploadPreviewThenConfirm(t *testing.T) {
	t.Parallel()
	store := seededStore()
	h := NewImportHandler(store, csvimport.NewStaging(time.Minute), nil, 1<<20)
	router := importRouter(h)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "file", "feedback.csv", sampleCSV))
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload status = %d, body %s", rec.Code, rec.Body.String())
	}
	up := decode[uploadResult](t, rec)
	if up.StageID == "" || up.File != "feedback.csv" {
		t.Fatalf("unexpected upload response: %+v", up)
	}
	if up.Preview.Total != 3 || up.Preview.MinDate != "2024-05-01" || up.Preview.MaxDate != "2024-05-10" {
		t.Errorf("unexpected preview: %+v", up.Preview)
	}
	if len(up.Sample) != 3 || up.Sample[0].Type != "账户问题" || up.Sample[0].Product != "理财通" {
		t.Errorf("unexpected sample: %+v", up.Sample)
	}
	if store.Len() != 3 {
		t.Fatal("upload must not touch the store before confirmation")
	}

	rec = do(t, router, http.MethodPost, "/import/"+up.StageID+"/confirm", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("confirm status = %d, body %s", rec.Code, rec.Body.String())
	}
	resp := decode[ConfirmResponse](t, rec)
	if resp.Added != 3 || resp.Total != 6 {
		t.Errorf("unexpected confirm response: %+v", resp)
	}
	if first := store.All()[0]; first.Type != "账户问题" || first.Status != "" {
		t.Errorf("imported batch should come first with unset status: %+v", first)
	}

	// a stage can only be confirmed once
	expectError(t, do(t, router, http.MethodPost, "/import/"+up.StageID+"/confirm", nil), http.StatusNotFound, CodeNotFound)
}

func TestUploadErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		field    string
		fileName string
		content  string
		status   int
		code     string
	}{
		{name: "no rows", field: "file", fileName: "empty.csv", content: "问题类型,异动原因\n", status: http.StatusUnprocessableEntity, code: CodeAnalysisFailed},
		{name: "malformed", field: "file", fileName: "bad.csv", content: "a,b\n\"unterminated,2\n", status: http.StatusUnprocessableEntity, code: CodeAnalysisFailed},
		{name: "wrong extension", field: "file", fileName: "data.xlsx", content: sampleCSV, status: http.StatusBadRequest, code: CodeValidation},
		{name: "missing field", field: "upload", fileName: "feedback.csv", content: sampleCSV, status: http.StatusBadRequest, code: CodeBadRequest},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			staging := csvimport.NewStaging(time.Minute)
			router := importRouter(NewImportHandler(feedback.New(), staging, nil, 1<<20))

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, uploadRequest(t, tt.field, tt.fileName, tt.content))
			expectError(t, rec, tt.status, tt.code)
			if staging.Len() != 0 {
				t.Error("failed upload must not be staged")
			}
		})
	}
}

func TestUploadTooLarge(t *testing.T) {
	t.Parallel()
	router := importRouter(NewImportHandler(feedback.New(), csvimport.NewStaging(time.Minute), nil, 64))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "file", "big.csv", sampleCSV+strings.Repeat("x", 1024)))
	expectError(t, rec, http.StatusRequestEntityTooLarge, CodeTooLarge)
}

func TestDiscard(t *testing.T) {
	t.Parallel()
	staging := csvimport.NewStaging(time.Minute)
	router := importRouter(NewImportHandler(feedback.New(), staging, nil, 1<<20))
	staged := staging.Put("x.csv", nil)

	if rec := do(t, router, http.MethodDelete, "/import/"+staged.ID, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	expectError(t, do(t, router, http.MethodDelete, "/import/"+staged.ID, nil), http.StatusNotFound, CodeNotFound)
}

func TestConfirmSendsSlackReport(t *testing.T) {
	t.Parallel()

	bodies := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		bodies <- string(b)
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	notified := make(chan error, 1)
	staging := csvimport.NewStaging(time.Minute)
	h := NewImportHandler(feedback.New(), staging, slack.NewClient(server.URL, "", ""), 1<<20)
	h.notified = notified

	records, err := csvimport.Parse(strings.NewReader(sampleCSV), time.Now())
	if err != nil {
		t.Fatal(err)
	}
	staged := staging.Put("feedback.csv", records)

	if rec := do(t, importRouter(h), http.MethodPost, "/import/"+staged.ID+"/confirm", nil); rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	select {
	case err := <-notified:
		if err != nil {
			t.Fatalf("report failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the Slack report")
	}
	body := <-bodies
	if !strings.Contains(body, "feedback.csv") || !strings.Contains(body, "账户问题") {
		t.Errorf("report is missing file name or categories: %s", body)
	}
}
