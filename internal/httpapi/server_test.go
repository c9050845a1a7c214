package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/enesbasbug/async-translator/internal/tasks"
)

type fakeTaskService struct {
	mu        sync.Mutex
	submitted []submission
	views     map[string]tasks.View
	submitErr error
	statusErr error
}

type submission struct {
	text      string
	languages []string
}

func (f *fakeTaskService) Submit(_ context.Context, text string, languages []string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return "", f.submitErr
	}
	f.submitted = append(f.submitted, submission{text: text, languages: append([]string(nil), languages...)})
	id := fmt.Sprintf("task-%d", len(f.submitted))
	if f.views == nil {
		f.views = map[string]tasks.View{}
	}
	f.views[id] = tasks.View{TaskID: id, Status: tasks.StatusInProgress}
	return id, nil
}

func (f *fakeTaskService) Status(_ context.Context, taskID string) (tasks.View, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		return tasks.View{}, f.statusErr
	}
	view, ok := f.views[taskID]
	if !ok {
		return tasks.View{}, fmt.Errorf("load task %s: %w", taskID, tasks.ErrTaskNotFound)
	}
	return view, nil
}

type fakePinger struct {
	err error
}

func (p fakePinger) Ping(context.Context) error {
	return p.err
}

func newTestServer(service TaskService, pinger Pinger) http.Handler {
	return NewServer(service, pinger, zerolog.Nop(), Options{}).Handler()
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, decoded
}

func TestTranslate_KeepsLanguagesAsSent(t *testing.T) {
	t.Parallel()

	service := &fakeTaskService{}
	h := newTestServer(service, fakePinger{})

	payload := `{"text":"Hello","languages":["FR"," es-419 ","Chinese (Simplified)","Brazilian Portuguese","French"]}`
	rec, body := doRequest(t, h, http.MethodPost, "/api/v1/translate", payload)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if body["task_id"] != "task-1" {
		t.Fatalf("unexpected task id: %v", body["task_id"])
	}
	if len(body) != 1 {
		t.Fatalf("expected only task_id in response, got %v", body)
	}

	if len(service.submitted) != 1 {
		t.Fatalf("expected one submission, got %d", len(service.submitted))
	}
	got := service.submitted[0]
	want := "FR|es-419|Chinese (Simplified)|Brazilian Portuguese|French"
	if got.text != "Hello" || strings.Join(got.languages, "|") != want {
		t.Fatalf("unexpected submission: %+v", got)
	}
}

func TestTranslate_CaseVariantsAreDistinctLanguages(t *testing.T) {
	t.Parallel()

	service := &fakeTaskService{}
	h := newTestServer(service, fakePinger{})

	rec, _ := doRequest(t, h, http.MethodPost, "/api/v1/translate", `{"text":"Hello","languages":["fr","FR"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if strings.Join(service.submitted[0].languages, ",") != "fr,FR" {
		t.Fatalf("unexpected languages: %v", service.submitted[0].languages)
	}
}

func TestTranslate_RejectsInvalidBodies(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"empty body":          ``,
		"not json":            `{"text":`,
		"missing languages":   `{"text":"Hello"}`,
		"empty languages":     `{"text":"Hello","languages":[]}`,
		"languages not array": `{"text":"Hello","languages":"fr"}`,
		"blank text":          `{"text":"   ","languages":["fr"]}`,
		"blank language":      `{"text":"Hello","languages":["fr","  "]}`,
		"empty language":      `{"text":"Hello","languages":["fr",""]}`,
		"duplicate language":  `{"text":"Hello","languages":["fr"," fr"]}`,
		"non-string language": `{"text":"Hello","languages":["fr",12]}`,
		"trailing content":    `{"text":"Hello","languages":["fr"]} {}`,
	}

	for name, payload := range tests {
		payload := payload
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			service := &fakeTaskService{}
			h := newTestServer(service, fakePinger{})

			rec, body := doRequest(t, h, http.MethodPost, "/api/v1/translate", payload)
			if rec.Code != http.StatusUnprocessableEntity {
				t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
			}
			if body["detail"] != detailValidationFailed {
				t.Fatalf("unexpected detail: %v", body["detail"])
			}
			if problems, ok := body["errors"].([]any); !ok || len(problems) == 0 {
				t.Fatalf("expected validation errors, got %v", body["errors"])
			}
			if len(service.submitted) != 0 {
				t.Fatalf("invalid request must not be submitted")
			}
		})
	}
}

func TestTranslate_SubmitErrorIsInternal(t *testing.T) {
	t.Parallel()

	service := &fakeTaskService{submitErr: errors.New("database is down")}
	h := newTestServer(service, fakePinger{})

	rec, body := doRequest(t, h, http.MethodPost, "/api/v1/translate", `{"text":"Hello","languages":["fr"]}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if body["detail"] != detailInternalError {
		t.Fatalf("unexpected detail: %v", body["detail"])
	}
	if strings.Contains(rec.Body.String(), "database is down") {
		t.Fatalf("internal error leaked to client: %s", rec.Body.String())
	}
}

func TestTranslationStatus_InProgressOmitsTranslations(t *testing.T) {
	t.Parallel()

	service := &fakeTaskService{}
	h := newTestServer(service, fakePinger{})

	_, submitted := doRequest(t, h, http.MethodPost, "/api/v1/translate", `{"text":"Hello","languages":["fr","de"]}`)
	taskID, _ := submitted["task_id"].(string)

	rec, body := doRequest(t, h, http.MethodGet, "/api/v1/translate/"+taskID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body["task_id"] != taskID || body["status"] != string(tasks.StatusInProgress) {
		t.Fatalf("unexpected body: %v", body)
	}
	if _, ok := body["translations"]; ok {
		t.Fatalf("in-progress task must not expose translations: %v", body)
	}
}

func TestTranslationStatus_CompletedIncludesTranslations(t *testing.T) {
	t.Parallel()

	service := &fakeTaskService{views: map[string]tasks.View{
		"done": {
			TaskID:       "done",
			Status:       tasks.StatusCompleted,
			Translations: map[string]string{"fr": "Bonjour", "de": "Hallo"},
		},
	}}
	h := newTestServer(service, fakePinger{})

	rec, body := doRequest(t, h, http.MethodGet, "/api/v1/translate/done", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	translations, ok := body["translations"].(map[string]any)
	if !ok {
		t.Fatalf("expected translations object, got %v", body)
	}
	if translations["fr"] != "Bonjour" || translations["de"] != "Hallo" {
		t.Fatalf("unexpected translations: %v", translations)
	}
}

func TestTranslationStatus_UnknownTask(t *testing.T) {
	t.Parallel()

	h := newTestServer(&fakeTaskService{}, fakePinger{})

	rec, body := doRequest(t, h, http.MethodGet, "/api/v1/translate/does-not-exist", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if body["detail"] != "Task not found" || len(body) != 1 {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestTranslationStatus_StoreErrorIsInternal(t *testing.T) {
	t.Parallel()

	h := newTestServer(&fakeTaskService{statusErr: errors.New("connection reset")}, fakePinger{})

	rec, body := doRequest(t, h, http.MethodGet, "/api/v1/translate/abc", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if body["detail"] != detailInternalError {
		t.Fatalf("unexpected detail: %v", body["detail"])
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	rec, body := doRequest(t, newTestServer(&fakeTaskService{}, fakePinger{}), http.MethodGet, "/api/v1/health", "")
	if rec.Code != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("unexpected health response %d: %v", rec.Code, body)
	}

	rec, body = doRequest(t, newTestServer(&fakeTaskService{}, fakePinger{err: errors.New("down")}), http.MethodGet, "/api/v1/health", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d: %v", rec.Code, body)
	}
}

func TestUnknownRouteUsesDetailBody(t *testing.T) {
	t.Parallel()

	rec, body := doRequest(t, newTestServer(&fakeTaskService{}, fakePinger{}), http.MethodGet, "/api/v1/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if _, ok := body["detail"]; !ok {
		t.Fatalf("expected detail field, got %v", body)
	}
}
