package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kjstillabower/weather-record-service/internal/models"
	"github.com/kjstillabower/weather-record-service/internal/observability"
	"github.com/kjstillabower/weather-record-service/internal/store"
)

const seoulBody = `{"region":"Seoul","date":"2024-03-01","weatherCondition":"Sunny","temperature":21.5}`

func newTestHandler(t *testing.T) (*Handler, *store.InMemoryStore) {
	t.Helper()
	s := store.NewInMemoryStore()
	return New(s, zap.NewNop()), s
}

func mustHandle(t *testing.T, h *Handler, req Request) Response {
	t.Helper()
	resp, err := h.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle(%s) error = %v", req.Method, err)
	}
	return resp
}

func createRecord(t *testing.T, h *Handler, body string) int64 {
	t.Helper()
	resp := mustHandle(t, h, Request{Method: http.MethodPost, Body: body})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create status = %d, body = %s", resp.StatusCode, resp.Body)
	}
	var out struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal([]byte(resp.Body), &out); err != nil {
		t.Fatalf("decode create body: %v", err)
	}
	return out.ID
}

func listRecords(t *testing.T, h *Handler, query map[string]string) []models.WeatherRecord {
	t.Helper()
	resp := mustHandle(t, h, Request{Method: http.MethodGet, QueryStringParameters: query})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d, body = %s", resp.StatusCode, resp.Body)
	}
	var out []models.WeatherRecord
	if err := json.Unmarshal([]byte(resp.Body), &out); err != nil {
		t.Fatalf("decode list body: %v", err)
	}
	return out
}

func errorCode(t *testing.T, resp Response) string {
	t.Helper()
	var out struct {
		Error struct {
			Code      string `json:"code"`
			Message   string `json:"message"`
			RequestID string `json:"requestId"`
		} `json:"error"`
	}
	if err := json.Unmarshal([]byte(resp.Body), &out); err != nil {
		t.Fatalf("decode error body %q: %v", resp.Body, err)
	}
	return out.Error.Code
}

func TestHandle_CreateAssignsSequentialIDs(t *testing.T) {
	h, _ := newTestHandler(t)
	if id := createRecord(t, h, seoulBody); id != 1 {
		t.Errorf("first id = %d, want 1", id)
	}
	if id := createRecord(t, h, seoulBody); id != 2 {
		t.Errorf("second id = %d, want 2", id)
	}
}

func TestHandle_CreateContinuesFromMaxID(t *testing.T) {
	h, s := newTestHandler(t)
	err := s.Insert(context.Background(), models.WeatherRecord{
		ID: 41, Region: "Busan", Date: time.Now(), WeatherCondition: "Rain", Temperature: 10,
	})
	if err != nil {
		t.Fatal(err)
	}
	if id := createRecord(t, h, seoulBody); id != 42 {
		t.Errorf("id = %d, want 42", id)
	}
}

func TestHandle_CreatedRecordRoundTrips(t *testing.T) {
	h, _ := newTestHandler(t)
	id := createRecord(t, h, seoulBody)

	got := listRecords(t, h, nil)
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	want := models.WeatherRecord{
		ID:               id,
		Region:           "Seoul",
		Date:             time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		WeatherCondition: "Sunny",
		Temperature:      21.5,
	}
	if got[0].ID != want.ID || got[0].Region != want.Region || got[0].WeatherCondition != want.WeatherCondition ||
		got[0].Temperature != want.Temperature || !got[0].Date.Equal(want.Date) {
		t.Errorf("record = %+v, want %+v", got[0], want)
	}
}

func TestHandle_CreateErrors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{"temperature above range", `{"region":"Seoul","date":"2024-03-01","weatherCondition":"Sunny","temperature":150}`, "VALIDATION_ERROR"},
		{"temperature below range", `{"region":"Seoul","date":"2024-03-01","weatherCondition":"Sunny","temperature":-101}`, "VALIDATION_ERROR"},
		{"missing region", `{"date":"2024-03-01","weatherCondition":"Sunny","temperature":20}`, "VALIDATION_ERROR"},
		{"empty region", `{"region":"","date":"2024-03-01","weatherCondition":"Sunny","temperature":20}`, "VALIDATION_ERROR"},
		{"missing temperature", `{"region":"Seoul","date":"2024-03-01","weatherCondition":"Sunny"}`, "VALIDATION_ERROR"},
		{"temperature not numeric", `{"region":"Seoul","date":"2024-03-01","weatherCondition":"Sunny","temperature":"warm"}`, "PARSE_ERROR"},
		{"numeric string above range", `{"region":"Seoul","date":"2024-03-01","weatherCondition":"Sunny","temperature":"150"}`, "VALIDATION_ERROR"},
		{"region object", `{"region":{"name":"Seoul"},"date":"2024-03-01","weatherCondition":"Sunny","temperature":20}`, "PARSE_ERROR"},
		{"bad date", `{"region":"Seoul","date":"yesterday","weatherCondition":"Sunny","temperature":20}`, "PARSE_ERROR"},
		{"not json", `region=Seoul`, "PARSE_ERROR"},
		{"empty body", ``, "PARSE_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, s := newTestHandler(t)
			resp := mustHandle(t, h, Request{Method: http.MethodPost, Body: tt.body})
			if resp.StatusCode != http.StatusInternalServerError {
				t.Fatalf("status = %d, want 500", resp.StatusCode)
			}
			if code := errorCode(t, resp); code != tt.wantCode {
				t.Errorf("code = %q, want %q", code, tt.wantCode)
			}
			if n, _ := s.MaxID(context.Background()); n != 0 {
				t.Errorf("record persisted despite error, max id = %d", n)
			}
		})
	}
}

func TestHandle_CoercesBodyValuesToSchemaTypes(t *testing.T) {
	h, _ := newTestHandler(t)
	createRecord(t, h, `{"region":1004,"date":"2024-03-01","weatherCondition":"Sunny","temperature":"20"}`)

	got := listRecords(t, h, nil)
	if len(got) != 1 || got[0].Region != "1004" || got[0].Temperature != 20 {
		t.Fatalf("created = %+v", got)
	}

	resp := mustHandle(t, h, Request{
		Method:         http.MethodPatch,
		PathParameters: map[string]string{"id": "1"},
		Body:           `{"temperature":"20.5","weatherCondition":7}`,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("PATCH status = %d, body = %s", resp.StatusCode, resp.Body)
	}
	var patched models.WeatherRecord
	if err := json.Unmarshal([]byte(resp.Body), &patched); err != nil {
		t.Fatal(err)
	}
	if patched.Temperature != 20.5 || patched.WeatherCondition != "7" || patched.Region != "1004" {
		t.Errorf("patched = %+v", patched)
	}
}

func TestHandle_CreateAcceptsZeroTemperature(t *testing.T) {
	h, _ := newTestHandler(t)
	createRecord(t, h, `{"region":"Oslo","date":"2024-01-01T08:00:00Z","weatherCondition":"Snow","temperature":0}`)
	if got := listRecords(t, h, nil); len(got) != 1 || got[0].Temperature != 0 {
		t.Errorf("records = %+v", got)
	}
}

func TestHandle_ListFilters(t *testing.T) {
	h, _ := newTestHandler(t)
	createRecord(t, h, `{"region":"Seoul","date":"2024-03-01","weatherCondition":"Sunny","temperature":20}`)
	createRecord(t, h, `{"region":"Busan","date":"2024-03-01","weatherCondition":"Cloudy","temperature":18}`)
	createRecord(t, h, `{"region":"Seoul","date":"2024-03-02","weatherCondition":"Rain","temperature":12}`)

	tests := []struct {
		name    string
		query   map[string]string
		wantIDs []int64
	}{
		{"no filter", nil, []int64{3, 2, 1}},
		{"region substring", map[string]string{"region": "seo"}, []int64{3, 1}},
		{"region upper case", map[string]string{"region": "BUSAN"}, []int64{2}},
		{"condition", map[string]string{"weatherCondition": "rai"}, []int64{3}},
		{"both", map[string]string{"region": "seoul", "weatherCondition": "sun"}, []int64{1}},
		{"empty value ignored", map[string]string{"region": ""}, []int64{3, 2, 1}},
		{"no match", map[string]string{"region": "Tokyo"}, []int64{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := listRecords(t, h, tt.query)
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("len = %d, want %d (%+v)", len(got), len(tt.wantIDs), got)
			}
			for i, id := range tt.wantIDs {
				if got[i].ID != id {
					t.Errorf("got[%d].ID = %d, want %d", i, got[i].ID, id)
				}
			}
		})
	}
}

func TestHandle_ListEmptyIsArray(t *testing.T) {
	h, _ := newTestHandler(t)
	resp := mustHandle(t, h, Request{Method: http.MethodGet})
	if resp.Body != "[]" {
		t.Errorf("body = %q, want []", resp.Body)
	}
	if resp.Headers["Content-Type"] != "application/json" {
		t.Errorf("Content-Type = %q", resp.Headers["Content-Type"])
	}
}

func TestHandle_Delete(t *testing.T) {
	h, _ := newTestHandler(t)
	createRecord(t, h, seoulBody)

	for _, id := range []string{"1", "999"} {
		resp := mustHandle(t, h, Request{Method: http.MethodDelete, PathParameters: map[string]string{"id": id}})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("DELETE %s status = %d", id, resp.StatusCode)
		}
		want := `{"message":"Weather entry with id ` + id + ` deleted successfully."}`
		if resp.Body != want {
			t.Errorf("DELETE %s body = %s, want %s", id, resp.Body, want)
		}
	}
	if got := listRecords(t, h, nil); len(got) != 0 {
		t.Errorf("records after delete = %+v", got)
	}
}

func TestHandle_MessagesEchoPathIDAsSent(t *testing.T) {
	h, _ := newTestHandler(t)
	createRecord(t, h, seoulBody)

	resp := mustHandle(t, h, Request{Method: http.MethodDelete, PathParameters: map[string]string{"id": "007"}})
	if want := `{"message":"Weather entry with id 007 deleted successfully."}`; resp.Body != want {
		t.Errorf("DELETE body = %s, want %s", resp.Body, want)
	}

	resp = mustHandle(t, h, Request{Method: http.MethodPatch, PathParameters: map[string]string{"id": "0099"}, Body: `{"temperature":1}`})
	if want := `{"message":"Weather entry with id 0099 not found."}`; resp.StatusCode != http.StatusNotFound || resp.Body != want {
		t.Errorf("PATCH = %d %s, want 404 %s", resp.StatusCode, resp.Body, want)
	}

	resp = mustHandle(t, h, Request{Method: http.MethodDelete, PathParameters: map[string]string{"id": "01"}})
	if want := `{"message":"Weather entry with id 01 deleted successfully."}`; resp.Body != want {
		t.Errorf("DELETE body = %s, want %s", resp.Body, want)
	}
	if got := listRecords(t, h, nil); len(got) != 0 {
		t.Errorf("record 1 not deleted via id 01: %+v", got)
	}
}

func TestHandle_InvalidID(t *testing.T) {
	h, _ := newTestHandler(t)
	for _, method := range []string{http.MethodDelete, http.MethodPut, http.MethodPatch} {
		for _, params := range []map[string]string{nil, {"id": "abc"}, {"id": "1.5"}} {
			resp := mustHandle(t, h, Request{Method: method, PathParameters: params, Body: seoulBody})
			if resp.StatusCode != http.StatusInternalServerError {
				t.Errorf("%s %v status = %d, want 500", method, params, resp.StatusCode)
				continue
			}
			if code := errorCode(t, resp); code != "PARSE_ERROR" {
				t.Errorf("%s %v code = %q, want PARSE_ERROR", method, params, code)
			}
		}
	}
}

func TestHandle_PutReplacesRecord(t *testing.T) {
	h, _ := newTestHandler(t)
	createRecord(t, h, seoulBody)

	resp := mustHandle(t, h, Request{
		Method:         http.MethodPut,
		PathParameters: map[string]string{"id": "1"},
		Body:           `{"region":"Incheon","date":"2024-04-01T09:30:00Z","weatherCondition":"Fog","temperature":-3,"id":77}`,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %s", resp.StatusCode, resp.Body)
	}
	var got models.WeatherRecord
	if err := json.Unmarshal([]byte(resp.Body), &got); err != nil {
		t.Fatal(err)
	}
	if got.ID != 1 || got.Region != "Incheon" || got.WeatherCondition != "Fog" || got.Temperature != -3 {
		t.Errorf("updated = %+v", got)
	}
	if !got.Date.Equal(time.Date(2024, 4, 1, 9, 30, 0, 0, time.UTC)) {
		t.Errorf("date = %v", got.Date)
	}
}

func TestHandle_PutRequiresAllFields(t *testing.T) {
	h, _ := newTestHandler(t)
	createRecord(t, h, seoulBody)
	resp := mustHandle(t, h, Request{
		Method:         http.MethodPut,
		PathParameters: map[string]string{"id": "1"},
		Body:           `{"temperature":5}`,
	})
	if resp.StatusCode != http.StatusInternalServerError || errorCode(t, resp) != "VALIDATION_ERROR" {
		t.Errorf("status = %d, body = %s", resp.StatusCode, resp.Body)
	}
}

func TestHandle_UpdateMissingIDIsNotFound(t *testing.T) {
	h, _ := newTestHandler(t)
	for _, tt := range []struct {
		method string
		body   string
	}{
		{http.MethodPut, seoulBody},
		{http.MethodPatch, `{"temperature":5}`},
	} {
		resp := mustHandle(t, h, Request{Method: tt.method, PathParameters: map[string]string{"id": "999"}, Body: tt.body})
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("%s status = %d, want 404", tt.method, resp.StatusCode)
		}
		if want := `{"message":"Weather entry with id 999 not found."}`; resp.Body != want {
			t.Errorf("%s body = %s, want %s", tt.method, resp.Body, want)
		}
	}
}

func TestHandle_PatchLeavesOtherFieldsIntact(t *testing.T) {
	h, _ := newTestHandler(t)
	createRecord(t, h, seoulBody)

	resp := mustHandle(t, h, Request{
		Method:         http.MethodPatch,
		PathParameters: map[string]string{"id": "1"},
		Body:           `{"temperature":30}`,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %s", resp.StatusCode, resp.Body)
	}
	var got models.WeatherRecord
	if err := json.Unmarshal([]byte(resp.Body), &got); err != nil {
		t.Fatal(err)
	}
	if got.Temperature != 30 || got.Region != "Seoul" || got.WeatherCondition != "Sunny" {
		t.Errorf("patched = %+v", got)
	}
	if !got.Date.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("date changed to %v", got.Date)
	}
}

func TestHandle_PatchRejectsOutOfRangeTemperature(t *testing.T) {
	h, _ := newTestHandler(t)
	createRecord(t, h, seoulBody)
	resp := mustHandle(t, h, Request{
		Method:         http.MethodPatch,
		PathParameters: map[string]string{"id": "1"},
		Body:           `{"temperature":150}`,
	})
	if resp.StatusCode != http.StatusInternalServerError || errorCode(t, resp) != "VALIDATION_ERROR" {
		t.Fatalf("status = %d, body = %s", resp.StatusCode, resp.Body)
	}
	if got := listRecords(t, h, nil); got[0].Temperature != 21.5 {
		t.Errorf("temperature = %v, want unchanged 21.5", got[0].Temperature)
	}
}

func TestHandle_UnsupportedMethod(t *testing.T) {
	h, _ := newTestHandler(t)
	for _, method := range []string{"HEAD", "OPTIONS", "get", ""} {
		resp, err := h.Handle(context.Background(), Request{Method: method})
		if err == nil {
			t.Fatalf("Handle(%q) error = nil, response = %+v", method, resp)
		}
		if !errors.Is(err, ErrUnsupportedOperation) {
			t.Errorf("Handle(%q) error = %v, want ErrUnsupportedOperation", method, err)
		}
		var opErr *OperationError
		if !errors.As(err, &opErr) || opErr.Method != method {
			t.Errorf("Handle(%q) error = %#v", method, err)
		}
		if want := `Operation Error: "` + method + `"`; err.Error() != want {
			t.Errorf("Error() = %q, want %q", err.Error(), want)
		}
	}
}

type failingStore struct {
	store.Store
	err error
}

func (f failingStore) MaxID(ctx context.Context) (int64, error) { return 0, f.err }
func (f failingStore) List(ctx context.Context, _ store.Filter) ([]models.WeatherRecord, error) {
	return nil, f.err
}
func (f failingStore) DeleteByID(ctx context.Context, id int64) error { return f.err }

func TestHandle_StoreFailuresAre500(t *testing.T) {
	connErr := errors.Join(store.ErrConnection, errors.New("server selection timeout"))
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"connection", connErr, "CONNECTION_ERROR"},
		{"deadline", context.DeadlineExceeded, "TIMEOUT"},
		{"other", errors.New("write concern error"), "PERSISTENCE_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.ErrorLevel)
			h := New(failingStore{err: tt.err}, zap.New(core))
			ctx := observability.WithCorrelationID(context.Background(), "corr-1")

			for _, req := range []Request{
				{Method: http.MethodPost, Body: seoulBody},
				{Method: http.MethodGet},
				{Method: http.MethodDelete, PathParameters: map[string]string{"id": "1"}},
			} {
				resp, err := h.Handle(ctx, req)
				if err != nil {
					t.Fatalf("%s error = %v", req.Method, err)
				}
				if resp.StatusCode != http.StatusInternalServerError {
					t.Errorf("%s status = %d, want 500", req.Method, resp.StatusCode)
				}
				if code := errorCode(t, resp); code != tt.wantCode {
					t.Errorf("%s code = %q, want %q", req.Method, code, tt.wantCode)
				}
				if !strings.Contains(resp.Body, `"requestId":"corr-1"`) {
					t.Errorf("%s body missing request id: %s", req.Method, resp.Body)
				}
			}
			if n := logs.FilterMessage("request failed").Len(); n != 3 {
				t.Errorf("logged failures = %d, want 3", n)
			}
		})
	}
}

// barrierStore holds every MaxID caller until n callers have read the max, which
// reproduces two creates interleaving between the read and the insert.
type barrierStore struct {
	store.Store
	wg sync.WaitGroup
}

func (b *barrierStore) MaxID(ctx context.Context) (int64, error) {
	id, err := b.Store.MaxID(ctx)
	b.wg.Done()
	b.wg.Wait()
	return id, err
}

func TestHandle_ConcurrentCreatesMayDuplicateIDs(t *testing.T) {
	inner := store.NewInMemoryStore()
	b := &barrierStore{Store: inner}
	b.wg.Add(2)
	h := New(b, nil)

	var wg sync.WaitGroup
	ids := make([]int64, 2)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := h.Handle(context.Background(), Request{Method: http.MethodPost, Body: seoulBody})
			if err != nil || resp.StatusCode != http.StatusOK {
				t.Errorf("create: %v %+v", err, resp)
				return
			}
			var out struct {
				ID int64 `json:"id"`
			}
			_ = json.Unmarshal([]byte(resp.Body), &out)
			ids[i] = out.ID
		}(i)
	}
	wg.Wait()

	if ids[0] != 1 || ids[1] != 1 {
		t.Errorf("ids = %v, want both 1 (id generation is not atomic)", ids)
	}
	records, _ := inner.List(context.Background(), store.Filter{})
	if len(records) != 2 {
		t.Errorf("records = %d, want 2", len(records))
	}
}
