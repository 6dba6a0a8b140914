package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"inferd/internal/compare"
	"inferd/internal/coordinator"
	"inferd/internal/engine"
	"inferd/internal/supervisor"
	"inferd/pkg/types"
)

// fakeService is a scriptable coordinator surface.
type fakeService struct {
	models    []types.Model
	status    types.StatusResponse
	def       string
	initErr   error
	unloadErr error
	ready     map[string]bool
	inits     []string
	aborts    []string
	unloads   []string
}

func (f *fakeService) ListModels() []types.Model    { return f.models }
func (f *fakeService) Status() types.StatusResponse { return f.status }
func (f *fakeService) DefaultModel() string         { return f.def }
func (f *fakeService) InitModel(ctx context.Context, id string) error {
	f.inits = append(f.inits, id)
	return f.initErr
}
func (f *fakeService) Unload(ctx context.Context, id string) error {
	f.unloads = append(f.unloads, id)
	return f.unloadErr
}
func (f *fakeService) Abort(id string)        { f.aborts = append(f.aborts, id) }
func (f *fakeService) IsReady(id string) bool { return f.ready[id] }

// fakeRunner streams its tokens and returns the configured outcome.
type fakeRunner struct {
	tokens []string
	res    coordinator.Result
	err    error
}

func (f *fakeRunner) Generate(ctx context.Context, taskID string, req types.GenerateRequest, cb coordinator.Callbacks) (coordinator.Result, error) {
	acc := ""
	for _, tok := range f.tokens {
		acc += tok
		if cb.OnToken != nil {
			cb.OnToken(tok, acc)
		}
	}
	return f.res, f.err
}

// fakeComparer emits one token per slot and returns fixed slots.
type fakeComparer struct {
	slots [2]compare.Slot
}

func (f *fakeComparer) Run(ctx context.Context, req types.CompareRequest, onToken compare.TokenFunc) [2]compare.Slot {
	if onToken != nil {
		onToken(0, "left", "left")
		onToken(1, "right", "right")
	}
	return f.slots
}

func newTestServer(svc *fakeService, run Runner, cmp Comparer) http.Handler {
	if svc.ready == nil {
		svc.ready = map[string]bool{}
	}
	if run == nil {
		run = &fakeRunner{}
	}
	if cmp == nil {
		cmp = &fakeComparer{}
	}
	return NewMux(svc, run, cmp)
}

func postJSON(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeLines(t *testing.T, body *bytes.Buffer) []streamLine {
	t.Helper()
	var lines []streamLine
	sc := bufio.NewScanner(body)
	for sc.Scan() {
		if strings.TrimSpace(sc.Text()) == "" {
			continue
		}
		var line streamLine
		if err := json.Unmarshal(sc.Bytes(), &line); err != nil {
			t.Fatalf("bad NDJSON line %q: %v", sc.Text(), err)
		}
		lines = append(lines, line)
	}
	return lines
}

func validGenerateBody(model string) string {
	b, _ := json.Marshal(types.GenerateRequest{
		Model:       model,
		Messages:    []types.ChatMessage{{Role: types.RoleUser, Content: "hi"}},
		Temperature: 0.7,
		MaxTokens:   64,
	})
	return string(b)
}

func TestModels_ReturnsRegistry(t *testing.T) {
	svc := &fakeService{models: []types.Model{{ID: "m1", Name: "M1", Path: "/x/m1.gguf"}}}
	h := newTestServer(svc, nil, nil)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/models", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp types.ModelsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Models) != 1 || resp.Models[0].ID != "m1" {
		t.Fatalf("models = %+v", resp.Models)
	}
}

func TestStatus_ReturnsCoordinatorView(t *testing.T) {
	svc := &fakeService{status: types.StatusResponse{
		Workers:      []types.WorkerStatus{{TaskID: "m1", State: "ready"}},
		DefaultModel: "m1",
	}}
	h := newTestServer(svc, nil, nil)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/status", nil))
	var resp types.StatusResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Workers) != 1 || resp.Workers[0].State != "ready" {
		t.Fatalf("status = %+v", resp)
	}
}

func TestLoad_SuccessAndNotFound(t *testing.T) {
	svc := &fakeService{}
	h := newTestServer(svc, nil, nil)
	rr := postJSON(t, h, "/models/m1/load", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("load status = %d (%s)", rr.Code, rr.Body)
	}
	if len(svc.inits) != 1 || svc.inits[0] != "m1" {
		t.Fatalf("inits = %v", svc.inits)
	}

	svc.initErr = coordinator.ErrModelNotFound("ghost")
	rr = postJSON(t, h, "/models/ghost/load", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("missing model status = %d", rr.Code)
	}
}

func TestAbortAndUnloadEndpoints(t *testing.T) {
	svc := &fakeService{}
	h := newTestServer(svc, nil, nil)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/models/m1/abort", nil))
	if rr.Code != http.StatusAccepted {
		t.Fatalf("abort status = %d", rr.Code)
	}
	if len(svc.aborts) != 1 || svc.aborts[0] != "m1" {
		t.Fatalf("aborts = %v", svc.aborts)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/models/m1", nil))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("unload status = %d", rr.Code)
	}
	if len(svc.unloads) != 1 || svc.unloads[0] != "m1" {
		t.Fatalf("unloads = %v", svc.unloads)
	}
}

func TestGenerate_StreamsTokensThenCompleteLine(t *testing.T) {
	run := &fakeRunner{
		tokens: []string{"Hel", "lo"},
		res:    coordinator.Result{Content: "Hello"},
	}
	h := newTestServer(&fakeService{def: "m1"}, run, nil)

	rr := postJSON(t, h, "/generate", validGenerateBody(""))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rr.Code, rr.Body)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/x-ndjson" {
		t.Fatalf("content type = %q", ct)
	}
	lines := decodeLines(t, rr.Body)
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want 3", len(lines))
	}
	if lines[0].Type != "token" || lines[0].Token != "Hel" {
		t.Fatalf("first line = %+v", lines[0])
	}
	last := lines[len(lines)-1]
	if last.Type != "complete" || last.Content != "Hello" || last.TaskID != "m1" {
		t.Fatalf("terminal line = %+v", last)
	}
}

func TestGenerate_AbortedTerminalLine(t *testing.T) {
	run := &fakeRunner{tokens: []string{"par"}, res: coordinator.Result{Aborted: true}}
	h := newTestServer(&fakeService{def: "m1"}, run, nil)
	rr := postJSON(t, h, "/generate", validGenerateBody("m1"))
	lines := decodeLines(t, rr.Body)
	if last := lines[len(lines)-1]; last.Type != "aborted" {
		t.Fatalf("terminal line = %+v", last)
	}
}

func TestGenerate_RejectsBadPayloads(t *testing.T) {
	h := newTestServer(&fakeService{def: "m1"}, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/generate", strings.NewReader("{}"))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req) // no content type
	if rr.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("missing content type status = %d", rr.Code)
	}

	if rr := postJSON(t, h, "/generate", "{not json"); rr.Code != http.StatusBadRequest {
		t.Fatalf("malformed body status = %d", rr.Code)
	}
}

func TestGenerate_NoModelAndNoDefault(t *testing.T) {
	h := newTestServer(&fakeService{}, nil, nil)
	rr := postJSON(t, h, "/generate", validGenerateBody(""))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestGenerate_FailFastErrorsAreMappedJSON(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{coordinator.ErrNotReady("m1"), http.StatusConflict},
		{coordinator.ErrBusy("m1"), http.StatusTooManyRequests},
		{coordinator.ErrInvalidRequest("bad"), http.StatusBadRequest},
		{supervisor.ErrTimeout("m1", 45*time.Second), http.StatusGatewayTimeout},
		{supervisor.ErrRepetition("m1"), http.StatusBadGateway},
		{coordinator.ErrGeneration("m1", "boom"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		h := newTestServer(&fakeService{def: "m1"}, &fakeRunner{err: c.err}, nil)
		rr := postJSON(t, h, "/generate", validGenerateBody("m1"))
		if rr.Code != c.want {
			t.Fatalf("%v mapped to %d, want %d", c.err, rr.Code, c.want)
		}
		var resp types.ErrorResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("error payload not JSON: %v (%s)", err, rr.Body)
		}
		if resp.Code != c.want {
			t.Fatalf("payload code = %d, want %d", resp.Code, c.want)
		}
	}
}

func TestGenerate_MidStreamFailureBecomesErrorLine(t *testing.T) {
	run := &fakeRunner{
		tokens: []string{"partial "},
		err:    coordinator.ErrGeneration("m1", "engine gave up"),
	}
	h := newTestServer(&fakeService{def: "m1"}, run, nil)
	rr := postJSON(t, h, "/generate", validGenerateBody("m1"))
	// Status already committed by the first token line.
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	lines := decodeLines(t, rr.Body)
	last := lines[len(lines)-1]
	if last.Type != "error" || !strings.Contains(last.Message, "engine gave up") {
		t.Fatalf("terminal line = %+v", last)
	}
}

func TestCompare_RequiresBothModels(t *testing.T) {
	h := newTestServer(&fakeService{}, nil, nil)
	body := `{"model_a": "a", "messages": [{"role": "user", "content": "hi"}]}`
	if rr := postJSON(t, h, "/compare", body); rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestCompare_StreamsSlotTaggedLines(t *testing.T) {
	cmp := &fakeComparer{slots: [2]compare.Slot{
		{TaskID: "a", Content: "left"},
		{TaskID: "b", Aborted: true},
	}}
	h := newTestServer(&fakeService{}, nil, cmp)
	body := `{"model_a": "a", "model_b": "b", "messages": [{"role": "user", "content": "hi"}], "max_tokens": 32}`
	rr := postJSON(t, h, "/compare", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rr.Code, rr.Body)
	}
	lines := decodeLines(t, rr.Body)
	if len(lines) != 4 {
		t.Fatalf("lines = %d, want 4", len(lines))
	}
	for _, line := range lines {
		if line.Slot == nil {
			t.Fatalf("line missing slot tag: %+v", line)
		}
	}
	term := lines[len(lines)-2:]
	if term[0].Type != "complete" || term[0].Content != "left" || *term[0].Slot != 0 {
		t.Fatalf("slot 0 terminal = %+v", term[0])
	}
	if term[1].Type != "aborted" || *term[1].Slot != 1 {
		t.Fatalf("slot 1 terminal = %+v", term[1])
	}
}

func TestReadyz(t *testing.T) {
	svc := &fakeService{def: "m1", ready: map[string]bool{"m1": true}}
	h := newTestServer(svc, nil, nil)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("readyz default = %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz?model=other", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz unloaded = %d", rr.Code)
	}
}

func TestHealthz(t *testing.T) {
	h := newTestServer(&fakeService{}, nil, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("healthz = %d", rr.Code)
	}
}

func TestStatusForError_EngineUnavailable(t *testing.T) {
	if got := statusForError(engine.ErrUnavailable("no runtime")); got != http.StatusServiceUnavailable {
		t.Fatalf("unavailable mapped to %d", got)
	}
	if got := statusForError(coordinator.ErrConstruction("m1", "x")); got != http.StatusInternalServerError {
		t.Fatalf("construction mapped to %d", got)
	}
	if got := statusForError(coordinator.ErrLoadFailed("m1", "x")); got != http.StatusInternalServerError {
		t.Fatalf("load-failed mapped to %d", got)
	}
}
