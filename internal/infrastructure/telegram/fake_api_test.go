package telegram

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

const testToken = "123:ABC"

type recordedCall struct {
	Method string
	Params map[string]any
}

// fakeAPI is an in-process Bot API
type fakeAPI struct {
	mu        sync.Mutex
	calls     []recordedCall
	updates   [][]Update
	failSend  bool
	failPolls int
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	t.Helper()
	api := &fakeAPI{}
	srv := httptest.NewServer(http.HandlerFunc(api.serve))
	t.Cleanup(srv.Close)
	return api, srv
}

func (a *fakeAPI) serve(w http.ResponseWriter, r *http.Request) {
	prefix := "/bot" + testToken + "/"
	if !strings.HasPrefix(r.URL.Path, prefix) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error_code": 401, "description": "Unauthorized"})
		return
	}
	method := strings.TrimPrefix(r.URL.Path, prefix)

	var params map[string]any
	_ = json.NewDecoder(r.Body).Decode(&params)

	a.mu.Lock()
	a.calls = append(a.calls, recordedCall{Method: method, Params: params})
	a.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch method {
	case "sendMessage":
		a.mu.Lock()
		fail := a.failSend
		a.mu.Unlock()
		if fail {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error_code": 400, "description": "Bad Request: chat not found"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": map[string]any{"message_id": 1}})
	case "getUpdates":
		a.mu.Lock()
		if a.failPolls > 0 {
			a.failPolls--
			a.mu.Unlock()
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("bad gateway"))
			return
		}
		var batch []Update
		if len(a.updates) > 0 {
			batch = a.updates[0]
			a.updates = a.updates[1:]
		}
		a.mu.Unlock()
		if batch == nil {
			batch = []Update{}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": batch})
	case "deleteWebhook":
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": true})
	default:
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error_code": 404, "description": "Not Found"})
	}
}

func (a *fakeAPI) callsTo(method string) []recordedCall {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []recordedCall
	for _, c := range a.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func (a *fakeAPI) set(fn func(*fakeAPI)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	fn(a)
}
