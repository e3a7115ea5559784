package adax_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
)

// fakeAPI mimics the Adax API: a password-grant token endpoint, a content endpoint and a control endpoint.
type fakeAPI struct {
	username    string
	password    string
	rooms       string
	tokenCalls  atomic.Int32
	apiCalls    atomic.Int32
	failToken   atomic.Bool
	contentCode atomic.Int32
	lock        sync.Mutex
	lastForm    map[string]string
	lastAuth    string
	lastControl map[string]any
	issued      string
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	t.Helper()
	f := fakeAPI{
		username: "user",
		password: "secret",
		rooms:    `{"rooms":[{"id":5,"name":"Living room","temperature":2137,"targetTemperature":2200},{"id":6}]}`,
	}
	s := httptest.NewServer(&f)
	t.Cleanup(s.Close)
	return &f, s
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/auth/token":
		f.token(w, r)
	case "/rest/v1/content/":
		f.content(w, r)
	case "/rest/v1/control/":
		f.control(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeAPI) token(w http.ResponseWriter, r *http.Request) {
	n := f.tokenCalls.Add(1)
	if r.Method != http.MethodPost || r.ParseForm() != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	f.lock.Lock()
	f.lastForm = map[string]string{
		"grant_type": r.PostForm.Get("grant_type"),
		"username":   r.PostForm.Get("username"),
		"password":   r.PostForm.Get("password"),
	}
	f.lock.Unlock()

	if f.failToken.Load() || r.PostForm.Get("username") != f.username || r.PostForm.Get("password") != f.password {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":"invalid_grant"}`)
		return
	}
	token := "token-" + strconv.Itoa(int(n))
	f.lock.Lock()
	f.issued = token
	f.lock.Unlock()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"access_token": token, "token_type": "Bearer", "expires_in": 86400})
}

func (f *fakeAPI) authorized(w http.ResponseWriter, r *http.Request) bool {
	f.apiCalls.Add(1)
	f.lock.Lock()
	defer f.lock.Unlock()
	f.lastAuth = r.Header.Get("Authorization")
	if f.issued == "" || f.lastAuth != "Bearer "+f.issued {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return false
	}
	return true
}

func (f *fakeAPI) content(w http.ResponseWriter, r *http.Request) {
	if !f.authorized(w, r) {
		return
	}
	if code := int(f.contentCode.Load()); code != 0 {
		http.Error(w, http.StatusText(code), code)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, f.rooms)
}

func (f *fakeAPI) control(w http.ResponseWriter, r *http.Request) {
	if !f.authorized(w, r) {
		return
	}
	var body map[string]any
	if r.Method != http.MethodPost || json.NewDecoder(r.Body).Decode(&body) != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	f.lock.Lock()
	f.lastControl = body
	f.lock.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (f *fakeAPI) expireToken() {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.issued = "expired"
}

func (f *fakeAPI) getLastAuth() string {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.lastAuth
}

func (f *fakeAPI) getLastControl() map[string]any {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.lastControl
}

func (f *fakeAPI) getLastForm() map[string]string {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.lastForm
}
