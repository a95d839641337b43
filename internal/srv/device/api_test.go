package device

import (
	"encoding/json"
	"errors"
	"github.com/jypelle/epdframe/apimodel"
	"github.com/jypelle/epdframe/internal/srv/config"
	"github.com/jypelle/epdframe/internal/srv/event"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const testApiKey = "secret"

type fakeNavigationReader struct {
	navigation apimodel.Navigation
}

func (f *fakeNavigationReader) Snapshot() apimodel.Navigation {
	return f.navigation
}

func newTestApi() *Api {
	nav := &fakeNavigationReader{navigation: apimodel.Navigation{CurrentApp: 1, ScreenOfApp: map[int]int{0: 2, 1: 1}}}
	return NewApi(config.ApiParam{Enabled: true, SslPort: 8443, ApiKey: testApiKey}, "key.pem", "cert.pem", nav)
}

func doRequest(api *Api, method, path, apiKey string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if apiKey != "" {
		req.Header.Set("x-api-key", apiKey)
	}
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) apimodel.ErrorMessage {
	t.Helper()
	var msg apimodel.ErrorMessage
	if err := json.NewDecoder(rec.Body).Decode(&msg); err != nil {
		t.Fatalf("invalid error body: %v", err)
	}
	return msg
}

func TestApiAuthentication(t *testing.T) {
	api := newTestApi()
	tests := []struct {
		name   string
		apiKey string
		want   int
	}{
		{"missing key", "", http.StatusForbidden},
		{"wrong key", "nope", http.StatusForbidden},
		{"valid key", testApiKey, http.StatusOK},
	}
	for _, tt := range tests {
		rec := doRequest(api, "GET", "/api/is_alive", tt.apiKey)
		if rec.Code != tt.want {
			t.Errorf("%s: got %d, want %d", tt.name, rec.Code, tt.want)
		}
		if msg := decodeError(t, rec); msg.StatusCode() != tt.want {
			t.Errorf("%s: body status %d", tt.name, msg.ErrStatusCode)
		}
	}
}

func TestApiNavigation(t *testing.T) {
	api := newTestApi()
	rec := doRequest(api, "GET", "/api/navigation", testApiKey)
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d", rec.Code)
	}
	var nav apimodel.Navigation
	if err := json.NewDecoder(rec.Body).Decode(&nav); err != nil {
		t.Fatal(err)
	}
	if nav.Position() != (apimodel.Position{App: 1, Screen: 1}) {
		t.Errorf("got %+v", nav.Position())
	}
}

func TestApiNavigationEvents(t *testing.T) {
	tests := []struct {
		path     string
		want     interface{}
		result   error
		wantCode int
	}{
		{"/api/navigation/next_app", event.ApiEventNextAppData{}, nil, http.StatusOK},
		{"/api/navigation/next_screen", event.ApiEventNextScreenData{}, nil, http.StatusOK},
		{"/api/navigation/refresh", event.ApiEventRefreshData{}, nil, http.StatusOK},
		{"/api/navigation/next_app", event.ApiEventNextAppData{}, errors.New("metadata unavailable"), http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		tt := tt
		api := newTestApi()
		received := make(chan interface{}, 1)
		go func() {
			ev := <-api.EventChannel()
			received <- ev.Data
			ev.Result <- tt.result
		}()

		rec := doRequest(api, "POST", tt.path, testApiKey)
		if rec.Code != tt.wantCode {
			t.Errorf("%s: got %d, want %d", tt.path, rec.Code, tt.wantCode)
		}
		if data := <-received; data != tt.want {
			t.Errorf("%s: got event %T, want %T", tt.path, data, tt.want)
		}
	}
}

func TestApiNavigationUnavailable(t *testing.T) {
	api := newTestApi()
	api.eventTimeout = 20 * time.Millisecond

	rec := doRequest(api, "POST", "/api/navigation/next_screen", testApiKey)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("got %d", rec.Code)
	}
	if msg := decodeError(t, rec); msg.Title() != apimodel.NavigationUnavailableErrorMessage.ErrMessage {
		t.Errorf("got %q", msg.ErrMessage)
	}
}

func TestApiRouting(t *testing.T) {
	api := newTestApi()
	if rec := doRequest(api, "GET", "/api/unknown", testApiKey); rec.Code != http.StatusNotFound {
		t.Errorf("unknown path: got %d", rec.Code)
	}
	if rec := doRequest(api, "GET", "/api/navigation/next_app", testApiKey); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("wrong method: got %d", rec.Code)
	}
}
