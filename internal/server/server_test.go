package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	content "github.com/hanpama/crumbgraph/internal/content"
	contentrt "github.com/hanpama/crumbgraph/internal/contentrt"
	eventbus "github.com/hanpama/crumbgraph/internal/eventbus"
	events "github.com/hanpama/crumbgraph/internal/events"
	reqid "github.com/hanpama/crumbgraph/internal/reqid"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testStore(t *testing.T) *content.MemoryStore {
	t.Helper()
	s := content.NewMemoryStore()
	pages := &content.Collection{Handle: "pages", Title: "Pages"}
	s.AddCollection(pages)
	home := &content.Entry{ID: "home", Title: "Home", URL: "/", Locale: "en", Collection: pages}
	homeDE := &content.Entry{ID: "home-de", Title: "Start", URL: "/", Locale: "de", Collection: pages, Origin: home}
	about := &content.Entry{ID: "about", Title: "About", URL: "/about", Locale: "en", Collection: pages, Parent: home}
	for _, e := range []*content.Entry{home, homeDE, about} {
		require.NoError(t, s.AddEntry(e))
	}
	return s
}

func newTestHandler(t *testing.T, opts ...Option) *Handler {
	t.Helper()
	sch, src, err := contentrt.Schema()
	require.NoError(t, err)
	h, err := New(contentrt.New(testStore(t)), sch, src, opts...)
	require.NoError(t, err)
	return h
}

func post(t *testing.T, h http.Handler, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/graphql", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestNewRequiresSchema(t *testing.T) {
	_, err := New(contentrt.New(content.NewMemoryStore()), nil, nil)
	require.Error(t, err)
}

func TestPostQuery(t *testing.T) {
	h := newTestHandler(t)
	w := post(t, h, `{"query":"{ entry(id: \"about\") { title breadcrumbs { id title } } }"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)

	want := map[string]any{"data": map[string]any{"entry": map[string]any{
		"title": "About",
		"breadcrumbs": []any{
			map[string]any{"id": "home", "title": "Home"},
			map[string]any{"id": "about", "title": "About"},
		},
	}}}
	if diff := cmp.Diff(want, decode(t, w)); diff != "" {
		t.Fatalf("response mismatch (-want +got):\n%s", diff)
	}
}

func TestGetQueryWithVariables(t *testing.T) {
	h := newTestHandler(t)
	q := url.Values{}
	q.Set("query", `query($id: ID!) { entry(id: $id) { id } }`)
	q.Set("variables", `{"id":"home"}`)
	req := httptest.NewRequest(http.MethodGet, "/graphql?"+q.Encode(), nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	want := map[string]any{"data": map[string]any{"entry": map[string]any{"id": "home"}}}
	if diff := cmp.Diff(want, decode(t, w)); diff != "" {
		t.Fatalf("response mismatch (-want +got):\n%s", diff)
	}
}

func TestLocaleHeader(t *testing.T) {
	const body = `{"query":"{ entryByUrl(url: \"/\") { id } }"}`
	tests := []struct {
		name   string
		opts   []Option
		header http.Header
		want   string
	}{
		{"no header", nil, nil, "home"},
		{"accept-language", nil, http.Header{"Accept-Language": {"de-DE,de;q=0.9,en;q=0.5"}}, "home-de"},
		{"custom header", []Option{WithLocaleHeader("X-Locale")}, http.Header{"X-Locale": {"de"}}, "home-de"},
		{"disabled", []Option{WithLocaleHeader("")}, http.Header{"Accept-Language": {"de"}}, "home"},
		{"garbage", nil, http.Header{"Accept-Language": {"!!"}}, "home"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := post(t, newTestHandler(t, tc.opts...), body, tc.header)
			require.Equal(t, http.StatusOK, w.Code)
			got := decode(t, w)["data"].(map[string]any)["entryByUrl"].(map[string]any)["id"]
			require.Equal(t, tc.want, got)
		})
	}
}

func TestValidationErrors(t *testing.T) {
	h := newTestHandler(t)
	w := post(t, h, `{"query":"{ entry(id: \"home\") { nope } }"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)

	got := decode(t, w)
	require.Nil(t, got["data"])
	errs := got["errors"].([]any)
	require.Len(t, errs, 1)
	first := errs[0].(map[string]any)
	require.Contains(t, first["message"], `"nope"`)
	require.NotEmpty(t, first["locations"])
}

func TestSyntaxError(t *testing.T) {
	h := newTestHandler(t)
	w := post(t, h, `{"query":"{ entry("}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotEmpty(t, decode(t, w)["errors"])
}

func TestUnknownNavigationFallsBack(t *testing.T) {
	h := newTestHandler(t)
	w := post(t, h, `{"query":"{ entry(id: \"about\") { breadcrumbs(use_navigation_structure: \"none\") { id } } }"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Nil(t, decode(t, w)["errors"])
}

func TestBatch(t *testing.T) {
	h := newTestHandler(t)
	w := post(t, h, `[{"query":"{ entry(id: \"home\") { id } }"},{"query":"{ entry(id: \"about\") { id } }"}]`, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var got []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	want := []map[string]any{
		{"data": map[string]any{"entry": map[string]any{"id": "home"}}},
		{"data": map[string]any{"entry": map[string]any{"id": "about"}}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("batch mismatch (-want +got):\n%s", diff)
	}
}

func TestBadRequests(t *testing.T) {
	h := newTestHandler(t, WithMaxBodyBytes(64))
	tests := []struct {
		name   string
		method string
		ctype  string
		body   string
		status int
	}{
		{"invalid json", http.MethodPost, "application/json", `{`, http.StatusBadRequest},
		{"missing query", http.MethodPost, "application/json", `{}`, http.StatusBadRequest},
		{"empty batch", http.MethodPost, "application/json", `[]`, http.StatusBadRequest},
		{"content type", http.MethodPost, "text/plain", `{}`, http.StatusBadRequest},
		{"too large", http.MethodPost, "application/json", `{"query":"` + string(bytes.Repeat([]byte("x"), 80)) + `"}`, http.StatusRequestEntityTooLarge},
		{"method", http.MethodPut, "application/json", `{}`, http.StatusMethodNotAllowed},
		{"get without query", http.MethodGet, "", "", http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, "/graphql", bytes.NewBufferString(tc.body))
			if tc.ctype != "" {
				req.Header.Set("Content-Type", tc.ctype)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			require.Equal(t, tc.status, w.Code)
			require.NotEmpty(t, decode(t, w)["errors"])
		})
	}
}

func TestCORSAndPreflight(t *testing.T) {
	h := newTestHandler(t, WithCORS("*"))

	w := post(t, h, `{"query":"{ entry(id: \"home\") { id } }"}`, http.Header{"Origin": {"http://example.com"}})
	require.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	pre := httptest.NewRequest(http.MethodOptions, "/graphql", nil)
	pre.Header.Set("Origin", "http://example.com")
	pre.Header.Set("Access-Control-Request-Headers", "X-Test")
	pw := httptest.NewRecorder()
	h.ServeHTTP(pw, pre)
	require.Equal(t, http.StatusNoContent, pw.Code)
	require.Equal(t, "*", pw.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "X-Test", pw.Header().Get("Access-Control-Allow-Headers"))
}

func TestCORSSpecificOrigin(t *testing.T) {
	h := newTestHandler(t, WithCORS("http://allowed.test"))

	w := post(t, h, `{"query":"{ entry(id: \"home\") { id } }"}`, http.Header{"Origin": {"http://allowed.test"}})
	require.Equal(t, "http://allowed.test", w.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "Origin", w.Header().Get("Vary"))

	w = post(t, h, `{"query":"{ entry(id: \"home\") { id } }"}`, http.Header{"Origin": {"http://other.test"}})
	require.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestPretty(t *testing.T) {
	h := newTestHandler(t, WithPretty())
	w := post(t, h, `{"query":"{ entry(id: \"home\") { id } }"}`, nil)
	require.Contains(t, w.Body.String(), "\n  \"data\"")
}

func TestRequestIDAndEvents(t *testing.T) {
	var (
		httpStart   []string
		httpFinish  []int
		gqlFinishes []events.GraphQLFinish
	)
	bus := eventbus.New()
	eventbus.SubscribeTo(bus, func(_ context.Context, e events.HTTPFinish) { httpFinish = append(httpFinish, e.Status) })
	eventbus.SubscribeTo(bus, func(ctx context.Context, _ events.HTTPStart) {
		id, _ := reqid.FromContext(ctx)
		httpStart = append(httpStart, id)
	})
	eventbus.SubscribeTo(bus, func(_ context.Context, e events.GraphQLFinish) { gqlFinishes = append(gqlFinishes, e) })
	eventbus.Use(bus)
	t.Cleanup(func() { eventbus.Use(nil) })

	h := newTestHandler(t)
	w := post(t, h, `{"query":"query Home { entry(id: \"home\") { id } }"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)

	rid := w.Header().Get(RequestIDHeader)
	parsed, err := uuid.Parse(rid)
	require.NoError(t, err)
	require.Equal(t, uuid.Version(7), parsed.Version())
	require.Equal(t, []string{rid}, httpStart)
	require.Equal(t, []int{http.StatusOK}, httpFinish)

	require.Len(t, gqlFinishes, 1)
	require.Equal(t, "query", gqlFinishes[0].OperationType)
	require.Empty(t, gqlFinishes[0].Errors)

	post(t, h, `{"query":"{ nope }"}`, nil)
	require.Len(t, gqlFinishes, 2)
	require.NotEmpty(t, gqlFinishes[1].Errors)
}

func TestIntrospection(t *testing.T) {
	const body = `{"query":"{ __type(name: \"Breadcrumb\") { kind } }"}`

	w := post(t, newTestHandler(t), body, nil)
	require.Equal(t, http.StatusOK, w.Code)
	want := map[string]any{"data": map[string]any{"__type": map[string]any{"kind": "OBJECT"}}}
	if diff := cmp.Diff(want, decode(t, w)); diff != "" {
		t.Fatalf("response mismatch (-want +got):\n%s", diff)
	}

	w = post(t, newTestHandler(t, WithIntrospection(false)), body, nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode(t, w)
	require.Equal(t, map[string]any{}, got["data"])
	require.NotEmpty(t, got["errors"])
}
