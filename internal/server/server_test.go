package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/curator/pkg/catalog"
	"github.com/matzehuels/curator/pkg/curate"
	"github.com/matzehuels/curator/pkg/errors"
)

type stubRegistry struct{}

func (stubRegistry) Search(ctx context.Context, query string, size int) ([]string, error) {
	if query == "broken" {
		return nil, errors.New(errors.ErrCodeFetchFailed, "registry unavailable")
	}
	return []string{"left-pad", "missing"}, nil
}

func (stubRegistry) Fetch(ctx context.Context, name, version string) (catalog.Record, error) {
	switch {
	case name == "missing", version == "9.9.9":
		return catalog.Record{}, errors.New(errors.ErrCodeFetchFailed, "fetch %s", name)
	case version == "":
		version = "1.3.0"
	}
	return catalog.NewRecord(name, version, "", "", "WTFPL", "", ""), nil
}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "curator_test_total", Help: "test"}))

	s := New(func() *curate.Curator {
		return curate.New(stubRegistry{}, curate.Options{Debounce: 10 * time.Millisecond})
	}, Options{Gatherer: reg})
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		s.Close()
	})
	return s, ts
}

func do(t *testing.T, method, url, contentType string, body io.Reader) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, body)
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func doJSON(t *testing.T, method, url, body string) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	return do(t, method, url, "application/json", r)
}

func createSession(t *testing.T, ts *httptest.Server) string {
	t.Helper()
	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/sessions", "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var out struct{ ID string }
	require.NoError(t, json.Unmarshal(body, &out))
	require.NotEmpty(t, out.ID)
	return ts.URL + "/api/sessions/" + out.ID
}

func decodeError(t *testing.T, body []byte) errorBody {
	t.Helper()
	var e errorBody
	require.NoError(t, json.Unmarshal(body, &e))
	return e
}

func TestHealthAndMetrics(t *testing.T) {
	_, ts := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok","sessions":0}`, string(body))

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/metrics", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "curator_test_total")

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/version", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"version"`)
}

func TestSessionLifecycle(t *testing.T) {
	s, ts := newTestServer(t)
	base := createSession(t, ts)
	assert.Equal(t, 1, s.Len())

	resp, _ := doJSON(t, http.MethodDelete, base, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, 0, s.Len())

	resp, body := doJSON(t, http.MethodGet, base+"/table", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, errors.ErrCodeSessionNotFound, decodeError(t, body).Code)

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/sessions/not-a-uuid/table", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCommitSearch(t *testing.T) {
	_, ts := newTestServer(t)
	base := createSession(t, ts)

	resp, body := doJSON(t, http.MethodPut, base+"/search", `{"query":"left-pad"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"loading":true`)

	var snap searchBody
	require.Eventually(t, func() bool {
		_, body := doJSON(t, http.MethodGet, base+"/search", "")
		snap = searchBody{}
		return json.Unmarshal(body, &snap) == nil && !snap.Loading
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, "left-pad", snap.Query)
	assert.Equal(t, []string{"left-pad", "missing"}, snap.Candidates)
	require.Len(t, snap.Records, 1)
	assert.Equal(t, "WTFPL", snap.Records[0].Licence)
	assert.Empty(t, snap.Error)
}

func TestSearchFailureIsReported(t *testing.T) {
	_, ts := newTestServer(t)
	base := createSession(t, ts)

	doJSON(t, http.MethodPut, base+"/search", `{"query":"broken"}`)
	require.Eventually(t, func() bool {
		_, body := doJSON(t, http.MethodGet, base+"/search", "")
		var snap searchBody
		return json.Unmarshal(body, &snap) == nil && !snap.Loading && snap.Error != ""
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSearchInputIsDebounced(t *testing.T) {
	_, ts := newTestServer(t)
	base := createSession(t, ts)

	for _, text := range []string{"l", "le", "left"} {
		resp, _ := doJSON(t, http.MethodPut, base+"/search/input", `{"text":"`+text+`"}`)
		require.Equal(t, http.StatusAccepted, resp.StatusCode)
	}

	require.Eventually(t, func() bool {
		_, body := doJSON(t, http.MethodGet, base+"/search", "")
		var snap searchBody
		return json.Unmarshal(body, &snap) == nil && snap.Query == "left" && !snap.Loading
	}, 2*time.Second, 10*time.Millisecond)
}

func TestAddAndCurate(t *testing.T) {
	_, ts := newTestServer(t)
	base := createSession(t, ts)

	resp, body := doJSON(t, http.MethodPost, base+"/table", `{"name":"lodash","version":"4.17.20"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var added addResponse
	require.NoError(t, json.Unmarshal(body, &added))
	assert.True(t, added.Added)
	assert.Equal(t, "4.17.20", added.Record.Version)
	assert.Equal(t, catalog.StatusPending, added.Record.Status)

	// Same name again: first write wins.
	resp, body = doJSON(t, http.MethodPost, base+"/table", `{"name":"lodash"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &added))
	assert.False(t, added.Added)
	assert.Equal(t, "4.17.20", added.Record.Version)

	resp, body = doJSON(t, http.MethodPost, base+"/table", `{"name":"lodash","version":"9.9.9"}`)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, errors.ErrCodeFetchFailed, decodeError(t, body).Code)

	resp, body = doJSON(t, http.MethodPost, base+"/table/lodash/accept", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"status":"accepted"`)

	resp, body = doJSON(t, http.MethodPost, base+"/table/lodash/reject", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, errors.ErrCodeInvalidTransition, decodeError(t, body).Code)

	resp, body = doJSON(t, http.MethodPost, base+"/table/react/accept", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, errors.ErrCodePackageNotFound, decodeError(t, body).Code)

	resp, _ = doJSON(t, http.MethodPost, base+"/table/lodash/archive", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = doJSON(t, http.MethodGet, base+"/table", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var table tableBody
	require.NoError(t, json.Unmarshal(body, &table))
	require.Len(t, table.Records, 1)
	assert.Equal(t, 1, table.Counts[catalog.StatusAccepted])
}

func TestScopedPackageStatus(t *testing.T) {
	_, ts := newTestServer(t)
	base := createSession(t, ts)

	resp, _ := doJSON(t, http.MethodPost, base+"/table", `{"name":"@types/node"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := doJSON(t, http.MethodPost, base+"/table/@types%2Fnode/reject", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"status":"rejected"`)
}

func TestAddRejectsBadRequests(t *testing.T) {
	_, ts := newTestServer(t)
	base := createSession(t, ts)

	tests := []string{`{}`, `not json`, `{"name":"x","extra":1}`}
	for _, body := range tests {
		resp, data := doJSON(t, http.MethodPost, base+"/table", body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
		assert.Equal(t, errors.ErrCodeInvalidInput, decodeError(t, data).Code, body)
	}
}

func TestImportRawBody(t *testing.T) {
	_, ts := newTestServer(t)
	base := createSession(t, ts)

	resp, body := do(t, http.MethodPost, base+"/imports?name=package.json", "application/json",
		strings.NewReader(`{"dependencies":{"react":"^18.2.0","missing":"1.0.0"}}`))
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var out importResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, 2, out.Entries)
	assert.Equal(t, 1, out.Added)
	require.Len(t, out.Records, 1)
	assert.Equal(t, "18.2.0", out.Records[0].Version)
	require.Len(t, out.Failed, 1)
	assert.Equal(t, "missing", out.Failed[0].Name)
}

func TestImportMultipart(t *testing.T) {
	_, ts := newTestServer(t)
	base := createSession(t, ts)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "package.json")
	require.NoError(t, err)
	io.WriteString(part, `{"dependencies":{"left-pad":"1.3.0"}}`)
	require.NoError(t, mw.Close())

	resp, body := do(t, http.MethodPost, base+"/imports", mw.FormDataContentType(), &buf)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Contains(t, string(body), `"file":"package.json"`)
	assert.Contains(t, string(body), `"added":1`)
}

func TestImportErrors(t *testing.T) {
	_, ts := newTestServer(t)
	base := createSession(t, ts)

	tests := []struct {
		name        string
		contentType string
		body        string
		status      int
		code        errors.Code
	}{
		{"no dependencies", "application/json", `{}`, http.StatusUnprocessableEntity, errors.ErrCodeNoDependencies},
		{"malformed", "application/json", `{"dependencies":`, http.StatusBadRequest, errors.ErrCodeMalformedManifest},
		{"unsupported", "text/csv", `a,b`, http.StatusUnsupportedMediaType, errors.ErrCodeUnsupportedType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, http.MethodPost, base+"/imports", tt.contentType, strings.NewReader(tt.body))
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.code, decodeError(t, body).Code)
		})
	}

	_, body := doJSON(t, http.MethodGet, base+"/table", "")
	assert.Contains(t, string(body), `"records":[]`)
}

func TestUnknownRoute(t *testing.T) {
	_, ts := newTestServer(t)
	resp, body := doJSON(t, http.MethodGet, ts.URL+"/nope", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, errors.ErrCodeNotFound, decodeError(t, body).Code)
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	s := New(func() *curate.Curator { return curate.New(stubRegistry{}, curate.Options{}) }, Options{Gatherer: prometheus.NewRegistry()})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx, "127.0.0.1:0") }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("ListenAndServe did not return after cancel")
	}
}
