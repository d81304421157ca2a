package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lockerd/lockerd"
	"github.com/lockerd/lockerd/auth"
	"github.com/lockerd/lockerd/credstore"
	lockerdhttp "github.com/lockerd/lockerd/http"
	"github.com/lockerd/lockerd/session"
)

// fakeObjectStore is an in-memory ObjectStore recording every backend call.
type fakeObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	calls   int
	fail    bool
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: make(map[string][]byte)}
}

func (f *fakeObjectStore) touch() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail {
		return errors.New("backend unavailable")
	}
	return nil
}

func (f *fakeObjectStore) Put(_ context.Context, key, _ string, content io.Reader) error {
	if err := f.touch(); err != nil {
		return err
	}
	data, err := io.ReadAll(content)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.objects[key] = data
	f.mu.Unlock()
	return nil
}

func (f *fakeObjectStore) List(_ context.Context, prefix string) ([]lockerd.Object, error) {
	if err := f.touch(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	var objects []lockerd.Object
	for key, data := range f.objects {
		if strings.HasPrefix(key, prefix) {
			objects = append(objects, lockerd.Object{Key: key, Size: int64(len(data))})
		}
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}

func (f *fakeObjectStore) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	if err := f.touch(); err != nil {
		return "", err
	}
	// Real backends happily presign keys that do not exist; mirror that.
	return "https://storage.test/" + key + "?signed", nil
}

func (f *fakeObjectStore) Delete(_ context.Context, key string) error {
	if err := f.touch(); err != nil {
		return err
	}
	f.mu.Lock()
	delete(f.objects, key)
	f.mu.Unlock()
	return nil
}

func (f *fakeObjectStore) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type testServer struct {
	router  http.Handler
	storage *fakeObjectStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	storage := newFakeObjectStore()

	handler := lockerdhttp.NewHandler(
		&lockerdhttp.HandlerConfig{},
		auth.NewAuthenticator(credstore.NewMemStore()),
		session.NewMemoryStore(time.Hour),
		session.NewCookieCodec("test-secret"),
		lockerd.NewService(storage),
	)

	return &testServer{router: handler.Router(), storage: storage}
}

func (s *testServer) do(t *testing.T, method, path string, body io.Reader, contentType string, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) register(t *testing.T, username, password string) *http.Cookie {
	t.Helper()

	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	rec := s.do(t, "POST", "/register", bytes.NewReader(body), "application/json", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	return sessionCookie(t, rec)
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()

	for _, c := range rec.Result().Cookies() {
		if c.Name == session.DefaultCookieName && c.Value != "" {
			return c
		}
	}
	t.Fatal("no session cookie in response")
	return nil
}

func multipartBody(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	return &buf, w.FormDataContentType()
}

func decodeStatus(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var out map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func TestRoot_NoAuthRequired(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	rec := srv.do(t, "GET", "/", nil, "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "message")
}

func TestRegister_EstablishesSession(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	cookie := srv.register(t, "alice", "pw1")

	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)

	// The new session gates file routes immediately.
	rec := srv.do(t, "GET", "/files", nil, "", cookie)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRegister_DuplicateUsername(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	srv.register(t, "alice", "pw1")

	body, _ := json.Marshal(map[string]string{"username": "alice", "password": "pw2"})
	rec := srv.do(t, "POST", "/register", bytes.NewReader(body), "application/json", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	out := decodeStatus(t, rec)
	assert.Equal(t, false, out["success"])
	assert.NotEmpty(t, out["error"])
}

func TestRegister_MissingFields(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	for _, body := range []string{`{}`, `{"username":"alice"}`, `{"password":"pw"}`, `not json`} {
		rec := srv.do(t, "POST", "/register", strings.NewReader(body), "application/json", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %q", body)
	}
}

func TestLogin_GoodAndBadCredentials(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	srv.register(t, "alice", "pw1")

	body, _ := json.Marshal(map[string]string{"username": "alice", "password": "pw1"})
	rec := srv.do(t, "POST", "/login", bytes.NewReader(body), "application/json", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeStatus(t, rec)["success"])
	sessionCookie(t, rec)

	body, _ = json.Marshal(map[string]string{"username": "alice", "password": "wrong"})
	rec = srv.do(t, "POST", "/login", bytes.NewReader(body), "application/json", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	out := decodeStatus(t, rec)
	assert.Equal(t, false, out["success"])
	assert.NotContains(t, out, "error")
}

func TestLogout_DestroysSession(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	cookie := srv.register(t, "alice", "pw1")

	rec := srv.do(t, "POST", "/logout", nil, "", cookie)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeStatus(t, rec)["success"])

	rec = srv.do(t, "GET", "/files", nil, "", cookie)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogout_WithoutSessionStillSucceeds(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	rec := srv.do(t, "POST", "/logout", nil, "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeStatus(t, rec)["success"])
}

func TestGatedRoutes_RejectWithoutTouchingBackend(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	routes := []struct {
		method string
		path   string
	}{
		{"POST", "/upload"},
		{"GET", "/files"},
		{"GET", "/file/a.txt"},
		{"DELETE", "/file/a.txt"},
	}

	for _, route := range routes {
		rec := srv.do(t, route.method, route.path, nil, "", nil)

		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", route.method, route.path)
		out := decodeStatus(t, rec)
		assert.Equal(t, false, out["success"])
		assert.Equal(t, "Login required", out["error"])
	}

	assert.Zero(t, srv.storage.callCount(), "gate must short-circuit before any storage call")
}

func TestGatedRoutes_RejectTamperedCookie(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	cookie := srv.register(t, "alice", "pw1")

	forged := &http.Cookie{Name: cookie.Name, Value: cookie.Value + "x"}
	rec := srv.do(t, "GET", "/files", nil, "", forged)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUpload_RequiresMultipartFileField(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	cookie := srv.register(t, "alice", "pw1")

	rec := srv.do(t, "POST", "/upload", strings.NewReader("raw bytes"), "text/plain", cookie)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEndToEnd_UploadListDownloadDelete(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	cookie := srv.register(t, "alice", "pw1")

	// Upload a 10-byte file.
	body, contentType := multipartBody(t, "a.txt", []byte("0123456789"))
	rec := srv.do(t, "POST", "/upload", body, contentType, cookie)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, decodeStatus(t, rec)["success"])

	// List shows one entry ending in "-a.txt".
	rec = srv.do(t, "GET", "/files", nil, "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	var names []string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&names))
	require.Len(t, names, 1)
	assert.True(t, strings.HasSuffix(names[0], "-a.txt"), names[0])

	// Download link is non-null.
	rec = srv.do(t, "GET", "/file/"+names[0], nil, "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	var link struct {
		URL *string `json:"url"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&link))
	require.NotNil(t, link.URL)
	assert.Contains(t, *link.URL, names[0])

	// Delete, then the listing is empty.
	rec = srv.do(t, "DELETE", "/file/"+names[0], nil, "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeStatus(t, rec)["success"])

	rec = srv.do(t, "GET", "/files", nil, "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	names = nil
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&names))
	assert.Empty(t, names)
}

func TestFileRoutes_PercentInFilename(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	cookie := srv.register(t, "alice", "pw1")

	// A literal percent escape in the filename itself. The stored name
	// round-trips through list, link, and delete without being decoded a
	// second time on the way back in.
	body, contentType := multipartBody(t, "a%20b.txt", []byte("x"))
	rec := srv.do(t, "POST", "/upload", body, contentType, cookie)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = srv.do(t, "GET", "/files", nil, "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	var names []string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&names))
	require.Len(t, names, 1)
	require.True(t, strings.HasSuffix(names[0], "-a%20b.txt"), names[0])

	escaped := url.PathEscape(names[0])

	rec = srv.do(t, "GET", "/file/"+escaped, nil, "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	var link struct {
		URL *string `json:"url"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&link))
	require.NotNil(t, link.URL)
	assert.Contains(t, *link.URL, names[0])

	rec = srv.do(t, "DELETE", "/file/"+escaped, nil, "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeStatus(t, rec)["success"])

	// The delete must have removed the real object, not a mangled key.
	rec = srv.do(t, "GET", "/files", nil, "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	names = nil
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&names))
	assert.Empty(t, names)
}

func TestFileRoutes_InvalidEscapeInFilename(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	cookie := srv.register(t, "alice", "pw1")

	// "100%.txt" is a valid filename but not a valid percent escape.
	body, contentType := multipartBody(t, "100%.txt", []byte("x"))
	rec := srv.do(t, "POST", "/upload", body, contentType, cookie)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = srv.do(t, "GET", "/files", nil, "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	var names []string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&names))
	require.Len(t, names, 1)

	escaped := url.PathEscape(names[0])

	rec = srv.do(t, "GET", "/file/"+escaped, nil, "", cookie)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = srv.do(t, "DELETE", "/file/"+escaped, nil, "", cookie)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = srv.do(t, "GET", "/files", nil, "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	names = nil
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&names))
	assert.Empty(t, names)
}

func TestIsolation_UsersNeverSeeEachOthersFiles(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	aliceCookie := srv.register(t, "alice", "pw1")
	bobCookie := srv.register(t, "bob", "pw2")

	body, contentType := multipartBody(t, "secret.txt", []byte("alice only"))
	rec := srv.do(t, "POST", "/upload", body, contentType, aliceCookie)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = srv.do(t, "GET", "/files", nil, "", bobCookie)
	require.Equal(t, http.StatusOK, rec.Code)

	var names []string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&names))
	assert.Empty(t, names, "bob must not see alice's files")
}

func TestFiles_BackendFailureDegradesToEmptyArray(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	cookie := srv.register(t, "alice", "pw1")

	srv.storage.fail = true

	rec := srv.do(t, "GET", "/files", nil, "", cookie)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func TestFileLink_BackendFailureDegradesToNullURL(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	cookie := srv.register(t, "alice", "pw1")

	srv.storage.fail = true

	rec := srv.do(t, "GET", "/file/a.txt", nil, "", cookie)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var link struct {
		URL *string `json:"url"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&link))
	assert.Nil(t, link.URL)
}

func TestUploadAndDelete_BackendFailureIsExplicit(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	cookie := srv.register(t, "alice", "pw1")

	srv.storage.fail = true

	body, contentType := multipartBody(t, "a.txt", []byte("x"))
	rec := srv.do(t, "POST", "/upload", body, contentType, cookie)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, false, decodeStatus(t, rec)["success"])

	rec = srv.do(t, "DELETE", "/file/a.txt", nil, "", cookie)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, false, decodeStatus(t, rec)["success"])
}
