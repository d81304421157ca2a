package http

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/lockerd/lockerd"
	"github.com/lockerd/lockerd/auth"
	"github.com/lockerd/lockerd/session"
)

type CORSConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

// HandlerConfig holds the HTTP layer configuration.
type HandlerConfig struct {
	CookieName    string
	MaxUploadSize int64 // bytes, 0 means no limit
	CORS          CORSConfig
}

// Handler provides the HTTP surface: register, login, logout, and the
// session-gated file operations.
type Handler struct {
	config   HandlerConfig
	auth     *auth.Authenticator
	sessions session.Store
	codec    *session.CookieCodec
	files    *lockerd.Service
}

// NewHandler creates a Handler wiring the authenticator, session store,
// cookie codec, and file operations facade.
func NewHandler(config *HandlerConfig, authn *auth.Authenticator, sessions session.Store, codec *session.CookieCodec, files *lockerd.Service) *Handler {
	h := &Handler{
		config:   *config,
		auth:     authn,
		sessions: sessions,
		codec:    codec,
		files:    files,
	}
	if h.config.CookieName == "" {
		h.config.CookieName = session.DefaultCookieName
	}
	return h
}

// Router returns an http.Handler with all routes configured. File routes
// pass the session gate; register, login, logout, and the root do not.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestLogger)

	if h.config.CORS.Enabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   h.config.CORS.AllowedOrigins,
			AllowedMethods:   h.config.CORS.AllowedMethods,
			AllowedHeaders:   h.config.CORS.AllowedHeaders,
			ExposedHeaders:   h.config.CORS.ExposedHeaders,
			AllowCredentials: h.config.CORS.AllowCredentials,
			MaxAge:           h.config.CORS.MaxAge,
		}))
	}

	r.Get("/", h.handleRoot)
	r.Get("/healthz", h.handleHealth)
	r.Post("/register", h.handleRegister)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(RequireSession(h.sessions, h.codec, h.config.CookieName))
		r.Post("/upload", h.handleUpload)
		r.Get("/files", h.handleFiles)
		r.Get("/file/{name}", h.handleFileLink)
		r.Delete("/file/{name}", h.handleFileDelete)
	})

	return r
}

func (h *Handler) handleRoot(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"message": "lockerd file storage API"})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	req, err := decodeCredentials(r)
	if err != nil {
		WriteFailure(w, http.StatusBadRequest, "username and password are required")
		return
	}

	identity, err := h.auth.Register(r.Context(), req.Username, req.Password)
	switch {
	case errors.Is(err, lockerd.ErrAlreadyExists):
		WriteFailure(w, http.StatusBadRequest, "username already taken")
		return
	case errors.Is(err, lockerd.ErrInvalidInput):
		WriteFailure(w, http.StatusBadRequest, "invalid username or password")
		return
	case err != nil:
		WriteFailure(w, http.StatusInternalServerError, "registration failed")
		return
	}

	h.establishSession(w, r, identity)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	req, err := decodeCredentials(r)
	if err != nil {
		WriteFailure(w, http.StatusUnauthorized, "")
		return
	}

	identity, err := h.auth.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		WriteFailure(w, http.StatusUnauthorized, "")
		return
	}

	h.establishSession(w, r, identity)
}

// establishSession creates a server-side session for identity and sets the
// signed session cookie.
func (h *Handler) establishSession(w http.ResponseWriter, r *http.Request, identity string) {
	sess, err := h.sessions.Create(r.Context(), identity)
	if err != nil {
		WriteFailure(w, http.StatusInternalServerError, "session creation failed")
		return
	}

	ttl := sess.ExpiresAt.Sub(sess.CreatedAt)
	http.SetCookie(w, session.NewCookie(h.config.CookieName, h.codec.Encode(sess.Token), ttl))
	WriteSuccess(w)
}

// handleLogout destroys the session if a valid cookie is presented and
// always reports success.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(h.config.CookieName); err == nil {
		if token, err := h.codec.Decode(cookie.Value); err == nil {
			_ = h.sessions.Destroy(r.Context(), token)
		}
	}

	http.SetCookie(w, session.ExpiredCookie(h.config.CookieName))
	WriteSuccess(w)
}

// fileParam extracts the {name} route parameter. chi hands back the decoded
// form except when the URL carried a RawPath (escapes that do not round-trip,
// such as %2F); only then is the value still escaped and in need of a
// PathUnescape. Unescaping unconditionally would corrupt filenames that
// themselves contain a percent sign.
func fileParam(r *http.Request) (string, error) {
	name := chi.URLParam(r, "name")
	if r.URL.RawPath == "" {
		return name, nil
	}
	return url.PathUnescape(name)
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		WriteFailure(w, http.StatusUnauthorized, "Login required")
		return
	}

	if h.config.MaxUploadSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.config.MaxUploadSize)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		WriteFailure(w, http.StatusBadRequest, "multipart file field required")
		return
	}
	defer func() { _ = file.Close() }()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if _, err := h.files.Upload(r.Context(), identity, header.Filename, contentType, file); err != nil {
		if errors.Is(err, lockerd.ErrInvalidInput) {
			WriteFailure(w, http.StatusBadRequest, "invalid filename")
			return
		}
		WriteFailure(w, http.StatusInternalServerError, "upload failed")
		return
	}

	WriteSuccess(w)
}

// handleFiles returns the user's display names. A backend failure degrades
// to an empty array rather than an error payload.
func (h *Handler) handleFiles(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		WriteFailure(w, http.StatusUnauthorized, "Login required")
		return
	}

	names, err := h.files.List(r.Context(), identity)
	if err != nil {
		WriteJSON(w, http.StatusInternalServerError, []string{})
		return
	}

	WriteJSON(w, http.StatusOK, names)
}

// handleFileLink returns a presigned download URL. A backend failure
// degrades to a null URL rather than an error payload.
func (h *Handler) handleFileLink(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		WriteFailure(w, http.StatusUnauthorized, "Login required")
		return
	}

	name, err := fileParam(r)
	if err != nil {
		WriteJSON(w, http.StatusInternalServerError, linkResponse{})
		return
	}

	link, err := h.files.DownloadLink(r.Context(), identity, name)
	if err != nil {
		WriteJSON(w, http.StatusInternalServerError, linkResponse{})
		return
	}

	WriteJSON(w, http.StatusOK, linkResponse{URL: &link})
}

func (h *Handler) handleFileDelete(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		WriteFailure(w, http.StatusUnauthorized, "Login required")
		return
	}

	name, err := fileParam(r)
	if err != nil {
		WriteFailure(w, http.StatusInternalServerError, "")
		return
	}

	if err := h.files.Delete(r.Context(), identity, name); err != nil {
		WriteFailure(w, http.StatusInternalServerError, "")
		return
	}

	WriteSuccess(w)
}
