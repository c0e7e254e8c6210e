// Package httpapi is a local emulator of the HippoSync REST backend.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"pkt.systems/hipposync/internal/auth"
	"pkt.systems/hipposync/internal/logx"
	"pkt.systems/hipposync/internal/validate"
	"pkt.systems/hipposync/schema"
	"pkt.systems/pslog"
)

const (
	maxJSONBody      = 1 << 20
	maxMultipartBody = 32 << 20
)

// Server serves the emulated backend.
type Server struct {
	cfg      Config
	accounts *auth.Store
	tokens   *auth.TokenIssuer
	data     *workspace
	now      func() time.Time
}

// NewServer constructs an emulator backed by the given account store and token issuer.
func NewServer(cfg Config, accounts *auth.Store, tokens *auth.TokenIssuer) *Server {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	if len(cfg.Models) == 0 {
		cfg.Models = DefaultModels
	}
	return &Server{
		cfg:      cfg,
		accounts: accounts,
		tokens:   tokens,
		data:     newWorkspace(now),
		now:      now,
	}
}

// Handler returns the routed http.Handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(withRequestLogging)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", s.handleSignup)
		r.Post("/login", s.handleLogin)
		r.Get("/verify-email", s.handleVerifyEmail)
		r.Post("/resend-verification", s.handleResend)
		r.With(s.requireAccount).Get("/me", s.handleMe)
		r.With(s.requireAccount).Put("/api-keys", s.handleUpdateAPIKeys)
		r.With(s.requireAccount).Put("/api-key", s.handleUpdateOpenAIKey)
		r.With(s.requireAccount).Delete("/api-key/{provider}", s.handleDeleteAPIKey)
		r.With(s.requireAccount).Get("/history", s.handleHistory)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.requireAccount)

		r.Get("/projects", s.handleListProjects)
		r.Post("/projects", s.handleCreateProject)
		r.Put("/projects/{projectID}", s.handleRenameProject)
		r.Delete("/projects/{projectID}", s.handleDeleteProject)
		r.Post("/projects/{projectID}/members", s.handleInviteMember)

		r.Get("/threads", s.handleListThreads)
		r.Post("/threads", s.handleCreateThread)
		r.Put("/threads/{threadID}", s.handleRenameThread)
		r.Delete("/threads/{threadID}", s.handleDeleteThread)
		r.Get("/threads/{threadID}/messages", s.handleThreadMessages)

		r.Post("/chat", s.handleChat)
		r.Post("/chat/", s.handleChat)
		r.Get("/models", s.handleModels)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeDetail(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeDetail(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})
	return r
}

// VerificationToken returns the outstanding verification token for an email.
// It stands in for reading the verification mail.
func (s *Server) VerificationToken(email string) (string, bool) {
	return s.accounts.PendingToken(email)
}

// VerificationLink builds the link that would be mailed for a token.
func (s *Server) VerificationLink(token string) string {
	base := strings.TrimSpace(s.cfg.VerifyLinkBase)
	if base == "" {
		return "?token=" + url.QueryEscape(token)
	}
	u, err := url.Parse(base)
	if err != nil {
		return base + "?token=" + url.QueryEscape(token)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

type accountKey struct{}

func accountFromContext(ctx context.Context) (auth.Account, bool) {
	account, ok := ctx.Value(accountKey{}).(auth.Account)
	return account, ok
}

func (s *Server) requireAccount(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeDetail(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		id, err := s.tokens.Parse(strings.TrimSpace(token))
		if err != nil {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}
		account, found := s.accounts.Lookup(id)
		if !found {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}
		if info := requestInfoFrom(r); info != nil {
			info.accountID = account.ID
		}
		ctx := context.WithValue(r.Context(), accountKey{}, account)
		ctx = logx.ContextWithUserLogger(ctx, pslog.Ctx(ctx).With("user", account.Email), schema.UserID(account.Email))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func mustAccount(r *http.Request) auth.Account {
	account, _ := accountFromContext(r.Context())
	return account
}

func decodeJSON(r *http.Request, target any) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	return decoder.Decode(target)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	data, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeDetail writes the {"detail": "..."} error shape.
func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// writeValidation writes the list-shaped detail used for field validation failures.
func writeValidation(w http.ResponseWriter, msgs ...string) {
	items := make([]map[string]string, 0, len(msgs))
	for _, msg := range msgs {
		items = append(items, map[string]string{"msg": msg, "type": "value_error"})
	}
	writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": items})
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, detail := statusOf(err)
	if status >= http.StatusInternalServerError {
		pslog.Ctx(r.Context()).Error("emulator request failed", "err", err)
	}
	writeDetail(w, status, detail)
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email             string  `json:"email"`
		Password          string  `json:"password"`
		Name              *string `json:"name"`
		Occupation        *string `json:"occupation"`
		LocationCity      *string `json:"location_city"`
		LocationState     *string `json:"location_state"`
		LocationCountry   *string `json:"location_country"`
		LocationLatitude  *string `json:"location_latitude"`
		LocationLongitude *string `json:"location_longitude"`
		LocationTimezone  *string `json:"location_timezone"`
		LocationFormatted *string `json:"location_formatted"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		writeValidation(w, "Invalid JSON body")
		return
	}
	var msgs []string
	if res := validate.ValidateEmail(payload.Email); !res.Valid {
		msgs = append(msgs, res.Errors...)
	}
	if res := validate.ValidatePassword(payload.Password); !res.Valid {
		msgs = append(msgs, res.Errors...)
	}
	if len(payload.Password) > schema.MaxPasswordLength {
		msgs = append(msgs, "Password must be at most 128 characters")
	}
	if len(msgs) > 0 {
		writeValidation(w, msgs...)
		return
	}
	profile := schema.SignupProfile{
		Credentials: schema.Credentials{Email: payload.Email, Password: payload.Password},
		Name:        deref(payload.Name),
		Occupation:  deref(payload.Occupation),
	}
	if payload.LocationCity != nil {
		profile.Location = &schema.LocationInfo{
			City:      deref(payload.LocationCity),
			State:     deref(payload.LocationState),
			Country:   deref(payload.LocationCountry),
			Latitude:  deref(payload.LocationLatitude),
			Longitude: deref(payload.LocationLongitude),
			Timezone:  deref(payload.LocationTimezone),
			Formatted: deref(payload.LocationFormatted),
		}
	}
	account, token, err := s.accounts.Register(profile)
	if errors.Is(err, auth.ErrEmailTaken) {
		writeDetail(w, http.StatusBadRequest, "Email already registered")
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	log := pslog.Ctx(r.Context()).With("account", account.ID)
	if s.cfg.AutoVerify {
		if err := s.accounts.MarkVerified(account.Email); err != nil {
			writeError(w, r, err)
			return
		}
		account.Verified = true
		log.Info("account auto-verified")
	} else {
		s.deliverVerification(r.Context(), account.Email, token)
	}
	writeJSON(w, http.StatusOK, account.User())
}

// deliverVerification logs the verification link in place of sending mail.
func (s *Server) deliverVerification(ctx context.Context, email, token string) {
	if token == "" {
		return
	}
	pslog.Ctx(ctx).Info("verification mail", "to", email, "link", s.VerificationLink(token))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := r.ParseForm(); err != nil {
		writeValidation(w, "Invalid form body")
		return
	}
	username := strings.TrimSpace(r.PostForm.Get("username"))
	password := r.PostForm.Get("password")
	if username == "" || password == "" {
		writeValidation(w, "username and password are required")
		return
	}
	account, err := s.accounts.Authenticate(username, password)
	switch {
	case errors.Is(err, auth.ErrNotVerified):
		writeDetail(w, http.StatusForbidden, "Please verify your email before logging in. Check your inbox for the verification link.")
		return
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeDetail(w, http.StatusBadRequest, "Incorrect email or password")
		return
	case err != nil:
		writeError(w, r, err)
		return
	}
	token, err := s.tokens.Issue(account.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	pslog.Ctx(r.Context()).Info("account logged in", "account", account.ID)
	writeJSON(w, http.StatusOK, schema.Token{AccessToken: token, TokenType: "bearer"})
}

func (s *Server) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		writeValidation(w, "Field required: token")
		return
	}
	account, status, err := s.accounts.Verify(token)
	switch {
	case errors.Is(err, auth.ErrInvalidVerifyToken):
		writeDetail(w, http.StatusBadRequest, "Invalid verification token. Please request a new verification email.")
		return
	case errors.Is(err, auth.ErrVerifyTokenExpired):
		writeDetail(w, http.StatusBadRequest, "Verification token expired. Please request a new verification email.")
		return
	case err != nil:
		writeError(w, r, err)
		return
	}
	if status == schema.VerifyStatusAlreadyVerified {
		writeJSON(w, http.StatusOK, schema.VerifyResponse{Status: status, Message: "Email already verified. You can login now!"})
		return
	}
	writeJSON(w, http.StatusOK, schema.VerifyResponse{
		Status:  status,
		Message: "Email verified successfully! You can now login and use all features.",
		Email:   account.Email,
	})
}

func (s *Server) handleResend(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" {
		var payload struct {
			Email string `json:"email"`
		}
		_ = decodeJSON(r, &payload)
		email = strings.TrimSpace(payload.Email)
	}
	if email == "" {
		writeValidation(w, "Field required: email")
		return
	}
	status, token := s.accounts.Resend(email)
	switch status {
	case schema.VerifyStatusAlreadyVerified:
		writeJSON(w, http.StatusOK, schema.VerifyResponse{Status: status, Message: "Email already verified. You can login now!"})
	default:
		s.deliverVerification(r.Context(), email, token)
		msg := "If this email is registered, a verification link has been sent."
		if token != "" {
			msg = "Verification email sent. Please check your inbox."
		}
		writeJSON(w, http.StatusOK, schema.VerifyResponse{Status: schema.VerifyStatusSent, Message: msg})
	}
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, mustAccount(r).User())
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.data.listProjects(mustAccount(r).ID))
}

type projectBody struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

func (b projectBody) name() (string, bool) {
	name := strings.TrimSpace(b.Name)
	return name, name != "" && len(name) <= 100
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var body projectBody
	if err := decodeJSON(r, &body); err != nil {
		writeValidation(w, "Invalid JSON body")
		return
	}
	name, ok := body.name()
	if !ok {
		writeValidation(w, "name must be between 1 and 100 characters")
		return
	}
	project := s.data.createProject(mustAccount(r).ID, name, deref(body.Description))
	logx.WithProject(pslog.Ctx(r.Context()), &project.ID).Info("project created")
	writeJSON(w, http.StatusOK, project)
}

func (s *Server) handleRenameProject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "projectID")
	if !ok {
		writeValidation(w, "invalid project id")
		return
	}
	var body projectBody
	if err := decodeJSON(r, &body); err != nil {
		writeValidation(w, "Invalid JSON body")
		return
	}
	name, ok := body.name()
	if !ok {
		writeValidation(w, "name must be between 1 and 100 characters")
		return
	}
	project, err := s.data.renameProject(schema.ProjectID(id), mustAccount(r).ID, name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "projectID")
	if !ok {
		writeValidation(w, "invalid project id")
		return
	}
	if err := s.data.deleteProject(schema.ProjectID(id), mustAccount(r).ID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleInviteMember(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "projectID")
	if !ok {
		writeValidation(w, "invalid project id")
		return
	}
	var body struct {
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeValidation(w, "Invalid JSON body")
		return
	}
	role, err := schema.NormalizeProjectRole(body.Role)
	if err != nil {
		writeValidation(w, "Role must be: owner, admin, member, or viewer")
		return
	}
	member, found := s.accounts.LookupEmail(body.Email)
	if !found {
		// Membership is checked before revealing whether the invitee exists.
		if err := s.data.checkMember(schema.ProjectID(id), mustAccount(r).ID); err != nil {
			writeError(w, r, err)
			return
		}
		writeDetail(w, http.StatusNotFound, "User not found")
		return
	}
	status, err := s.data.addMember(schema.ProjectID(id), mustAccount(r).ID, member.ID, role)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]schema.InviteStatus{"status": status})
}

func (s *Server) handleListThreads(w http.ResponseWriter, r *http.Request) {
	var projectID *schema.ProjectID
	if raw := strings.TrimSpace(r.URL.Query().Get("project_id")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeValidation(w, "project_id must be an integer")
			return
		}
		projectID = ptr(schema.ProjectID(id))
	}
	threads, err := s.data.listThreads(mustAccount(r).ID, projectID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, threads)
}

func (s *Server) handleCreateThread(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title     *string           `json:"title"`
		ProjectID *schema.ProjectID `json:"project_id"`
	}
	if err := decodeJSON(r, &body); err != nil && !errors.Is(err, io.EOF) {
		writeValidation(w, "Invalid JSON body")
		return
	}
	title := strings.TrimSpace(deref(body.Title))
	if title == "" {
		title = schema.DefaultThreadTitle
	}
	thread, err := s.data.createThread(mustAccount(r).ID, title, body.ProjectID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	logx.WithUserThread(r.Context(), schema.UserID(mustAccount(r).Email), thread.ID).Info("thread created")
	writeJSON(w, http.StatusOK, thread)
}

func (s *Server) handleRenameThread(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "threadID")
	if !ok {
		writeValidation(w, "invalid thread id")
		return
	}
	var body struct {
		Title string `json:"title"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeValidation(w, "Invalid JSON body")
		return
	}
	title := strings.TrimSpace(body.Title)
	if title == "" {
		writeValidation(w, "title is required")
		return
	}
	thread, err := s.data.renameThread(schema.ThreadID(id), mustAccount(r).ID, title)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "renamed", "title": thread.Title})
}

func (s *Server) handleDeleteThread(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "threadID")
	if !ok {
		writeValidation(w, "invalid thread id")
		return
	}
	if err := s.data.deleteThread(schema.ThreadID(id), mustAccount(r).ID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleThreadMessages(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "threadID")
	if !ok {
		writeValidation(w, "invalid thread id")
		return
	}
	records, err := s.data.threadMessages(schema.ThreadID(id), mustAccount(r).ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleModels(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.cfg.Models)
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(*value)
}

func ptr[T any](value T) *T {
	return &value
}
