package httpapi

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"pkt.systems/hipposync/internal/auth"
	"pkt.systems/hipposync/schema"
)

type emulator struct {
	t      *testing.T
	server *Server
	http   *httptest.Server
}

func newEmulator(t *testing.T, cfg Config) *emulator {
	t.Helper()
	tokens, err := auth.NewTokenIssuer("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("token issuer: %v", err)
	}
	server := NewServer(cfg, auth.NewStore(auth.StoreConfig{BcryptCost: bcrypt.MinCost}), tokens)
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return &emulator{t: t, server: server, http: ts}
}

func (e *emulator) do(method, path, token, contentType string, body []byte) (int, map[string]any, []byte) {
	e.t.Helper()
	req, err := http.NewRequest(method, e.http.URL+path, bytes.NewReader(body))
	if err != nil {
		e.t.Fatalf("new request: %v", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		e.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	var obj map[string]any
	_ = json.Unmarshal(buf.Bytes(), &obj)
	return resp.StatusCode, obj, buf.Bytes()
}

func (e *emulator) json(method, path, token string, payload any) (int, map[string]any, []byte) {
	e.t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		e.t.Fatalf("marshal: %v", err)
	}
	return e.do(method, path, token, "application/json", data)
}

func (e *emulator) signupAndLogin(email string) string {
	e.t.Helper()
	status, _, body := e.json(http.MethodPost, "/auth/signup", "", map[string]string{"email": email, "password": "Passw0rd!"})
	if status != http.StatusOK {
		e.t.Fatalf("signup status %d: %s", status, body)
	}
	if token, ok := e.server.VerificationToken(email); ok {
		if status, _, body := e.do(http.MethodGet, "/auth/verify-email?token="+url.QueryEscape(token), "", "", nil); status != http.StatusOK {
			e.t.Fatalf("verify status %d: %s", status, body)
		}
	}
	form := url.Values{"username": {email}, "password": {"Passw0rd!"}}
	status, obj, body := e.do(http.MethodPost, "/auth/login", "", "application/x-www-form-urlencoded", []byte(form.Encode()))
	if status != http.StatusOK {
		e.t.Fatalf("login status %d: %s", status, body)
	}
	token, _ := obj["access_token"].(string)
	if token == "" {
		e.t.Fatalf("missing access token: %s", body)
	}
	return token
}

func TestSignupRejectsWeakInputWithValidationList(t *testing.T) {
	e := newEmulator(t, Config{})
	status, _, body := e.json(http.MethodPost, "/auth/signup", "", map[string]string{"email": "x@mailinator.com", "password": "abc12345"})
	if status != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", status, body)
	}
	var payload struct {
		Detail []struct {
			Msg string `json:"msg"`
		} `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(payload.Detail) != 3 {
		t.Fatalf("expected disposable, uppercase and special errors, got %+v", payload.Detail)
	}
}

func TestLoginRefusedUntilVerified(t *testing.T) {
	e := newEmulator(t, Config{VerifyLinkBase: "http://localhost:5173/verify-email"})
	status, obj, _ := e.json(http.MethodPost, "/auth/signup", "", map[string]string{"email": "ada@hipposync.com", "password": "Passw0rd!"})
	if status != http.StatusOK || obj["email_verified"] != false {
		t.Fatalf("unexpected signup response %d %v", status, obj)
	}
	form := url.Values{"username": {"ada@hipposync.com"}, "password": {"Passw0rd!"}}
	status, obj, _ = e.do(http.MethodPost, "/auth/login", "", "application/x-www-form-urlencoded", []byte(form.Encode()))
	if status != http.StatusForbidden || !strings.Contains(obj["detail"].(string), "verify your email") {
		t.Fatalf("expected 403 before verification, got %d %v", status, obj)
	}
	token, ok := e.server.VerificationToken("ada@hipposync.com")
	if !ok {
		t.Fatalf("expected pending verification token")
	}
	if link := e.server.VerificationLink(token); !strings.HasPrefix(link, "http://localhost:5173/verify-email?token=") {
		t.Fatalf("unexpected link %q", link)
	}
	_, obj, _ = e.do(http.MethodGet, "/auth/verify-email?token="+token, "", "", nil)
	if obj["status"] != string(schema.VerifyStatusSuccess) {
		t.Fatalf("expected success, got %v", obj)
	}
	_, obj, _ = e.do(http.MethodGet, "/auth/verify-email?token="+token, "", "", nil)
	if obj["status"] != string(schema.VerifyStatusAlreadyVerified) {
		t.Fatalf("expected already_verified, got %v", obj)
	}
	status, _, _ = e.do(http.MethodPost, "/auth/login", "", "application/x-www-form-urlencoded", []byte(form.Encode()))
	if status != http.StatusOK {
		t.Fatalf("expected login after verification, got %d", status)
	}
}

func TestAutoVerify(t *testing.T) {
	e := newEmulator(t, Config{AutoVerify: true})
	_, obj, _ := e.json(http.MethodPost, "/auth/signup", "", map[string]string{"email": "ada@hipposync.com", "password": "Passw0rd!"})
	if obj["email_verified"] != true {
		t.Fatalf("expected auto-verified account, got %v", obj)
	}
	e.signupAndLogin("bob@hipposync.com")
}

func TestProtectedRoutesRequireBearer(t *testing.T) {
	e := newEmulator(t, Config{})
	for _, path := range []string{"/auth/me", "/threads", "/projects", "/models"} {
		status, _, _ := e.do(http.MethodGet, path, "", "", nil)
		if status != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", path, status)
		}
	}
	if status, _, _ := e.do(http.MethodGet, "/auth/me", "garbage", "", nil); status != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token, got %d", status)
	}
}

func TestThreadAccessIsScoped(t *testing.T) {
	e := newEmulator(t, Config{})
	ada := e.signupAndLogin("ada@hipposync.com")
	bob := e.signupAndLogin("bob@hipposync.com")

	status, thread, _ := e.json(http.MethodPost, "/threads", ada, map[string]string{"title": " "})
	if status != http.StatusOK || thread["title"] != schema.DefaultThreadTitle {
		t.Fatalf("unexpected thread %d %v", status, thread)
	}
	path := "/threads/" + jsonID(thread["id"])
	if status, _, _ := e.do(http.MethodGet, path+"/messages", bob, "", nil); status != http.StatusForbidden {
		t.Fatalf("expected 403 for foreign thread, got %d", status)
	}
	if status, _, _ := e.do(http.MethodDelete, path, bob, "", nil); status != http.StatusForbidden {
		t.Fatalf("expected 403 deleting foreign thread, got %d", status)
	}
	status, obj, _ := e.json(http.MethodPut, path, ada, map[string]string{"title": "Plans"})
	if status != http.StatusOK || obj["title"] != "Plans" {
		t.Fatalf("unexpected rename %d %v", status, obj)
	}
	if status, _, _ := e.do(http.MethodDelete, path, ada, "", nil); status != http.StatusOK {
		t.Fatalf("expected delete ok, got %d", status)
	}
	if status, _, _ := e.do(http.MethodGet, path+"/messages", ada, "", nil); status != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", status)
	}
}

func TestProjectMembership(t *testing.T) {
	e := newEmulator(t, Config{})
	ada := e.signupAndLogin("ada@hipposync.com")
	bob := e.signupAndLogin("bob@hipposync.com")

	_, project, _ := e.json(http.MethodPost, "/projects", ada, map[string]string{"name": "Research"})
	pid := jsonID(project["id"])
	if status, _, _ := e.do(http.MethodGet, "/threads?project_id="+pid, bob, "", nil); status != http.StatusForbidden {
		t.Fatalf("expected 403 for non-member, got %d", status)
	}
	status, obj, _ := e.json(http.MethodPost, "/projects/"+pid+"/members", ada, map[string]string{"email": "bob@hipposync.com", "role": "viewer"})
	if status != http.StatusOK || obj["status"] != string(schema.InviteAdded) {
		t.Fatalf("unexpected invite %d %v", status, obj)
	}
	_, obj, _ = e.json(http.MethodPost, "/projects/"+pid+"/members", ada, map[string]string{"email": "bob@hipposync.com"})
	if obj["status"] != string(schema.InviteAlreadyMember) {
		t.Fatalf("expected already_member, got %v", obj)
	}
	if status, _, _ := e.json(http.MethodPost, "/projects/"+pid+"/members", ada, map[string]string{"email": "bob@hipposync.com", "role": "king"}); status != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for bad role, got %d", status)
	}
	if status, _, _ := e.json(http.MethodPost, "/projects/"+pid+"/members", ada, map[string]string{"email": "nobody@hipposync.com"}); status != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown invitee, got %d", status)
	}
	if status, _, _ := e.json(http.MethodPut, "/projects/"+pid, bob, map[string]string{"name": "Mine"}); status != http.StatusForbidden {
		t.Fatalf("expected viewer rename to be refused, got %d", status)
	}
	_, body := e.listJSON("/projects", bob)
	if len(body) != 1 {
		t.Fatalf("expected bob to see the project, got %d", len(body))
	}
	if status, _, _ := e.do(http.MethodDelete, "/projects/"+pid, ada, "", nil); status != http.StatusOK {
		t.Fatalf("expected owner delete ok, got %d", status)
	}
}

func TestChatAutoCreatesThreadAndRecordsHistory(t *testing.T) {
	e := newEmulator(t, Config{})
	ada := e.signupAndLogin("ada@hipposync.com")

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	_ = form.WriteField("thread_id", "999")
	_ = form.WriteField("message", "hello")
	_ = form.WriteField("model", "gpt-4o")
	part, _ := form.CreateFormFile("file", "notes.txt")
	_, _ = part.Write([]byte("some notes"))
	_ = form.Close()

	status, reply, body := e.do(http.MethodPost, "/chat/", ada, form.FormDataContentType(), buf.Bytes())
	if status != http.StatusOK {
		t.Fatalf("chat status %d: %s", status, body)
	}
	if !strings.Contains(reply["reply"].(string), "You said: hello") {
		t.Fatalf("unexpected reply %v", reply)
	}
	tid := jsonID(reply["thread_id"])
	if tid == "999" {
		t.Fatalf("expected a freshly created thread id")
	}
	_, records := e.listJSON("/threads/"+tid+"/messages", ada)
	if len(records) != 3 {
		t.Fatalf("expected file, text and reply records, got %d", len(records))
	}
	if records[0]["type"] != "file" || records[0]["filename"] != "notes.txt" {
		t.Fatalf("unexpected first record %v", records[0])
	}
	if records[2]["sender"] != "assistant" || records[2]["model_used"] != "gpt-4o" {
		t.Fatalf("unexpected reply record %v", records[2])
	}
}

func TestChatRequiresMessageOrFile(t *testing.T) {
	e := newEmulator(t, Config{})
	ada := e.signupAndLogin("ada@hipposync.com")
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	_ = form.WriteField("thread_id", "1")
	_ = form.WriteField("message", "  ")
	_ = form.Close()
	if status, _, _ := e.do(http.MethodPost, "/chat/", ada, form.FormDataContentType(), buf.Bytes()); status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
}

func TestModelsList(t *testing.T) {
	e := newEmulator(t, Config{Models: []schema.ModelID{"a", "b"}})
	ada := e.signupAndLogin("ada@hipposync.com")
	_, _, body := e.do(http.MethodGet, "/models", ada, "", nil)
	var models []string
	if err := json.Unmarshal(body, &models); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(models) != 2 || models[0] != "a" {
		t.Fatalf("unexpected models %v", models)
	}
}

func (e *emulator) listJSON(path, token string) (int, []map[string]any) {
	e.t.Helper()
	status, _, body := e.do(http.MethodGet, path, token, "", nil)
	var out []map[string]any
	if err := json.Unmarshal(body, &out); err != nil {
		e.t.Fatalf("decode %s: %v (%s)", path, err, body)
	}
	return status, out
}

func jsonID(value any) string {
	if v, ok := value.(float64); ok {
		return strconv.FormatInt(int64(v), 10)
	}
	return ""
}
