// Package githubtest provides an in-memory release host that speaks the
// subset of the REST API the publisher uses. Tests seed releases and
// assets, inject faults, and then assert on the recorded request log and
// the final asset state.
package githubtest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ruby/setup-msys2-gcc/internal/github"
)

// Token is the bearer token the fake host accepts.
const Token = "test-token"

// Request is one recorded call.
type Request struct {
	Method string
	Path   string
	Query  string
}

// IsMutation reports whether the request changes remote state.
func (r Request) IsMutation() bool {
	return r.Method != http.MethodGet && r.Method != http.MethodHead
}

func (r Request) String() string {
	if r.Query == "" {
		return r.Method + " " + r.Path
	}
	return r.Method + " " + r.Path + "?" + r.Query
}

// Fault makes matching requests misbehave.
type Fault struct {
	Method string
	// Path matches when it is a substring of "path?query".
	Path string

	// Status and Body replace the normal response when Status is non-zero.
	Status int
	Body   string
	Header map[string]string

	// Delay sleeps before responding. With a short client timeout and
	// Apply it simulates a call that lands on the host but times out.
	Delay time.Duration

	// Drop closes the connection without a response.
	Drop bool

	// Apply performs the normal state change first, so the call takes
	// effect on the host whatever the client ends up seeing.
	Apply bool

	// Skip lets the first Skip matching requests through untouched.
	Skip int

	// Times limits how often the fault fires; zero means always.
	Times int

	seen  int
	fired int
}

type asset struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Label       string    `json:"label"`
	State       string    `json:"state"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Digest      string    `json:"digest,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	content []byte
}

type release struct {
	ID      int64    `json:"id"`
	TagName string   `json:"tag_name"`
	Body    string   `json:"body"`
	Assets  []*asset `json:"assets"`
}

// Server is the fake host. All three base URLs (API, upload, download)
// point at the same TLS listener.
type Server struct {
	*httptest.Server

	Owner string
	Repo  string

	// OmitDigest hides asset digests, like hosts that do not report them.
	OmitDigest bool

	mu       sync.Mutex
	releases map[string]*release
	nextID   int64
	requests []Request
	faults   []*Fault
}

// NewServer starts a fake host for owner/repo and closes it when t ends.
func NewServer(t *testing.T, owner, repo string) *Server {
	t.Helper()
	server := &Server{
		Owner:    owner,
		Repo:     repo,
		releases: make(map[string]*release),
		nextID:   1000,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/{owner}/{repo}/releases/tags/{tag}", server.handleGetByTag)
	mux.HandleFunc("GET /repos/{owner}/{repo}/releases/{id}", server.handleGetRelease)
	mux.HandleFunc("PATCH /repos/{owner}/{repo}/releases/{id}", server.handleUpdateRelease)
	mux.HandleFunc("POST /repos/{owner}/{repo}/releases/{id}/assets", server.handleUpload)
	mux.HandleFunc("PATCH /repos/{owner}/{repo}/releases/assets/{id}", server.handleRenameAsset)
	mux.HandleFunc("DELETE /repos/{owner}/{repo}/releases/assets/{id}", server.handleDeleteAsset)
	mux.HandleFunc("HEAD /{owner}/{repo}/releases/download/{tag}/{name}", server.handleDownload)

	server.Server = httptest.NewTLSServer(server.middleware(mux))
	t.Cleanup(server.Close)
	return server
}

// NewClient returns a transport client wired to the fake host with
// millisecond backoff so retry tests stay fast. configure may adjust the
// config before the client is built.
func (server *Server) NewClient(t *testing.T, configure ...func(*github.Config)) *github.Client {
	t.Helper()
	config := github.Config{
		APIURL:      server.URL,
		UploadURL:   server.URL,
		DownloadURL: server.URL,
		Token:       Token,
		UserAgent:   server.Owner + "/" + server.Repo + "-test",
		HTTPClient:  server.Client(),
		Retry:       github.RetryPolicy{MaxAttempts: 3, Backoff: time.Millisecond},
	}
	for _, fn := range configure {
		fn(&config)
	}
	client, err := github.NewClient(config)
	if err != nil {
		t.Fatalf("github.NewClient: %v", err)
	}
	return client
}

// GitHubRepo returns the repo the fake host serves.
func (server *Server) GitHubRepo() github.Repo {
	return github.Repo{Owner: server.Owner, Name: server.Repo}
}

// AddRelease creates a release with the given notes body and returns its id.
func (server *Server) AddRelease(tag, body string) int64 {
	server.mu.Lock()
	defer server.mu.Unlock()
	server.nextID++
	server.releases[tag] = &release{ID: server.nextID, TagName: tag, Body: body}
	return server.nextID
}

// AddAsset attaches an uploaded asset with content to the release and
// returns the asset id.
func (server *Server) AddAsset(tag, name string, content []byte) int64 {
	return server.AddAssetState(tag, name, content, "uploaded")
}

// AddAssetState is AddAsset with an explicit host state ("starter" for an
// upload that never completed).
func (server *Server) AddAssetState(tag, name string, content []byte, state string) int64 {
	server.mu.Lock()
	defer server.mu.Unlock()
	rel := server.releases[tag]
	if rel == nil {
		panic(fmt.Sprintf("githubtest: no release %q", tag))
	}
	return server.addAssetLocked(rel, name, "", "application/octet-stream", content, state)
}

func (server *Server) addAssetLocked(rel *release, name, label, contentType string, content []byte, state string) int64 {
	server.nextID++
	now := time.Now().UTC()
	rel.Assets = append(rel.Assets, &asset{
		ID:          server.nextID,
		Name:        name,
		Label:       label,
		State:       state,
		ContentType: contentType,
		Size:        int64(len(content)),
		Digest:      Digest(content),
		CreatedAt:   now,
		UpdatedAt:   now,
		content:     append([]byte(nil), content...),
	})
	return server.nextID
}

// Digest returns the "sha256:<hex>" digest the host reports for content.
func Digest(content []byte) string {
	sum := sha256.Sum256(content)
	return "sha256:" + hex.EncodeToString(sum[:])
}

// AssetNames returns the sorted asset names of a release.
func (server *Server) AssetNames(tag string) []string {
	server.mu.Lock()
	defer server.mu.Unlock()
	var names []string
	if rel := server.releases[tag]; rel != nil {
		for _, a := range rel.Assets {
			names = append(names, a.Name)
		}
	}
	sort.Strings(names)
	return names
}

// Content returns the content of the named asset, or nil.
func (server *Server) Content(tag, name string) []byte {
	server.mu.Lock()
	defer server.mu.Unlock()
	if rel := server.releases[tag]; rel != nil {
		for _, a := range rel.Assets {
			if a.Name == name {
				return a.content
			}
		}
	}
	return nil
}

// Body returns the release notes text.
func (server *Server) Body(tag string) string {
	server.mu.Lock()
	defer server.mu.Unlock()
	if rel := server.releases[tag]; rel != nil {
		return rel.Body
	}
	return ""
}

// Fail registers a fault.
func (server *Server) Fail(fault Fault) {
	server.mu.Lock()
	defer server.mu.Unlock()
	f := fault
	server.faults = append(server.faults, &f)
}

// Requests returns every recorded request in order.
func (server *Server) Requests() []Request {
	server.mu.Lock()
	defer server.mu.Unlock()
	return append([]Request(nil), server.requests...)
}

// Mutations returns the recorded requests that change remote state.
func (server *Server) Mutations() []Request {
	var out []Request
	for _, r := range server.Requests() {
		if r.IsMutation() {
			out = append(out, r)
		}
	}
	return out
}

// middleware records the request, checks auth on API calls, and applies
// any matching fault.
func (server *Server) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorded := Request{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery}

		server.mu.Lock()
		server.requests = append(server.requests, recorded)
		fault := server.matchFaultLocked(recorded)
		server.mu.Unlock()

		download := r.Method == http.MethodHead
		if !download && r.Header.Get("Authorization") != "Bearer "+Token {
			writeError(w, http.StatusUnauthorized, "Bad credentials")
			return
		}
		if download && r.Header.Get("Authorization") != "" {
			writeError(w, http.StatusBadRequest, "download probe must be anonymous")
			return
		}

		if fault == nil {
			next.ServeHTTP(w, r)
			return
		}

		var applied *httptest.ResponseRecorder
		if fault.Apply {
			applied = httptest.NewRecorder()
			next.ServeHTTP(applied, r)
		}
		if fault.Delay > 0 {
			time.Sleep(fault.Delay)
		}

		switch {
		case fault.Drop:
			if hijacker, ok := w.(http.Hijacker); ok {
				if conn, _, err := hijacker.Hijack(); err == nil {
					conn.Close()
					return
				}
			}
			panic(http.ErrAbortHandler)
		case fault.Status != 0:
			for key, value := range fault.Header {
				w.Header().Set(key, value)
			}
			body := fault.Body
			if body == "" {
				body = fmt.Sprintf(`{"message":%q}`, http.StatusText(fault.Status))
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(fault.Status)
			_, _ = io.WriteString(w, body)
		case applied != nil:
			for key, values := range applied.Header() {
				w.Header()[key] = values
			}
			w.WriteHeader(applied.Code)
			_, _ = w.Write(applied.Body.Bytes())
		default:
			next.ServeHTTP(w, r)
		}
	})
}

func (server *Server) matchFaultLocked(r Request) *Fault {
	target := r.Path
	if r.Query != "" {
		target += "?" + r.Query
	}
	for _, fault := range server.faults {
		if fault.Method != "" && fault.Method != r.Method {
			continue
		}
		if fault.Path != "" && !strings.Contains(target, fault.Path) {
			continue
		}
		fault.seen++
		if fault.seen <= fault.Skip {
			continue
		}
		if fault.Times > 0 && fault.fired >= fault.Times {
			continue
		}
		fault.fired++
		return fault
	}
	return nil
}

func (server *Server) checkRepo(w http.ResponseWriter, r *http.Request) bool {
	if r.PathValue("owner") != server.Owner || r.PathValue("repo") != server.Repo {
		writeError(w, http.StatusNotFound, "Not Found")
		return false
	}
	return true
}

func (server *Server) releaseByIDLocked(id int64) *release {
	for _, rel := range server.releases {
		if rel.ID == id {
			return rel
		}
	}
	return nil
}

func (server *Server) assetByIDLocked(id int64) (*release, int) {
	for _, rel := range server.releases {
		for i, a := range rel.Assets {
			if a.ID == id {
				return rel, i
			}
		}
	}
	return nil, -1
}

func (server *Server) releaseJSONLocked(rel *release) map[string]any {
	assets := make([]map[string]any, 0, len(rel.Assets))
	for _, a := range rel.Assets {
		assets = append(assets, server.assetJSONLocked(a))
	}
	return map[string]any{
		"id":         rel.ID,
		"tag_name":   rel.TagName,
		"body":       rel.Body,
		"upload_url": server.URL + "/repos/" + server.Owner + "/" + server.Repo + "/releases/" + strconv.FormatInt(rel.ID, 10) + "/assets{?name,label}",
		"assets":     assets,
	}
}

func (server *Server) assetJSONLocked(a *asset) map[string]any {
	out := map[string]any{
		"id":                   a.ID,
		"name":                 a.Name,
		"label":                a.Label,
		"state":                a.State,
		"content_type":         a.ContentType,
		"size":                 a.Size,
		"created_at":           a.CreatedAt,
		"updated_at":           a.UpdatedAt,
		"browser_download_url": server.URL + "/" + server.Owner + "/" + server.Repo + "/releases/download/" + a.Name,
	}
	if !server.OmitDigest {
		out["digest"] = a.Digest
	}
	return out
}

func (server *Server) handleGetByTag(w http.ResponseWriter, r *http.Request) {
	if !server.checkRepo(w, r) {
		return
	}
	server.mu.Lock()
	defer server.mu.Unlock()
	rel := server.releases[r.PathValue("tag")]
	if rel == nil {
		writeError(w, http.StatusNotFound, "Not Found")
		return
	}
	writeJSON(w, http.StatusOK, server.releaseJSONLocked(rel))
}

func (server *Server) handleGetRelease(w http.ResponseWriter, r *http.Request) {
	if !server.checkRepo(w, r) {
		return
	}
	id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
	server.mu.Lock()
	defer server.mu.Unlock()
	rel := server.releaseByIDLocked(id)
	if rel == nil {
		writeError(w, http.StatusNotFound, "Not Found")
		return
	}
	writeJSON(w, http.StatusOK, server.releaseJSONLocked(rel))
}

func (server *Server) handleUpdateRelease(w http.ResponseWriter, r *http.Request) {
	if !server.checkRepo(w, r) {
		return
	}
	var patch struct {
		Body *string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "Problems parsing JSON")
		return
	}
	id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
	server.mu.Lock()
	defer server.mu.Unlock()
	rel := server.releaseByIDLocked(id)
	if rel == nil {
		writeError(w, http.StatusNotFound, "Not Found")
		return
	}
	if patch.Body != nil {
		rel.Body = *patch.Body
	}
	writeJSON(w, http.StatusOK, server.releaseJSONLocked(rel))
}

func (server *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if !server.checkRepo(w, r) {
		return
	}
	name := r.URL.Query().Get("name")
	if name == "" {
		writeError(w, http.StatusUnprocessableEntity, "name is required")
		return
	}
	content, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "reading body")
		return
	}
	if r.ContentLength >= 0 && int64(len(content)) != r.ContentLength {
		writeError(w, http.StatusBadRequest, "content length mismatch")
		return
	}

	id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
	server.mu.Lock()
	defer server.mu.Unlock()
	rel := server.releaseByIDLocked(id)
	if rel == nil {
		writeError(w, http.StatusNotFound, "Not Found")
		return
	}
	for _, a := range rel.Assets {
		if a.Name == name {
			writeAlreadyExists(w)
			return
		}
	}
	assetID := server.addAssetLocked(rel, name, r.URL.Query().Get("label"), r.Header.Get("Content-Type"), content, "uploaded")
	_, index := server.assetByIDLocked(assetID)
	writeJSON(w, http.StatusCreated, server.assetJSONLocked(rel.Assets[index]))
}

func (server *Server) handleRenameAsset(w http.ResponseWriter, r *http.Request) {
	if !server.checkRepo(w, r) {
		return
	}
	var patch struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil || patch.Name == "" {
		writeError(w, http.StatusBadRequest, "Problems parsing JSON")
		return
	}
	id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
	server.mu.Lock()
	defer server.mu.Unlock()
	rel, index := server.assetByIDLocked(id)
	if rel == nil {
		writeError(w, http.StatusNotFound, "Not Found")
		return
	}
	for _, a := range rel.Assets {
		if a.Name == patch.Name && a.ID != id {
			writeAlreadyExists(w)
			return
		}
	}
	target := rel.Assets[index]
	target.Name = patch.Name
	target.UpdatedAt = time.Now().UTC()
	writeJSON(w, http.StatusOK, server.assetJSONLocked(target))
}

func (server *Server) handleDeleteAsset(w http.ResponseWriter, r *http.Request) {
	if !server.checkRepo(w, r) {
		return
	}
	id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
	server.mu.Lock()
	defer server.mu.Unlock()
	rel, index := server.assetByIDLocked(id)
	if rel == nil {
		writeError(w, http.StatusNotFound, "Not Found")
		return
	}
	rel.Assets = append(rel.Assets[:index], rel.Assets[index+1:]...)
	w.WriteHeader(http.StatusNoContent)
}

func (server *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	if r.PathValue("owner") != server.Owner || r.PathValue("repo") != server.Repo {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	server.mu.Lock()
	defer server.mu.Unlock()
	rel := server.releases[r.PathValue("tag")]
	if rel != nil {
		for _, a := range rel.Assets {
			if a.Name == r.PathValue("name") && a.State == "uploaded" {
				w.Header().Set("Location", "https://objects.example.invalid/"+strconv.FormatInt(a.ID, 10))
				w.WriteHeader(http.StatusFound)
				return
			}
		}
	}
	w.WriteHeader(http.StatusNotFound)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

func writeAlreadyExists(w http.ResponseWriter) {
	writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
		"message": "Validation Failed",
		"errors": []map[string]string{
			{"resource": "ReleaseAsset", "code": "already_exists", "field": "name"},
		},
	})
}
