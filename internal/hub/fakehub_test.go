package hub

import (
	"bufio"
	"crypto/sha1" //nolint:gosec
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
)

type fakeFile struct {
	content []byte
	lfs     bool
}

type fakeCommit struct {
	repo    string
	path    string
	content []byte
}

// fakeHub serves the subset of the hub API the client uses: recursive tree
// listing, resolve (HEAD/GET, LFS files redirect to a CDN path) and commits.
type fakeHub struct {
	t   *testing.T
	srv *httptest.Server

	mu           sync.Mutex
	repos        map[string]map[string]fakeFile // "dataset:org/name" -> path -> file
	tokens       map[string]string              // repo key -> required bearer token
	gets         map[string]int                 // repo-relative path -> content GETs
	commits      []fakeCommit
	failCommitAt int
	pageSize     int
	authHeaders  []string

	// When gate is set, content GETs signal entered once and then wait
	// for gate to close.
	gate      chan struct{}
	entered   chan struct{}
	enterOnce sync.Once
}

func newFakeHub(t *testing.T) *fakeHub {
	t.Helper()
	h := &fakeHub{
		t:      t,
		repos:  map[string]map[string]fakeFile{},
		tokens: map[string]string{},
		gets:   map[string]int{},
	}
	h.srv = httptest.NewServer(http.HandlerFunc(h.serve))
	t.Cleanup(h.srv.Close)
	return h
}

func (h *fakeHub) addFile(repo Repo, path string, content []byte, lfs bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	key := repo.String()
	if h.repos[key] == nil {
		h.repos[key] = map[string]fakeFile{}
	}
	h.repos[key][path] = fakeFile{content: content, lfs: lfs}
}

func (h *fakeHub) client(token string) *Client {
	return NewClient(Options{Endpoint: h.srv.URL, Token: token})
}

func (h *fakeHub) getCount(path string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.gets[path]
}

func (h *fakeHub) totalGets() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, v := range h.gets {
		n += v
	}
	return n
}

// holdDownloads makes content GETs block until the returned release func is
// called. The returned channel closes when the first GET arrives.
func (h *fakeHub) holdDownloads() (<-chan struct{}, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.gate = make(chan struct{})
	h.entered = make(chan struct{})
	var once sync.Once
	gate := h.gate
	return h.entered, func() { once.Do(func() { close(gate) }) }
}

func (h *fakeHub) waitGate() {
	h.mu.Lock()
	gate, entered := h.gate, h.entered
	h.mu.Unlock()
	if gate == nil {
		return
	}
	h.enterOnce.Do(func() { close(entered) })
	<-gate
}

func (h *fakeHub) serve(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	h.authHeaders = append(h.authHeaders, r.Header.Get("Authorization"))
	h.mu.Unlock()

	p := r.URL.Path
	switch {
	case strings.HasPrefix(p, "/cdn/"):
		h.serveCDN(w, r, strings.TrimPrefix(p, "/cdn/"))
	case strings.HasPrefix(p, "/api/"):
		h.serveAPI(w, r, strings.TrimPrefix(p, "/api/"))
	default:
		h.serveResolve(w, r, strings.TrimPrefix(p, "/"))
	}
}

// lookupRepo authorizes access the way the hub does: unknown and private
// repositories both answer 401 with an error code.
func (h *fakeHub) lookupRepo(w http.ResponseWriter, r *http.Request, key string) (map[string]fakeFile, bool) {
	h.mu.Lock()
	files, ok := h.repos[key]
	token := h.tokens[key]
	h.mu.Unlock()

	if !ok {
		w.Header().Set("X-Error-Code", "RepoNotFound")
		w.WriteHeader(http.StatusUnauthorized)
		return nil, false
	}
	if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
		w.Header().Set("X-Error-Code", "GatedRepo")
		w.WriteHeader(http.StatusUnauthorized)
		return nil, false
	}
	return files, true
}

func (h *fakeHub) serveAPI(w http.ResponseWriter, r *http.Request, rest string) {
	var kind Kind
	switch {
	case strings.HasPrefix(rest, "datasets/"):
		kind, rest = KindDataset, strings.TrimPrefix(rest, "datasets/")
	case strings.HasPrefix(rest, "models/"):
		kind, rest = KindModel, strings.TrimPrefix(rest, "models/")
	default:
		http.NotFound(w, r)
		return
	}

	if i := strings.Index(rest, "/tree/"); i >= 0 {
		h.serveTree(w, r, Repo{ID: rest[:i], Kind: kind})
		return
	}
	if i := strings.Index(rest, "/commit/"); i >= 0 {
		h.serveCommit(w, r, Repo{ID: rest[:i], Kind: kind})
		return
	}
	http.NotFound(w, r)
}

func (h *fakeHub) serveTree(w http.ResponseWriter, r *http.Request, repo Repo) {
	files, ok := h.lookupRepo(w, r, repo.String())
	if !ok {
		return
	}

	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	type lfsInfo struct {
		OID  string `json:"oid"`
		Size int    `json:"size"`
	}
	type entry struct {
		Type string   `json:"type"`
		Path string   `json:"path"`
		Size int      `json:"size"`
		OID  string   `json:"oid"`
		LFS  *lfsInfo `json:"lfs,omitempty"`
	}

	var out []entry
	dirs := map[string]bool{}
	for _, p := range paths {
		if i := strings.LastIndex(p, "/"); i > 0 && !dirs[p[:i]] {
			dirs[p[:i]] = true
			out = append(out, entry{Type: "directory", Path: p[:i], OID: strings.Repeat("d", 40)})
		}
		f := files[p]
		e := entry{Type: "file", Path: p, Size: len(f.content), OID: gitBlobSHA1(f.content)}
		if f.lfs {
			e.OID = strings.Repeat("f", 40)
			e.Size = 134
			e.LFS = &lfsInfo{OID: sha256Hex(f.content), Size: len(f.content)}
		}
		out = append(out, e)
	}

	h.mu.Lock()
	pageSize := h.pageSize
	h.mu.Unlock()
	if pageSize > 0 {
		cursor, _ := strconv.Atoi(r.URL.Query().Get("cursor"))
		end := cursor + pageSize
		if end < len(out) {
			next := fmt.Sprintf("%s%s?recursive=true&cursor=%d", h.srv.URL, r.URL.Path, end)
			w.Header().Set("Link", fmt.Sprintf("<%s>; rel=\"next\"", next))
		} else {
			end = len(out)
		}
		out = out[cursor:end]
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func (h *fakeHub) serveResolve(w http.ResponseWriter, r *http.Request, rest string) {
	kind := KindModel
	if strings.HasPrefix(rest, "datasets/") {
		kind, rest = KindDataset, strings.TrimPrefix(rest, "datasets/")
	}
	i := strings.Index(rest, "/resolve/main/")
	if i < 0 {
		http.NotFound(w, r)
		return
	}
	repo := Repo{ID: rest[:i], Kind: kind}
	path := rest[i+len("/resolve/main/"):]

	files, ok := h.lookupRepo(w, r, repo.String())
	if !ok {
		return
	}
	f, ok := files[path]
	if !ok {
		w.Header().Set("X-Error-Code", "EntryNotFound")
		w.WriteHeader(http.StatusNotFound)
		return
	}

	if f.lfs {
		w.Header().Set("X-Linked-Etag", `"`+sha256Hex(f.content)+`"`)
		w.Header().Set("X-Linked-Size", strconv.Itoa(len(f.content)))
		w.Header().Set("Location", "/cdn/"+repo.String()+"/"+path)
		w.WriteHeader(http.StatusFound)
		return
	}

	w.Header().Set("ETag", `"`+gitBlobSHA1(f.content)+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(f.content)))
	if r.Method == http.MethodHead {
		return
	}
	h.waitGate()
	h.mu.Lock()
	h.gets[path]++
	h.mu.Unlock()
	_, _ = w.Write(f.content)
}

func (h *fakeHub) serveCDN(w http.ResponseWriter, r *http.Request, rest string) {
	if r.Method == http.MethodGet {
		h.waitGate()
	}
	// rest is "<kind>:<org>/<name>/<path>"
	colon := strings.Index(rest, ":")
	parts := strings.SplitN(rest[colon+1:], "/", 3)
	if colon < 0 || len(parts) < 3 {
		http.NotFound(w, r)
		return
	}
	key := rest[:colon] + ":" + parts[0] + "/" + parts[1]
	path := parts[2]

	h.mu.Lock()
	f, ok := h.repos[key][path]
	if ok && r.Method == http.MethodGet {
		h.gets[path]++
	}
	h.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	_, _ = w.Write(f.content)
}

func (h *fakeHub) serveCommit(w http.ResponseWriter, r *http.Request, repo Repo) {
	if _, ok := h.lookupRepo(w, r, repo.String()); !ok {
		return
	}
	if r.Header.Get("Content-Type") != "application/x-ndjson" {
		http.Error(w, "bad content type", http.StatusBadRequest)
		return
	}

	var commit fakeCommit
	commit.repo = repo.String()
	sc := bufio.NewScanner(r.Body)
	sc.Buffer(make([]byte, 1024*1024), 16*1024*1024)
	for sc.Scan() {
		var line struct {
			Key   string          `json:"key"`
			Value json.RawMessage `json:"value"`
		}
		if err := json.Unmarshal(sc.Bytes(), &line); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if line.Key != "file" {
			continue
		}
		var f commitFile
		if err := json.Unmarshal(line.Value, &f); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		content, err := base64.StdEncoding.DecodeString(f.Content)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		commit.path = f.Path
		commit.content = content
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.failCommitAt > 0 && len(h.commits)+1 >= h.failCommitAt {
		w.Header().Set("X-Error-Message", "write access denied")
		w.WriteHeader(http.StatusForbidden)
		return
	}
	h.commits = append(h.commits, commit)
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"commitOid":"` + strings.Repeat("c", 40) + `"}`))
}

func sha256Hex(b []byte) string {
	s := sha256.Sum256(b)
	return hex.EncodeToString(s[:])
}

func gitBlobSHA1(b []byte) string {
	h := sha1.New() //nolint:gosec
	_, _ = fmt.Fprintf(h, "blob %d\x00", len(b))
	_, _ = h.Write(b)
	return hex.EncodeToString(h.Sum(nil))
}
