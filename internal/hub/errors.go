package hub

import (
	"fmt"
	"io"
	"net/http"
	"strings"
)

// NotFoundError reports a missing repository, revision or file.
type NotFoundError struct {
	Repo Repo
	Path string
	Msg  string
}

func (e *NotFoundError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Path != "" {
		return fmt.Sprintf("%s not found in %s", e.Path, e.Repo)
	}
	return fmt.Sprintf("repository %s not found", e.Repo)
}

// AuthError reports a missing or rejected token for a gated or private repository.
type AuthError struct {
	Repo Repo
	Msg  string
}

func (e *AuthError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return fmt.Sprintf("access denied for %s; provide HF_TOKEN or --hf-token", e.Repo)
}

// RemoteWriteError wraps any failure while publishing to a repository.
type RemoteWriteError struct {
	Repo Repo
	Path string
	Err  error
}

func (e *RemoteWriteError) Error() string {
	return fmt.Sprintf("publish %s to %s: %v", e.Path, e.Repo, e.Err)
}

func (e *RemoteWriteError) Unwrap() error { return e.Err }

// Hub error codes that mean "does not exist" even when the status is 401:
// the hub hides private repositories behind an auth failure.
var notFoundCodes = map[string]bool{
	"RepoNotFound":     true,
	"RevisionNotFound": true,
	"EntryNotFound":    true,
}

// checkResponse maps a non-2xx hub response onto the error taxonomy.
// Redirects are accepted since HEAD metadata requests do not follow them.
func checkResponse(resp *http.Response, repo Repo, path string) error {
	if resp.StatusCode >= 200 && resp.StatusCode <= 399 {
		return nil
	}

	code := resp.Header.Get("X-Error-Code")
	msg := strings.TrimSpace(resp.Header.Get("X-Error-Message"))

	if notFoundCodes[code] || resp.StatusCode == http.StatusNotFound {
		return &NotFoundError{Repo: repo, Path: path, Msg: msg}
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return &AuthError{Repo: repo, Msg: msg}
	}

	if msg == "" && resp.Body != nil {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		msg = strings.TrimSpace(string(b))
	}
	if msg != "" {
		return fmt.Errorf("hub request for %s failed: %s: %s", repo, resp.Status, msg)
	}
	return fmt.Errorf("hub request for %s failed: %s", repo, resp.Status)
}
