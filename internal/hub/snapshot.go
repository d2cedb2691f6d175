package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
)

// ScratchDir is the internal subdirectory of a snapshot target that holds
// partial downloads. It is removed after every snapshot.
const ScratchDir = ".cache"

// LockFile serializes snapshots into one directory. It lives next to the
// scratch dir and is never removed.
const LockFile = ".meloplus-snapshot.lock"

// DefaultIgnorePatterns are housekeeping files never fetched by FetchSnapshot.
var DefaultIgnorePatterns = []string{
	".git*",
	"README.md",
	"*.md",
	"LICENSE",
	"__pycache__",
	"*.pyc",
	".DS_Store",
}

type treeEntry struct {
	Type string `json:"type"`
	Path string `json:"path"`
	Size int64  `json:"size"`
	OID  string `json:"oid"`
	LFS  *struct {
		OID  string `json:"oid"`
		Size int64  `json:"size"`
	} `json:"lfs"`
}

func (e treeEntry) remoteFile() remoteFile {
	if e.LFS != nil && e.LFS.OID != "" {
		return remoteFile{
			Path:   e.Path,
			Size:   e.LFS.Size,
			Digest: digest{algo: digestSHA256, hex: strings.ToLower(e.LFS.OID)},
		}
	}
	return remoteFile{Path: e.Path, Size: e.Size, Digest: digestFromETag(e.OID)}
}

// SnapshotStats summarizes one FetchSnapshot call.
type SnapshotStats struct {
	Listed     int
	Ignored    int
	Downloaded int
	Reused     int
}

// FetchSnapshot mirrors every file of repo into localDir except housekeeping
// files and paths matching ignorePatterns, then removes localDir/.cache.
// Re-running it against an unchanged revision transfers nothing.
func (c *Client) FetchSnapshot(ctx context.Context, repo Repo, localDir string, ignorePatterns []string) (string, error) {
	_, err := c.FetchSnapshotStats(ctx, repo, localDir, ignorePatterns)
	if err != nil {
		return "", err
	}
	return localDir, nil
}

// FetchSnapshotStats is FetchSnapshot returning transfer counts.
func (c *Client) FetchSnapshotStats(ctx context.Context, repo Repo, localDir string, ignorePatterns []string) (SnapshotStats, error) {
	var stats SnapshotStats
	if err := repo.validate(); err != nil {
		return stats, err
	}
	if localDir == "" {
		return stats, errors.New("local dir is required")
	}

	if err := os.MkdirAll(localDir, 0o755); err != nil {
		return stats, fmt.Errorf("create local dir: %w", err)
	}
	lock := flock.New(filepath.Join(localDir, LockFile))
	locked, err := lock.TryLockContext(ctx, 250*time.Millisecond)
	if err != nil {
		return stats, fmt.Errorf("lock snapshot dir: %w", err)
	}
	if !locked {
		return stats, fmt.Errorf("snapshot dir %s is locked by another process", localDir)
	}
	defer func() { _ = lock.Unlock() }()

	scratch := filepath.Join(localDir, ScratchDir)
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		return stats, fmt.Errorf("create scratch dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			c.log.Warn("remove scratch dir failed", "dir", scratch, "error", err)
		} else {
			c.log.Debug("removed scratch dir", "dir", scratch)
		}
	}()

	entries, err := c.listTree(ctx, repo)
	if err != nil {
		return stats, err
	}

	patterns := append(append([]string(nil), DefaultIgnorePatterns...), ignorePatterns...)
	for _, e := range entries {
		if e.Type != "file" {
			continue
		}
		stats.Listed++
		if matchAny(patterns, e.Path) {
			stats.Ignored++
			continue
		}
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		_, downloaded, err := c.syncFile(ctx, repo, e.remoteFile(), localDir, scratch)
		if err != nil {
			return stats, err
		}
		if downloaded {
			stats.Downloaded++
		} else {
			stats.Reused++
		}
	}

	c.log.InfoContext(ctx, "snapshot complete",
		"repo", repo.String(),
		"dir", localDir,
		"files", stats.Listed,
		"ignored", stats.Ignored,
		"downloaded", stats.Downloaded,
		"reused", stats.Reused,
	)
	return stats, nil
}

// listTree pages through the recursive tree listing of the configured revision.
func (c *Client) listTree(ctx context.Context, repo Repo) ([]treeEntry, error) {
	var all []treeEntry
	next := c.treeURL(repo)
	for next != "" {
		req, err := c.newRequest(ctx, http.MethodGet, next, nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("list repository files: %w", err)
		}

		if err := checkResponse(resp, repo, ""); err != nil {
			resp.Body.Close()
			return nil, err
		}

		var page []treeEntry
		err = json.NewDecoder(resp.Body).Decode(&page)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("decode repository tree: %w", err)
		}
		all = append(all, page...)
		next = nextLink(resp.Header.Get("Link"))
	}
	return all, nil
}

// nextLink extracts the rel="next" target of an RFC 8288 Link header.
func nextLink(header string) string {
	for _, part := range strings.Split(header, ",") {
		segs := strings.Split(part, ";")
		if len(segs) < 2 {
			continue
		}
		target := strings.TrimSpace(segs[0])
		if !strings.HasPrefix(target, "<") || !strings.HasSuffix(target, ">") {
			continue
		}
		for _, param := range segs[1:] {
			param = strings.ReplaceAll(strings.TrimSpace(param), " ", "")
			if param == `rel="next"` || param == "rel=next" {
				return strings.Trim(target, "<>")
			}
		}
	}
	return ""
}
