package hub

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
)

type commitLine struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

type commitHeader struct {
	Summary     string `json:"summary"`
	Description string `json:"description"`
}

type commitFile struct {
	Content  string `json:"content"`
	Path     string `json:"path"`
	Encoding string `json:"encoding"`
}

// Publish uploads localPath to repo. A directory is walked recursively in
// lexical order and every file becomes its own commit, so a failure part way
// through leaves the earlier files published. Failures are *RemoteWriteError.
func (c *Client) Publish(ctx context.Context, localPath string, repo Repo) error {
	if err := repo.validate(); err != nil {
		return err
	}

	info, err := os.Stat(localPath)
	if err != nil {
		return &RemoteWriteError{Repo: repo, Path: localPath, Err: err}
	}

	if !info.IsDir() {
		return c.commitFile(ctx, repo, localPath, filepath.Base(localPath))
	}

	var published int
	err = filepath.WalkDir(localPath, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if path != localPath && (d.Name() == ".git" || d.Name() == ScratchDir) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() == LockFile {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(localPath, path)
		if err != nil {
			return err
		}
		if err := c.commitFile(ctx, repo, path, filepath.ToSlash(rel)); err != nil {
			return err
		}
		published++
		return nil
	})
	if err != nil {
		var writeErr *RemoteWriteError
		if errors.As(err, &writeErr) {
			c.log.WarnContext(ctx, "publish stopped", "repo", repo.String(), "published", published, "error", err)
			return err
		}
		return &RemoteWriteError{Repo: repo, Path: localPath, Err: err}
	}

	c.log.InfoContext(ctx, "publish complete", "repo", repo.String(), "dir", localPath, "files", published)
	return nil
}

func (c *Client) commitFile(ctx context.Context, repo Repo, localPath, pathInRepo string) error {
	content, err := os.ReadFile(localPath)
	if err != nil {
		return &RemoteWriteError{Repo: repo, Path: pathInRepo, Err: err}
	}

	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	lines := []commitLine{
		{Key: "header", Value: commitHeader{Summary: "Upload " + pathInRepo + " with meloplus"}},
		{Key: "file", Value: commitFile{
			Content:  base64.StdEncoding.EncodeToString(content),
			Path:     pathInRepo,
			Encoding: "base64",
		}},
	}
	for _, line := range lines {
		if err := enc.Encode(line); err != nil {
			return &RemoteWriteError{Repo: repo, Path: pathInRepo, Err: err}
		}
	}

	req, err := c.newRequest(ctx, http.MethodPost, c.commitURL(repo), &body)
	if err != nil {
		return &RemoteWriteError{Repo: repo, Path: pathInRepo, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-ndjson")

	resp, err := c.http.Do(req)
	if err != nil {
		return &RemoteWriteError{Repo: repo, Path: pathInRepo, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		cause := checkResponse(resp, repo, pathInRepo)
		if cause == nil {
			cause = fmt.Errorf("unexpected commit status: %s", resp.Status)
		}
		return &RemoteWriteError{Repo: repo, Path: pathInRepo, Err: cause}
	}

	c.log.InfoContext(ctx, "published", "repo", repo.String(), "path", pathInRepo, "bytes", len(content))
	return nil
}
