package hub

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/schollz/progressbar/v3"
)

// remoteFile describes one file of a repository revision.
type remoteFile struct {
	Path   string
	Size   int64
	Digest digest
}

// FetchFile downloads exactly one file of repo into localDir and returns its
// local path. A local copy whose content already matches is kept as is.
func (c *Client) FetchFile(ctx context.Context, repo Repo, filename, localDir string) (string, error) {
	if err := repo.validate(); err != nil {
		return "", err
	}
	if filename == "" {
		return "", errors.New("filename is required")
	}
	if localDir == "" {
		return "", errors.New("local dir is required")
	}

	f, err := c.headFile(ctx, repo, filename)
	if err != nil {
		return "", err
	}

	localPath, _, err := c.syncFile(ctx, repo, f, localDir, "")
	if err != nil {
		return "", err
	}
	return localPath, nil
}

// headFile reads the content address of a single file from resolve headers.
func (c *Client) headFile(ctx context.Context, repo Repo, filename string) (remoteFile, error) {
	req, err := c.newRequest(ctx, http.MethodHead, c.resolveURL(repo, filename), nil)
	if err != nil {
		return remoteFile{}, err
	}

	resp, err := c.meta.Do(req)
	if err != nil {
		return remoteFile{}, fmt.Errorf("metadata request failed for %s: %w", filename, err)
	}
	defer resp.Body.Close()

	if err := checkResponse(resp, repo, filename); err != nil {
		return remoteFile{}, err
	}

	d := digestFromETag(resp.Header.Get("X-Linked-Etag"))
	if !d.known() {
		d = digestFromETag(resp.Header.Get("ETag"))
	}

	size := int64(-1)
	if v := resp.Header.Get("X-Linked-Size"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			size = n
		}
	} else if resp.StatusCode < 300 && resp.ContentLength >= 0 {
		size = resp.ContentLength
	}

	return remoteFile{Path: filename, Size: size, Digest: d}, nil
}

// syncFile makes localDir/f.Path hold the remote content. Partial downloads go
// to scratchDir (or next to the target when empty) and are renamed into place.
// It reports whether a transfer happened.
func (c *Client) syncFile(ctx context.Context, repo Repo, f remoteFile, localDir, scratchDir string) (string, bool, error) {
	localPath, err := localTarget(localDir, f.Path)
	if err != nil {
		return "", false, err
	}
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return "", false, fmt.Errorf("create local subdir: %w", err)
	}

	ok, err := existingMatches(localPath, f.Digest)
	if err != nil {
		return "", false, err
	}
	if ok {
		c.log.DebugContext(ctx, "skip download, checksum match",
			"repo", repo.String(), "file", f.Path, "digest", f.Digest.String())
		return localPath, false, nil
	}

	tmp := localPath + ".incomplete"
	if scratchDir != "" {
		tmp = filepath.Join(scratchDir, strings.ReplaceAll(f.Path, "/", "_")+".incomplete")
	}

	c.log.InfoContext(ctx, "download", "repo", repo.String(), "file", f.Path, "revision", c.revision)
	written, err := c.download(ctx, repo, f, tmp)
	if err != nil {
		_ = os.Remove(tmp)
		return "", false, err
	}

	if f.Digest.known() {
		actual, err := fileDigest(tmp, f.Digest.algo, written)
		if err != nil {
			_ = os.Remove(tmp)
			return "", false, err
		}
		if actual != f.Digest.hex {
			_ = os.Remove(tmp)
			return "", false, fmt.Errorf("checksum mismatch for %s: expected %s got %s", f.Path, f.Digest.hex, actual)
		}
	}

	if err := os.Rename(tmp, localPath); err != nil {
		_ = os.Remove(tmp)
		return "", false, fmt.Errorf("move temp file into place: %w", err)
	}
	return localPath, true, nil
}

func (c *Client) download(ctx context.Context, repo Repo, f remoteFile, tmp string) (int64, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.resolveURL(repo, f.Path), nil)
	if err != nil {
		return 0, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("download request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := checkResponse(resp, repo, f.Path); err != nil {
		return 0, err
	}

	fh, err := os.Create(tmp)
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}

	var dst io.Writer = fh
	if c.progress != nil {
		total := resp.ContentLength
		if total <= 0 {
			total = f.Size
		}
		bar := progressbar.NewOptions64(total,
			progressbar.OptionSetWriter(c.progress),
			progressbar.OptionSetDescription(f.Path),
			progressbar.OptionShowBytes(true),
			progressbar.OptionClearOnFinish(),
		)
		dst = io.MultiWriter(fh, bar)
	}

	written, err := io.Copy(dst, resp.Body)
	if err != nil {
		_ = fh.Close()
		return 0, fmt.Errorf("download read failed: %w", err)
	}
	if err := fh.Close(); err != nil {
		return 0, fmt.Errorf("close temp file: %w", err)
	}
	return written, nil
}

// localTarget joins a repository path onto localDir and refuses paths that
// would land outside of it.
func localTarget(localDir, repoPath string) (string, error) {
	target := filepath.Join(localDir, filepath.FromSlash(repoPath))
	rel, err := filepath.Rel(localDir, target)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("refusing repository path %q outside %s", repoPath, localDir)
	}
	return target, nil
}
