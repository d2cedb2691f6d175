package hub

import (
	"crypto/sha1" //nolint:gosec // git blob ids are sha1 by definition.
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
)

type digestAlgo int

const (
	digestNone digestAlgo = iota
	digestSHA256
	digestGitBlob
)

// digest is the content address of a remote file.
type digest struct {
	algo digestAlgo
	hex  string
}

func (d digest) known() bool { return d.algo != digestNone && d.hex != "" }

func (d digest) String() string {
	switch d.algo {
	case digestSHA256:
		return "sha256:" + d.hex
	case digestGitBlob:
		return "git-sha1:" + d.hex
	default:
		return "unknown"
	}
}

var (
	sha256Pattern = regexp.MustCompile(`(?i)^[a-f0-9]{64}$`)
	sha1Pattern   = regexp.MustCompile(`(?i)^[a-f0-9]{40}$`)
)

// digestFromETag classifies a hub etag: 64 hex chars are an LFS sha256,
// 40 hex chars a git blob sha1.
func digestFromETag(v string) digest {
	v = normalizeETag(v)
	switch {
	case sha256Pattern.MatchString(v):
		return digest{algo: digestSHA256, hex: strings.ToLower(v)}
	case sha1Pattern.MatchString(v):
		return digest{algo: digestGitBlob, hex: strings.ToLower(v)}
	default:
		return digest{}
	}
}

func normalizeETag(v string) string {
	v = strings.TrimSpace(v)
	v = strings.Trim(v, "\"")
	v = strings.TrimPrefix(v, "W/")
	v = strings.Trim(v, "\"")
	return v
}

// newHasher returns a hash matching d; size is only needed for git blobs,
// whose header encodes the content length.
func newHasher(d digest, size int64) hash.Hash {
	switch d.algo {
	case digestGitBlob:
		h := sha1.New() //nolint:gosec
		_, _ = io.WriteString(h, "blob "+strconv.FormatInt(size, 10)+"\x00")
		return h
	default:
		return sha256.New()
	}
}

// existingMatches reports whether path already holds content with digest d.
// An unknown digest never matches.
func existingMatches(path string, d digest) (bool, error) {
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat existing file: %w", err)
	}
	if fi.IsDir() {
		return false, fmt.Errorf("expected file at %s, found directory", path)
	}
	if !d.known() {
		return false, nil
	}
	actual, err := fileDigest(path, d.algo, fi.Size())
	if err != nil {
		return false, err
	}
	return actual == d.hex, nil
}

func fileDigest(path string, algo digestAlgo, size int64) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file for checksum: %w", err)
	}
	defer f.Close()

	h := newHasher(digest{algo: algo}, size)
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("read file for checksum: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
