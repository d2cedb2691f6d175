// Package hub talks to a Hugging Face compatible model/dataset hub: it fetches
// single files or whole repository snapshots into a local directory and
// publishes local files back as commits.
//
// Every downloaded file is content-addressed. LFS objects are checked against
// their sha256 oid and regular files against their git blob sha1, so fetching
// into a directory that already holds the same revision transfers nothing.
package hub

import (
	"fmt"
	"net/url"
	"strings"
)

// Kind tags a repository as a dataset or a model.
type Kind string

const (
	KindDataset Kind = "dataset"
	KindModel   Kind = "model"
)

// Repo identifies a remote repository. It is a plain value and never mutated.
type Repo struct {
	ID   string
	Kind Kind
}

func DatasetRepo(id string) Repo { return Repo{ID: id, Kind: KindDataset} }

func ModelRepo(id string) Repo { return Repo{ID: id, Kind: KindModel} }

// ParseKind accepts "dataset", "model" and their plural forms.
func ParseKind(raw string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "dataset", "datasets":
		return KindDataset, nil
	case "", "model", "models":
		return KindModel, nil
	default:
		return "", fmt.Errorf("invalid repo kind %q (expected dataset|model)", raw)
	}
}

func (r Repo) String() string {
	return string(r.Kind) + ":" + r.ID
}

func (r Repo) validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("repo id is required")
	}
	switch r.Kind {
	case KindDataset, KindModel:
		return nil
	default:
		return fmt.Errorf("invalid repo kind %q", r.Kind)
	}
}

// webPath is the repository path used by resolve URLs: models live at the
// root, datasets under "datasets/".
func (r Repo) webPath() string {
	if r.Kind == KindDataset {
		return "datasets/" + escapeSegments(r.ID)
	}
	return escapeSegments(r.ID)
}

// apiPath is the repository path under /api.
func (r Repo) apiPath() string {
	return string(r.Kind) + "s/" + escapeSegments(r.ID)
}

func escapeSegments(p string) string {
	parts := strings.Split(p, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
