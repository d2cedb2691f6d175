// Package synth fetches model checkpoints and drives an external speech
// synthesis engine with them.
package synth

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/example/go-meloplus/internal/hub"
)

// ConfigFile is the engine configuration shipped next to the checkpoints.
const ConfigFile = "config.json"

// Checkpoint holds the local paths of one model version.
type Checkpoint struct {
	Repo      string
	Version   string
	Generator string // G_{version}.pth
	// Engines read only Generator and Config.
	Discriminator string // D_{version}.pth
	Duration      string // DUR_{version}.pth
	Config        string
}

// CheckpointFiles lists the repository files making up a model version.
func CheckpointFiles(version string) []string {
	return []string{
		"G_" + version + ".pth",
		"D_" + version + ".pth",
		"DUR_" + version + ".pth",
		ConfigFile,
	}
}

// FileFetcher downloads one repository file. *hub.Client implements it.
type FileFetcher interface {
	FetchFile(ctx context.Context, repo hub.Repo, filename, localDir string) (string, error)
}

// HubLoader returns a ModelLoader that downloads checkpoint sets from the
// hub into dir/{repo}_{version}, with "/" in the repository id replaced by
// "--".
func HubLoader(f FileFetcher, dir string) ModelLoader {
	return func(ctx context.Context, repo, version string) (Checkpoint, error) {
		if strings.TrimSpace(repo) == "" || strings.TrimSpace(version) == "" {
			return Checkpoint{}, fmt.Errorf("model repository and version are required")
		}

		local := filepath.Join(dir, strings.ReplaceAll(CacheKey(repo, version), "/", "--"))
		files := CheckpointFiles(version)
		paths := make([]string, len(files))
		for i, name := range files {
			p, err := f.FetchFile(ctx, hub.ModelRepo(repo), name, local)
			if err != nil {
				return Checkpoint{}, fmt.Errorf("model files could not be downloaded: %w", err)
			}
			paths[i] = p
		}

		return Checkpoint{
			Repo:          repo,
			Version:       version,
			Generator:     paths[0],
			Discriminator: paths[1],
			Duration:      paths[2],
			Config:        paths[3],
		}, nil
	}
}
