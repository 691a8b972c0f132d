package fs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"strings"
	"sync"

	"github.com/mlolab/mloeval/internal/log"
	"github.com/mlolab/mloeval/internal/scenario"
)

// ErrNotFound is returned when a scenario is missing.
var ErrNotFound = errors.New("not found")

// ScenarioLoader loads a scenario from a single YAML document.
type ScenarioLoader interface {
	LoadSpec(ctx context.Context, data []byte) (*scenario.Scenario, error)
}

//go:generate mockery --case underscore --output fsmock --outpkg fsmock --name ScenarioLoader

// FileScenarioRepo discovers and loads scenario specs from file systems. Files can have
// multiple YAML documents, the scenarios are kept in discovery order.
type FileScenarioRepo struct {
	loader    ScenarioLoader
	scenarios []scenario.Scenario
	index     map[string]int
	logger    log.Logger
	mu        sync.RWMutex
}

// NewFileScenarioRepo returns a new empty FileScenarioRepo.
func NewFileScenarioRepo(logger log.Logger, loader ScenarioLoader) *FileScenarioRepo {
	if logger == nil {
		logger = log.Noop
	}

	return &FileScenarioRepo{
		loader: loader,
		index:  map[string]int{},
		logger: logger.WithValues(log.Kv{"svc": "storage.fs.ScenarioRepo"}),
	}
}

var scenarioFileRegex = regexp.MustCompile(`(?i)\.ya?ml$`)

// Load walks root on fsys and loads all the YAML files found. Root can be a single file.
// Scenario names must be unique across all the loads.
func (r *FileScenarioRepo) Load(ctx context.Context, fsys fs.FS, root string) (int, error) {
	loaded := []scenario.Scenario{}
	err := fs.WalkDir(fsys, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			// Hidden directories are ignored.
			if p != root && strings.HasPrefix(path.Base(p), ".") {
				return fs.SkipDir
			}
			return nil
		}

		if !scenarioFileRegex.MatchString(p) {
			return nil
		}

		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return fmt.Errorf("could not read %q scenario file: %w", p, err)
		}

		for i, doc := range SplitYAML(data) {
			sc, err := r.loader.LoadSpec(ctx, doc)
			if err != nil {
				return fmt.Errorf("could not load %q scenario (document %d): %w", p, i, err)
			}
			loaded = append(loaded, *sc)
			r.logger.WithValues(log.Kv{"scenario": sc.Name, "file": p}).Debugf("Scenario discovered and loaded")
		}

		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("could not walk dir: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, sc := range loaded {
		if _, ok := r.index[sc.Name]; ok {
			return 0, fmt.Errorf("scenario %q already loaded", sc.Name)
		}
	}
	for _, sc := range loaded {
		r.index[sc.Name] = len(r.scenarios)
		r.scenarios = append(r.scenarios, sc)
	}

	r.logger.WithValues(log.Kv{"scenarios": len(loaded), "root": root}).Infof("Scenarios loaded")
	return len(loaded), nil
}

func (r *FileScenarioRepo) GetScenario(_ context.Context, name string) (*scenario.Scenario, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.index[name]
	if !ok {
		return nil, fmt.Errorf("scenario %q: %w", name, ErrNotFound)
	}

	sc := r.scenarios[i]
	return &sc, nil
}

func (r *FileScenarioRepo) ListScenarios(_ context.Context) ([]scenario.Scenario, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]scenario.Scenario{}, r.scenarios...), nil
}

var yamlDocSeparator = regexp.MustCompile(`(?m)^---\s*$`)

// SplitYAML splits a multi document YAML, empty documents are ignored.
func SplitYAML(data []byte) [][]byte {
	docs := [][]byte{}
	for _, doc := range yamlDocSeparator.Split(string(data), -1) {
		if strings.TrimSpace(doc) == "" {
			continue
		}
		docs = append(docs, []byte(doc))
	}
	return docs
}
