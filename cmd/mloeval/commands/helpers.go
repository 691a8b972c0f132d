package commands

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/mlolab/mloeval/internal/log"
	"github.com/mlolab/mloeval/internal/scenario"
	"github.com/mlolab/mloeval/internal/storage"
	storagecsv "github.com/mlolab/mloeval/internal/storage/csv"
	storagefs "github.com/mlolab/mloeval/internal/storage/fs"
	storagesqlite "github.com/mlolab/mloeval/internal/storage/sqlite"
)

// discoverScenarioFiles returns the YAML files of a path, recursively when it's a directory.
func discoverScenarioFiles(logger log.Logger, path string) ([]string, error) {
	logger = logger.WithValues(log.Kv{"svc": "ScenarioDiscovery"})

	paths := []string{}
	err := filepath.Walk(path, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}

		// Directories and non YAML files don't need to be handled.
		extension := strings.ToLower(filepath.Ext(path))
		if info.IsDir() || (extension != ".yml" && extension != ".yaml") {
			return nil
		}

		logger.Debugf("Scenario file discovered %s", path)
		paths = append(paths, path)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("could not find files recursively: %w", err)
	}

	return paths, nil
}

// loadScenarios loads every scenario of the input paths, files or directories discovered
// recursively. The baseline scenario is returned without inputs.
func loadScenarios(ctx context.Context, logger log.Logger, inputs []string) ([]scenario.Scenario, error) {
	if len(inputs) == 0 {
		return []scenario.Scenario{scenario.Default()}, nil
	}

	repo := storagefs.NewFileScenarioRepo(logger, scenario.YAMLSpecLoader)
	for _, input := range inputs {
		st, err := os.Stat(input)
		if err != nil {
			return nil, fmt.Errorf("could not stat scenario input: %w", err)
		}

		dir, root := input, "."
		if !st.IsDir() {
			dir, root = filepath.Dir(input), filepath.Base(input)
		}

		_, err = repo.Load(ctx, os.DirFS(dir), root)
		if err != nil {
			return nil, fmt.Errorf("could not load scenarios from %s: %w", input, err)
		}
	}

	scenarios, err := repo.ListScenarios(ctx)
	if err != nil {
		return nil, err
	}
	if len(scenarios) == 0 {
		return nil, fmt.Errorf("0 scenario specs have been discovered")
	}

	return scenarios, nil
}

// resultRepository returns the repository for the output flags and a function to release it.
func (o outputFlags) resultRepository(ctx context.Context, logger log.Logger) (storage.ResultRepository, func(), error) {
	repos := storage.MultiResultRepository{}
	closers := []func(){}
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	if o.csvPath != "" {
		f, err := os.OpenFile(o.csvPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("could not open CSV file: %w", err)
		}
		closers = append(closers, func() { _ = f.Close() })

		st, err := f.Stat()
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("could not stat CSV file: %w", err)
		}

		// Appending to an existing file keeps its header.
		repos = append(repos, storagecsv.NewResultRepo(f, st.Size() == 0, logger))
	}

	if o.sqlitePath != "" {
		repo, err := storagesqlite.NewResultRepo(ctx, o.sqlitePath, logger)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("could not open SQLite repository: %w", err)
		}
		closers = append(closers, func() { _ = repo.Close() })
		repos = append(repos, repo)
	}

	if len(repos) == 0 {
		return storage.NoopResultRepository, closeAll, nil
	}

	return repos, closeAll, nil
}
