package storage

import (
	"context"
	"fmt"

	"github.com/mlolab/mloeval/internal/report"
)

// ResultRepository knows how to store the result of an evaluation run.
type ResultRepository interface {
	StoreResult(ctx context.Context, r report.RunResult) error
}

//go:generate mockery --case underscore --output storagemock --outpkg storagemock --name ResultRepository

// NoopResultRepository doesn't store anything.
const NoopResultRepository = noopResultRepository(0)

type noopResultRepository int

func (noopResultRepository) StoreResult(context.Context, report.RunResult) error { return nil }

// MultiResultRepository stores the results in all the repositories, in order.
type MultiResultRepository []ResultRepository

func (m MultiResultRepository) StoreResult(ctx context.Context, r report.RunResult) error {
	for i, repo := range m {
		err := repo.StoreResult(ctx, r)
		if err != nil {
			return fmt.Errorf("could not store result on repository %d: %w", i, err)
		}
	}
	return nil
}
