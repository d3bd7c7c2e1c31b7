package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/54b3r/casematch-go/internal/casestore"
)

// SeedFile loads a JSON array of case records from path and ingests each one
// through the normal dual-write path on a bounded worker pool. Records may
// carry explicit case_id values; seeding the same file twice overwrites the
// same records rather than duplicating them. The returned count is the number
// of records fully ingested (stored and indexed); per-record failures are
// joined into the returned error.
func (co *Coordinator) SeedFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("ingest: seed: %w", err)
	}
	var cases []casestore.Case
	if err := json.Unmarshal(data, &cases); err != nil {
		return 0, fmt.Errorf("ingest: seed: parse %s: %w", path, err)
	}
	if len(cases) == 0 {
		return 0, nil
	}

	pool, err := ants.NewPool(co.poolSize)
	if err != nil {
		return 0, fmt.Errorf("ingest: seed pool: %w", err)
	}
	defer pool.Release()

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		ingested int
		errs     []error
	)
	for i, c := range cases {
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			id, err := co.Ingest(ctx, c)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("record %d (case_id %d): %w", i, id, err))
				return
			}
			ingested++
		})
		if submitErr != nil {
			wg.Done()
			mu.Lock()
			errs = append(errs, fmt.Errorf("record %d: %w", i, submitErr))
			mu.Unlock()
		}
	}
	wg.Wait()

	if len(errs) > 0 {
		return ingested, fmt.Errorf("ingest: seed: %d of %d records failed: %w",
			len(errs), len(cases), errors.Join(errs...))
	}
	co.log.InfoContext(ctx, "seed complete", "file", path, "ingested", ingested)
	return ingested, nil
}
