package ingest

import (
	"context"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
)

// Report summarizes one reconciliation pass.
type Report struct {
	// Scanned is the number of record ids checked against the index.
	Scanned int `json:"scanned"`
	// Missing is how many of those had no vector.
	Missing int `json:"missing"`
	// Repaired is how many missing vectors were rebuilt.
	Repaired int `json:"repaired"`
	// Failed is how many repair attempts errored.
	Failed int `json:"failed"`
}

// Reconcile walks every stored record id, probes the vector index for it, and
// replays the blob/embed/upsert leg for the ones that are missing. Probing is
// sequential; repairs run on a bounded worker pool. Per-record repair failures
// are counted and logged, not returned: only the scan itself can fail the pass.
func (co *Coordinator) Reconcile(ctx context.Context) (Report, error) {
	ids, err := co.cases.IDs(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("ingest: reconcile scan: %w", err)
	}

	var report Report
	report.Scanned = len(ids)

	var missing []int64
	for _, id := range ids {
		ok, err := co.idx.Has(ctx, id)
		if err != nil {
			return Report{}, fmt.Errorf("ingest: reconcile probe case %d: %w", id, err)
		}
		if !ok {
			missing = append(missing, id)
		}
	}
	report.Missing = len(missing)
	if len(missing) == 0 {
		co.log.InfoContext(ctx, "reconcile complete, index is consistent", "scanned", report.Scanned)
		return report, nil
	}

	pool, err := ants.NewPool(co.poolSize)
	if err != nil {
		return Report{}, fmt.Errorf("ingest: reconcile pool: %w", err)
	}
	defer pool.Release()

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, id := range missing {
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			if err := co.repair(ctx, id); err != nil {
				co.log.WarnContext(ctx, "reconcile repair failed", "case_id", id, "error", err)
				mu.Lock()
				report.Failed++
				mu.Unlock()
				return
			}
			mu.Lock()
			report.Repaired++
			mu.Unlock()
		})
		if submitErr != nil {
			wg.Done()
			mu.Lock()
			report.Failed++
			mu.Unlock()
		}
	}
	wg.Wait()

	co.log.InfoContext(ctx, "reconcile complete",
		"scanned", report.Scanned,
		"missing", report.Missing,
		"repaired", report.Repaired,
		"failed", report.Failed)
	return report, nil
}

// repair rebuilds the vector for one stored record.
func (co *Coordinator) repair(ctx context.Context, id int64) error {
	c, err := co.cases.Get(ctx, id)
	if err != nil {
		return err
	}
	return co.indexCase(ctx, c)
}
