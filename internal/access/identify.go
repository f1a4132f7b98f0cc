package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/kozaktomas/lab-access/internal/biometric"
	"github.com/kozaktomas/lab-access/internal/config"
	"github.com/kozaktomas/lab-access/internal/constants"
	"github.com/kozaktomas/lab-access/internal/database"
)

// IdentifyResult is the outcome of open identification.
// Identity and Confidence are set only when Matched.
type IdentifyResult struct {
	Matched    bool
	Identity   string
	Confidence int
	Distance   float64 // distance of the nearest template, 0 when nothing is enrolled
	Compared   int     // number of templates measured
}

type nearest struct {
	identity string
	distance float64
	found    bool
}

// consider keeps the smaller distance; equal distances go to the lower identity.
func (n *nearest) consider(identity string, distance float64) {
	if !n.found || distance < n.distance || (distance == n.distance && identity < n.identity) {
		n.identity = identity
		n.distance = distance
		n.found = true
	}
}

// Identify finds the enrolled identity nearest to probe. It is read-only and
// is not recorded in the audit log.
func (e *Engine) Identify(ctx context.Context, probe []float32) (IdentifyResult, error) {
	if err := e.validateProbe(probe); err != nil {
		return IdentifyResult{}, err
	}

	var (
		best     nearest
		compared int
		err      error
	)
	if e.strategy == config.StrategyIndex && e.index != nil {
		best, compared, err = e.nearestFromIndex(ctx, probe)
	}
	if !best.found && err == nil {
		best, compared, err = e.nearestFromScan(ctx, probe)
	}
	if err != nil {
		return IdentifyResult{}, err
	}

	res := IdentifyResult{Compared: compared}
	if !best.found {
		return res, nil
	}
	res.Distance = best.distance
	if e.matcher.IsMatch(best.distance) {
		res.Matched = true
		res.Identity = best.identity
		res.Confidence = biometric.Confidence(best.distance)
	}
	return res, nil
}

// nearestFromScan measures every enrolled template, one keyset page at a time.
func (e *Engine) nearestFromScan(ctx context.Context, probe []float32) (nearest, int, error) {
	var (
		best     nearest
		compared int
		after    string
	)
	for {
		if err := ctx.Err(); err != nil {
			return nearest{}, compared, fmt.Errorf("identify scan: %w", err)
		}
		page, err := e.templates.ListRecords(ctx, after, constants.ScanPageSize)
		if err != nil {
			return nearest{}, compared, fmt.Errorf("identify scan: %w", err)
		}
		for i := range page {
			d, err := e.matcher.Distance(probe, page[i].Vector)
			if err != nil {
				return nearest{}, compared, fmt.Errorf("template %s: %w", page[i].Identity, err)
			}
			compared++
			best.consider(page[i].Identity, d)
		}
		if len(page) < constants.ScanPageSize {
			return best, compared, nil
		}
		after = page[len(page)-1].Identity
	}
}

// nearestFromIndex re-measures the index's candidates against the stored templates.
// An empty index, or one whose size differs from the store, yields no result and
// the caller scans instead. Templates enrolled by another process never reach
// this process's index, so only a full index may answer.
func (e *Engine) nearestFromIndex(ctx context.Context, probe []float32) (nearest, int, error) {
	stored, err := e.templates.Count(ctx)
	if err != nil {
		return nearest{}, 0, fmt.Errorf("count templates: %w", err)
	}
	if indexed := e.index.Count(); indexed != stored {
		e.logger.Debug("template index out of date, scanning", "indexed", indexed, "stored", stored)
		return nearest{}, 0, nil
	}

	ids, err := e.index.Search(probe, database.HNSWCandidates)
	if errors.Is(err, database.ErrIndexEmpty) {
		return nearest{}, 0, nil
	}
	if err != nil {
		return nearest{}, 0, fmt.Errorf("index search: %w", err)
	}

	var (
		best     nearest
		compared int
	)
	for _, id := range ids {
		rec, err := e.templates.Get(ctx, id)
		if err != nil {
			return nearest{}, compared, fmt.Errorf("load candidate %s: %w", id, err)
		}
		if rec == nil {
			continue
		}
		d, err := e.matcher.Distance(probe, rec.Vector)
		if err != nil {
			return nearest{}, compared, fmt.Errorf("template %s: %w", rec.Identity, err)
		}
		compared++
		best.consider(rec.Identity, d)
	}
	return best, compared, nil
}
