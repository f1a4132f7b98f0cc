package access

import (
	"context"
	"fmt"

	"github.com/kozaktomas/lab-access/internal/constants"
	"github.com/kozaktomas/lab-access/internal/database"
)

// RebuildIndex reloads every enrolled template into the template index and
// returns the number indexed. progress, when set, is called once per page
// with the number of templates read so far.
func (e *Engine) RebuildIndex(ctx context.Context, progress func(done int)) (int, error) {
	if e.index == nil {
		return 0, ErrIndexDisabled
	}

	var (
		records []database.EnrollmentRecord
		after   string
	)
	for {
		if err := ctx.Err(); err != nil {
			return 0, fmt.Errorf("rebuild index: %w", err)
		}
		page, err := e.templates.ListRecords(ctx, after, constants.ScanPageSize)
		if err != nil {
			return 0, fmt.Errorf("rebuild index: %w", err)
		}
		for i := range page {
			if len(page[i].Vector) == e.dim {
				records = append(records, page[i])
				continue
			}
			e.logger.Warn("skipping template with unexpected dimension",
				"identity", page[i].Identity, "dim", len(page[i].Vector), "expected", e.dim)
		}
		if progress != nil {
			progress(len(records))
		}
		if len(page) < constants.ScanPageSize {
			break
		}
		after = page[len(page)-1].Identity
	}

	e.index.Build(records)
	e.logger.Info("template index rebuilt", "templates", len(records))
	return len(records), nil
}

// LoadIndex restores the template index from path when the persisted copy
// matches the store, otherwise rebuilds it. It reports whether the file was used.
func (e *Engine) LoadIndex(ctx context.Context, path string) (bool, error) {
	if e.index == nil {
		return false, ErrIndexDisabled
	}

	count, err := e.templates.Count(ctx)
	if err != nil {
		return false, fmt.Errorf("count templates: %w", err)
	}

	loaded, err := e.index.Load(path, count)
	if err != nil {
		e.logger.Warn("failed to load template index, rebuilding", "path", path, "error", err)
	}
	if loaded {
		e.logger.Info("template index loaded", "path", path, "templates", e.index.Count())
		return true, nil
	}

	if _, err := e.RebuildIndex(ctx, nil); err != nil {
		return false, err
	}
	return false, nil
}

// SaveIndex persists the template index to path.
func (e *Engine) SaveIndex(path string) error {
	if e.index == nil {
		return ErrIndexDisabled
	}
	if err := e.index.Save(path); err != nil {
		return fmt.Errorf("save template index: %w", err)
	}
	return nil
}

// IndexCount returns the number of indexed templates, 0 when the index is disabled.
func (e *Engine) IndexCount() int {
	if e.index == nil {
		return 0
	}
	return e.index.Count()
}
