package sheetsync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/toshionoda/mazrica-civilink/mazrica"
)

// DealSource abstracts the CRM fetch so the syncer can be tested without a
// live API.
type DealSource interface {
	FetchDealsWithProducts(ctx context.Context, dealTypeID int64) ([]*mazrica.Deal, error)
}

// SyncStats summarizes one sync cycle.
type SyncStats struct {
	TotalDeals    int
	FilteredDeals int
	ExistingIDs   int
	NewRows       int
	DeletedRows   int
	SkippedDeals  int
	SyncedAt      time.Time
}

// Syncer runs one differential sync cycle: fetch deals, filter them, compare
// against the identifiers already in the sheet, and apply the resulting diff.
// Cycles are independent; no state survives between runs.
type Syncer struct {
	source DealSource
	store  Store
	cfg    Config
	filter Filter
	logger *slog.Logger
}

// NewSyncer wires a deal source and a store together. A nil logger falls
// back to slog.Default.
func NewSyncer(source DealSource, store Store, cfg Config, filter Filter, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{source: source, store: store, cfg: cfg, filter: filter, logger: logger}
}

// Run executes one cycle and reports stats. A dealTypeID of 0 syncs every
// deal type. Failures leave any already-applied mutations in place; the next
// cycle re-derives its diff against the partially updated sheet.
func (s *Syncer) Run(ctx context.Context, dealTypeID int64) (SyncStats, error) {
	stats := SyncStats{SyncedAt: time.Now()}

	s.logger.Info("fetching deals", "deal_type_id", dealTypeID)
	allDeals, err := s.source.FetchDealsWithProducts(ctx, dealTypeID)
	if err != nil {
		return stats, fmt.Errorf("failed to fetch deals: %w", err)
	}
	stats.TotalDeals = len(allDeals)

	deals := ApplyFilter(allDeals, s.filter)
	stats.FilteredDeals = len(deals)
	s.logger.Info("fetched deals", "total", stats.TotalDeals, "after_filter", stats.FilteredDeals)

	sheet := s.cfg.sheetOr("")
	idColumn := s.cfg.idColumnOr(0)

	existingIDs, err := s.store.ExistingIDs(ctx, sheet, idColumn)
	if err != nil {
		return stats, fmt.Errorf("failed to read existing ids: %w", err)
	}
	stats.ExistingIDs = len(existingIDs)

	existingSet := make(map[string]struct{}, len(existingIDs))
	for _, id := range existingIDs {
		existingSet[NormalizeID(id)] = struct{}{}
	}

	crmSet := make(map[string]struct{}, len(deals))
	for _, d := range deals {
		crmSet[NormalizeID(d.ID)] = struct{}{}
	}

	// New deals: in the CRM, not yet in the sheet. The flattener may turn
	// one deal into several rows.
	var newRows [][]interface{}
	for _, d := range deals {
		if _, ok := existingSet[NormalizeID(d.ID)]; ok {
			stats.SkippedDeals++
			continue
		}
		newRows = append(newRows, Rows(DealRows(d))...)
	}

	// Stale IDs: in the sheet, no longer upstream. Deletion removes every
	// row carrying the ID, so duplicates from multi-line-item deals are
	// collapsed here.
	var deleteIDs []interface{}
	seen := make(map[string]struct{})
	for _, id := range existingIDs {
		norm := NormalizeID(id)
		if _, ok := crmSet[norm]; ok {
			continue
		}
		if _, dup := seen[norm]; dup {
			continue
		}
		seen[norm] = struct{}{}
		deleteIDs = append(deleteIDs, id)
	}

	diff := Diff{NewRows: newRows, DeleteIDs: deleteIDs}
	stats.NewRows = len(newRows)

	s.logger.Info("applying diff", "sheet", sheet, "new_rows", len(newRows), "delete_ids", len(deleteIDs))
	result, err := s.store.Apply(ctx, sheet, Headers, diff, idColumn)
	if err != nil {
		return stats, fmt.Errorf("failed to apply diff: %w", err)
	}
	stats.DeletedRows = result.Deleted

	s.logger.Info("sync cycle complete", "added", result.Added, "removed", result.Deleted, "skipped_deals", stats.SkippedDeals)
	return stats, nil
}
