package services

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/phuslu/log"

	"fintool-server/src/logging"
	"fintool-server/src/metrics"
	"fintool-server/src/models"
	"fintool-server/src/plaid"
)

const (
	MaxTransactions    = 200
	LatestTransactions = 25

	DefaultMaxPages           = 100
	DefaultMaxMutationRetries = 3

	confidenceVeryHigh = "VERY_HIGH"
)

// highlightCategories are the primary categories flagged as discretionary.
var highlightCategories = map[string]bool{
	"FOOD_AND_DRINK": true,
	"PERSONAL_CARE":  true,
	"ENTERTAINMENT":  true,
}

// SyncSource is the part of the upstream feed the reconciler drains.
type SyncSource interface {
	TransactionsSync(ctx context.Context, accessToken, cursor string) (*plaid.SyncPage, error)
}

type ReconcilerOptions struct {
	MaxPages           int
	MaxMutationRetries int
}

type Reconciler struct {
	source  SyncSource
	opts    ReconcilerOptions
	metrics metrics.Recorder
	logger  *log.Logger
}

// Reconciliation is the outcome of one drain-and-merge. Transactions is
// sorted and capped at MaxTransactions.
type Reconciliation struct {
	Transactions        []models.Transaction
	Removed             []models.RemovedTransaction
	Cursor              string
	Pages               int
	TransactionsChanged bool
	CursorChanged       bool
}

// ShouldPersist reports whether the snapshot or the cursor moved.
func (r *Reconciliation) ShouldPersist() bool {
	return r.TransactionsChanged || r.CursorChanged
}

func (r *Reconciliation) Latest() []models.Transaction {
	return latest(r.Transactions)
}

func NewReconciler(source SyncSource, opts ReconcilerOptions, recorder metrics.Recorder, logger *log.Logger) *Reconciler {
	if opts.MaxPages <= 0 {
		opts.MaxPages = DefaultMaxPages
	}
	if opts.MaxMutationRetries < 0 {
		opts.MaxMutationRetries = 0
	}
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Reconciler{source: source, opts: opts, metrics: recorder, logger: logger}
}

type delta struct {
	added    []models.Transaction
	modified []models.Transaction
	removed  []models.RemovedTransaction
	cursor   string
	pages    int
}

// Reconcile drains the delta stream from cursor and merges it into cached.
// Nothing is written; the caller persists when ShouldPersist is true.
func (r *Reconciler) Reconcile(ctx context.Context, accessToken string, cached []models.Transaction, cursor string) (*Reconciliation, error) {
	stored := PrepareSnapshot(cached)

	d, err := r.drain(ctx, accessToken, cursor)
	if err != nil {
		return nil, err
	}

	merged := MergeTransactions(stored, d.added, d.modified, d.removed)
	SortTransactions(merged)
	Annotate(merged)
	limited := truncate(merged, MaxTransactions)

	changed, err := snapshotChanged(stored, limited)
	if err != nil {
		return nil, err
	}

	removed := d.removed
	if removed == nil {
		removed = []models.RemovedTransaction{}
	}
	return &Reconciliation{
		Transactions:        limited,
		Removed:             removed,
		Cursor:              d.cursor,
		Pages:               d.pages,
		TransactionsChanged: changed,
		CursorChanged:       d.cursor != cursor,
	}, nil
}

// drain restarts from the initial cursor when the upstream reports that
// its data changed mid pagination.
func (r *Reconciler) drain(ctx context.Context, accessToken, cursor string) (*delta, error) {
	for attempt := 0; ; attempt++ {
		d, err := r.drainOnce(ctx, accessToken, cursor)
		if err == nil {
			return d, nil
		}
		if !plaid.HasCode(err, plaid.CodeMutationDuringPagination) {
			return nil, err
		}
		if attempt >= r.opts.MaxMutationRetries {
			return nil, fmt.Errorf("%w after %d attempts: %w", ErrSyncMutationRetries, attempt+1, err)
		}
		r.logger.Warn().Int("attempt", attempt+1).Msg("Upstream mutated during pagination, restarting sync")
	}
}

func (r *Reconciler) drainOnce(ctx context.Context, accessToken, cursor string) (*delta, error) {
	d := &delta{cursor: cursor}
	hasMore := true
	for hasMore {
		if d.pages >= r.opts.MaxPages {
			return nil, fmt.Errorf("%w: %d pages", ErrSyncPageLimit, r.opts.MaxPages)
		}
		page, err := r.source.TransactionsSync(ctx, accessToken, d.cursor)
		if err != nil {
			return nil, err
		}
		d.pages++
		r.metrics.SyncPage(metrics.ProductTransactions)

		d.added = append(d.added, page.Added...)
		d.modified = append(d.modified, page.Modified...)
		d.removed = append(d.removed, page.Removed...)
		d.cursor = page.NextCursor
		hasMore = page.HasMore
	}
	return d, nil
}

// PrepareSnapshot returns a sorted copy of cached capped at MaxTransactions.
func PrepareSnapshot(cached []models.Transaction) []models.Transaction {
	out := slices.Clone(cached)
	if out == nil {
		out = []models.Transaction{}
	}
	SortTransactions(out)
	return truncate(out, MaxTransactions)
}

// MergeTransactions overlays added then modified onto stored by key, then
// drops every removed key. A key keeps the position of its first insertion;
// records without any key are skipped.
func MergeTransactions(stored, added, modified []models.Transaction, removed []models.RemovedTransaction) []models.Transaction {
	order := make([]string, 0, len(stored)+len(added))
	byKey := make(map[string]models.Transaction, len(stored)+len(added))

	put := func(t models.Transaction) {
		key := t.Key()
		if key == "" {
			return
		}
		if _, ok := byKey[key]; !ok {
			order = append(order, key)
		}
		byKey[key] = t
	}
	for _, t := range stored {
		put(t)
	}
	for _, t := range added {
		put(t)
	}
	for _, t := range modified {
		put(t)
	}
	for _, rm := range removed {
		if key := rm.Key(); key != "" {
			delete(byKey, key)
		}
	}

	out := make([]models.Transaction, 0, len(byKey))
	for _, key := range order {
		if t, ok := byKey[key]; ok {
			out = append(out, t)
		}
	}
	return out
}

// CompareTransactions orders newest first. Undated records go last. On an
// equal date the authorization stamp decides, later first.
func CompareTransactions(a, b models.Transaction) int {
	if a.Date == "" || b.Date == "" {
		return presence(b.Date) - presence(a.Date)
	}
	if a.Date == b.Date {
		aAuth := authorizedStamp(a)
		bAuth := authorizedStamp(b)
		if aAuth == bAuth {
			return 0
		}
		if aAuth < bAuth {
			return 1
		}
		return -1
	}
	if a.Date < b.Date {
		return 1
	}
	return -1
}

// SortTransactions sorts in place, keeping ties in input order.
func SortTransactions(list []models.Transaction) {
	slices.SortStableFunc(list, CompareTransactions)
}

// IsUnnecessary flags outflows that are high-confidence or fall in a
// discretionary category.
func IsUnnecessary(t models.Transaction) bool {
	if t.Amount <= 0 {
		return false
	}
	pfc := t.PersonalFinanceCategory
	if pfc == nil {
		return false
	}
	return pfc.ConfidenceLevel == confidenceVeryHigh || highlightCategories[pfc.Primary]
}

// Annotate recomputes Unnecessary on every record.
func Annotate(list []models.Transaction) {
	for i := range list {
		list[i].Unnecessary = IsUnnecessary(list[i])
	}
}

func authorizedStamp(t models.Transaction) string {
	if t.AuthorizedDate != "" {
		return t.AuthorizedDate
	}
	return t.AuthorizedDatetime
}

func presence(s string) int {
	if s != "" {
		return 1
	}
	return 0
}

func truncate(list []models.Transaction, n int) []models.Transaction {
	if len(list) > n {
		return list[:n:n]
	}
	return list
}

func latest(list []models.Transaction) []models.Transaction {
	return truncate(list, LatestTransactions)
}

func snapshotChanged(before, after []models.Transaction) (bool, error) {
	a, err := json.Marshal(before)
	if err != nil {
		return false, fmt.Errorf("encode stored transactions: %w", err)
	}
	b, err := json.Marshal(after)
	if err != nil {
		return false, fmt.Errorf("encode merged transactions: %w", err)
	}
	return string(a) != string(b), nil
}
