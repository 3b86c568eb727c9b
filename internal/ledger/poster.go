// Package ledger drives the two-phase demote write: supplier ledger
// movements first, then the per-line postings that reference them.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/mercantil/demote-service/internal/database"
	"github.com/mercantil/demote-service/internal/grouping"
	"github.com/mercantil/demote-service/internal/types"
	"github.com/mercantil/demote-service/internal/validation"
)

// PostingStore is the slice of the persistence boundary the poster needs.
// Satisfied by *database.Store.
type PostingStore interface {
	PostMovement(ctx context.Context, p database.MovementParams) ([]database.ProcRow, error)
	PostLineDemote(ctx context.Context, p database.LineDemoteParams) ([]database.ProcRow, error)
}

// Batch is one demote submission.
type Batch struct {
	Items       []types.LineItem
	DepositDate time.Time
	Observation string
}

// BatchResult carries the outcome of a batch submission. Movements holds
// one result per posted ledger movement (its Value is the generated
// movement id); Lines holds one result per submitted line item, in input
// order.
type BatchResult struct {
	Movements []*validation.Result
	Lines     []*validation.Result
}

// Valid reports whether every movement and every line posted clean.
func (b *BatchResult) Valid() bool {
	for _, r := range b.Movements {
		if !r.IsValid() {
			return false
		}
	}
	for _, r := range b.Lines {
		if !r.IsValid() {
			return false
		}
	}
	return true
}

// Poster runs the two-phase write protocol. Items are posted one at a
// time in input order; there is no cross-item transaction, so a partial
// failure leaves earlier postings committed. Every persistence failure is
// converted into an error on that item's result and never aborts the rest
// of the batch.
type Poster struct {
	store  PostingStore
	logger zerolog.Logger

	now func() time.Time
}

// NewPoster returns a Poster over the given store.
func NewPoster(store PostingStore, logger zerolog.Logger) *Poster {
	return &Poster{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Post runs the full protocol: group the batch into ledger movements,
// post each movement, and, if every movement posted clean, post each line
// item referencing its movement's generated id. Line items whose movement
// received no id are posted without one.
func (p *Poster) Post(ctx context.Context, batch Batch) (*BatchResult, error) {
	if len(batch.Items) == 0 {
		return &BatchResult{}, nil
	}

	start := p.now()
	batchSize.Observe(float64(len(batch.Items)))

	movements := grouping.Movements(batch.Items)

	result := &BatchResult{}
	movementIDs := make(map[string]*int64, len(movements))

	for _, mv := range movements {
		res, id := p.postMovement(ctx, mv, batch)
		result.Movements = append(result.Movements, res)
		movementIDs[movementKey(mv.BranchID, mv.SupplierID, mv.TypistName)] = id

		p.logMovementResult(mv, res)
	}

	// Line postings only proceed when every movement posted clean;
	// a movement that failed a business check must not get line
	// postings attached to a half-posted batch.
	for _, res := range result.Movements {
		if !res.IsValid() {
			p.logger.Warn().Msg("Movement phase carried errors, skipping line postings")
			batchDuration.Observe(p.now().Sub(start).Seconds())
			return result, nil
		}
	}

	for _, item := range batch.Items {
		id := movementIDs[movementKey(item.BranchID, item.SupplierID, types.NormalizeTypist(item.TypistName))]
		result.Lines = append(result.Lines, p.postLine(ctx, item, id))
	}

	batchDuration.Observe(p.now().Sub(start).Seconds())
	return result, nil
}

func movementKey(branchID, supplierID int64, typist string) string {
	return fmt.Sprintf("%d|%d|%s", branchID, supplierID, typist)
}

// postMovement posts one aggregated movement and interprets the pendency
// codes of the returned rows. When the posting is valid, the first row's
// generated id is returned and also stored in the result's Value.
func (p *Poster) postMovement(ctx context.Context, mv types.LedgerMovement, batch Batch) (*validation.Result, *int64) {
	res := validation.NewResult()

	rows, err := p.store.PostMovement(ctx, database.MovementParams{
		BranchID:         mv.BranchID,
		SupplierID:       mv.SupplierID,
		MovementValue:    mv.MovementValue,
		RegistrationDate: p.now(),
		DepositDate:      batch.DepositDate,
		MovementType:     mv.MovementType,
		TypistName:       mv.TypistName,
		Observation:      batch.Observation,
	})
	if err != nil {
		res.AddError(fmt.Sprintf("posting movement for supplier %d on branch %d: %v", mv.SupplierID, mv.BranchID, err))
		movementsPosted.WithLabelValues("failed").Inc()
		return res, nil
	}

	for _, row := range rows {
		p.classify(res, row, "")
	}

	if !res.IsValid() {
		movementsPosted.WithLabelValues("rejected").Inc()
		return res, nil
	}

	movementsPosted.WithLabelValues(mv.MovementType.String()).Inc()

	if len(rows) == 0 || rows[0].GeneratedID == 0 {
		return res, nil
	}
	id := rows[0].GeneratedID
	res.Value = id
	return res, &id
}

// postLine posts a single line item. Persistence failures become a single
// error on the line's result; the caller keeps going with the next line.
func (p *Poster) postLine(ctx context.Context, item types.LineItem, movementID *int64) *validation.Result {
	res := validation.NewResult()

	rows, err := p.store.PostLineDemote(ctx, database.LineDemoteParams{
		InvoiceID:         item.InvoiceID,
		ProductID:         item.ProductID,
		MarkdownUnitValue: item.MarkdownValueUnit,
		MovementID:        movementID,
	})
	if err != nil {
		res.AddErrorKeyed(item.InvoiceNumber, fmt.Sprintf("posting demote for invoice %s, product %d: %v", item.InvoiceNumber, item.ProductID, err))
		linesPosted.WithLabelValues("failed").Inc()
		return res
	}

	for _, row := range rows {
		p.classify(res, row, item.InvoiceNumber)
	}

	switch {
	case !res.IsValid():
		linesPosted.WithLabelValues("error").Inc()
	case len(res.Warnings()) > 0:
		linesPosted.WithLabelValues("warning").Inc()
	default:
		linesPosted.WithLabelValues("ok").Inc()
	}
	return res
}

// classify applies the pendency-code convention to one returned row.
func (p *Poster) classify(res *validation.Result, row database.ProcRow, key string) {
	class := validation.ClassifyPendency(row.PendencyID)
	pendencies.WithLabelValues(class.String()).Inc()

	text := ""
	if row.PendencyText != nil {
		text = *row.PendencyText
	}

	switch class {
	case validation.PendencyWarning:
		res.AddWarningKeyed(key, fmt.Sprintf("posting accepted with pendency %d: %s", *row.PendencyID, text))
	case validation.PendencyError:
		res.AddErrorKeyed(key, fmt.Sprintf("posting rejected with pendency %d: %s", *row.PendencyID, text))
	}
}

func (p *Poster) logMovementResult(mv types.LedgerMovement, res *validation.Result) {
	event := p.logger.Info()
	if !res.IsValid() {
		event = p.logger.Error()
	}

	event.
		Int64("branch", mv.BranchID).
		Int64("supplier", mv.SupplierID).
		Str("typist", mv.TypistName).
		Str("type", mv.MovementType.String()).
		Str("value", mv.MovementValue.String()).
		Int("errors", len(res.Errors())).
		Int("warnings", len(res.Warnings())).
		Msg("Posted ledger movement")
}
