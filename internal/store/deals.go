// internal/store/deals.go
package store

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strconv"

	stderrors "recurring-scheduler/internal/common/errors"
	"recurring-scheduler/internal/common/logger"
	"recurring-scheduler/internal/models"
)

// DealStore persists deals generated from recurring series.
type DealStore struct {
	db     *sql.DB
	logger logger.Logger
}

func NewDealStore(db *sql.DB, log logger.Logger) *DealStore {
	return &DealStore{db: db, logger: log}
}

// Exists looks up the deal for a (series, sequence) pair. Returns nil when
// no deal has been created for that sequence yet. This is the idempotency
// check for generation: the caller decides whether to create, promote an
// existing draft, or skip an already-sent deal.
func (d *DealStore) Exists(ctx context.Context, seriesID string, sequence int) (*models.DealSummary, error) {
	var summary models.DealSummary
	err := d.db.QueryRowContext(ctx, `
		SELECT id, status, deal_number
		FROM deals
		WHERE deal_recurring_id = $1 AND recurring_sequence = $2
		LIMIT 1`, seriesID, sequence).Scan(&summary.ID, &summary.Status, &summary.DealNumber)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, stderrors.NewQueryExecutionFailedError("check_deal_exists", err)
	}
	return &summary, nil
}

var trailingDigits = regexp.MustCompile(`(\d+)$`)

const (
	dealNumberPrefix = "D-"
	dealNumberPad    = 4
)

// NextNumber produces the next deal number for a team, e.g. D-0042.
// The highest numeric suffix wins; teams with no numbered deals fall back
// to a count.
func (d *DealStore) NextNumber(ctx context.Context, teamID string) (string, error) {
	var lastNumber string
	err := d.db.QueryRowContext(ctx, `
		SELECT deal_number FROM deals
		WHERE team_id = $1 AND deal_number ~ '[0-9]+$'
		ORDER BY CAST(SUBSTRING(deal_number FROM '[0-9]+$') AS INTEGER) DESC
		LIMIT 1`, teamID).Scan(&lastNumber)

	switch {
	case err == sql.ErrNoRows:
		count, err := d.countDeals(ctx, teamID)
		if err != nil {
			return "", err
		}
		return formatDealNumber(count + 1), nil
	case err != nil:
		return "", stderrors.NewQueryExecutionFailedError("next_deal_number", err)
	}

	match := trailingDigits.FindStringSubmatch(lastNumber)
	if len(match) < 2 {
		count, err := d.countDeals(ctx, teamID)
		if err != nil {
			return "", err
		}
		return formatDealNumber(count + 1), nil
	}

	n, err := strconv.Atoi(match[1])
	if err != nil {
		return "", stderrors.NewQueryExecutionFailedError("next_deal_number", err)
	}
	return formatDealNumber(n + 1), nil
}

func (d *DealStore) countDeals(ctx context.Context, teamID string) (int, error) {
	var count int
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM deals WHERE team_id = $1`, teamID).Scan(&count)
	if err != nil {
		return 0, stderrors.NewQueryExecutionFailedError("count_deals", err)
	}
	return count, nil
}

func formatDealNumber(n int) string {
	return fmt.Sprintf("%s%0*d", dealNumberPrefix, dealNumberPad, n)
}

// Create inserts a draft deal carrying its recurring lineage. The unique
// (deal_recurring_id, recurring_sequence) index makes duplicate generation
// for the same cycle impossible even across concurrent runs.
func (d *DealStore) Create(ctx context.Context, p models.NewDealParams) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO deals (
			id, team_id, user_id, merchant_id, merchant_name,
			deal_number, status, issue_date, due_date,
			amount, currency, subtotal, discount,
			line_items, template, payment_details, from_details, note_details,
			top_block, bottom_block, template_id,
			deal_recurring_id, recurring_sequence,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, 'draft', $7, $8,
			$9, $10, $11, $12,
			$13, $14, $15, $16, $17,
			$18, $19, $20,
			$21, $22,
			NOW(), NOW()
		)`,
		p.ID, p.TeamID, p.UserID, p.MerchantID, p.MerchantName,
		p.DealNumber, p.IssueDate, p.DueDate,
		p.Amount, p.Currency, p.Subtotal, p.Discount,
		nullableJSON(p.LineItems), nullableJSON(p.Template), nullableJSON(p.PaymentDetails),
		nullableJSON(p.FromDetails), nullableJSON(p.NoteDetails),
		nullableJSON(p.TopBlock), nullableJSON(p.BottomBlock), p.TemplateID,
		p.SeriesID, p.Sequence,
	)
	if err != nil {
		return stderrors.NewDatabaseInsertFailedError(err)
	}

	d.logger.Info("Created deal from recurring series", map[string]interface{}{
		"dealId":     p.ID,
		"dealNumber": p.DealNumber,
		"seriesId":   p.SeriesID,
		"sequence":   p.Sequence,
	})
	return nil
}
