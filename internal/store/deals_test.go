// internal/store/deals_test.go
package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recurring-scheduler/internal/models"
)

// ==========================
// Exists
// ==========================

func TestDealStore_Exists(t *testing.T) {
	tests := []struct {
		name      string
		mockQuery func(mock sqlmock.Sqlmock)
		want      *models.DealSummary
	}{
		{
			name: "no deal for sequence",
			mockQuery: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT id, status, deal_number\s+FROM deals`).
					WithArgs("series-1", 3).
					WillReturnRows(sqlmock.NewRows([]string{"id", "status", "deal_number"}))
			},
			want: nil,
		},
		{
			name: "existing draft",
			mockQuery: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"id", "status", "deal_number"}).
					AddRow("deal-1", "draft", "D-0007")
				mock.ExpectQuery(`SELECT id, status, deal_number\s+FROM deals`).
					WithArgs("series-1", 3).
					WillReturnRows(rows)
			},
			want: &models.DealSummary{ID: "deal-1", Status: models.DealStatusDraft, DealNumber: "D-0007"},
		},
		{
			name: "already paid",
			mockQuery: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"id", "status", "deal_number"}).
					AddRow("deal-2", "paid", "D-0008")
				mock.ExpectQuery(`SELECT id, status, deal_number\s+FROM deals`).
					WithArgs("series-1", 3).
					WillReturnRows(rows)
			},
			want: &models.DealSummary{ID: "deal-2", Status: models.DealStatusPaid, DealNumber: "D-0008"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
			require.NoError(t, err)
			defer db.Close()

			tt.mockQuery(mock)

			d := NewDealStore(db, createTestLogger(t))
			got, err := d.Exists(context.Background(), "series-1", 3)

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

// ==========================
// NextNumber
// ==========================

func TestDealStore_NextNumber(t *testing.T) {
	tests := []struct {
		name      string
		mockQuery func(mock sqlmock.Sqlmock)
		want      string
	}{
		{
			name: "increments highest numeric suffix",
			mockQuery: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"deal_number"}).AddRow("D-0041")
				mock.ExpectQuery(`SELECT deal_number FROM deals`).
					WithArgs("team-1").
					WillReturnRows(rows)
			},
			want: "D-0042",
		},
		{
			name: "falls back to count when no numbered deals",
			mockQuery: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT deal_number FROM deals`).
					WithArgs("team-1").
					WillReturnRows(sqlmock.NewRows([]string{"deal_number"}))
				mock.ExpectQuery(`SELECT COUNT\(\*\) FROM deals`).
					WithArgs("team-1").
					WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))
			},
			want: "D-0013",
		},
		{
			name: "keeps longer suffixes unpadded",
			mockQuery: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"deal_number"}).AddRow("INV-20260")
				mock.ExpectQuery(`SELECT deal_number FROM deals`).
					WithArgs("team-1").
					WillReturnRows(rows)
			},
			want: "D-20261",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
			require.NoError(t, err)
			defer db.Close()

			tt.mockQuery(mock)

			d := NewDealStore(db, createTestLogger(t))
			got, err := d.NextNumber(context.Background(), "team-1")

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

// ==========================
// Create
// ==========================

func TestDealStore_Create(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	issue := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(`INSERT INTO deals`).
		WithArgs(
			"deal-1", "team-1", "user-1", "merchant-1", "Acme Corp",
			"D-0042", issue, issue.AddDate(0, 0, 30),
			500.0, "USD", nil, nil,
			[]byte(`[{"name":"Retainer"}]`), nil, nil, nil, nil,
			nil, nil, nil,
			"series-1", 3,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	d := NewDealStore(db, createTestLogger(t))
	err = d.Create(context.Background(), models.NewDealParams{
		ID:           "deal-1",
		TeamID:       "team-1",
		UserID:       "user-1",
		SeriesID:     "series-1",
		Sequence:     3,
		DealNumber:   "D-0042",
		IssueDate:    issue,
		DueDate:      issue.AddDate(0, 0, 30),
		MerchantID:   strPtr("merchant-1"),
		MerchantName: strPtr("Acme Corp"),
		Amount:       floatPtr(500),
		Currency:     strPtr("USD"),
		LineItems:    []byte(`[{"name":"Retainer"}]`),
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
