package db

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mauv0809/landuse-dashboard/internal/models"
	"github.com/mauv0809/landuse-dashboard/internal/pipeline"
	"github.com/mauv0809/landuse-dashboard/internal/table"
	"github.com/shopspring/decimal"
)

// Repository stores the latest refreshed table.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SaveTable replaces the stored table with t and records the refresh.
// Every row key is stored, but only cells an observation supplied, so a
// reloaded table has the same rows and reports the same Supplied cells.
// Returns the number of cells written.
func (r *Repository) SaveTable(ctx context.Context, t *table.WideTable, observations int, refreshedAt time.Time) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM indicator_values"); err != nil {
		return 0, fmt.Errorf("clearing indicator values: %w", err)
	}
	if _, err := tx.Exec(ctx, "DELETE FROM table_keys"); err != nil {
		return 0, fmt.Errorf("clearing table keys: %w", err)
	}

	keys, values := storedRows(t)
	batch := &pgx.Batch{}
	for _, k := range keys {
		batch.Queue("INSERT INTO table_keys (country, year) VALUES ($1, $2)", k.Country, k.Year)
	}
	for _, v := range values {
		batch.Queue(`
			INSERT INTO indicator_values (country, year, feature, value, refreshed_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (country, year, feature) DO UPDATE SET
				value = EXCLUDED.value,
				refreshed_at = EXCLUDED.refreshed_at
		`, v.Country, v.Year, v.Feature, v.Value, refreshedAt)
	}
	queued := batch.Len()

	if queued > 0 {
		br := tx.SendBatch(ctx, batch)
		for i := 0; i < queued; i++ {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return 0, fmt.Errorf("inserting table row: %w", err)
			}
		}
		if err := br.Close(); err != nil {
			return 0, fmt.Errorf("closing batch: %w", err)
		}
	}

	if _, err := tx.Exec(ctx,
		"INSERT INTO refreshes (refreshed_at, row_count, observations) VALUES ($1, $2, $3)",
		refreshedAt, t.Len(), observations,
	); err != nil {
		return 0, fmt.Errorf("recording refresh: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing: %w", err)
	}
	return len(values), nil
}

// LoadTable rebuilds the stored table. A nil table means nothing is stored.
func (r *Repository) LoadTable(ctx context.Context, features []string) (*table.WideTable, *models.Refresh, error) {
	last, err := r.GetLastRefresh(ctx)
	if err != nil {
		return nil, nil, err
	}
	if last == nil {
		return nil, nil, nil
	}

	keys, err := r.getTableKeys(ctx)
	if err != nil {
		return nil, nil, err
	}
	values, err := r.getIndicatorValues(ctx)
	if err != nil {
		return nil, nil, err
	}

	t, err := rebuildTable(keys, values, features)
	if err != nil {
		return nil, nil, fmt.Errorf("rebuilding table: %w", err)
	}
	return t, last, nil
}

func (r *Repository) getTableKeys(ctx context.Context) ([]models.TableKey, error) {
	rows, err := r.pool.Query(ctx, "SELECT country, year FROM table_keys")
	if err != nil {
		return nil, fmt.Errorf("querying table keys: %w", err)
	}
	defer rows.Close()

	var keys []models.TableKey
	for rows.Next() {
		var k models.TableKey
		if err := rows.Scan(&k.Country, &k.Year); err != nil {
			return nil, fmt.Errorf("scanning table key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (r *Repository) getIndicatorValues(ctx context.Context) ([]models.IndicatorValue, error) {
	rows, err := r.pool.Query(ctx, "SELECT country, year, feature, value FROM indicator_values")
	if err != nil {
		return nil, fmt.Errorf("querying indicator values: %w", err)
	}
	defer rows.Close()

	var values []models.IndicatorValue
	for rows.Next() {
		var v models.IndicatorValue
		if err := rows.Scan(&v.Country, &v.Year, &v.Feature, &v.Value); err != nil {
			return nil, fmt.Errorf("scanning indicator value: %w", err)
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// storedRows splits t into its row keys and its supplied cells.
func storedRows(t *table.WideTable) ([]models.TableKey, []models.IndicatorValue) {
	keys := make([]models.TableKey, 0, t.Len())
	var values []models.IndicatorValue
	for _, row := range t.Rows() {
		keys = append(keys, models.TableKey{Country: row.Country, Year: row.Year})
		for _, f := range t.Features() {
			if !t.Supplied(row.Country, row.Year, f) {
				continue
			}
			values = append(values, models.IndicatorValue{
				Country: row.Country,
				Year:    row.Year,
				Feature: f,
				Value:   row.Value(f),
			})
		}
	}
	return keys, values
}

// rebuildTable seeds every stored key as an empty record so rows without any
// supplied cell survive, then merges the stored cells on top.
func rebuildTable(keys []models.TableKey, values []models.IndicatorValue, features []string) (*table.WideTable, error) {
	records := make([]table.LongRecord, 0, len(keys)+len(values))
	for _, k := range keys {
		records = append(records, keyRecord(k, features))
	}
	for _, v := range values {
		records = append(records, cellRecord(v, features))
	}
	return table.Build(records, features)
}

// keyRecord is a long record for a stored key with every feature unset.
func keyRecord(k models.TableKey, features []string) table.LongRecord {
	values := make(map[string]*decimal.Decimal, len(features))
	for _, f := range features {
		values[f] = nil
	}
	return table.LongRecord{
		Country: k.Country,
		Year:    strconv.FormatFloat(k.Year, 'f', -1, 64),
		Values:  values,
	}
}

// cellRecord turns one stored cell back into a sparse long record.
func cellRecord(v models.IndicatorValue, features []string) table.LongRecord {
	rec := keyRecord(models.TableKey{Country: v.Country, Year: v.Year}, features)
	value := v.Value
	rec.Values[v.Feature] = &value
	return rec
}

// GetLastRefresh returns the most recent refresh, or nil if there is none.
func (r *Repository) GetLastRefresh(ctx context.Context) (*models.Refresh, error) {
	var ref models.Refresh
	err := r.pool.QueryRow(ctx, `
		SELECT id, refreshed_at, row_count, observations, created_at
		FROM refreshes ORDER BY id DESC LIMIT 1
	`).Scan(&ref.ID, &ref.RefreshedAt, &ref.Rows, &ref.Observations, &ref.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying last refresh: %w", err)
	}
	return &ref, nil
}

// GetRefreshCount returns the number of recorded refreshes.
func (r *Repository) GetRefreshCount(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM refreshes").Scan(&count)
	return count, err
}

// GetValueCount returns the number of stored cells.
func (r *Repository) GetValueCount(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM indicator_values").Scan(&count)
	return count, err
}

// SaveSnapshot persists a pipeline snapshot's table.
func (r *Repository) SaveSnapshot(ctx context.Context, s *pipeline.Snapshot) (int, error) {
	return r.SaveTable(ctx, s.Table, s.Observations, s.RefreshedAt)
}
