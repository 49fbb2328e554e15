package storage

import (
	"context"
	"fmt"

	"github.com/runger/smartsearch/internal/country"
	"github.com/runger/smartsearch/internal/search"
)

// Load replaces the indexed records with records, keeping their order.
// Returns the number of records written.
func (i *Index) Load(ctx context.Context, records []country.Record) (int, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return 0, ErrClosed
	}

	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM countries`); err != nil {
		return 0, fmt.Errorf("failed to reset countries: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO countries (ordinal, id, name, capital, population, name_fold, capital_fold)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for n, r := range records {
		_, err := stmt.ExecContext(ctx, n, r.ID, r.Name, r.Capital, r.Population,
			search.Fold(r.Name), search.Fold(r.Capital))
		if err != nil {
			return 0, fmt.Errorf("failed to insert country %d: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return len(records), nil
}

// Search returns the records whose name or capital contains query, ignoring
// case, in load order. The result is never nil.
func (i *Index) Search(ctx context.Context, query string) ([]country.Record, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.closed {
		return nil, ErrClosed
	}

	q := search.Fold(query)
	rows, err := i.db.QueryContext(ctx, `
		SELECT id, name, capital, population
		FROM countries
		WHERE instr(name_fold, ?) > 0 OR instr(capital_fold, ?) > 0
		ORDER BY ordinal
	`, q, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query countries: %w", err)
	}
	defer rows.Close()

	out := []country.Record{}
	for rows.Next() {
		var r country.Record
		if err := rows.Scan(&r.ID, &r.Name, &r.Capital, &r.Population); err != nil {
			return nil, fmt.Errorf("failed to scan country: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate countries: %w", err)
	}
	return out, nil
}

// Count returns the number of indexed records.
func (i *Index) Count(ctx context.Context) (int, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.closed {
		return 0, ErrClosed
	}

	var n int
	if err := i.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM countries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count countries: %w", err)
	}
	return n, nil
}
