package drafts

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/storyqueue/internal/client/models"
	"github.com/dmitrijs2005/storyqueue/internal/dbx"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Insert(ctx context.Context, d models.Draft) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO drafts (title, description, created_at) VALUES (?, ?, ?)`,
		d.Title, d.Description, d.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert draft: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read draft id: %w", err)
	}
	return id, nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]models.Draft, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, title, description, created_at FROM drafts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list drafts: %w", err)
	}
	defer rows.Close()

	var result []models.Draft
	for rows.Next() {
		var (
			d       models.Draft
			created int64
		)
		if err := rows.Scan(&d.ID, &d.Title, &d.Description, &created); err != nil {
			return nil, fmt.Errorf("failed to scan draft row: %w", err)
		}
		d.CreatedAt = time.UnixMilli(created).UTC()
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate draft rows: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM drafts WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete draft %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM drafts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count drafts: %w", err)
	}
	return n, nil
}
