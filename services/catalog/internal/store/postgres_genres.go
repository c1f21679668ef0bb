package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const genreColumns = `id, name, created_at`

func (s *PostgresStoryStore) ListGenres(ctx context.Context) ([]Genre, error) {
	rows, err := s.db.Query(ctx, `SELECT `+genreColumns+` FROM genres ORDER BY lower(name)`)
	if err != nil {
		return nil, fmt.Errorf("list genres: %w", err)
	}
	genres, err := pgx.CollectRows(rows, pgx.RowToStructByPos[Genre])
	if err != nil {
		return nil, fmt.Errorf("list genres: %w", err)
	}
	return genres, nil
}

func (s *PostgresStoryStore) GetGenre(ctx context.Context, id uuid.UUID) (Genre, error) {
	rows, err := s.db.Query(ctx, `SELECT `+genreColumns+` FROM genres WHERE id = $1`, id)
	if err != nil {
		return Genre{}, fmt.Errorf("get genre: %w", err)
	}
	g, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[Genre])
	if errors.Is(err, pgx.ErrNoRows) {
		return Genre{}, ErrGenreNotFound
	}
	return g, err
}

func (s *PostgresStoryStore) CreateGenre(ctx context.Context, in GenreInput) (Genre, error) {
	g, err := withOutbox(ctx, s.db, EventGenreUpserted, ErrGenreNotFound, func(tx pgx.Tx) (Genre, error) {
		rows, err := tx.Query(ctx, `INSERT INTO genres (id, name) VALUES ($1,$2) RETURNING `+genreColumns, uuid.New(), in.Name)
		if err != nil {
			return Genre{}, err
		}
		return pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[Genre])
	}, genreEvent)
	return g, genreWriteError(err)
}

func (s *PostgresStoryStore) RenameGenre(ctx context.Context, id uuid.UUID, in GenreInput) (Genre, error) {
	g, err := withOutbox(ctx, s.db, EventGenreUpserted, ErrGenreNotFound, func(tx pgx.Tx) (Genre, error) {
		var old string
		if err := tx.QueryRow(ctx, `SELECT name FROM genres WHERE id=$1 FOR UPDATE`, id).Scan(&old); err != nil {
			return Genre{}, err
		}
		rows, err := tx.Query(ctx, `UPDATE genres SET name=$2 WHERE id=$1 RETURNING `+genreColumns, id, in.Name)
		if err != nil {
			return Genre{}, err
		}
		g, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[Genre])
		if err != nil {
			return Genre{}, err
		}
		_, err = tx.Exec(ctx, `UPDATE stories SET genre=$2, updated_at=now() WHERE genre=$1`, old, in.Name)
		return g, err
	}, genreEvent)
	return g, genreWriteError(err)
}

func (s *PostgresStoryStore) DeleteGenre(ctx context.Context, id uuid.UUID) error {
	_, err := withOutbox(ctx, s.db, EventGenreDeleted, ErrGenreNotFound, func(tx pgx.Tx) (Genre, error) {
		g := Genre{ID: id}
		err := tx.QueryRow(ctx, `DELETE FROM genres WHERE id=$1 RETURNING name`, id).Scan(&g.Name)
		return g, err
	}, genreEvent)
	return err
}

func genreWriteError(err error) error {
	if pgErrCode(err) == "23505" {
		return ErrDuplicateGenre
	}
	return err
}
