package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/AdamBeresnev/cueclub/internal/bracket"
	"github.com/jmoiron/sqlx"
)

// Every store method that writes takes the caller's transaction. Reads have a
// plain variant that runs on the pool and a Tx variant for use inside a
// transaction; both go through these helpers so queries can be written with
// ? placeholders regardless of the driver.

func get(ctx context.Context, q sqlx.ExtContext, dest any, query string, args ...any) error {
	return sqlx.GetContext(ctx, q, dest, q.Rebind(query), args...)
}

func selectAll(ctx context.Context, q sqlx.ExtContext, dest any, query string, args ...any) error {
	return sqlx.SelectContext(ctx, q, dest, q.Rebind(query), args...)
}

func exec(ctx context.Context, q sqlx.ExtContext, query string, args ...any) (int64, error) {
	res, err := q.ExecContext(ctx, q.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// execIn expands slice arguments with sqlx.In before running the statement.
func execIn(ctx context.Context, q sqlx.ExtContext, query string, args ...any) (int64, error) {
	expanded, inArgs, err := sqlx.In(query, args...)
	if err != nil {
		return 0, err
	}
	return exec(ctx, q, expanded, inArgs...)
}

func selectIn(ctx context.Context, q sqlx.ExtContext, dest any, query string, args ...any) error {
	expanded, inArgs, err := sqlx.In(query, args...)
	if err != nil {
		return err
	}
	return selectAll(ctx, q, dest, expanded, inArgs...)
}

// IsNotFound reports whether err came from a single row lookup that matched
// nothing.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// Timestamps are written in UTC. SQLite compares the stored text and Postgres
// TIMESTAMP drops the offset, so a mix of zones would misorder rows.

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func utcMatch(m bracket.Match) bracket.Match {
	m.CompletedAt = utcPtr(m.CompletedAt)
	m.CreatedAt = m.CreatedAt.UTC()
	m.UpdatedAt = m.UpdatedAt.UTC()
	return m
}

func utcTournament(t bracket.Tournament) bracket.Tournament {
	t.RegistrationStart = utcPtr(t.RegistrationStart)
	t.RegistrationEnd = t.RegistrationEnd.UTC()
	t.StartDate = utcPtr(t.StartDate)
	t.EndDate = utcPtr(t.EndDate)
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return t
}
