package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when a note id does not exist.
	ErrNotFound = errors.New("note not found")
)

// Note is a persistent user note. Priority runs 1 (lowest) to 5 (highest).
type Note struct {
	ID        int64     `json:"id"`
	Content   string    `json:"content"`
	Priority  int       `json:"priority"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func validPriority(p int) error {
	if p < 1 || p > 5 {
		return fmt.Errorf("priority must be between 1 and 5, got %d", p)
	}
	return nil
}

// CreateNote inserts a new note and returns it with its assigned id.
func (db *DB) CreateNote(ctx context.Context, content string, priority int) (*Note, error) {
	if err := validPriority(priority); err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO notes (content, priority, created_at, updated_at)
		VALUES (?, ?, ?, ?)
	`, content, priority, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to insert note: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert ID: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit note: %w", err)
	}

	return &Note{
		ID:        id,
		Content:   content,
		Priority:  priority,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// UpdateNote updates only the provided fields of an existing note and
// refreshes its updated_at timestamp. It returns ErrNotFound if the id
// does not exist. The store is left untouched on any failure.
func (db *DB) UpdateNote(ctx context.Context, id int64, content *string, priority *int) (*Note, error) {
	if content == nil && priority == nil {
		return nil, fmt.Errorf("no fields to update")
	}
	if priority != nil {
		if err := validPriority(*priority); err != nil {
			return nil, err
		}
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	note, err := getNoteTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if content != nil {
		note.Content = *content
	}
	if priority != nil {
		note.Priority = *priority
	}
	note.UpdatedAt = time.Now().UTC()

	if _, err := tx.ExecContext(ctx, `
		UPDATE notes SET content = ?, priority = ?, updated_at = ? WHERE id = ?
	`, note.Content, note.Priority, note.UpdatedAt, id); err != nil {
		return nil, fmt.Errorf("failed to update note: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit note update: %w", err)
	}

	return note, nil
}

// DeleteNote removes a note. It returns ErrNotFound if the id does not exist.
func (db *DB) DeleteNote(ctx context.Context, id int64) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	return tx.Commit()
}

// GetNote retrieves a single note by id.
func (db *DB) GetNote(ctx context.Context, id int64) (*Note, error) {
	var n Note
	err := db.conn.QueryRowContext(ctx, `
		SELECT id, content, priority, created_at, updated_at
		FROM notes WHERE id = ?
	`, id).Scan(&n.ID, &n.Content, &n.Priority, &n.CreatedAt, &n.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query note: %w", err)
	}
	return &n, nil
}

// ListNotes returns all notes ordered by priority (highest first), then by
// creation time (newest first).
func (db *DB) ListNotes(ctx context.Context) ([]Note, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, content, priority, created_at, updated_at
		FROM notes
		ORDER BY priority DESC, created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query notes: %w", err)
	}
	defer rows.Close()

	var notes []Note
	for rows.Next() {
		var n Note
		if err := rows.Scan(&n.ID, &n.Content, &n.Priority, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		notes = append(notes, n)
	}

	return notes, rows.Err()
}

// NoteCount returns the total number of notes.
func (db *DB) NoteCount(ctx context.Context) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM notes").Scan(&count)
	return count, err
}

func getNoteTx(ctx context.Context, tx *sql.Tx, id int64) (*Note, error) {
	var n Note
	err := tx.QueryRowContext(ctx, `
		SELECT id, content, priority, created_at, updated_at
		FROM notes WHERE id = ?
	`, id).Scan(&n.ID, &n.Content, &n.Priority, &n.CreatedAt, &n.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query note: %w", err)
	}
	return &n, nil
}
