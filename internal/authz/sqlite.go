package authz

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS case_members (
	case_id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	role    TEXT NOT NULL DEFAULT 'member',
	PRIMARY KEY (case_id, user_id)
);
`

// SQLiteStore is a CaseAuthorizer backed by the case-membership table
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (creating if necessary) the membership database
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open acl database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize acl schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Grant records that userID may access caseID with the given role
func (s *SQLiteStore) Grant(ctx context.Context, caseID, userID, role string) error {
	if role == "" {
		role = "member"
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO case_members (case_id, user_id, role) VALUES (?, ?, ?)
		 ON CONFLICT(case_id, user_id) DO UPDATE SET role = excluded.role`,
		caseID, userID, role)
	if err != nil {
		return fmt.Errorf("failed to grant case access: %w", err)
	}
	return nil
}

// Revoke removes userID's access to caseID
func (s *SQLiteStore) Revoke(ctx context.Context, caseID, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM case_members WHERE case_id = ? AND user_id = ?`,
		caseID, userID)
	if err != nil {
		return fmt.Errorf("failed to revoke case access: %w", err)
	}
	return nil
}

// CanAccess implements CaseAuthorizer
func (s *SQLiteStore) CanAccess(ctx context.Context, userID, caseID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM case_members WHERE case_id = ? AND user_id = ?`,
		caseID, userID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to query case membership: %w", err)
	}
	return n > 0, nil
}
