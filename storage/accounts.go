package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"
)

// CreateAccount inserts a new account. A taken username returns ErrAccountExists.
func (s *Store) CreateAccount(account Account) (*Account, error) {
	account.Username = strings.TrimSpace(account.Username)
	if account.Username == "" {
		return nil, errors.New("username is required")
	}
	if account.PasswordHash == "" {
		return nil, errors.New("password_hash is required")
	}
	if account.CreatedAt == 0 {
		account.CreatedAt = nowUnixMilli()
	}

	res, err := s.db.Exec(
		`INSERT INTO accounts (
			username,
			password_hash,
			face_embedding,
			created_at,
			history_after
		) VALUES (?, ?, ?, ?, (SELECT COALESCE(MAX(id), 0) FROM messages))`,
		account.Username,
		account.PasswordHash,
		nullString(account.FaceEmbedding),
		account.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrAccountExists
		}
		return nil, unavailable(fmt.Sprintf("insert account %q", account.Username), err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, unavailable("read account id", err)
	}
	account.ID = id
	return &account, nil
}

// GetAccount loads one account by username.
func (s *Store) GetAccount(username string) (*Account, error) {
	if username == "" {
		return nil, errors.New("username is required")
	}

	row := s.db.QueryRow(
		`SELECT
			id,
			username,
			password_hash,
			face_embedding,
			created_at
		FROM accounts
		WHERE username = ?`,
		username,
	)

	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, unavailable(fmt.Sprintf("get account %q", username), err)
	}

	return account, nil
}

// ListUsernames returns all registered usernames except exclude, sorted.
func (s *Store) ListUsernames(exclude string) ([]string, error) {
	rows, err := s.db.Query(
		`SELECT username FROM accounts WHERE username <> ? ORDER BY username ASC`,
		exclude,
	)
	if err != nil {
		return nil, unavailable("list usernames", err)
	}
	defer rows.Close()

	usernames := make([]string, 0)
	for rows.Next() {
		var username string
		if err := rows.Scan(&username); err != nil {
			return nil, unavailable("scan username row", err)
		}
		usernames = append(usernames, username)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate username rows", err)
	}

	return usernames, nil
}

// DeleteAccount removes an account and its send receipts. Messages are left in place,
// both those it sent and those addressed to it.
func (s *Store) DeleteAccount(username string) error {
	if username == "" {
		return errors.New("username is required")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return unavailable("begin delete account transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	res, err := tx.Exec(`DELETE FROM accounts WHERE username = ?`, username)
	if err != nil {
		return unavailable(fmt.Sprintf("delete account %q", username), err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return unavailable("read rows affected for account delete", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	if _, err := tx.Exec(`DELETE FROM send_receipts WHERE sender = ?`, username); err != nil {
		return unavailable(fmt.Sprintf("delete send receipts of %q", username), err)
	}

	if err := tx.Commit(); err != nil {
		return unavailable("commit delete account transaction", err)
	}
	return nil
}

func scanAccount(row scanner) (*Account, error) {
	var (
		account       Account
		faceEmbedding sql.NullString
	)
	if err := row.Scan(
		&account.ID,
		&account.Username,
		&account.PasswordHash,
		&faceEmbedding,
		&account.CreatedAt,
	); err != nil {
		return nil, err
	}

	account.FaceEmbedding = stringPtr(faceEmbedding)
	return &account, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}
