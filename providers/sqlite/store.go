// Package sqlite provides a credx.RecordStore backed by a SQLite database.
//
// Access-key rows hold only sealed values: hex ciphertext and hex IV per
// field. Secret rows are unique per (name, tenant_id, caller_id).
package sqlite

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/hengadev/credx"
)

const schema = `
	CREATE TABLE IF NOT EXISTS access_keys (
		id TEXT PRIMARY KEY,
		access_key_ciphertext TEXT NOT NULL,
		access_key_iv TEXT NOT NULL,
		secret_key_ciphertext TEXT NOT NULL,
		secret_key_iv TEXT NOT NULL,
		region TEXT NOT NULL,
		role_arn TEXT NOT NULL DEFAULT '',
		role_session_name TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS secrets (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		tenant_id TEXT NOT NULL,
		caller_id TEXT NOT NULL,
		access_key_ref TEXT NOT NULL,
		remote_secret_id TEXT NOT NULL,
		endpoint_url TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (name, tenant_id, caller_id)
	);

	CREATE INDEX IF NOT EXISTS idx_secrets_scope ON secrets(name, tenant_id, caller_id);
`

// Store implements credx.RecordStore, credx.AccessKeyWriter,
// credx.SecretWriter and credx.AccessKeyRotator.
type Store struct {
	db *sql.DB
}

// Open opens (creating when needed) the database at path and applies the
// schema. The parent directory is created with mode 0700.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: database path is required", credx.ErrInvalidConfiguration)
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("%w: create database directory for %q: %w", credx.ErrStoreUnavailable, path, err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open database at %q: %w", credx.ErrStoreUnavailable, path, err)
	}
	if path == ":memory:" {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}

	s, err := New(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an already opened database and applies the schema.
func New(ctx context.Context, db *sql.DB) (*Store, error) {
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("%w: database connection test failed: %w", credx.ErrStoreUnavailable, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("%w: create database schema: %w", credx.ErrStoreUnavailable, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Snapshot writes a consistent copy of the database to path, which must not
// exist yet. Access keys stay sealed in the copy.
func (s *Store) Snapshot(ctx context.Context, path string) error {
	if path == "" {
		return fmt.Errorf("%w: snapshot path is required", credx.ErrInvalidConfiguration)
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: snapshot target %q already exists", credx.ErrInvalidConfiguration, path)
	}
	if _, err := s.db.ExecContext(ctx, `VACUUM INTO ?`, path); err != nil {
		return fmt.Errorf("%w: snapshot to %q: %w", credx.ErrStoreUnavailable, path, err)
	}
	return nil
}

func (s *Store) FindSecrets(ctx context.Context, scope credx.Scope) ([]credx.SecretRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, tenant_id, caller_id, access_key_ref, remote_secret_id, endpoint_url
		FROM secrets
		WHERE name = ? AND tenant_id = ? AND caller_id = ?`,
		scope.Name, scope.TenantID, scope.CallerID)
	if err != nil {
		return nil, fmt.Errorf("query secrets: %w", err)
	}
	defer rows.Close()

	out := []credx.SecretRecord{}
	for rows.Next() {
		var rec credx.SecretRecord
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.TenantID, &rec.CallerID,
			&rec.AccessKeyRef, &rec.RemoteSecretID, &rec.EndpointURL); err != nil {
			return nil, fmt.Errorf("scan secret row: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate secret rows: %w", err)
	}
	return out, nil
}

func (s *Store) LoadAccessKey(ctx context.Context, ref string) (*credx.AccessKeyRecord, error) {
	var (
		akCT, akIV, skCT, skIV string
		roleARN, sessionName   string
		rec                    = credx.AccessKeyRecord{ID: ref}
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT access_key_ciphertext, access_key_iv, secret_key_ciphertext, secret_key_iv,
			region, role_arn, role_session_name
		FROM access_keys
		WHERE id = ?`, ref).
		Scan(&akCT, &akIV, &skCT, &skIV, &rec.Region, &roleARN, &sessionName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: access key %q", credx.ErrRecordNotFound, ref)
	}
	if err != nil {
		return nil, fmt.Errorf("query access key %q: %w", ref, err)
	}

	if rec.AccessKey, err = sealedFromColumns(akCT, akIV); err != nil {
		return nil, fmt.Errorf("access key %q: access_key_iv: %w", ref, err)
	}
	if rec.SecretKey, err = sealedFromColumns(skCT, skIV); err != nil {
		return nil, fmt.Errorf("access key %q: secret_key_iv: %w", ref, err)
	}
	rec.Mode = credx.NewCredentialMode(roleARN, sessionName)
	return &rec, nil
}

func (s *Store) SaveAccessKey(ctx context.Context, rec *credx.AccessKeyRecord) (string, error) {
	if err := rec.Validate(); err != nil {
		return "", fmt.Errorf("%w: %w", credx.ErrInvalidConfiguration, err)
	}
	id := rec.ID
	if id == "" {
		id = uuid.NewString()
	}

	var roleARN, sessionName string
	if m, ok := rec.Mode.(credx.AssumableCredential); ok {
		roleARN, sessionName = m.RoleARN, m.SessionName
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO access_keys (id, access_key_ciphertext, access_key_iv,
			secret_key_ciphertext, secret_key_iv, region, role_arn, role_session_name)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		rec.AccessKey.Ciphertext, hex.EncodeToString(rec.AccessKey.IV),
		rec.SecretKey.Ciphertext, hex.EncodeToString(rec.SecretKey.IV),
		rec.Region, roleARN, sessionName)
	if err != nil {
		if isUniqueViolation(err) {
			return "", fmt.Errorf("%w: access key %q already exists", credx.ErrInvalidConfiguration, id)
		}
		return "", fmt.Errorf("insert access key: %w", err)
	}
	return id, nil
}

func (s *Store) SaveSecret(ctx context.Context, rec *credx.SecretRecord) (string, error) {
	if err := rec.Validate(); err != nil {
		return "", fmt.Errorf("%w: %w", credx.ErrInvalidConfiguration, err)
	}
	id := rec.ID
	if id == "" {
		id = uuid.NewString()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO secrets (id, name, tenant_id, caller_id, access_key_ref, remote_secret_id, endpoint_url)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, rec.Name, rec.TenantID, rec.CallerID, rec.AccessKeyRef, rec.RemoteSecretID, rec.EndpointURL)
	if err != nil {
		if isUniqueViolation(err) {
			return "", fmt.Errorf("%w: secret %s already exists", credx.ErrInvalidConfiguration, rec.Scope())
		}
		return "", fmt.Errorf("insert secret: %w", err)
	}
	return id, nil
}

func (s *Store) ListAccessKeys(ctx context.Context) ([]credx.AccessKeyRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, access_key_ciphertext, access_key_iv, secret_key_ciphertext, secret_key_iv,
			region, role_arn, role_session_name
		FROM access_keys
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query access keys: %w", err)
	}
	defer rows.Close()

	out := []credx.AccessKeyRecord{}
	for rows.Next() {
		var (
			rec                    credx.AccessKeyRecord
			akCT, akIV, skCT, skIV string
			roleARN, sessionName   string
		)
		if err := rows.Scan(&rec.ID, &akCT, &akIV, &skCT, &skIV, &rec.Region, &roleARN, &sessionName); err != nil {
			return nil, fmt.Errorf("scan access key row: %w", err)
		}
		if rec.AccessKey, err = sealedFromColumns(akCT, akIV); err != nil {
			return nil, fmt.Errorf("access key %q: access_key_iv: %w", rec.ID, err)
		}
		if rec.SecretKey, err = sealedFromColumns(skCT, skIV); err != nil {
			return nil, fmt.Errorf("access key %q: secret_key_iv: %w", rec.ID, err)
		}
		rec.Mode = credx.NewCredentialMode(roleARN, sessionName)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate access key rows: %w", err)
	}
	return out, nil
}

// ReplaceAccessKeys rewrites the sealed columns of every record in one
// transaction.
func (s *Store) ReplaceAccessKeys(ctx context.Context, recs []credx.AccessKeyRecord) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, rec := range recs {
		if err := rec.Validate(); err != nil {
			return fmt.Errorf("%w: %w", credx.ErrInvalidConfiguration, err)
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE access_keys
			SET access_key_ciphertext = ?, access_key_iv = ?,
				secret_key_ciphertext = ?, secret_key_iv = ?,
				updated_at = CURRENT_TIMESTAMP
			WHERE id = ?`,
			rec.AccessKey.Ciphertext, hex.EncodeToString(rec.AccessKey.IV),
			rec.SecretKey.Ciphertext, hex.EncodeToString(rec.SecretKey.IV),
			rec.ID)
		if err != nil {
			return fmt.Errorf("update access key %q: %w", rec.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("update access key %q: %w", rec.ID, err)
		}
		if n == 0 {
			return fmt.Errorf("%w: access key %q", credx.ErrRecordNotFound, rec.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rotation: %w", err)
	}
	return nil
}

func sealedFromColumns(ciphertext, ivHex string) (credx.SealedValue, error) {
	iv, err := hex.DecodeString(ivHex)
	if err != nil {
		return credx.SealedValue{}, err
	}
	return credx.SealedValue{Ciphertext: ciphertext, IV: iv}, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
