package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/quipper/lti/nrps/pkg/lti"
	repoIface "github.com/quipper/lti/nrps/pkg/repositories/lti"
)

var _ repoIface.Repository = (*SQLiteRepo)(nil)

type SQLiteRepo struct {
	db *sql.DB
}

func NewSQLiteRepo(path string) (*SQLiteRepo, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open registrations db")
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "ping registrations db")
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "init registrations schema")
	}
	return &SQLiteRepo{db: db}, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS registrations (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            client_id TEXT NOT NULL UNIQUE,
            platform_issuer TEXT,
            access_token_url TEXT,
            platform_jwks_url TEXT,
            tool_jwks_url TEXT,
            deployment_ids_json TEXT,
            created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
        );
	`)
	return err
}

func (r *SQLiteRepo) Health() error {
	return r.db.Ping()
}

func (r *SQLiteRepo) Disconnect() {
	_ = r.db.Close()
}

// CreateRegistration inserts a new registration.
func (r *SQLiteRepo) CreateRegistration(ctx context.Context, reg *lti.Registration) error {
	if reg.ID == "" {
		reg.ID = uuid.NewString()
	}
	deployments := "[]"
	if len(reg.DeploymentIDs) > 0 {
		b, err := json.Marshal(reg.DeploymentIDs)
		if err != nil {
			return errors.Wrap(err, "encode deployment ids")
		}
		deployments = string(b)
	}
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO registrations (id, name, client_id, platform_issuer, access_token_url, platform_jwks_url, tool_jwks_url, deployment_ids_json, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
    `, reg.ID, reg.Name, reg.ClientID, reg.PlatformIssuer, reg.AccessTokenURL, reg.PlatformJWKSURL, reg.ToolJWKSURL, deployments, now)
	if err != nil {
		return errors.Wrapf(err, "insert registration client_id=%s", reg.ClientID)
	}
	reg.CreatedAt = now
	return nil
}

func (r *SQLiteRepo) DeleteRegistration(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM registrations WHERE id = ?`, id)
	return errors.Wrapf(err, "delete registration %s", id)
}

const selectRegistration = `SELECT id, name, client_id, platform_issuer, access_token_url, platform_jwks_url, tool_jwks_url, deployment_ids_json, created_at FROM registrations`

type scanner interface {
	Scan(dest ...any) error
}

func scanRegistration(row scanner) (*lti.Registration, error) {
	var reg lti.Registration
	var issuer, tokenURL, platformJWKS, toolJWKS, deployments sql.NullString
	if err := row.Scan(&reg.ID, &reg.Name, &reg.ClientID, &issuer, &tokenURL, &platformJWKS, &toolJWKS, &deployments, &reg.CreatedAt); err != nil {
		return nil, err
	}
	reg.PlatformIssuer = issuer.String
	reg.AccessTokenURL = tokenURL.String
	reg.PlatformJWKSURL = platformJWKS.String
	reg.ToolJWKSURL = toolJWKS.String
	if deployments.String != "" {
		_ = json.Unmarshal([]byte(deployments.String), &reg.DeploymentIDs)
	}
	if len(reg.DeploymentIDs) == 0 {
		reg.DeploymentIDs = nil
	}
	return &reg, nil
}

func (r *SQLiteRepo) ListRegistrations(ctx context.Context) ([]*lti.Registration, error) {
	rows, err := r.db.QueryContext(ctx, selectRegistration+` ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, errors.Wrap(err, "list registrations")
	}
	defer rows.Close()
	var out []*lti.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan registration")
		}
		out = append(out, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate registrations")
	}
	return out, nil
}

func (r *SQLiteRepo) GetRegistration(ctx context.Context, id string) (*lti.Registration, error) {
	return r.getOne(ctx, selectRegistration+` WHERE id = ?`, id)
}

// GetRegistrationByClientID returns a registration by client_id.
func (r *SQLiteRepo) GetRegistrationByClientID(ctx context.Context, clientID string) (*lti.Registration, error) {
	return r.getOne(ctx, selectRegistration+` WHERE client_id = ?`, clientID)
}

func (r *SQLiteRepo) getOne(ctx context.Context, query string, arg string) (*lti.Registration, error) {
	reg, err := scanRegistration(r.db.QueryRowContext(ctx, query, arg))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "get registration")
	}
	return reg, nil
}
