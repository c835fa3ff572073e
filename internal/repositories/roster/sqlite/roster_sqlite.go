package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	r "github.com/quipper/lti/nrps/pkg/repositories/roster"
)

type SQLiteRepo struct{ db *sql.DB }

func NewSQLiteRepo(path string) (*SQLiteRepo, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open roster db")
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "init roster schema")
	}
	return &SQLiteRepo{db: db}, nil
}

func (s *SQLiteRepo) Disconnect() { _ = s.db.Close() }

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS contexts (
	  id TEXT PRIMARY KEY,
	  label TEXT,
	  title TEXT,
	  updated_at TIMESTAMP NOT NULL
	);
	CREATE TABLE IF NOT EXISTS members (
	  id INTEGER PRIMARY KEY AUTOINCREMENT,
	  context_id TEXT NOT NULL,
	  user_id TEXT NOT NULL,
	  name TEXT,
	  given_name TEXT,
	  family_name TEXT,
	  middle_name TEXT,
	  email TEXT,
	  picture TEXT,
	  locale TEXT,
	  lis_person_sourcedid TEXT,
	  roles_json TEXT,
	  status TEXT,
	  updated_at TIMESTAMP NOT NULL,
	  UNIQUE(context_id, user_id)
	);
	CREATE TABLE IF NOT EXISTS resource_link_members (
	  context_id TEXT NOT NULL,
	  resource_link_id TEXT NOT NULL,
	  user_id TEXT NOT NULL,
	  PRIMARY KEY (context_id, resource_link_id, user_id)
	);
	`)
	return err
}

func (s *SQLiteRepo) UpsertContext(ctx context.Context, c *r.Context) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO contexts (id, label, title, updated_at) VALUES (?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET label = excluded.label, title = excluded.title, updated_at = excluded.updated_at
	`, c.ID, c.Label, c.Title, now)
	if err != nil {
		return errors.Wrapf(err, "upsert context %s", c.ID)
	}
	c.UpdatedAt = now
	return nil
}

func (s *SQLiteRepo) GetContext(ctx context.Context, contextID string) (*r.Context, error) {
	var c r.Context
	var label, title sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT id, label, title, updated_at FROM contexts WHERE id = ?`, contextID).
		Scan(&c.ID, &label, &title, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get context %s", contextID)
	}
	c.Label = label.String
	c.Title = title.String
	return &c, nil
}

const memberColumns = `m.user_id, m.name, m.given_name, m.family_name, m.middle_name, m.email, m.picture, m.locale, m.lis_person_sourcedid, m.roles_json, m.status, m.updated_at`

// filterClause renders f as a WHERE clause over members aliased m.
func filterClause(f r.Filter) (string, []any) {
	where := []string{"m.context_id = ?"}
	args := []any{f.ContextID}
	if f.ResourceLinkID != nil {
		where = append(where, `EXISTS (SELECT 1 FROM resource_link_members rl
		  WHERE rl.context_id = m.context_id AND rl.user_id = m.user_id AND rl.resource_link_id = ?)`)
		args = append(args, *f.ResourceLinkID)
	}
	if f.Role != "" {
		short := escapeLike(f.Role)
		where = append(where, `EXISTS (SELECT 1 FROM json_each(m.roles_json) j
		  WHERE j.value = ? OR j.value LIKE ? ESCAPE '\' OR j.value LIKE ? ESCAPE '\')`)
		args = append(args, f.Role, "%#"+short, "%/"+short)
	}
	return strings.Join(where, " AND "), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (s *SQLiteRepo) ListMembersPage(ctx context.Context, f r.Filter, offset, limit int) ([]*r.Member, int, error) {
	where, args := filterClause(f)

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM members m WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "count members")
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+memberColumns+` FROM members m WHERE `+where+` ORDER BY m.id ASC LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "list members")
	}
	defer rows.Close()
	var out []*r.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.Wrap(err, "iterate members")
	}
	return out, total, nil
}

func scanMember(rows *sql.Rows) (*r.Member, error) {
	var m r.Member
	var name, given, family, middle, email, picture, locale, sourced, rolesStr, status sql.NullString
	if err := rows.Scan(&m.UserID, &name, &given, &family, &middle, &email, &picture, &locale, &sourced, &rolesStr, &status, &m.UpdatedAt); err != nil {
		return nil, errors.Wrap(err, "scan member")
	}
	m.Name = name.String
	m.GivenName = given.String
	m.FamilyName = family.String
	m.MiddleName = middle.String
	m.Email = email.String
	m.Picture = picture.String
	m.Locale = locale.String
	m.LISPersonSourcedID = sourced.String
	m.Status = status.String
	if rolesStr.Valid && rolesStr.String != "" {
		if err := json.Unmarshal([]byte(rolesStr.String), &m.Roles); err != nil {
			return nil, errors.Wrapf(err, "decode roles of member %s", m.UserID)
		}
	}
	if len(m.Roles) == 0 {
		m.Roles = nil
	}
	return &m, nil
}

func (s *SQLiteRepo) UpsertMember(ctx context.Context, contextID string, m *r.Member) error {
	rolesJSON := "[]"
	if len(m.Roles) > 0 {
		if b, err := json.Marshal(m.Roles); err == nil {
			rolesJSON = string(b)
		}
	}
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO members (context_id, user_id, name, given_name, family_name, middle_name, email, picture, locale, lis_person_sourcedid, roles_json, status, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(context_id, user_id)
	DO UPDATE SET name = excluded.name, given_name = excluded.given_name, family_name = excluded.family_name,
	  middle_name = excluded.middle_name, email = excluded.email, picture = excluded.picture, locale = excluded.locale,
	  lis_person_sourcedid = excluded.lis_person_sourcedid, roles_json = excluded.roles_json, status = excluded.status,
	  updated_at = excluded.updated_at
	`, contextID, m.UserID, m.Name, m.GivenName, m.FamilyName, m.MiddleName, m.Email, m.Picture, m.Locale, m.LISPersonSourcedID, rolesJSON, m.Status, now)
	if err != nil {
		return errors.Wrapf(err, "upsert member %s", m.UserID)
	}
	m.UpdatedAt = now
	return nil
}

func (s *SQLiteRepo) DeleteMember(ctx context.Context, contextID, userID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin delete member")
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `DELETE FROM resource_link_members WHERE context_id = ? AND user_id = ?`, contextID, userID); err != nil {
		return errors.Wrap(err, "delete resource link assignments")
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM members WHERE context_id = ? AND user_id = ?`, contextID, userID); err != nil {
		return errors.Wrap(err, "delete member")
	}
	return tx.Commit()
}

func (s *SQLiteRepo) AssignResourceLink(ctx context.Context, contextID, resourceLinkID, userID string) error {
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO resource_link_members (context_id, resource_link_id, user_id) VALUES (?, ?, ?)
	ON CONFLICT DO NOTHING`, contextID, resourceLinkID, userID)
	if err != nil {
		return errors.Wrapf(err, "assign %s to resource link %s", userID, resourceLinkID)
	}
	return nil
}
