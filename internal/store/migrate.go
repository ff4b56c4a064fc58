package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strconv"
)

// migrationLockKey serialises schema changes across API replicas booting at
// the same time.
const migrationLockKey = 72_010_301

var migrationName = regexp.MustCompile(`^(\d+)_[A-Za-z0-9_]+\.(up|down)\.sql$`)

// Migration is one numbered schema step. ID is the up file name, which is
// what schema_migrations records.
type Migration struct {
	Version int
	ID      string
	Up      string
	Down    string
}

// LoadMigrations reads NNNN_name.up.sql / NNNN_name.down.sql pairs from the
// root of migrations, ordered by version.
func LoadMigrations(migrations fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(migrations, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	byVersion := map[int]*Migration{}
	for _, entry := range entries {
		match := migrationName.FindStringSubmatch(entry.Name())
		if entry.IsDir() || match == nil {
			continue
		}
		version, err := strconv.Atoi(match[1])
		if err != nil {
			return nil, fmt.Errorf("migration %s: %w", entry.Name(), err)
		}
		contents, err := fs.ReadFile(migrations, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}

		m := byVersion[version]
		if m == nil {
			m = &Migration{Version: version}
			byVersion[version] = m
		}
		switch match[2] {
		case "up":
			if m.ID != "" {
				return nil, fmt.Errorf("migration version %d has two up files", version)
			}
			m.ID, m.Up = entry.Name(), string(contents)
		case "down":
			if m.Down != "" {
				return nil, fmt.Errorf("migration version %d has two down files", version)
			}
			m.Down = string(contents)
		}
	}

	out := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.ID == "" {
			return nil, fmt.Errorf("migration version %d has no up file", m.Version)
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// ApplyMigrations runs the pending up steps, one transaction each, and
// returns the IDs it applied.
func ApplyMigrations(ctx context.Context, db *sql.DB, migrations fs.FS) ([]string, error) {
	steps, err := LoadMigrations(migrations)
	if err != nil {
		return nil, err
	}

	var applied []string
	err = withMigrationLock(ctx, db, func(conn *sql.Conn) error {
		done, err := appliedMigrations(ctx, conn)
		if err != nil {
			return err
		}
		for _, m := range steps {
			if done[m.ID] {
				continue
			}
			if err := runStep(ctx, conn, m.ID, m.Up, `INSERT INTO schema_migrations(version) VALUES($1)`); err != nil {
				return err
			}
			applied = append(applied, m.ID)
		}
		return nil
	})
	return applied, err
}

// RollbackMigrations undoes the newest applied steps, at most steps of them,
// and returns the IDs it rolled back.
func RollbackMigrations(ctx context.Context, db *sql.DB, migrations fs.FS, steps int) ([]string, error) {
	all, err := LoadMigrations(migrations)
	if err != nil {
		return nil, err
	}

	var rolledBack []string
	err = withMigrationLock(ctx, db, func(conn *sql.Conn) error {
		done, err := appliedMigrations(ctx, conn)
		if err != nil {
			return err
		}
		for i := len(all) - 1; i >= 0 && len(rolledBack) < steps; i-- {
			m := all[i]
			if !done[m.ID] {
				continue
			}
			if m.Down == "" {
				return fmt.Errorf("migration %s has no down step", m.ID)
			}
			if err := runStep(ctx, conn, m.ID, m.Down, `DELETE FROM schema_migrations WHERE version=$1`); err != nil {
				return err
			}
			rolledBack = append(rolledBack, m.ID)
		}
		return nil
	})
	return rolledBack, err
}

func withMigrationLock(ctx context.Context, db *sql.DB, fn func(*sql.Conn) error) (err error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire migration conn: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock($1)`, migrationLockKey); err != nil {
		return fmt.Errorf("lock migrations: %w", err)
	}
	defer func() {
		_, unlockErr := conn.ExecContext(context.WithoutCancel(ctx), `SELECT pg_advisory_unlock($1)`, migrationLockKey)
		if unlockErr != nil {
			err = errors.Join(err, fmt.Errorf("unlock migrations: %w", unlockErr))
		}
	}()

	if _, err := conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}
	return fn(conn)
}

func appliedMigrations(ctx context.Context, conn *sql.Conn) (map[string]bool, error) {
	rows, err := conn.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	defer rows.Close()

	done := map[string]bool{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan applied migration: %w", err)
		}
		done[id] = true
	}
	return done, rows.Err()
}

// runStep executes body and the bookkeeping statement in one transaction.
func runStep(ctx context.Context, conn *sql.Conn, id, body, record string) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", id, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, body); err != nil {
		return fmt.Errorf("execute migration %s: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, record, id); err != nil {
		return fmt.Errorf("record migration %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", id, err)
	}
	return nil
}
