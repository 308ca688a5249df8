package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"taskmill/internal/schedule"
	"taskmill/internal/task"
	logx "taskmill/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	// Basic pragmas.
	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) Create(ctx context.Context, t *task.Task) error {
	if strings.TrimSpace(t.ID) == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	if t.Status == "" {
		t.Status = task.StatusPending
	}

	params, err := task.EncodeParams(t.Params)
	if err != nil {
		return err
	}

	var freq, clock, day, date, per any
	var interval any
	if sc := t.Schedule; sc != nil {
		freq, clock, day, date = nullStr(string(sc.Frequency)), nullStr(sc.Time), nullStr(sc.Day), nullStr(sc.Date)
		per = nullStr(string(sc.Per))
		if sc.Interval > 0 {
			interval = sc.Interval
		}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tasks(id, description, kind, status, active, frequency, time, day, date, interval, per,
		                   params, last_result, last_execution_at, next_execution_at, created_at, updated_at)
		 VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.Description, string(t.Kind), string(t.Status), boolInt(t.Active),
		freq, clock, day, date, interval, per,
		nullStr(params), nullStr(t.LastResult), nullTime(t.LastExecutionAt), nullTime(t.NextExecutionAt),
		t.CreatedAt.Format(time.RFC3339Nano), t.UpdatedAt.Format(time.RFC3339Nano),
	)
	return err
}

const taskColumns = `id, description, kind, status, active, frequency, time, day, date, interval, per,
	params, last_result, last_execution_at, next_execution_at, created_at, updated_at`

func (s *sqliteStore) GetByID(ctx context.Context, id string) (*task.Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (s *sqliteStore) FindPendingActive(ctx context.Context) ([]task.Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks
		 WHERE active = 1 AND status IN (?,?,?)
		 ORDER BY created_at`,
		string(task.StatusPending), string(task.StatusRecurring), string(task.StatusFailed),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []task.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			// One unreadable row must not halt the scan.
			s.log.Warn("skipping unreadable task row", logx.Err(err))
			continue
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (s *sqliteStore) UpdateStatus(ctx context.Context, id string, st task.Status, result string) error {
	now := time.Now().Format(time.RFC3339Nano)
	var res sql.Result
	var err error
	if result != "" {
		res, err = s.db.ExecContext(ctx,
			`UPDATE tasks SET status = ?, last_result = ?, updated_at = ? WHERE id = ?`,
			string(st), result, now, id)
	} else {
		res, err = s.db.ExecContext(ctx,
			`UPDATE tasks SET status = ?, updated_at = ? WHERE id = ?`,
			string(st), now, id)
	}
	return checkAffected(res, err)
}

func (s *sqliteStore) SetLastExecution(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET last_execution_at = ?, updated_at = ? WHERE id = ?`,
		at.Format(time.RFC3339Nano), time.Now().Format(time.RFC3339Nano), id)
	return checkAffected(res, err)
}

func (s *sqliteStore) SetNextExecution(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET next_execution_at = ?, updated_at = ? WHERE id = ?`,
		at.Format(time.RFC3339Nano), time.Now().Format(time.RFC3339Nano), id)
	return checkAffected(res, err)
}

func (s *sqliteStore) Deactivate(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET active = 0, updated_at = ? WHERE id = ?`,
		time.Now().Format(time.RFC3339Nano), id)
	return checkAffected(res, err)
}

func (s *sqliteStore) DeactivateCompletedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET active = 0, updated_at = ?
		 WHERE active = 1 AND status = ? AND last_execution_at IS NOT NULL AND last_execution_at < ?`,
		time.Now().Format(time.RFC3339Nano), string(task.StatusCompleted), cutoff.Format(time.RFC3339Nano))
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *sqliteStore) ResetRunning(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET status = ?, updated_at = ? WHERE active = 1 AND status = ?`,
		string(task.StatusPending), time.Now().Format(time.RFC3339Nano), string(task.StatusRunning))
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*task.Task, error) {
	var (
		t                    task.Task
		kind, status         string
		active               int
		freq, clock, day     sql.NullString
		date, per, params    sql.NullString
		lastResult           sql.NullString
		interval             sql.NullInt64
		lastExec, nextExec   sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(&t.ID, &t.Description, &kind, &status, &active,
		&freq, &clock, &day, &date, &interval, &per,
		&params, &lastResult, &lastExec, &nextExec, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	t.Kind = task.Kind(kind)
	t.Status = task.Status(status)
	t.Active = active != 0
	t.LastResult = lastResult.String

	if freq.Valid {
		t.Schedule = &schedule.Schedule{
			Frequency: schedule.Frequency(freq.String),
			Time:      clock.String,
			Day:       day.String,
			Date:      date.String,
			Interval:  int(interval.Int64),
			Per:       schedule.Period(per.String),
		}
	}

	if p, perr := task.DecodeParams(t.Kind, params.String); perr == nil {
		t.Params = p
	} else {
		return nil, fmt.Errorf("task %s: %w", t.ID, perr)
	}

	if t.LastExecutionAt, err = parseNullTime(lastExec); err != nil {
		return nil, err
	}
	if t.NextExecutionAt, err = parseNullTime(nextExec); err != nil {
		return nil, err
	}
	if t.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, err
	}
	if t.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

func parseNullTime(v sql.NullString) (*time.Time, error) {
	if !v.Valid || strings.TrimSpace(v.String) == "" {
		return nil, nil
	}
	ts, err := time.Parse(time.RFC3339Nano, v.String)
	if err != nil {
		return nil, err
	}
	return &ts, nil
}

func checkAffected(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	if n, aerr := res.RowsAffected(); aerr == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}

func nullTime(v *time.Time) any {
	if v == nil || v.IsZero() {
		return nil
	}
	return v.Format(time.RFC3339Nano)
}
