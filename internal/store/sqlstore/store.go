// Package sqlstore implements store.Store on SQLite through gorm. It backs
// single-node deployments and the service tests.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"oktel-timekeeper/internal/model"
	"oktel-timekeeper/internal/store"
)

// gormLogger sends gorm output to slog.
type gormLogger struct {
	level logger.LogLevel
}

func (l *gormLogger) LogMode(level logger.LogLevel) logger.Interface {
	return &gormLogger{level: level}
}

func (l *gormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= logger.Info {
		slog.InfoContext(ctx, fmt.Sprintf(msg, data...))
	}
}

func (l *gormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= logger.Warn {
		slog.WarnContext(ctx, fmt.Sprintf(msg, data...))
	}
}

func (l *gormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= logger.Error {
		slog.ErrorContext(ctx, fmt.Sprintf(msg, data...))
	}
}

func (l *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.level < logger.Warn {
		return
	}
	elapsed := time.Since(begin)
	sql, rows := fc()
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && !isUniqueViolation(err):
		slog.ErrorContext(ctx, "gorm query error", "error", err, "duration", elapsed, "sql", sql, "rows", rows)
	case elapsed > 200*time.Millisecond:
		slog.WarnContext(ctx, "slow query", "duration", elapsed, "sql", sql, "rows", rows)
	case l.level >= logger.Info:
		slog.DebugContext(ctx, "gorm query", "duration", elapsed, "sql", sql, "rows", rows)
	}
}

type txKey struct{}

// Store is the SQLite-backed store.Store.
type Store struct {
	db *gorm.DB
}

var _ store.Store = (*Store)(nil)

// Open opens (creating if needed) the database at path and migrates the schema.
func Open(path string, debug bool) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	level := logger.Warn
	if debug {
		level = logger.Info
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		NowFunc:        func() time.Time { return time.Now().UTC() },
		Logger:         (&gormLogger{}).LogMode(level),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// A single connection serializes transactions, which keeps
	// check-then-insert sequences atomic on SQLite.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")
	db.Exec("PRAGMA synchronous=NORMAL")

	if err := migrate(db); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&shiftRow{}, &policyRow{}, &agentRow{}, &sessionRow{}, &breakRow{}, &activityRow{}); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	// One open session per agent per day.
	if err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_agent_sessions_open
		ON agent_sessions(agent_id, date) WHERE status IN ('active', 'on_break')`).Error; err != nil {
		return fmt.Errorf("create open session index: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Close(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) conn(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return s.db.WithContext(ctx)
}

// WithTx runs fn in a transaction. Nested calls join the outer transaction.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

func create(db *gorm.DB, row any, what string) error {
	if err := db.Create(row).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert %s: %w", what, store.ErrDuplicate)
		}
		return fmt.Errorf("insert %s: %w", what, err)
	}
	return nil
}

// updateIf rewrites every column of row while its status still equals expected.
func updateIf(db *gorm.DB, row any, id, expected, what string) error {
	res := db.Model(row).Where("status = ?", expected).Select("*").Updates(row)
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			return fmt.Errorf("update %s: %w", what, store.ErrDuplicate)
		}
		return fmt.Errorf("update %s: %w", what, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update %s %s: %w", what, id, store.ErrStale)
	}
	return nil
}

func first[T any](db *gorm.DB, what string) (*T, error) {
	var row T
	err := db.Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", what, err)
	}
	return &row, nil
}

func statusStrings[T ~string](statuses []T) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func (s *Store) ListShifts(ctx context.Context) ([]*model.Shift, error) {
	var rows []shiftRow
	if err := s.conn(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find shifts: %w", err)
	}
	out := make([]*model.Shift, len(rows))
	for i := range rows {
		out[i] = shiftFromRow(&rows[i])
	}
	return out, nil
}

func (s *Store) GetShift(ctx context.Context, id string) (*model.Shift, error) {
	row, err := first[shiftRow](s.conn(ctx).Where("id = ?", id), "shift")
	if row == nil || err != nil {
		return nil, err
	}
	return shiftFromRow(row), nil
}

func (s *Store) GetPolicyByShift(ctx context.Context, shiftID string) (*model.BreakPolicy, error) {
	row, err := first[policyRow](s.conn(ctx).Where("shift_id = ?", shiftID), "break policy")
	if row == nil || err != nil {
		return nil, err
	}
	return policyFromRow(row), nil
}

func (s *Store) UpsertShift(ctx context.Context, shift *model.Shift) error {
	if err := s.conn(ctx).Save(shiftToRow(shift)).Error; err != nil {
		return fmt.Errorf("upsert shift: %w", err)
	}
	return nil
}

func (s *Store) UpsertPolicy(ctx context.Context, policy *model.BreakPolicy) error {
	if err := s.conn(ctx).Save(policyToRow(policy)).Error; err != nil {
		return fmt.Errorf("upsert break policy: %w", err)
	}
	return nil
}

func (s *Store) SetAgentStatus(ctx context.Context, agent *model.Agent) error {
	row := &agentRow{
		ID:            agent.ID,
		DepartmentID:  agent.DepartmentID,
		CurrentStatus: string(agent.CurrentStatus),
		UpdatedAt:     agent.UpdatedAt,
	}
	if err := s.conn(ctx).Save(row).Error; err != nil {
		return fmt.Errorf("upsert agent: %w", err)
	}
	return nil
}

func (s *Store) GetAgent(ctx context.Context, id string) (*model.Agent, error) {
	row, err := first[agentRow](s.conn(ctx).Where("id = ?", id), "agent")
	if row == nil || err != nil {
		return nil, err
	}
	return &model.Agent{
		ID:            row.ID,
		DepartmentID:  row.DepartmentID,
		CurrentStatus: model.AgentStatus(row.CurrentStatus),
		UpdatedAt:     row.UpdatedAt,
	}, nil
}

func (s *Store) CreateSession(ctx context.Context, session *model.AgentSession) error {
	return create(s.conn(ctx), sessionToRow(session), "agent session")
}

func (s *Store) GetSession(ctx context.Context, id string) (*model.AgentSession, error) {
	row, err := first[sessionRow](s.conn(ctx).Where("id = ?", id), "agent session")
	if row == nil || err != nil {
		return nil, err
	}
	return sessionFromRow(row), nil
}

func (s *Store) FindLatestSession(ctx context.Context, agentID string) (*model.AgentSession, error) {
	row, err := first[sessionRow](s.conn(ctx).
		Where("agent_id = ?", agentID).
		Order("check_in DESC"), "agent session")
	if row == nil || err != nil {
		return nil, err
	}
	return sessionFromRow(row), nil
}

func (s *Store) FindOpenSession(ctx context.Context, agentID string) (*model.AgentSession, error) {
	row, err := first[sessionRow](s.conn(ctx).
		Where("agent_id = ? AND status IN ?", agentID, []string{string(model.SessionActive), string(model.SessionOnBreak)}).
		Order("check_in DESC"), "agent session")
	if row == nil || err != nil {
		return nil, err
	}
	return sessionFromRow(row), nil
}

func (s *Store) UpdateSession(ctx context.Context, session *model.AgentSession, expected model.SessionStatus) error {
	return updateIf(s.conn(ctx), sessionToRow(session), session.ID, string(expected), "agent session")
}

func (s *Store) CreateBreak(ctx context.Context, b *model.BreakRequest) error {
	return create(s.conn(ctx), breakToRow(b), "break request")
}

func (s *Store) GetBreak(ctx context.Context, id string) (*model.BreakRequest, error) {
	row, err := first[breakRow](s.conn(ctx).Where("id = ?", id), "break request")
	if row == nil || err != nil {
		return nil, err
	}
	return breakFromRow(row), nil
}

func (s *Store) UpdateBreak(ctx context.Context, b *model.BreakRequest, expected model.BreakStatus) error {
	return updateIf(s.conn(ctx), breakToRow(b), b.ID, string(expected), "break request")
}

func (s *Store) FindActiveBreak(ctx context.Context, agentID string) (*model.BreakRequest, error) {
	row, err := first[breakRow](s.conn(ctx).
		Where("agent_id = ? AND status = ?", agentID, string(model.BreakActive)).
		Order("start_time DESC"), "break request")
	if row == nil || err != nil {
		return nil, err
	}
	return breakFromRow(row), nil
}

func (s *Store) findBreaks(db *gorm.DB, what string) ([]*model.BreakRequest, error) {
	var rows []breakRow
	if err := db.Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find %s: %w", what, err)
	}
	out := make([]*model.BreakRequest, len(rows))
	for i := range rows {
		out[i] = breakFromRow(&rows[i])
	}
	return out, nil
}

func (s *Store) ListSessionBreaks(ctx context.Context, sessionID string, statuses ...model.BreakStatus) ([]*model.BreakRequest, error) {
	q := s.conn(ctx).Where("session_id = ?", sessionID)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statusStrings(statuses))
	}
	return s.findBreaks(q, "break requests")
}

func (s *Store) CountBreaks(ctx context.Context, agentID, date string, statuses ...model.BreakStatus) (int, error) {
	q := s.conn(ctx).Model(&breakRow{}).Where("agent_id = ? AND date = ?", agentID, date)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statusStrings(statuses))
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count break requests: %w", err)
	}
	return int(n), nil
}

func (s *Store) LastBreakEnd(ctx context.Context, agentID, date string) (*time.Time, error) {
	row, err := first[breakRow](s.conn(ctx).
		Where("agent_id = ? AND date = ? AND status = ? AND end_time IS NOT NULL", agentID, date, string(model.BreakCompleted)).
		Order("end_time DESC"), "break request")
	if row == nil || err != nil {
		return nil, err
	}
	return row.EndTime, nil
}

func (s *Store) ListPendingBreaks(ctx context.Context, filter model.PendingFilter) ([]*model.BreakRequest, error) {
	q := s.conn(ctx).Where("status = ?", string(model.BreakPending))
	if filter.DepartmentID != "" {
		q = q.Where("department_id = ?", filter.DepartmentID)
	}
	if filter.AgentID != "" {
		q = q.Where("agent_id = ?", filter.AgentID)
	}
	return s.findBreaks(q, "pending break requests")
}

func (s *Store) AppendActivity(ctx context.Context, entry *model.ActivityLog) error {
	return create(s.conn(ctx), activityToRow(entry), "activity log")
}

func (s *Store) ListActivity(ctx context.Context, filter model.ActivityFilter) ([]*model.ActivityLog, error) {
	q := s.conn(ctx).Model(&activityRow{})
	if filter.AgentID != "" {
		q = q.Where("agent_id = ?", filter.AgentID)
	}
	if filter.SessionID != "" {
		q = q.Where("session_id = ?", filter.SessionID)
	}
	if filter.Type != "" {
		q = q.Where("type = ?", string(filter.Type))
	}
	if filter.Since != nil {
		q = q.Where("timestamp >= ?", filter.Since.UTC())
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	var rows []activityRow
	if err := q.Order("timestamp DESC").Order("rowid DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find activity logs: %w", err)
	}
	out := make([]*model.ActivityLog, len(rows))
	for i := range rows {
		out[i] = activityFromRow(&rows[i])
	}
	return out, nil
}
