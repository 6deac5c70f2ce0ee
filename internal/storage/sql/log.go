package sql

import (
	"context"
	"time"

	"abroadPlan/internal/model"
)

const insertProviderLog = `
	INSERT INTO provider_logs(time, provider, endpoint, key_mask, status_code, outcome, attempt, duration, message)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`

// BatchAddProviderLogs 批量写入上游日志（单事务+预编译语句）
func (s *SQLStore) BatchAddProviderLogs(ctx context.Context, logs []*model.ProviderLog) error {
	if len(logs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, s.rebind(insertProviderLog))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range logs {
		t := e.Time.Time
		if t.IsZero() {
			t = time.Now()
		}
		if _, err := stmt.ExecContext(ctx,
			t.Round(0).UnixMilli(),
			e.Provider,
			e.Endpoint,
			e.KeyMask,
			e.StatusCode,
			e.Outcome,
			e.Attempt,
			e.Duration,
			e.Message,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ListProviderLogs 按时间倒序分页查询
func (s *SQLStore) ListProviderLogs(ctx context.Context, since time.Time, limit, offset int, filter *model.ProviderLogFilter) ([]*model.ProviderLog, error) {
	wb := NewWhereBuilder().
		AddCondition("time >= ?", since.UnixMilli()).
		ApplyProviderLogFilter(filter)
	where, args := wb.BuildWithPrefix("WHERE")
	args = append(args, limit, offset)

	rows, err := s.query(ctx, `
		SELECT id, time, provider, endpoint, key_mask, status_code, outcome, attempt, duration, message
		FROM provider_logs `+where+`
		ORDER BY time DESC, id DESC
		LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*model.ProviderLog, 0, limit)
	for rows.Next() {
		var (
			e      model.ProviderLog
			timeMs int64
		)
		if err := rows.Scan(&e.ID, &timeMs, &e.Provider, &e.Endpoint, &e.KeyMask,
			&e.StatusCode, &e.Outcome, &e.Attempt, &e.Duration, &e.Message); err != nil {
			return nil, err
		}
		e.Time = model.JSONTime{Time: time.UnixMilli(timeMs)}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// CleanupProviderLogsBefore 清理指定时间之前的日志
func (s *SQLStore) CleanupProviderLogsBefore(ctx context.Context, cutoff time.Time) error {
	_, err := s.exec(ctx, "DELETE FROM provider_logs WHERE time < ?", cutoff.UnixMilli())
	return err
}
