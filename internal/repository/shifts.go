package repository

import (
	"context"
	"time"

	"github.com/staffhub-dev/shift-roster/backend/internal/domain"
)

func (r *Repository) GetShiftByID(id int64) (*domain.Shift, error) {
	query := `
		SELECT location_id, required_skill, start_time, end_time, headcount, status, week_key, edit_cutoff, created_at, version
		FROM shifts WHERE id = $1
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	shift := &domain.Shift{
		ID: id,
	}

	dst := []any{&shift.LocationID, &shift.RequiredSkill, &shift.StartTime, &shift.EndTime, &shift.Headcount, &shift.Status, &shift.WeekKey, &shift.EditCutoff, &shift.CreatedAt, &shift.Version}
	if err := r.dbpool.QueryRowContext(ctx, query, id).Scan(dst...); err != nil {
		return nil, err
	}

	return shift, nil
}

func (r *Repository) GetShiftsByLocationAndWeek(locationID int64, weekKey string) ([]*domain.Shift, error) {
	query := `
		SELECT id, location_id, required_skill, start_time, end_time, headcount, status, week_key, edit_cutoff, created_at, version
		FROM shifts
		WHERE location_id = $1 AND week_key = $2
		ORDER BY start_time
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, locationID, weekKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	shifts := make([]*domain.Shift, 0)
	for rows.Next() {
		shift := &domain.Shift{}
		dst := []any{&shift.ID, &shift.LocationID, &shift.RequiredSkill, &shift.StartTime, &shift.EndTime, &shift.Headcount, &shift.Status, &shift.WeekKey, &shift.EditCutoff, &shift.CreatedAt, &shift.Version}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		shifts = append(shifts, shift)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return shifts, nil
}

func (r *Repository) CreateShift(shift *domain.Shift) error {
	query := `
		INSERT INTO shifts (location_id, required_skill, start_time, end_time, headcount, status, week_key, edit_cutoff)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, version
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	args := []any{shift.LocationID, shift.RequiredSkill, shift.StartTime, shift.EndTime, shift.Headcount, shift.Status, shift.WeekKey, shift.EditCutoff}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&shift.ID, &shift.CreatedAt, &shift.Version); err != nil {
		return err
	}

	return nil
}

// UpdateShift 更新班次并同步所有已确认分配上的冗余时间副本，两者必须在同一个事务中完成
func (r *Repository) UpdateShift(shift *domain.Shift) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.TransactionTimeout)*time.Second)
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `
		UPDATE shifts
		SET
			required_skill = $1,
			start_time = $2,
			end_time = $3,
			headcount = $4,
			status = $5,
			week_key = $6,
			edit_cutoff = $7,
			version = version + 1
		WHERE id = $8 AND version = $9
		RETURNING version
	`

	args := []any{shift.RequiredSkill, shift.StartTime, shift.EndTime, shift.Headcount, shift.Status, shift.WeekKey, shift.EditCutoff, shift.ID, shift.Version}
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&shift.Version); err != nil {
		return err
	}

	query = `
		UPDATE shift_assignments
		SET start_time = $1, end_time = $2, version = version + 1
		WHERE shift_id = $3 AND status = $4
	`
	if _, err := tx.ExecContext(ctx, query, shift.StartTime, shift.EndTime, shift.ID, domain.AssignmentStatusConfirmed); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	return nil
}
