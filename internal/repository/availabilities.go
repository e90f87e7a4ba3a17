package repository

import (
	"context"
	"time"

	"github.com/staffhub-dev/shift-roster/backend/internal/domain"
)

func (r *Repository) GetAvailabilitiesByStaff(staffID int64) ([]*domain.Availability, error) {
	query := `
		SELECT id, day_of_week, start_time, end_time, timezone, created_at, version
		FROM availabilities
		WHERE staff_id = $1
		ORDER BY day_of_week, start_time
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, staffID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	availabilities := make([]*domain.Availability, 0)
	for rows.Next() {
		availability := &domain.Availability{
			StaffID: staffID,
		}
		dst := []any{&availability.ID, &availability.DayOfWeek, &availability.StartTime, &availability.EndTime, &availability.Timezone, &availability.CreatedAt, &availability.Version}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		availabilities = append(availabilities, availability)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return availabilities, nil
}

func (r *Repository) GetAvailabilityExceptionsByStaff(staffID int64) ([]*domain.AvailabilityException, error) {
	query := `
		SELECT id, date, is_available, start_time, end_time, timezone, created_at, version
		FROM availability_exceptions
		WHERE staff_id = $1
		ORDER BY date
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, staffID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	exceptions := make([]*domain.AvailabilityException, 0)
	for rows.Next() {
		exception := &domain.AvailabilityException{
			StaffID: staffID,
		}
		dst := []any{&exception.ID, &exception.Date, &exception.IsAvailable, &exception.StartTime, &exception.EndTime, &exception.Timezone, &exception.CreatedAt, &exception.Version}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		exceptions = append(exceptions, exception)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return exceptions, nil
}

func (r *Repository) CreateAvailability(availability *domain.Availability) error {
	query := `
		INSERT INTO availabilities (staff_id, day_of_week, start_time, end_time, timezone)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, version
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	args := []any{availability.StaffID, availability.DayOfWeek, availability.StartTime, availability.EndTime, availability.Timezone}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&availability.ID, &availability.CreatedAt, &availability.Version); err != nil {
		return err
	}

	return nil
}

func (r *Repository) CreateAvailabilityException(exception *domain.AvailabilityException) error {
	query := `
		INSERT INTO availability_exceptions (staff_id, date, is_available, start_time, end_time, timezone)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, version
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	args := []any{exception.StaffID, exception.Date, exception.IsAvailable, exception.StartTime, exception.EndTime, exception.Timezone}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&exception.ID, &exception.CreatedAt, &exception.Version); err != nil {
		return err
	}

	return nil
}
