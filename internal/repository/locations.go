package repository

import (
	"context"
	"time"

	"github.com/staffhub-dev/shift-roster/backend/internal/domain"
)

func (r *Repository) GetLocationByID(id int64) (*domain.Location, error) {
	query := `
		SELECT name, timezone, created_at, version
		FROM locations WHERE id = $1
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	location := &domain.Location{
		ID: id,
	}

	dst := []any{&location.Name, &location.Timezone, &location.CreatedAt, &location.Version}
	if err := r.dbpool.QueryRowContext(ctx, query, id).Scan(dst...); err != nil {
		return nil, err
	}

	return location, nil
}

func (r *Repository) GetAllLocations() ([]*domain.Location, error) {
	query := `
		SELECT id, name, timezone, created_at, version FROM locations
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	locations := make([]*domain.Location, 0)
	for rows.Next() {
		location := &domain.Location{}
		dst := []any{&location.ID, &location.Name, &location.Timezone, &location.CreatedAt, &location.Version}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		locations = append(locations, location)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return locations, nil
}

func (r *Repository) CreateLocation(location *domain.Location) error {
	query := `
		INSERT INTO locations (name, timezone)
		VALUES ($1, $2)
		RETURNING id, created_at, version
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	if err := r.dbpool.QueryRowContext(ctx, query, location.Name, location.Timezone).Scan(&location.ID, &location.CreatedAt, &location.Version); err != nil {
		return err
	}

	return nil
}

// HasActiveCertification 检查员工是否持有该地点的未吊销认证
func (r *Repository) HasActiveCertification(staffID int64, locationID int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM certifications
			WHERE staff_id = $1 AND location_id = $2 AND revoked_at IS NULL
		)
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	exists := false
	if err := r.dbpool.QueryRowContext(ctx, query, staffID, locationID).Scan(&exists); err != nil {
		return false, err
	}

	return exists, nil
}

func (r *Repository) CreateCertification(cert *domain.Certification) error {
	query := `
		INSERT INTO certifications (staff_id, location_id)
		VALUES ($1, $2)
		RETURNING id, issued_at
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	if err := r.dbpool.QueryRowContext(ctx, query, cert.StaffID, cert.LocationID).Scan(&cert.ID, &cert.IssuedAt); err != nil {
		return err
	}

	return nil
}

func (r *Repository) GetStaffSkills(staffID int64) ([]string, error) {
	query := `
		SELECT skill FROM staff_skills WHERE staff_id = $1
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, staffID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	skills := make([]string, 0)
	for rows.Next() {
		var skill string
		if err := rows.Scan(&skill); err != nil {
			return nil, err
		}
		skills = append(skills, skill)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return skills, nil
}

func (r *Repository) AddStaffSkill(staffID int64, skill string) error {
	query := `
		INSERT INTO staff_skills (staff_id, skill)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	if _, err := r.dbpool.ExecContext(ctx, query, staffID, skill); err != nil {
		return err
	}

	return nil
}

// FindEligibleStaff 查找同时持有指定地点认证和指定技能的在职员工，用于被阻止时的候选人建议
func (r *Repository) FindEligibleStaff(locationID int64, skill string, excludeStaffID int64, limit int) ([]*domain.User, error) {
	query := `
		SELECT u.id, u.username, u.full_name, u.email, u.role, u.is_active, u.created_at
		FROM users u
		JOIN certifications c ON c.staff_id = u.id AND c.location_id = $1 AND c.revoked_at IS NULL
		JOIN staff_skills s ON s.staff_id = u.id AND s.skill = $2
		WHERE u.is_active = TRUE AND u.role = $3 AND u.id <> $4
		ORDER BY u.id
		LIMIT $5
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, locationID, skill, domain.RoleStaff, excludeStaffID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]*domain.User, 0)
	for rows.Next() {
		user := &domain.User{}
		dst := []any{&user.ID, &user.Username, &user.FullName, &user.Email, &user.Role, &user.IsActive, &user.CreatedAt}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return users, nil
}
