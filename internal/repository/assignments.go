package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/staffhub-dev/shift-roster/backend/internal/domain"
)

func (r *Repository) GetAssignmentByID(id int64) (*domain.ShiftAssignment, error) {
	query := `
		SELECT shift_id, staff_id, start_time, end_time, status, created_at, version
		FROM shift_assignments WHERE id = $1
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	assignment := &domain.ShiftAssignment{
		ID: id,
	}

	dst := []any{&assignment.ShiftID, &assignment.StaffID, &assignment.StartTime, &assignment.EndTime, &assignment.Status, &assignment.CreatedAt, &assignment.Version}
	if err := r.dbpool.QueryRowContext(ctx, query, id).Scan(dst...); err != nil {
		return nil, err
	}

	return assignment, nil
}

// GetAssignmentByShiftAndStaff 取 (班次, 员工) 下的分配。唯一约束只作用于
// CONFIRMED 行，历史的 DROPPED/SWAPPED 行可以与新的 CONFIRMED 行并存，
// 这里优先返回 CONFIRMED 的那条
func (r *Repository) GetAssignmentByShiftAndStaff(shiftID int64, staffID int64) (*domain.ShiftAssignment, error) {
	query := `
		SELECT id, start_time, end_time, status, created_at, version
		FROM shift_assignments WHERE shift_id = $1 AND staff_id = $2
		ORDER BY (status = $3) DESC, id DESC
		LIMIT 1
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	assignment := &domain.ShiftAssignment{
		ShiftID: shiftID,
		StaffID: staffID,
	}

	dst := []any{&assignment.ID, &assignment.StartTime, &assignment.EndTime, &assignment.Status, &assignment.CreatedAt, &assignment.Version}
	if err := r.dbpool.QueryRowContext(ctx, query, shiftID, staffID, domain.AssignmentStatusConfirmed).Scan(dst...); err != nil {
		return nil, err
	}

	return assignment, nil
}

func (r *Repository) GetConfirmedAssignmentsByStaff(staffID int64) ([]*domain.ShiftAssignment, error) {
	query := `
		SELECT id, shift_id, start_time, end_time, status, created_at, version
		FROM shift_assignments
		WHERE staff_id = $1 AND status = $2
		ORDER BY start_time
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, staffID, domain.AssignmentStatusConfirmed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	assignments := make([]*domain.ShiftAssignment, 0)
	for rows.Next() {
		assignment := &domain.ShiftAssignment{
			StaffID: staffID,
		}
		dst := []any{&assignment.ID, &assignment.ShiftID, &assignment.StartTime, &assignment.EndTime, &assignment.Status, &assignment.CreatedAt, &assignment.Version}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		assignments = append(assignments, assignment)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return assignments, nil
}

func (r *Repository) GetConfirmedAssignmentsByShift(shiftID int64) ([]*domain.ShiftAssignment, error) {
	query := `
		SELECT id, staff_id, start_time, end_time, status, created_at, version
		FROM shift_assignments
		WHERE shift_id = $1 AND status = $2
		ORDER BY id
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, shiftID, domain.AssignmentStatusConfirmed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	assignments := make([]*domain.ShiftAssignment, 0)
	for rows.Next() {
		assignment := &domain.ShiftAssignment{
			ShiftID: shiftID,
		}
		dst := []any{&assignment.ID, &assignment.StaffID, &assignment.StartTime, &assignment.EndTime, &assignment.Status, &assignment.CreatedAt, &assignment.Version}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		assignments = append(assignments, assignment)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return assignments, nil
}

// CreateAssignment 在一个事务内完成分配写入：
// 对班次行加锁、重读已确认人数、检查容量、插入分配、写入覆盖记录和审计记录。
// 容量用班次行锁串行化；(shift, staff) 唯一约束和员工区间排他约束作为兜底，
// 触发时分别映射为 ErrAlreadyAssigned 和 ErrOverlapConflict。
func (r *Repository) CreateAssignment(assignment *domain.ShiftAssignment, overrides []*domain.ManagerOverride, audit *domain.AuditEntry) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.TransactionTimeout)*time.Second)
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// 对班次行加锁，该行是容量检查的串行化点
	query := `
		SELECT headcount FROM shifts WHERE id = $1 FOR UPDATE
	`
	var headcount int32
	if err := tx.QueryRowContext(ctx, query, assignment.ShiftID).Scan(&headcount); err != nil {
		return err
	}

	// 持有行锁后重读当前已确认人数
	query = `
		SELECT COUNT(*) FROM shift_assignments WHERE shift_id = $1 AND status = $2
	`
	var confirmed int32
	if err := tx.QueryRowContext(ctx, query, assignment.ShiftID, domain.AssignmentStatusConfirmed).Scan(&confirmed); err != nil {
		return err
	}

	if confirmed >= headcount {
		return ErrShiftFull
	}

	query = `
		INSERT INTO shift_assignments (shift_id, staff_id, start_time, end_time, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, version
	`
	args := []any{assignment.ShiftID, assignment.StaffID, assignment.StartTime, assignment.EndTime, domain.AssignmentStatusConfirmed}
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&assignment.ID, &assignment.CreatedAt, &assignment.Version); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.ConstraintName {
			case "shift_assignments_shift_id_staff_id_key":
				return ErrAlreadyAssigned
			case "shift_assignments_no_overlap_excl":
				return ErrOverlapConflict
			}
		}
		return err
	}
	assignment.Status = domain.AssignmentStatusConfirmed
	audit.EntityID = assignment.ID

	// 审计快照必须包含数据库生成的 ID 和时间戳，所以在插入之后才序列化
	after, err := json.Marshal(assignment)
	if err != nil {
		return err
	}
	audit.After = after

	for _, override := range overrides {
		query = `
			INSERT INTO manager_overrides (shift_id, staff_id, actor_id, type, reason)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, created_at
		`
		args := []any{override.ShiftID, override.StaffID, override.ActorID, override.Type, override.Reason}
		if err := tx.QueryRowContext(ctx, query, args...).Scan(&override.ID, &override.CreatedAt); err != nil {
			return err
		}
	}

	if err := r.insertAuditEntryTx(ctx, tx, audit); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	return nil
}

// DropAssignment 将分配转移到 DROPPED 状态。分配记录从不物理删除，保留历史供审计。
// 对已经是 DROPPED 的分配重复调用是幂等的空操作，返回 changed = false。
func (r *Repository) DropAssignment(assignment *domain.ShiftAssignment, audit *domain.AuditEntry) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.TransactionTimeout)*time.Second)
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `
		SELECT status FROM shift_assignments WHERE id = $1 FOR UPDATE
	`
	var status domain.AssignmentStatus
	if err := tx.QueryRowContext(ctx, query, assignment.ID).Scan(&status); err != nil {
		return false, err
	}

	if status == domain.AssignmentStatusDropped {
		return false, nil
	}

	query = `
		UPDATE shift_assignments
		SET status = $1, version = version + 1
		WHERE id = $2
		RETURNING version
	`
	if err := tx.QueryRowContext(ctx, query, domain.AssignmentStatusDropped, assignment.ID).Scan(&assignment.Version); err != nil {
		return false, err
	}
	assignment.Status = domain.AssignmentStatusDropped

	if err := r.insertAuditEntryTx(ctx, tx, audit); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}

	return true, nil
}
