package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/staffhub-dev/shift-roster/backend/internal/domain"
)

// 非终态的请求状态集合，SQL 里用 NOT IN 表达
var terminalStatuses = []any{
	domain.SwapRequestStatusApproved,
	domain.SwapRequestStatusRejected,
	domain.SwapRequestStatusCancelled,
	domain.SwapRequestStatusExpired,
}

func (r *Repository) GetSwapRequestByID(id int64) (*domain.SwapRequest, error) {
	query := `
		SELECT type, assignment_id, shift_id, requester_id, target_id, status, pickup_attempts, expires_at, manager_note, approver_id, created_at, version
		FROM swap_requests WHERE id = $1
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	req := &domain.SwapRequest{
		ID: id,
	}

	dst := []any{&req.Type, &req.AssignmentID, &req.ShiftID, &req.RequesterID, &req.TargetID, &req.Status, &req.PickupAttempts, &req.ExpiresAt, &req.ManagerNote, &req.ApproverID, &req.CreatedAt, &req.Version}
	if err := r.dbpool.QueryRowContext(ctx, query, id).Scan(dst...); err != nil {
		return nil, err
	}

	return req, nil
}

func (r *Repository) CountActiveSwapRequestsByRequester(requesterID int64) (int32, error) {
	query := `
		SELECT COUNT(*) FROM swap_requests
		WHERE requester_id = $1 AND status NOT IN ($2, $3, $4, $5)
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	args := append([]any{requesterID}, terminalStatuses...)

	var count int32
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}

	return count, nil
}

func (r *Repository) HasActiveSwapRequestForAssignment(assignmentID int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM swap_requests
			WHERE assignment_id = $1 AND status NOT IN ($2, $3, $4, $5)
		)
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	args := append([]any{assignmentID}, terminalStatuses...)

	exists := false
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&exists); err != nil {
		return false, err
	}

	return exists, nil
}

func (r *Repository) CreateSwapRequest(req *domain.SwapRequest, audit *domain.AuditEntry) error {
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
		INSERT INTO swap_requests (type, assignment_id, shift_id, requester_id, target_id, status, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, pickup_attempts, manager_note, created_at, version
	`

	args := []any{req.Type, req.AssignmentID, req.ShiftID, req.RequesterID, req.TargetID, req.Status, req.ExpiresAt}
	dst := []any{&req.ID, &req.PickupAttempts, &req.ManagerNote, &req.CreatedAt, &req.Version}
	if err := tx.QueryRowContext(ctx, query, args...).Scan(dst...); err != nil {
		return err
	}

	audit.EntityID = req.ID
	if err := r.insertAuditEntryTx(ctx, tx, audit); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	return nil
}

// UpdateSwapRequest 以乐观锁方式更新请求并在同一事务内写审计记录
func (r *Repository) UpdateSwapRequest(req *domain.SwapRequest, audit *domain.AuditEntry) error {
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
		UPDATE swap_requests
		SET
			target_id = $1,
			status = $2,
			pickup_attempts = $3,
			manager_note = $4,
			approver_id = $5,
			version = version + 1
		WHERE id = $6 AND version = $7
		RETURNING version
	`

	args := []any{req.TargetID, req.Status, req.PickupAttempts, req.ManagerNote, req.ApproverID, req.ID, req.Version}
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&req.Version); err != nil {
		return err
	}

	if err := r.insertAuditEntryTx(ctx, tx, audit); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	return nil
}

// ApproveSwapRequest 经理批准：请求置为 APPROVED，原分配转入 SWAPPED 保留历史，
// 同时为目标员工插入一条新的 CONFIRMED 分配。三个写入必须处于同一个事务，
// 保证不会出现只改了一半的状态。新分配同样受 (shift, staff) 唯一约束和
// 员工区间排他约束保护，触发时映射为对应的哨兵错误
func (r *Repository) ApproveSwapRequest(req *domain.SwapRequest, original *domain.ShiftAssignment, replacement *domain.ShiftAssignment, audit *domain.AuditEntry) error {
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
		UPDATE swap_requests
		SET status = $1, manager_note = $2, approver_id = $3, version = version + 1
		WHERE id = $4 AND version = $5
		RETURNING version
	`
	args := []any{domain.SwapRequestStatusApproved, req.ManagerNote, req.ApproverID, req.ID, req.Version}
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&req.Version); err != nil {
		return err
	}
	req.Status = domain.SwapRequestStatusApproved

	query = `
		UPDATE shift_assignments
		SET status = $1, version = version + 1
		WHERE id = $2
		RETURNING version
	`
	if err := tx.QueryRowContext(ctx, query, domain.AssignmentStatusSwapped, original.ID).Scan(&original.Version); err != nil {
		return err
	}
	original.Status = domain.AssignmentStatusSwapped

	query = `
		INSERT INTO shift_assignments (shift_id, staff_id, start_time, end_time, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, version
	`
	args = []any{replacement.ShiftID, replacement.StaffID, replacement.StartTime, replacement.EndTime, domain.AssignmentStatusConfirmed}
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&replacement.ID, &replacement.CreatedAt, &replacement.Version); err != nil {
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
	replacement.Status = domain.AssignmentStatusConfirmed

	if err := r.insertAuditEntryTx(ctx, tx, audit); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	return nil
}

func (r *Repository) GetExpiredOpenDropRequests(now time.Time) ([]*domain.SwapRequest, error) {
	query := `
		SELECT id, type, assignment_id, shift_id, requester_id, target_id, status, pickup_attempts, expires_at, manager_note, approver_id, created_at, version
		FROM swap_requests
		WHERE type = $1 AND status = $2 AND expires_at <= $3
		ORDER BY expires_at
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, domain.SwapRequestTypeDrop, domain.SwapRequestStatusOpen, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reqs := make([]*domain.SwapRequest, 0)
	for rows.Next() {
		req := &domain.SwapRequest{}
		dst := []any{&req.ID, &req.Type, &req.AssignmentID, &req.ShiftID, &req.RequesterID, &req.TargetID, &req.Status, &req.PickupAttempts, &req.ExpiresAt, &req.ManagerNote, &req.ApproverID, &req.CreatedAt, &req.Version}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return reqs, nil
}

// ExpireSwapRequest 过期清扫的事务步骤：持锁重读状态，仅当请求仍然 OPEN 时才置为 EXPIRED。
// 与并发的接单操作竞争时，后到的一方在这里干净地失败
func (r *Repository) ExpireSwapRequest(req *domain.SwapRequest, audit *domain.AuditEntry) error {
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
		SELECT status FROM swap_requests WHERE id = $1 FOR UPDATE
	`
	var status domain.SwapRequestStatus
	if err := tx.QueryRowContext(ctx, query, req.ID).Scan(&status); err != nil {
		return err
	}

	if status != domain.SwapRequestStatusOpen {
		return ErrRequestNotOpen
	}

	query = `
		UPDATE swap_requests
		SET status = $1, version = version + 1
		WHERE id = $2
		RETURNING version
	`
	if err := tx.QueryRowContext(ctx, query, domain.SwapRequestStatusExpired, req.ID).Scan(&req.Version); err != nil {
		return err
	}
	req.Status = domain.SwapRequestStatusExpired

	if err := r.insertAuditEntryTx(ctx, tx, audit); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	return nil
}
