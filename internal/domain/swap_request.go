package domain

import "time"

type SwapRequestType string

const (
	SwapRequestTypeSwap SwapRequestType = "SWAP"
	SwapRequestTypeDrop SwapRequestType = "DROP"
)

type SwapRequestStatus string

const (
	SwapRequestStatusPendingAcceptance SwapRequestStatus = "PENDING_ACCEPTANCE" // 仅 SWAP 的初始状态
	SwapRequestStatusOpen              SwapRequestStatus = "OPEN"               // 仅 DROP 的初始状态
	SwapRequestStatusPendingManager    SwapRequestStatus = "PENDING_MANAGER"
	SwapRequestStatusApproved          SwapRequestStatus = "APPROVED"
	SwapRequestStatusRejected          SwapRequestStatus = "REJECTED"
	SwapRequestStatusCancelled         SwapRequestStatus = "CANCELLED"
	SwapRequestStatusExpired           SwapRequestStatus = "EXPIRED"
)

// IsTerminal 终态的请求不允许再发生任何状态转移
func (s SwapRequestStatus) IsTerminal() bool {
	switch s {
	case SwapRequestStatusApproved, SwapRequestStatusRejected, SwapRequestStatusCancelled, SwapRequestStatusExpired:
		return true
	default:
		return false
	}
}

// MaxPickupAttempts DROP 请求被经理驳回的次数上限，达到后请求作废
const MaxPickupAttempts = 3

// MaxActiveRequestsPerStaff 单个员工同时持有的非终态请求数量上限
const MaxActiveRequestsPerStaff = 3

// DropExpiryLeadTime DROP 请求的过期时间为班次开始前 24 小时
const DropExpiryLeadTime = 24 * time.Hour

type SwapRequest struct {
	ID             int64             `json:"id"`
	Type           SwapRequestType   `json:"type"`
	AssignmentID   int64             `json:"assignmentID"`
	ShiftID        int64             `json:"shiftID"`
	RequesterID    int64             `json:"requesterID"`
	TargetID       *int64            `json:"targetID"` // SWAP 创建时必填；DROP 在被接单后才有值
	Status         SwapRequestStatus `json:"status"`
	PickupAttempts int32             `json:"pickupAttempts"`
	ExpiresAt      *time.Time        `json:"expiresAt"` // 仅 DROP 有值
	ManagerNote    string            `json:"managerNote"`
	ApproverID     *int64            `json:"approverID"`
	CreatedAt      time.Time         `json:"createdAt"`
	Version        int32             `json:"-"`
}
