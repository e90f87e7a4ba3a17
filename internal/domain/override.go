package domain

import "time"

type OverrideType string

const (
	OverrideTypeDailyLimit         OverrideType = "12H_DAILY_LIMIT"
	OverrideTypeSeventhConsecutive OverrideType = "7TH_CONSECUTIVE_DAY"
)

// ManagerOverride 经理显式绕过某条可覆盖规则的审计记录
type ManagerOverride struct {
	ID        int64        `json:"id"`
	ShiftID   int64        `json:"shiftID"`
	StaffID   int64        `json:"staffID"`
	ActorID   int64        `json:"actorID"`
	Type      OverrideType `json:"type"`
	Reason    string       `json:"reason"`
	CreatedAt time.Time    `json:"createdAt"`
}
