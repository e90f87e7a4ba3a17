package domain

import "time"

type ShiftStatus string

const (
	ShiftStatusDraft     ShiftStatus = "DRAFT"
	ShiftStatusPublished ShiftStatus = "PUBLISHED"
	ShiftStatusCancelled ShiftStatus = "CANCELLED"
)

// EditCutoffLeadTime 班次开始前多久禁止编辑
const EditCutoffLeadTime = 48 * time.Hour

type Shift struct {
	ID            int64       `json:"id"`
	LocationID    int64       `json:"locationID"`
	RequiredSkill string      `json:"requiredSkill"`
	StartTime     time.Time   `json:"startTime"` // 绝对时刻，统一存 UTC，展示时区由所属地点决定
	EndTime       time.Time   `json:"endTime"`
	Headcount     int32       `json:"headcount"`
	Status        ShiftStatus `json:"status"`
	WeekKey       string      `json:"weekKey"`    // 所属周周一的本地日期（地点时区）
	EditCutoff    time.Time   `json:"editCutoff"` // 开始前 48 小时
	CreatedAt     time.Time   `json:"createdAt"`
	Version       int32       `json:"-"`
}

// InProgressAt 判断某一时刻班次是否正在进行中，区间为 [start, end)
func (s *Shift) InProgressAt(t time.Time) bool {
	return !t.Before(s.StartTime) && t.Before(s.EndTime)
}
