package domain

import "time"

// Availability 员工每周重复的空闲时间段，时间为该行声明时区下的本地时间
type Availability struct {
	ID        int64     `json:"id"`
	StaffID   int64     `json:"staffID"`
	DayOfWeek int32     `json:"dayOfWeek"` // 1 = 周一，7 = 周日
	StartTime string    `json:"startTime"` // 格式 15:04:05
	EndTime   string    `json:"endTime"`
	Timezone  string    `json:"timezone"`
	CreatedAt time.Time `json:"createdAt"`
	Version   int32     `json:"-"`
}

// AvailabilityException 针对具体日期的空闲时间覆盖，优先级高于每周重复的记录
type AvailabilityException struct {
	ID          int64     `json:"id"`
	StaffID     int64     `json:"staffID"`
	Date        string    `json:"date"` // 格式 2006-01-02，为该行声明时区下的本地日期
	IsAvailable bool      `json:"isAvailable"`
	StartTime   string    `json:"startTime"` // 仅 isAvailable 为 true 时有意义
	EndTime     string    `json:"endTime"`
	Timezone    string    `json:"timezone"`
	CreatedAt   time.Time `json:"createdAt"`
	Version     int32     `json:"-"`
}
