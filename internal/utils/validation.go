package utils

import (
	"errors"
	"time"

	"github.com/staffhub-dev/shift-roster/backend/internal/timeutil"
)

// 单个班次不允许超过 24 小时，超长班次几乎一定是录入错误
const maxShiftDuration = 24 * time.Hour

func ValidateShiftTime(start time.Time, end time.Time) error {
	if !end.After(start) {
		return errors.New("结束时间必须晚于开始时间")
	}
	if end.Sub(start) > maxShiftDuration {
		return errors.New("单个班次不能超过 24 小时")
	}
	return nil
}

// ValidateClockWindow 校验 15:04:05 格式的本地时间段
func ValidateClockWindow(start string, end string) error {
	startMinutes, err := timeutil.ParseClockMinutes(start)
	if err != nil {
		return errors.New("开始时间格式无效，应为 15:04:05")
	}
	endMinutes, err := timeutil.ParseClockMinutes(end)
	if err != nil {
		return errors.New("结束时间格式无效，应为 15:04:05")
	}
	if endMinutes <= startMinutes {
		return errors.New("结束时间必须晚于开始时间")
	}
	return nil
}
