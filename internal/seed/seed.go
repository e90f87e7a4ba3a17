package seed

import (
	"log/slog"
	"math/rand"
	"time"

	"github.com/staffhub-dev/shift-roster/backend/internal/config"
	"github.com/staffhub-dev/shift-roster/backend/internal/domain"
	"github.com/staffhub-dev/shift-roster/backend/internal/repository"
	"github.com/staffhub-dev/shift-roster/backend/internal/timeutil"
	"github.com/staffhub-dev/shift-roster/backend/internal/utils"
)

var demoLocations = []*domain.Location{
	{Name: "北京旗舰店", Timezone: "Asia/Shanghai"},
	{Name: "广州天河店", Timezone: "Asia/Shanghai"},
	{Name: "纽约门店", Timezone: "America/New_York"},
}

// 每个地点每天开这几个班，时间为地点本地时间
var dailyShiftWindows = []struct {
	startHour int
	endHour   int
}{
	{9, 17},
	{13, 21},
}

// SeedDemoData 插入演示用的地点、员工、认证、技能、空闲时间和未来两周的班次
func SeedDemoData(cfg *config.Config, repo *repository.Repository, staffCount int) {
	locations := make([]*domain.Location, 0, len(demoLocations))
	for _, l := range demoLocations {
		location := &domain.Location{Name: l.Name, Timezone: l.Timezone}
		if err := repo.CreateLocation(location); err != nil {
			slog.Error("插入地点失败", "name", l.Name, "error", err)
			continue
		}
		locations = append(locations, location)
	}

	if len(locations) == 0 {
		slog.Error("没有可用的地点，终止")
		return
	}

	inserted := 0
	for i := 0; i < staffCount; i++ {
		user, err := utils.GenerateRandomUser(cfg.Seed.User.Password, cfg.Email.UserDomain)
		if err != nil {
			slog.Error("生成随机用户失败", "error", err)
			continue
		}
		user.Role = domain.RoleStaff

		if err := repo.CreateUser(user); err != nil {
			slog.Error("插入用户失败", "error", err)
			continue
		}

		// 每人认证一个随机地点
		location := locations[rand.Intn(len(locations))]
		cert := &domain.Certification{StaffID: user.ID, LocationID: location.ID}
		if err := repo.CreateCertification(cert); err != nil {
			slog.Error("插入认证失败", "staffID", user.ID, "error", err)
			continue
		}

		skillCount := rand.Intn(2) + 1
		for j := 0; j < skillCount; j++ {
			if err := repo.AddStaffSkill(user.ID, utils.GenerateRandomSkill()); err != nil {
				slog.Error("插入技能失败", "staffID", user.ID, "error", err)
			}
		}

		availabilityCount := rand.Intn(3) + 2
		for j := 0; j < availabilityCount; j++ {
			availability := utils.GenerateRandomAvailability(user.ID, location.Timezone)
			if err := repo.CreateAvailability(availability); err != nil {
				slog.Error("插入空闲时间失败", "staffID", user.ID, "error", err)
			}
		}

		inserted++
	}
	slog.Info("插入员工完成", "count", inserted)

	shiftCount := 0
	for _, location := range locations {
		loc, err := time.LoadLocation(location.Timezone)
		if err != nil {
			slog.Error("加载时区失败", "timezone", location.Timezone, "error", err)
			continue
		}

		// 从下周一开始排两周，保证班次都在编辑截止时间之外
		start := timeutil.WeekStart(time.Now(), loc).AddDate(0, 0, 7)
		for day := 0; day < 14; day++ {
			date := timeutil.AddDays(start, loc, day)
			for _, window := range dailyShiftWindows {
				shiftStart := time.Date(date.Year(), date.Month(), date.Day(), window.startHour, 0, 0, 0, loc)
				shiftEnd := time.Date(date.Year(), date.Month(), date.Day(), window.endHour, 0, 0, 0, loc)

				shift := &domain.Shift{
					LocationID:    location.ID,
					RequiredSkill: utils.GenerateRandomSkill(),
					StartTime:     shiftStart,
					EndTime:       shiftEnd,
					Headcount:     int32(rand.Intn(3) + 1),
					Status:        domain.ShiftStatusPublished,
					WeekKey:       timeutil.WeekKey(shiftStart, loc),
					EditCutoff:    shiftStart.Add(-domain.EditCutoffLeadTime),
				}

				if err := repo.CreateShift(shift); err != nil {
					slog.Error("插入班次失败", "location", location.Name, "error", err)
					continue
				}
				shiftCount++
			}
		}
	}

	slog.Info("插入班次完成", "count", shiftCount)
}
