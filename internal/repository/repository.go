package repository

import (
	"database/sql"
	"errors"

	"github.com/staffhub-dev/shift-roster/backend/internal/config"
)

// 事务步骤中可预期的、调用方可以自行纠正后重试的错误
var (
	ErrShiftFull       = errors.New("班次人数已满")
	ErrAlreadyAssigned = errors.New("该员工已被分配到此班次")
	ErrOverlapConflict = errors.New("该员工存在时间重叠的已确认班次")
	ErrRequestNotOpen  = errors.New("请求已不处于开放状态")
)

type Repository struct {
	cfg    *config.Config
	dbpool *sql.DB
}

func NewRepository(cfg *config.Config, dbpool *sql.DB) *Repository {
	return &Repository{
		cfg:    cfg,
		dbpool: dbpool,
	}
}
