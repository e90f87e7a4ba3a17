package domain

import "time"

type Location struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Timezone  string    `json:"timezone"` // IANA 时区名，例如 Asia/Shanghai
	CreatedAt time.Time `json:"createdAt"`
	Version   int32     `json:"-"`
}

type Certification struct {
	ID         int64      `json:"id"`
	StaffID    int64      `json:"staffID"`
	LocationID int64      `json:"locationID"`
	IssuedAt   time.Time  `json:"issuedAt"`
	RevokedAt  *time.Time `json:"revokedAt"` // 为空时表示认证仍然有效
}
