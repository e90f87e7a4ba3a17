package domain

import (
	"encoding/json"
	"time"
)

// SystemActorID 后台任务（例如过期清扫）写审计记录时使用的执行者 ID
const SystemActorID int64 = 0

type AuditEntry struct {
	ID         int64           `json:"id"`
	ActorID    int64           `json:"actorID"`
	EntityType string          `json:"entityType"`
	EntityID   int64           `json:"entityID"`
	Action     string          `json:"action"`
	Before     json.RawMessage `json:"before"`
	After      json.RawMessage `json:"after"`
	Reason     string          `json:"reason"`
	ShiftID    *int64          `json:"shiftID"`
	CreatedAt  time.Time       `json:"createdAt"`
}
