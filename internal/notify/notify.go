package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/staffhub-dev/shift-roster/backend/internal/config"
)

// QueueName 实时事件队列，由推送网关和邮件 worker 消费
const QueueName = "roster_events"

const (
	EventAssignConflict    = "assign_conflict"
	EventAssignmentCreated = "assignment_created"
	EventAssignmentRemoved = "assignment_removed"
	EventClockIn           = "clock_in"
	EventClockOut          = "clock_out"
	EventSwapCreated       = "swap_created"
	EventSwapAccepted      = "swap_accepted"
	EventSwapRejected      = "swap_rejected"
	EventSwapCancelled     = "swap_cancelled"
	EventSwapApproved      = "swap_approved"
	EventSwapManagerReject = "swap_manager_rejected"
	EventDropAvailable     = "drop_available"
	EventDropPicked        = "drop_picked"
	EventDropExpired       = "drop_expired"
)

type Event struct {
	Channel string `json:"channel"`
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// UserChannel 按用户 ID 命名的事件频道
func UserChannel(userID int64) string {
	return fmt.Sprintf("user_%d", userID)
}

// LocationChannel 按地点 ID 命名的事件频道，地点在班的员工都会订阅
func LocationChannel(locationID int64) string {
	return fmt.Sprintf("location_%d", locationID)
}

type Emitter struct {
	cfg     *config.Config
	channel *amqp.Channel
}

func NewEmitter(cfg *config.Config, channel *amqp.Channel) *Emitter {
	return &Emitter{
		cfg:     cfg,
		channel: channel,
	}
}

// Emit 尽力而为地发布事件。发布失败只记录日志不向上传播，
// 实时通知不承诺送达，不允许拖垮核心操作
func (e *Emitter) Emit(event Event) {
	body, err := json.Marshal(event)
	if err != nil {
		slog.Warn("事件序列化失败", "type", event.Type, "channel", event.Channel, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(e.cfg.RabbitMQ.PublishTimeout)*time.Second)
	defer cancel()

	if err := e.channel.PublishWithContext(
		ctx,
		"",
		QueueName,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	); err != nil {
		slog.Warn("事件发布失败", "type", event.Type, "channel", event.Channel, "error", err)
	}
}
