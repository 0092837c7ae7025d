package domain

import (
	"context"
	"strconv"
	"time"
)

// EventType 目录变更事件类型
type EventType string

const (
	EventCreated     EventType = "catalog.created"
	EventUpdated     EventType = "catalog.updated"
	EventDeleted     EventType = "catalog.deleted"
	EventAssociated  EventType = "catalog.associated"
	EventDissociated EventType = "catalog.dissociated"
)

// Event 在事务提交之后发布
type Event struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	Entity     string    `json:"entity"`
	EntityID   int64     `json:"entityId"`
	Relation   string    `json:"relation,omitempty"`
	RelatedID  int64     `json:"relatedId,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Key 作为消息分区键，同一实体的事件保持有序
func (e Event) Key() string {
	return e.Entity + ":" + strconv.FormatInt(e.EntityID, 10)
}

// EventPublisher 是变更事件的出口端口
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}
