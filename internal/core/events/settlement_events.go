package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeSettlementInitiated          = "settlement.initiated"
	EventTypeSettlementCalculated         = "settlement.calculated"
	EventTypeSettlementClearanceUpdated   = "settlement.clearance_updated"
	EventTypeSettlementApproved           = "settlement.approved"
	EventTypeSettlementDocumentsGenerated = "settlement.documents_generated"
	EventTypeSettlementCompleted          = "settlement.completed"
	EventTypeSettlementCancelled          = "settlement.cancelled"
)

// SettlementEventTypes lists every settlement transition in lifecycle order.
var SettlementEventTypes = []string{
	EventTypeSettlementInitiated,
	EventTypeSettlementCalculated,
	EventTypeSettlementClearanceUpdated,
	EventTypeSettlementApproved,
	EventTypeSettlementDocumentsGenerated,
	EventTypeSettlementCompleted,
	EventTypeSettlementCancelled,
}

type SettlementEvent struct {
	BaseEvent
	SettlementID int64  `json:"settlement_id"`
	UserID       int64  `json:"user_id"`
	ActorID      int64  `json:"actor_id"`
	Status       string `json:"status"`
	NetPayable   string `json:"net_payable"`
}

func NewSettlementEvent(eventType string, settlementID, userID, actorID int64, status, netPayable string) *SettlementEvent {
	return &SettlementEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      eventType,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"settlement_id": settlementID,
				"user_id":       userID,
				"actor_id":      actorID,
				"status":        status,
				"net_payable":   netPayable,
			},
		},
		SettlementID: settlementID,
		UserID:       userID,
		ActorID:      actorID,
		Status:       status,
		NetPayable:   netPayable,
	}
}
