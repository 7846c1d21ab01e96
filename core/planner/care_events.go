package planner

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/relabs-tech/plantparenthood/core"
	"github.com/relabs-tech/plantparenthood/core/model"
)

// AddCareEvent logs a care event for a plant. The event date is always today
// according to the server clock, clients cannot backdate events.
//
// Fails with core.ErrPlantNotFound or core.ErrUserNotFound.
func (p *Planner) AddCareEvent(ctx context.Context, plantID, authorID uuid.UUID, eventType, notes string) (*model.CareEvent, error) {
	eventType, err := text("event_type", eventType, 50, true)
	if err != nil {
		return nil, err
	}

	now := p.now()
	event := &model.CareEvent{
		EventType: eventType,
		Notes:     notes,
		EventDate: model.DateOf(now),
		UserID:    authorID,
		PlantID:   plantID,
		CreatedAt: now,
	}
	err = p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Select("id").First(&model.Plant{}, "id = ?", plantID).Error; err != nil {
			return notFound(err, core.ErrPlantNotFound)
		}
		if err := tx.Select("id").First(&model.User{}, "id = ?", authorID).Error; err != nil {
			return notFound(err, core.ErrUserNotFound)
		}
		return tx.Create(event).Error
	})
	if err != nil {
		return nil, core.Internal(err)
	}
	p.notify(ctx, "care_event", core.OperationCreate, event)
	return event, nil
}

// GetCareEvent returns a care event or core.ErrCareEventNotFound
func (p *Planner) GetCareEvent(ctx context.Context, id uuid.UUID) (*model.CareEvent, error) {
	var event model.CareEvent
	if err := p.db.WithContext(ctx).First(&event, "id = ?", id).Error; err != nil {
		return nil, notFound(err, core.ErrCareEventNotFound)
	}
	return &event, nil
}

// CareEventFilter restricts ListCareEvents. Zero fields do not filter.
type CareEventFilter struct {
	UserID  uuid.UUID
	PlantID uuid.UUID
}

// ListCareEvents returns care events, newest first
func (p *Planner) ListCareEvents(ctx context.Context, filter CareEventFilter) ([]model.CareEvent, error) {
	events := []model.CareEvent{}
	query := p.db.WithContext(ctx).Order(newestFirst)
	if filter.UserID != uuid.Nil {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.PlantID != uuid.Nil {
		query = query.Where("plant_id = ?", filter.PlantID)
	}
	if err := query.Find(&events).Error; err != nil {
		return nil, core.Internal(err)
	}
	return events, nil
}

// newestFirst orders care events by event date. Events of the same day are ordered by
// insertion time and finally by id, so the order is stable.
const newestFirst = "event_date desc, created_at desc, id desc"
