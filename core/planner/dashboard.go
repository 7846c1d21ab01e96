package planner

import (
	"context"

	"github.com/google/uuid"

	"github.com/relabs-tech/plantparenthood/core"
	"github.com/relabs-tech/plantparenthood/core/model"
	"github.com/relabs-tech/plantparenthood/core/pointers"
)

// Dashboard is a user's overview of their plants
type Dashboard struct {
	User   *model.User      `json:"user"`
	Plants []DashboardPlant `json:"plants"`
}

// DashboardPlant is a plant together with its most recent care event
type DashboardPlant struct {
	model.Plant
	LastCareType *string     `json:"last_care_type"`
	LastCareDate *model.Date `json:"last_care_date"`
}

// GetDashboard returns the user's plants, each with type and date of its most
// recent care event. Plants which were never cared for have nil for both.
func (p *Planner) GetDashboard(ctx context.Context, userID uuid.UUID) (*Dashboard, error) {
	user, err := p.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	plants, err := p.ListPlants(ctx, &userID)
	if err != nil {
		return nil, err
	}

	dashboard := &Dashboard{User: user, Plants: make([]DashboardPlant, 0, len(plants))}
	if len(plants) == 0 {
		return dashboard, nil
	}

	ids := make([]uuid.UUID, 0, len(plants))
	for _, plant := range plants {
		ids = append(ids, plant.ID)
	}
	var events []model.CareEvent
	err = p.db.WithContext(ctx).
		Select("plant_id", "event_type", "event_date").
		Where("plant_id IN ?", ids).
		Order(newestFirst).
		Find(&events).Error
	if err != nil {
		return nil, core.Internal(err)
	}

	latest := map[uuid.UUID]model.CareEvent{}
	for _, event := range events {
		if _, ok := latest[event.PlantID]; !ok {
			latest[event.PlantID] = event
		}
	}

	for _, plant := range plants {
		entry := DashboardPlant{Plant: plant}
		if event, ok := latest[plant.ID]; ok {
			entry.LastCareType = pointers.StringPtr(event.EventType)
			entry.LastCareDate = pointers.DatePtr(event.EventDate)
		}
		dashboard.Plants = append(dashboard.Plants, entry)
	}
	return dashboard, nil
}
