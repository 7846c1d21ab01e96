package planner

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/relabs-tech/plantparenthood/core"
	"github.com/relabs-tech/plantparenthood/core/model"
)

// CreatePlant creates a plant and adds ownerID to its owner set in the same
// transaction. Fails with core.ErrSpeciesNotFound or core.ErrUserNotFound if a
// reference does not resolve.
//
// The returned plant has species and owners loaded.
func (p *Planner) CreatePlant(ctx context.Context, nickname string, speciesID, ownerID uuid.UUID) (*model.Plant, error) {
	nickname, err := text("nickname", nickname, 40, true)
	if err != nil {
		return nil, err
	}

	plant := &model.Plant{
		Nickname:  nickname,
		SpeciesID: speciesID,
		CreatedAt: p.now(),
	}
	err = p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Select("id").First(&model.Species{}, "id = ?", speciesID).Error; err != nil {
			return notFound(err, core.ErrSpeciesNotFound)
		}
		if err := tx.Select("id").First(&model.User{}, "id = ?", ownerID).Error; err != nil {
			return notFound(err, core.ErrUserNotFound)
		}
		if err := tx.Omit(clause.Associations).Create(plant).Error; err != nil {
			return err
		}
		if err := tx.Create(&model.PlantOwner{PlantID: plant.ID, UserID: ownerID}).Error; err != nil {
			return err
		}
		return loadPlant(tx, plant.ID, plant)
	})
	if err != nil {
		return nil, core.Internal(err)
	}
	p.notify(ctx, "plant", core.OperationCreate, plant)
	return plant, nil
}

func loadPlant(tx *gorm.DB, id uuid.UUID, plant *model.Plant) error {
	return tx.Preload("Species").Preload("Owners", func(db *gorm.DB) *gorm.DB {
		return db.Order("username")
	}).First(plant, "id = ?", id).Error
}

// GetPlant returns a plant with species and owners, or core.ErrPlantNotFound
func (p *Planner) GetPlant(ctx context.Context, id uuid.UUID) (*model.Plant, error) {
	var plant model.Plant
	if err := loadPlant(p.db.WithContext(ctx), id, &plant); err != nil {
		return nil, notFound(err, core.ErrPlantNotFound)
	}
	return &plant, nil
}

// ListPlants returns all plants, or only those owned by owner if owner is not nil.
// Plants are ordered by creation time.
func (p *Planner) ListPlants(ctx context.Context, owner *uuid.UUID) ([]model.Plant, error) {
	plants := []model.Plant{}
	db := p.db.WithContext(ctx)
	query := db.Preload("Species").Preload("Owners", func(db *gorm.DB) *gorm.DB {
		return db.Order("username")
	}).Order("created_at, id")
	if owner != nil {
		query = query.Where("id IN (?)", db.Model(&model.PlantOwner{}).Select("plant_id").Where("user_id = ?", *owner))
	}
	if err := query.Find(&plants).Error; err != nil {
		return nil, core.Internal(err)
	}
	return plants, nil
}

// DeletePlant deletes a plant together with its care events and owner set.
// Fails with core.ErrPlantNotFound if there is no such plant.
func (p *Planner) DeletePlant(ctx context.Context, id uuid.UUID) error {
	var deleted model.Plant
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := loadPlant(tx, id, &deleted); err != nil {
			return notFound(err, core.ErrPlantNotFound)
		}
		if err := tx.Where("plant_id = ?", id).Delete(&model.CareEvent{}).Error; err != nil {
			return err
		}
		if err := tx.Where("plant_id = ?", id).Delete(&model.PlantOwner{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&model.Plant{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return core.ErrPlantNotFound
		}
		return nil
	})
	if err != nil {
		return core.Internal(err)
	}
	p.notify(ctx, "plant", core.OperationDelete, &deleted)
	return nil
}
