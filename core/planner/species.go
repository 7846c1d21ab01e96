package planner

import (
	"context"

	"github.com/google/uuid"

	"github.com/relabs-tech/plantparenthood/core"
	"github.com/relabs-tech/plantparenthood/core/model"
)

// CreateSpecies adds a species. Fails with core.ErrScientificNameTaken on duplicates.
func (p *Planner) CreateSpecies(ctx context.Context, commonName, scientificName, wateringFrequency string) (*model.Species, error) {
	commonName, err := text("common_name", commonName, 40, true)
	if err != nil {
		return nil, err
	}
	scientificName, err = text("scientific_name", scientificName, 40, true)
	if err != nil {
		return nil, err
	}
	wateringFrequency, err = text("watering_frequency", wateringFrequency, 40, false)
	if err != nil {
		return nil, err
	}

	species := &model.Species{
		CommonName:        commonName,
		ScientificName:    scientificName,
		WateringFrequency: wateringFrequency,
	}
	if err := p.db.WithContext(ctx).Create(species).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, core.ErrScientificNameTaken.WithMessage("species '%s' already exists", scientificName)
		}
		return nil, core.Internal(err)
	}
	return species, nil
}

// GetSpecies returns a species or core.ErrSpeciesNotFound
func (p *Planner) GetSpecies(ctx context.Context, id uuid.UUID) (*model.Species, error) {
	var species model.Species
	if err := p.db.WithContext(ctx).First(&species, "id = ?", id).Error; err != nil {
		return nil, notFound(err, core.ErrSpeciesNotFound)
	}
	return &species, nil
}

// ListSpecies returns all species ordered by common name
func (p *Planner) ListSpecies(ctx context.Context) ([]model.Species, error) {
	species := []model.Species{}
	if err := p.db.WithContext(ctx).Order("common_name, scientific_name").Find(&species).Error; err != nil {
		return nil, core.Internal(err)
	}
	return species, nil
}
