package planner

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/relabs-tech/plantparenthood/core"
	"github.com/relabs-tech/plantparenthood/core/auth"
	"github.com/relabs-tech/plantparenthood/core/logger"
	"github.com/relabs-tech/plantparenthood/core/model"
	"github.com/relabs-tech/plantparenthood/core/registry"
)

// SeedPassword is the password of all seeded users
const SeedPassword = "password123"

// SeedRecord describes the last seeding run. It is kept in the registry and
// survives a reset.
type SeedRecord struct {
	Reset      bool `json:"reset"`
	Users      int  `json:"users"`
	Species    int  `json:"species"`
	Plants     int  `json:"plants"`
	CareEvents int  `json:"care_events"`
}

func (p *Planner) seedRegistry(ctx context.Context) (registry.Accessor, error) {
	r, err := registry.New(ctx, p.db)
	if err != nil {
		return registry.Accessor{}, err
	}
	return r.Accessor("seed"), nil
}

// LastSeed returns the record of the last seeding run and when it happened. The
// time is zero if the database was never seeded.
func (p *Planner) LastSeed(ctx context.Context) (SeedRecord, time.Time, error) {
	var record SeedRecord
	accessor, err := p.seedRegistry(ctx)
	if err != nil {
		return record, time.Time{}, core.Internal(err)
	}
	at, err := accessor.Read(ctx, "last", &record)
	if err != nil {
		return record, time.Time{}, core.Internal(err)
	}
	return record, at, nil
}

type seedPlant struct {
	nickname string
	species  int
	owner    int
}

type seedCareEvent struct {
	eventType string
	notes     string
	date      string
	user      int
	plant     int
}

var (
	seedUsers = []model.User{
		{Username: "plant_lover", Email: "plantlover@email.com"},
		{Username: "green_thumb", Email: "greenthumb@email.com"},
		{Username: "urban_gardener", Email: "gardener@email.com"},
	}
	seedSpecies = []model.Species{
		{CommonName: "Snake Plant", ScientificName: "Dracaena trifasciata", WateringFrequency: "Every 2-3 weeks"},
		{CommonName: "Peace Lily", ScientificName: "Spathiphyllum", WateringFrequency: "Weekly"},
		{CommonName: "Spider Plant", ScientificName: "Chlorophytum comosum", WateringFrequency: "Every 1-2 weeks"},
	}
	seedPlants = []seedPlant{
		{nickname: "Snakey", species: 0, owner: 0},
		{nickname: "Lily", species: 1, owner: 0},
		{nickname: "Spidey", species: 2, owner: 1},
		{nickname: "Green Giant", species: 0, owner: 2},
	}
	seedCareEvents = []seedCareEvent{
		{eventType: "watering", notes: "First watering", date: "2024-01-15", user: 0, plant: 0},
		{eventType: "fertilizing", notes: "Organic fertilizer", date: "2024-01-10", user: 1, plant: 1},
	}
)

// Seed fills an empty database with sample users, species, plants and care events.
// If the database already has users, nothing happens and false is returned. With
// reset, all tables are dropped and recreated first.
func (p *Planner) Seed(ctx context.Context, reset bool) (bool, error) {
	rlog := logger.FromContext(ctx)
	db := p.db.WithContext(ctx)
	if reset {
		rlog.Infoln("dropping all tables")
		if err := model.DropAll(db); err != nil {
			return false, core.Internal(err)
		}
	}
	if err := p.Migrate(ctx); err != nil {
		return false, core.Internal(err)
	}

	var count int64
	if err := db.Model(&model.User{}).Count(&count).Error; err != nil {
		return false, core.Internal(err)
	}
	if count > 0 {
		if _, at, err := p.LastSeed(ctx); err == nil && !at.IsZero() {
			rlog.Infof("database already has %d users, seeded at %s, skip seeding", count, at.Format(time.RFC3339))
		} else {
			rlog.Infof("database already has %d users, skip seeding", count)
		}
		return false, nil
	}

	hash, err := auth.HashPassword(SeedPassword)
	if err != nil {
		return false, err
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		users := make([]model.User, len(seedUsers))
		for i, u := range seedUsers {
			users[i] = u
			users[i].PasswordHash = hash
		}
		if err := tx.Create(&users).Error; err != nil {
			return err
		}

		species := append([]model.Species{}, seedSpecies...)
		if err := tx.Create(&species).Error; err != nil {
			return err
		}

		plants := make([]model.Plant, len(seedPlants))
		for i, sp := range seedPlants {
			plants[i] = model.Plant{Nickname: sp.nickname, SpeciesID: species[sp.species].ID}
		}
		if err := tx.Create(&plants).Error; err != nil {
			return err
		}
		for i, sp := range seedPlants {
			owner := model.PlantOwner{PlantID: plants[i].ID, UserID: users[sp.owner].ID}
			if err := tx.Create(&owner).Error; err != nil {
				return err
			}
		}

		for _, ce := range seedCareEvents {
			event := model.CareEvent{
				EventType: ce.eventType,
				Notes:     ce.notes,
				EventDate: model.MustParseDate(ce.date),
				UserID:    users[ce.user].ID,
				PlantID:   plants[ce.plant].ID,
			}
			if err := tx.Create(&event).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return false, core.Internal(err)
	}
	record := SeedRecord{
		Reset:      reset,
		Users:      len(seedUsers),
		Species:    len(seedSpecies),
		Plants:     len(seedPlants),
		CareEvents: len(seedCareEvents),
	}
	accessor, err := p.seedRegistry(ctx)
	if err == nil {
		err = accessor.Write(ctx, "last", record)
	}
	if err != nil {
		return true, core.Internal(err)
	}
	rlog.Infof("seeded %d users, %d species, %d plants and %d care events",
		record.Users, record.Species, record.Plants, record.CareEvents)
	return true, nil
}
