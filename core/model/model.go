/*
Package model contains the persistent entities of the planner.

	User      *--* Plant       (owner set, table plant_owners)
	Species   1--* Plant
	Plant     1--* CareEvent   (deleting a plant deletes its care events)
	User      1--* CareEvent   (author)

All identifiers are UUIDs which are assigned before insert.
*/
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is a plant parent. The password hash never leaves the server.
type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Username     string    `gorm:"size:30;not null;uniqueIndex" json:"username"`
	Email        string    `gorm:"size:120;not null;uniqueIndex" json:"email"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Species is reference data shared by all users
type Species struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CommonName        string    `gorm:"size:40;not null" json:"common_name"`
	ScientificName    string    `gorm:"size:40;not null;uniqueIndex" json:"scientific_name"`
	WateringFrequency string    `gorm:"size:40" json:"watering_frequency"`
	CreatedAt         time.Time `json:"-"`
}

// Plant is a plant owned by one or more users
type Plant struct {
	ID         uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	Nickname   string      `gorm:"size:40;not null" json:"nickname"`
	SpeciesID  uuid.UUID   `gorm:"type:uuid;not null;index" json:"species_id"`
	Species    *Species    `gorm:"constraint:OnDelete:RESTRICT" json:"species,omitempty"`
	Owners     []User      `gorm:"many2many:plant_owners;constraint:OnDelete:CASCADE" json:"owners"`
	CareEvents []CareEvent `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt  time.Time   `json:"created_at"`
}

// HasOwner returns true if userID is in the plant's owner set
func (p *Plant) HasOwner(userID uuid.UUID) bool {
	for _, owner := range p.Owners {
		if owner.ID == userID {
			return true
		}
	}
	return false
}

// OwnerIDs returns the identifiers of the plant's owner set
func (p *Plant) OwnerIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(p.Owners))
	for _, owner := range p.Owners {
		ids = append(ids, owner.ID)
	}
	return ids
}

// PlantOwner is the join table between users and plants. It carries nothing
// but the two keys.
type PlantOwner struct {
	PlantID uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID  uuid.UUID `gorm:"type:uuid;primaryKey"`
}

// CareEvent is a logged act of care, like watering. EventDate is assigned by the server.
type CareEvent struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	EventType string    `gorm:"size:50;not null" json:"event_type"`
	Notes     string    `gorm:"type:text" json:"notes"`
	EventDate Date      `gorm:"type:date;not null;index" json:"event_date"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	User      *User     `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	PlantID   uuid.UUID `gorm:"type:uuid;not null;index" json:"plant_id"`
	CreatedAt time.Time `json:"created_at"`
}

// BeforeCreate assigns a new id
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// BeforeCreate assigns a new id
func (s *Species) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// BeforeCreate assigns a new id
func (p *Plant) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// BeforeCreate assigns a new id
func (c *CareEvent) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// Migrate prepares the join table and creates or updates all tables
func Migrate(db *gorm.DB) error {
	if err := SetupJoinTables(db); err != nil {
		return err
	}
	return db.AutoMigrate(&User{}, &Species{}, &Plant{}, &CareEvent{})
}

// SetupJoinTables registers PlantOwner as the join model of the owner set. It must
// be called once for every *gorm.DB before the owner association is used.
func SetupJoinTables(db *gorm.DB) error {
	return db.SetupJoinTable(&Plant{}, "Owners", &PlantOwner{})
}

// DropAll drops all tables, children first
func DropAll(db *gorm.DB) error {
	return db.Migrator().DropTable(&CareEvent{}, &PlantOwner{}, &Plant{}, &Species{}, &User{})
}
