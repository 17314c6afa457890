package models

import (
	"time"
)

// Catalog entities for the vehicle configurator. Declaration order here
// mirrors foreign-key dependency order: a table only references tables
// declared above it. The backup registry relies on that ordering.

type Brand struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:100;uniqueIndex;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Models []CarModel `gorm:"foreignKey:BrandID" json:"models,omitempty"`
}

type CarModel struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	BrandID   uint      `gorm:"index;not null" json:"brand_id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Brand Brand `gorm:"foreignKey:BrandID" json:"-"`
}

type Version struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	CarModelID uint      `gorm:"index;not null" json:"car_model_id"`
	Name       string    `gorm:"size:100;not null" json:"name"`
	Price      float64   `gorm:"not null" json:"price"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	CarModel CarModel `gorm:"foreignKey:CarModelID" json:"-"`
}

type Color struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:60;not null" json:"name"`
	Price     float64   `json:"price"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Optional struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	Price     float64   `json:"price"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Vehicle struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	VersionID uint      `gorm:"index;not null" json:"version_id"`
	ColorID   uint      `gorm:"index;not null" json:"color_id"`
	Chassis   string    `gorm:"size:30;uniqueIndex" json:"chassis"`
	Status    string    `gorm:"size:20;default:available" json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Version Version `gorm:"foreignKey:VersionID" json:"-"`
	Color   Color   `gorm:"foreignKey:ColorID" json:"-"`
}

// VehicleOptional links a vehicle to one of its fitted optionals.
type VehicleOptional struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	VehicleID  uint      `gorm:"index;not null" json:"vehicle_id"`
	OptionalID uint      `gorm:"index;not null" json:"optional_id"`
	CreatedAt  time.Time `json:"created_at"`

	Vehicle  Vehicle  `gorm:"foreignKey:VehicleID" json:"-"`
	Optional Optional `gorm:"foreignKey:OptionalID" json:"-"`
}

type DirectSale struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	VehicleID       uint       `gorm:"index;not null" json:"vehicle_id"`
	UserID          uint       `gorm:"index;not null" json:"user_id"`
	DiscountPercent float64    `json:"discount_percent"`
	StartDate       time.Time  `json:"start_date"`
	EndDate         *time.Time `json:"end_date,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`

	Vehicle Vehicle `gorm:"foreignKey:VehicleID" json:"-"`
	User    User    `gorm:"foreignKey:UserID" json:"-"`
}
