package model

import "time"

type StationStatus string

const (
	StationOperational StationStatus = "operational"
	StationMaintenance StationStatus = "maintenance"
	StationOffline     StationStatus = "offline"
)

type Rates struct {
	PerHour  float64 `json:"per_hour" bson:"per_hour" validate:"required,gt=0"`
	Currency string  `json:"currency" bson:"currency" validate:"required,len=3"`
}

type OperatingHours struct {
	Open  string `json:"open" bson:"open" validate:"required,len=5"`
	Close string `json:"close" bson:"close" validate:"required,len=5"`
}

type Station struct {
	ID        string  `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	Name      string  `json:"name" bson:"name" validate:"required,min=2,max=100"`
	Address   string  `json:"address" bson:"address" validate:"required,min=2,max=200"`
	Latitude  float64 `json:"latitude" bson:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" bson:"longitude" validate:"gte=-180,lte=180"`
	// TotalSlots is fixed at creation; AvailableSlots moves only through
	// the slot ledger operations and always stays within [0, TotalSlots].
	TotalSlots     int            `json:"total_slots" bson:"total_slots" validate:"required,min=1,max=500"`
	AvailableSlots int            `json:"available_slots" bson:"available_slots" validate:"gte=0"`
	Rates          Rates          `json:"rates" bson:"rates" validate:"required"`
	OperatingHours OperatingHours `json:"operating_hours" bson:"operating_hours" validate:"required"`
	Status         StationStatus  `json:"status" bson:"status" validate:"required,oneof=operational maintenance offline"`
	CreatedBy      string         `json:"created_by" bson:"created_by" validate:"required,min=1,max=128"`
	CreatedAt      time.Time      `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at" bson:"updated_at"`
}

type StationUpdate struct {
	Name           string          `json:"name,omitempty" validate:"omitempty,min=2,max=100"`
	Address        string          `json:"address,omitempty" validate:"omitempty,min=2,max=200"`
	Latitude       *float64        `json:"latitude,omitempty" validate:"omitempty,gte=-90,lte=90"`
	Longitude      *float64        `json:"longitude,omitempty" validate:"omitempty,gte=-180,lte=180"`
	Rates          *Rates          `json:"rates,omitempty" validate:"omitempty"`
	OperatingHours *OperatingHours `json:"operating_hours,omitempty" validate:"omitempty"`
	Status         StationStatus   `json:"status,omitempty" validate:"omitempty,oneof=operational maintenance offline"`
}

// IsBookable reports whether new bookings may target the station.
func (s *Station) IsBookable() bool {
	return s.Status == StationOperational
}
