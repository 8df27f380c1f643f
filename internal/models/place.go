package models

import (
	"math"
	"time"

	"gorm.io/datatypes"
)

// PlaceSource identifies the provider a place came from
type PlaceSource string

const (
	SourceNaver PlaceSource = "NAVER"
	SourceAgoda PlaceSource = "AGODA"
	SourceKlook PlaceSource = "KLOOK"
)

// Place is the normalized travel record merged from all providers.
// ID is source-prefixed (e.g. "agoda:12345") and is the upsert key.
type Place struct {
	ID          string         `gorm:"primaryKey;size:100" json:"id" bson:"_id"`
	Title       string         `gorm:"not null;index" json:"title" bson:"title"`
	Address     string         `json:"address" bson:"address"`
	Category    string         `gorm:"size:100" json:"category" bson:"category"`
	Lat         float64        `json:"lat" bson:"lat"`
	Lng         float64        `json:"lng" bson:"lng"`
	ImageURL    string         `json:"image_url" bson:"image_url"`
	Rating      float64        `json:"rating" bson:"rating"`
	ReviewCount int            `json:"review_count" bson:"review_count"`
	Source      PlaceSource    `gorm:"size:10;index" json:"source" bson:"source"`
	BookingURL  string         `json:"booking_url,omitempty" bson:"booking_url,omitempty"`
	Raw         datatypes.JSON `json:"-" bson:"-"`
	UpdatedAt   time.Time      `json:"updated_at" bson:"updated_at"`

	// HasCoords is false when the provider returned no usable coordinates
	// and Lat/Lng were filled in by the aggregator.
	HasCoords bool `gorm:"-" json:"-" bson:"-"`
}

func (Place) TableName() string {
	return "places"
}

// TrendScore ranks places for the trending list
func (p *Place) TrendScore() float64 {
	return p.Rating * math.Log1p(float64(p.ReviewCount))
}
