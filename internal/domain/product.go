package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Product struct {
	ID          primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	Name        string             `json:"name" bson:"name"`
	Description string             `json:"description" bson:"description"`
	Price       float64            `json:"price" bson:"price"`
	Category    string             `json:"category" bson:"category"`
	ImageURL    string             `json:"imageUrl" bson:"image_url"`
	Reviews     []Review           `json:"reviews" bson:"reviews"`
	AvgRating   float64            `json:"avgRating" bson:"avg_rating"`
	CreatedAt   time.Time          `json:"createdAt" bson:"created_at"`
	UpdatedAt   time.Time          `json:"updatedAt" bson:"updated_at"`
}

type Review struct {
	ID       primitive.ObjectID `json:"_id" bson:"_id"`
	UserName string             `json:"userName" bson:"user_name"`
	Rating   int                `json:"rating" bson:"rating"`
	Comment  string             `json:"comment" bson:"comment"`
	Date     time.Time          `json:"date" bson:"date"`
	Photos   []string           `json:"photos" bson:"photos"`
}

// RecomputeRating sets AvgRating to the mean of all review ratings, or 0.
func (p *Product) RecomputeRating() {
	if len(p.Reviews) == 0 {
		p.AvgRating = 0
		return
	}
	total := 0
	for _, r := range p.Reviews {
		total += r.Rating
	}
	p.AvgRating = float64(total) / float64(len(p.Reviews))
}
