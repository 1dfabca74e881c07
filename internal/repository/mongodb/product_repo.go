package mongodb

import (
	"context"
	"time"

	"github.com/vedran77/reviewhub/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

const defaultTimeout = 10 * time.Second

type ProductRepo struct {
	products *Collection[domain.Product]
}

func NewProductRepo(db *mongo.Database, collection string) *ProductRepo {
	return &ProductRepo{products: NewCollection[domain.Product](db, collection)}
}

func (r *ProductRepo) List(ctx context.Context) ([]domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	return r.products.FindAll(ctx, bson.M{}, bson.D{{Key: "created_at", Value: -1}})
}

// GetByID returns nil, nil for unknown or malformed ids.
func (r *ProductRepo) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	return r.products.FindByID(ctx, oid)
}

func (r *ProductRepo) Create(ctx context.Context, product *domain.Product) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	oid, err := r.products.Insert(ctx, product)
	if err != nil {
		return err
	}
	product.ID = oid
	return nil
}

// AppendReview pushes the review and recomputes avg_rating in a single
// update pipeline, so concurrent reviews never overwrite each other.
func (r *ProductRepo) AppendReview(ctx context.Context, id string, review domain.Review) (*domain.Product, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	// $literal keeps user text starting with "$" from being read as a field path.
	pushed := bson.D{{Key: "$concatArrays", Value: bson.A{
		bson.D{{Key: "$ifNull", Value: bson.A{"$reviews", bson.A{}}}},
		bson.A{bson.D{{Key: "$literal", Value: review}}},
	}}}
	avg := bson.D{{Key: "$ifNull", Value: bson.A{
		bson.D{{Key: "$avg", Value: "$reviews.rating"}},
		0,
	}}}

	return r.products.UpdateByID(ctx, oid, mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "reviews", Value: pushed},
			{Key: "updated_at", Value: review.Date},
		}}},
		{{Key: "$set", Value: bson.D{{Key: "avg_rating", Value: avg}}}},
	})
}

func (r *ProductRepo) Delete(ctx context.Context, id string) (bool, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, nil
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	return r.products.DeleteByID(ctx, oid)
}
