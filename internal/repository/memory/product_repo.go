package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/vedran77/reviewhub/internal/domain"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ProductRepo struct {
	mu       sync.RWMutex
	products map[primitive.ObjectID]domain.Product
}

func NewProductRepo() *ProductRepo {
	return &ProductRepo{products: make(map[primitive.ObjectID]domain.Product)}
}

func (r *ProductRepo) List(_ context.Context) ([]domain.Product, error) {
	r.mu.RLock()
	out := make([]domain.Product, 0, len(r.products))
	for _, p := range r.products {
		out = append(out, p)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *ProductRepo) GetByID(_ context.Context, id string) (*domain.Product, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.products[oid]
	if !ok {
		return nil, nil
	}
	p.Reviews = append([]domain.Review(nil), p.Reviews...)
	return &p, nil
}

func (r *ProductRepo) Create(_ context.Context, product *domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	product.ID = primitive.NewObjectID()
	r.products[product.ID] = *product
	return nil
}

func (r *ProductRepo) AppendReview(_ context.Context, id string, review domain.Review) (*domain.Product, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.products[oid]
	if !ok {
		return nil, nil
	}
	p.Reviews = append(append([]domain.Review(nil), p.Reviews...), review)
	p.RecomputeRating()
	p.UpdatedAt = review.Date
	r.products[oid] = p

	p.Reviews = append([]domain.Review(nil), p.Reviews...)
	return &p, nil
}

func (r *ProductRepo) Delete(_ context.Context, id string) (bool, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.products[oid]; !ok {
		return false, nil
	}
	delete(r.products, oid)
	return true, nil
}
