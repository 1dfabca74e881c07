package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vedran77/reviewhub/internal/domain"
	"github.com/vedran77/reviewhub/internal/repository"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var ErrProductNotFound = errors.New("product not found")

type ProductInput struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Category    string  `json:"category"`
	ImageURL    string  `json:"imageUrl"`
}

type ReviewInput struct {
	UserName string   `json:"userName"`
	Rating   int      `json:"rating"`
	Comment  string   `json:"comment"`
	Photos   []string `json:"photos"`
}

type ProductService struct {
	productRepo repository.ProductRepository
}

func NewProductService(productRepo repository.ProductRepository) *ProductService {
	return &ProductService{productRepo: productRepo}
}

func (s *ProductService) List(ctx context.Context) ([]domain.Product, error) {
	products, err := s.productRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	if products == nil {
		products = []domain.Product{}
	}
	return products, nil
}

func (s *ProductService) Get(ctx context.Context, id string) (*domain.Product, error) {
	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading product: %w", err)
	}
	if product == nil {
		return nil, ErrProductNotFound
	}
	return product, nil
}

func (s *ProductService) Create(ctx context.Context, input ProductInput) (*domain.Product, error) {
	now := time.Now()
	product := &domain.Product{
		Name:        strings.TrimSpace(input.Name),
		Description: strings.TrimSpace(input.Description),
		Price:       input.Price,
		Category:    strings.TrimSpace(input.Category),
		ImageURL:    strings.TrimSpace(input.ImageURL),
		Reviews:     []domain.Review{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	product.RecomputeRating()

	if err := s.productRepo.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("creating product: %w", err)
	}
	return product, nil
}

// AddReview appends a review and recomputes the average rating in one
// store operation.
func (s *ProductService) AddReview(ctx context.Context, productID string, input ReviewInput) (*domain.Product, error) {
	photos := make([]string, 0, len(input.Photos))
	for _, p := range input.Photos {
		if p = strings.TrimSpace(p); p != "" {
			photos = append(photos, p)
		}
	}

	product, err := s.productRepo.AppendReview(ctx, productID, domain.Review{
		ID:       primitive.NewObjectID(),
		UserName: strings.TrimSpace(input.UserName),
		Rating:   input.Rating,
		Comment:  strings.TrimSpace(input.Comment),
		Date:     time.Now(),
		Photos:   photos,
	})
	if err != nil {
		return nil, fmt.Errorf("saving review: %w", err)
	}
	if product == nil {
		return nil, ErrProductNotFound
	}
	return product, nil
}

func (s *ProductService) Delete(ctx context.Context, id string) error {
	deleted, err := s.productRepo.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("deleting product: %w", err)
	}
	if !deleted {
		return ErrProductNotFound
	}
	return nil
}
