package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vedran77/reviewhub/internal/repository/memory"
	"github.com/vedran77/reviewhub/internal/service"
	"github.com/vedran77/reviewhub/pkg/validator"
)

func TestSampleProductsAreValid(t *testing.T) {
	images := validator.NewImagePolicy([]string{"images.unsplash.com"}, "/uploads/")
	for _, p := range sampleProducts {
		errs := validator.ValidateProduct(p.Name, p.Description, p.Category, p.ImageURL, p.Price, images)
		assert.False(t, errs.HasErrors(), "%s: %v", p.Name, errs)
	}
}

func TestSeedProducts(t *testing.T) {
	ctx := context.Background()
	products := service.NewProductService(memory.NewProductRepo())

	n, err := seedProducts(ctx, products, true)
	require.NoError(t, err)
	assert.Equal(t, len(sampleProducts), n)

	_, err = seedProducts(ctx, products, true)
	require.NoError(t, err)
	list, err := products.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, len(sampleProducts))

	_, err = seedProducts(ctx, products, false)
	require.NoError(t, err)
	list, err = products.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2*len(sampleProducts))
}
