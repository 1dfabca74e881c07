package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vedran77/reviewhub/internal/database"
	"github.com/vedran77/reviewhub/internal/repository/mongodb"
	"github.com/vedran77/reviewhub/internal/service"
	"github.com/vedran77/reviewhub/pkg/logger"
)

var sampleProducts = []service.ProductInput{
	{
		Name:        "Smartphone X",
		Description: "The latest smartphone with high-end features and stunning display.",
		ImageURL:    "https://images.unsplash.com/photo-1598327105666-5b89351aff97?q=80&w=2042&auto=format&fit=crop",
		Price:       899.99,
		Category:    "Electronics",
	},
	{
		Name:        "Wireless Headphones",
		Description: "Premium noise-canceling wireless headphones with long battery life.",
		ImageURL:    "https://images.unsplash.com/photo-1505740420928-5e560c06d30e?q=80&w=2070&auto=format&fit=crop",
		Price:       199.99,
		Category:    "Audio",
	},
	{
		Name:        "Smart Watch",
		Description: "Advanced smart watch with health tracking and smart notifications.",
		ImageURL:    "https://images.unsplash.com/photo-1546868871-7041f2a55e12?q=80&w=1928&auto=format&fit=crop",
		Price:       249.99,
		Category:    "Wearables",
	},
	{
		Name:        "Gaming Laptop",
		Description: "Powerful gaming laptop with high refresh rate display and premium graphics.",
		ImageURL:    "https://images.unsplash.com/photo-1603302576837-37561b2e2302?q=80&w=2068&auto=format&fit=crop",
		Price:       1299.99,
		Category:    "Computers",
	},
}

func newSeedCmd(load configLoader) *cobra.Command {
	var reset bool

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert sample products into MongoDB",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}

			db, err := database.ConnectMongo(cmd.Context(), cfg.MongoURI, cfg.MongoDB)
			if err != nil {
				return err
			}
			defer func() { _ = db.Client().Disconnect(context.Background()) }()

			products := service.NewProductService(mongodb.NewProductRepo(db, cfg.MongoProductsCollection))
			n, err := seedProducts(cmd.Context(), products, reset)
			if err != nil {
				return err
			}
			logger.Info().Int("inserted", n).Bool("reset", reset).Msg("products seeded")
			return nil
		},
	}
	cmd.Flags().BoolVar(&reset, "reset", true, "delete existing products first")
	return cmd
}

func seedProducts(ctx context.Context, products *service.ProductService, reset bool) (int, error) {
	if reset {
		existing, err := products.List(ctx)
		if err != nil {
			return 0, fmt.Errorf("listing products: %w", err)
		}
		for _, p := range existing {
			if err := products.Delete(ctx, p.ID.Hex()); err != nil {
				return 0, fmt.Errorf("deleting %s: %w", p.ID.Hex(), err)
			}
		}
	}

	for i, input := range sampleProducts {
		if _, err := products.Create(ctx, input); err != nil {
			return i, fmt.Errorf("inserting %q: %w", input.Name, err)
		}
	}
	return len(sampleProducts), nil
}
