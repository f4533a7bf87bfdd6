package main

import (
	"context"
	"errors"
	"fmt"

	"agrimarket/internal/domain/model"
	infraRepo "agrimarket/internal/infra/repository"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type seedProductFlags struct {
	farmerID int64
	name     string
	price    string
	unit     string
	stock    string
	minOrder string
	grade    string
	organic  bool
	inactive bool
}

// ローカル確認用に商品を1件入れる
func seedProductCommand() *cobra.Command {
	var f seedProductFlags

	cmd := &cobra.Command{
		Use:   "seed-product",
		Short: "insert a product for local testing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := f.toProduct()
			if err != nil {
				return err
			}
			return withDB(cmd.Context(), func(ctx context.Context, gdb *gorm.DB, log *zap.Logger) error {
				created, err := infraRepo.NewProductGormRepository(gdb).Create(ctx, p)
				if err != nil {
					return fmt.Errorf("create product: %w", err)
				}
				log.Info("product seeded", zap.Int64("product_id", created.ID), zap.String("name", created.Name))
				fmt.Fprintln(cmd.OutOrStdout(), created.ID)
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&f.farmerID, "farmer", 0, "farmer user id")
	cmd.Flags().StringVar(&f.name, "name", "", "product name")
	cmd.Flags().StringVar(&f.price, "price", "", "unit price, e.g. 200.00")
	cmd.Flags().StringVar(&f.unit, "unit", "kg", "unit of measure")
	cmd.Flags().StringVar(&f.stock, "stock", "", "available stock, e.g. 100.5")
	cmd.Flags().StringVar(&f.minOrder, "min-order", "0", "minimum order quantity")
	cmd.Flags().StringVar(&f.grade, "grade", "", "quality grade")
	cmd.Flags().BoolVar(&f.organic, "organic", false, "organic produce")
	cmd.Flags().BoolVar(&f.inactive, "inactive", false, "create as inactive")
	_ = cmd.MarkFlagRequired("farmer")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("price")
	_ = cmd.MarkFlagRequired("stock")
	return cmd
}

func (f seedProductFlags) toProduct() (model.Product, error) {
	if f.farmerID <= 0 {
		return model.Product{}, errors.New("farmer must be positive")
	}
	if f.name == "" {
		return model.Product{}, errors.New("name is required")
	}
	price, err := decimal.NewFromString(f.price)
	if err != nil || !price.IsPositive() {
		return model.Product{}, fmt.Errorf("invalid price %q", f.price)
	}
	stock, err := decimal.NewFromString(f.stock)
	if err != nil || stock.IsNegative() {
		return model.Product{}, fmt.Errorf("invalid stock %q", f.stock)
	}
	minOrder, err := decimal.NewFromString(f.minOrder)
	if err != nil || minOrder.IsNegative() {
		return model.Product{}, fmt.Errorf("invalid min-order %q", f.minOrder)
	}

	return model.Product{
		FarmerID:     f.farmerID,
		Name:         f.name,
		Price:        price.Round(2),
		Unit:         f.unit,
		MinOrder:     minOrder,
		Stock:        stock,
		QualityGrade: f.grade,
		Organic:      f.organic,
		IsActive:     !f.inactive,
	}, nil
}
