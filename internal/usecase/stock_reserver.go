package usecase

import (
	"context"
	"cmp"
	"errors"
	"fmt"
	"slices"

	"agrimarket/internal/domain/model"
	repo "agrimarket/internal/repository"

	"github.com/shopspring/decimal"
)

type StockLine struct {
	ProductID int64
	Quantity  decimal.Decimal
}

// StockReserver は注文による在庫の増減を一手に引き受ける。
// 呼び出し側のトランザクションの中で使う。
type StockReserver struct {
	clock Clock
}

func NewStockReserver(clock Clock) *StockReserver {
	if clock == nil {
		clock = systemClock{}
	}
	return &StockReserver{clock: clock}
}

// 足りなければ ErrInsufficientStock（在庫はそのまま）
func (s *StockReserver) Reserve(ctx context.Context, inv repo.InventoryRepository, productID int64, qty decimal.Decimal) error {
	if !qty.IsPositive() {
		return validationErr("quantity must be positive for product %d", productID)
	}
	ok, err := inv.Reserve(ctx, productID, qty)
	if err != nil {
		return persistenceErr("reserve stock", err)
	}
	if !ok {
		return fmt.Errorf("%w: product %d, requested %s", ErrInsufficientStock, productID, qty.String())
	}
	return nil
}

// 二重に呼ばないのは呼び出し側（ステートマシン）の責任
func (s *StockReserver) Release(ctx context.Context, inv repo.InventoryRepository, productID int64, qty decimal.Decimal) error {
	if !qty.IsPositive() {
		return validationErr("quantity must be positive for product %d", productID)
	}
	if err := inv.Release(ctx, productID, qty); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: product %d", ErrNotFound, productID)
		}
		return persistenceErr("release stock", err)
	}
	return nil
}

// 行ロックは常に product_id の昇順で取る（逆順のカート同士でデッドロックしない）
func lockOrder(lines []StockLine) []StockLine {
	sorted := slices.Clone(lines)
	slices.SortStableFunc(sorted, func(a, b StockLine) int {
		return cmp.Compare(a.ProductID, b.ProductID)
	})
	return sorted
}

// 全部取れなければエラー。途中まで減った分はトランザクションのロールバックで戻る
func (s *StockReserver) ReserveAll(ctx context.Context, inv repo.InventoryRepository, lines []StockLine) error {
	for _, l := range lockOrder(lines) {
		if err := s.Reserve(ctx, inv, l.ProductID, l.Quantity); err != nil {
			return err
		}
	}
	return nil
}

// 予約の履歴は注文IDが決まってから書く
func (s *StockReserver) RecordReserved(ctx context.Context, inv repo.InventoryRepository, orderID int64, lines []StockLine) error {
	return s.record(ctx, inv, orderID, lines, model.StockMovementReserve)
}

func (s *StockReserver) ReleaseAll(ctx context.Context, inv repo.InventoryRepository, orderID int64, lines []StockLine) error {
	for _, l := range lockOrder(lines) {
		if err := s.Release(ctx, inv, l.ProductID, l.Quantity); err != nil {
			return err
		}
	}
	return s.record(ctx, inv, orderID, lines, model.StockMovementRelease)
}

func (s *StockReserver) record(ctx context.Context, inv repo.InventoryRepository, orderID int64, lines []StockLine, reason model.StockMovementReason) error {
	now := s.clock.Now()
	movements := make([]model.StockMovement, 0, len(lines))
	for _, l := range lines {
		delta := l.Quantity
		if reason == model.StockMovementReserve {
			delta = delta.Neg()
		}
		movements = append(movements, model.StockMovement{
			ProductID: l.ProductID,
			OrderID:   orderID,
			Delta:     delta,
			Reason:    reason,
			CreatedAt: now,
		})
	}
	if err := inv.CreateMovements(ctx, movements); err != nil {
		return persistenceErr("record stock movements", err)
	}
	return nil
}

func stockLinesFromItems(items []model.OrderItem) []StockLine {
	lines := make([]StockLine, 0, len(items))
	for _, it := range items {
		lines = append(lines, StockLine{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return lines
}
