package migrate

import (
	"context"
	"fmt"
	"strings"

	"agrimarket/internal/domain/model"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Options struct {
	CreateChecks           bool // 列挙値・金額・数量のCHECK
	CreateIndexes          bool // 部分UNIQUEなど
	CreateUpdatedAtTrigger bool // orders.updated_at の自動更新
	CreateImmutableGuards  bool // order_items / tracking_events の更新・削除禁止
}

func DefaultOptions() Options {
	return Options{
		CreateChecks:           true,
		CreateIndexes:          true,
		CreateUpdatedAtTrigger: true,
		CreateImmutableGuards:  true,
	}
}

// 注文まわりのテーブルを作る（何度実行してもよい）
func Run(ctx context.Context, db *gorm.DB, log *zap.Logger, opt Options) error {
	db = db.WithContext(ctx)
	log.Info("migration started")

	if err := db.AutoMigrate(
		&model.User{},
		&model.Product{},
		&model.Order{},
		&model.OrderItem{},
		&model.TrackingEvent{},
		&model.StockMovement{},
		&model.AuditLog{},
	); err != nil {
		log.Error("automigrate failed", zap.Error(err))
		return err
	}
	log.Info("tables migrated")

	if opt.CreateUpdatedAtTrigger {
		if err := exec(db, log, "updated_at trigger", `
CREATE OR REPLACE FUNCTION set_updated_at() RETURNS trigger AS $$
BEGIN NEW.updated_at = now(); RETURN NEW; END; $$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS trg_orders_updated ON orders;
CREATE TRIGGER trg_orders_updated
BEFORE UPDATE ON orders
FOR EACH ROW EXECUTE FUNCTION set_updated_at();
`); err != nil {
			return err
		}
	}

	if opt.CreateChecks {
		checks := []struct {
			table, name, expr string
		}{
			{"orders", "chk_orders_status_allowed", "status IN (" + quoted(model.OrderStatuses) + ")"},
			{"orders", "chk_orders_payment_status_allowed", "payment_status IN (" + quoted(model.PaymentStatuses) + ")"},
			{"orders", "chk_orders_payment_method_allowed", "payment_method IN (" + quoted(model.PaymentMethods) + ")"},
			{"orders", "chk_orders_amounts_non_negative", "sub_total >= 0 AND tax_amount >= 0 AND shipping_cost >= 0 AND discount_amount >= 0 AND total_amount >= 0"},
			{"orders", "chk_orders_total_consistent", "total_amount = sub_total + tax_amount + shipping_cost - discount_amount"},
			{"order_items", "chk_order_items_quantity_gt_zero", "quantity > 0"},
			{"order_items", "chk_order_items_unit_price_non_negative", "unit_price >= 0"},
			{"tracking_events", "chk_tracking_events_status_allowed", "status IN (" + quoted(model.OrderStatuses) + ")"},
			{"products", "chk_products_stock_non_negative", "stock >= 0"},
		}
		for _, c := range checks {
			sql := fmt.Sprintf(`
ALTER TABLE %[1]s DROP CONSTRAINT IF EXISTS %[2]s;
ALTER TABLE %[1]s ADD CONSTRAINT %[2]s CHECK (%[3]s);
`, c.table, c.name, c.expr)
			if err := exec(db, log, "check "+c.name, sql); err != nil {
				return err
			}
		}
	}

	if opt.CreateIndexes {
		// 冪等キーは購入者ごとに一意（未指定の注文は対象外）
		if err := exec(db, log, "idempotency index", `
CREATE UNIQUE INDEX IF NOT EXISTS ux_orders_buyer_idempotency
  ON orders (buyer_id, idempotency_key)
  WHERE idempotency_key IS NOT NULL;
`); err != nil {
			return err
		}
		if err := exec(db, log, "stock movement index", `
CREATE INDEX IF NOT EXISTS idx_stock_movements_order_reason
  ON stock_movements (order_id, reason);
`); err != nil {
			return err
		}
	}

	if opt.CreateImmutableGuards {
		if err := exec(db, log, "immutable guards", `
CREATE OR REPLACE FUNCTION reject_mutation() RETURNS trigger AS $$
BEGIN RAISE EXCEPTION '% rows are append-only', TG_TABLE_NAME; END; $$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS trg_order_items_immutable ON order_items;
CREATE TRIGGER trg_order_items_immutable
BEFORE UPDATE OR DELETE ON order_items
FOR EACH ROW EXECUTE FUNCTION reject_mutation();

DROP TRIGGER IF EXISTS trg_tracking_events_immutable ON tracking_events;
CREATE TRIGGER trg_tracking_events_immutable
BEFORE UPDATE OR DELETE ON tracking_events
FOR EACH ROW EXECUTE FUNCTION reject_mutation();
`); err != nil {
			return err
		}
	}

	log.Info("migration finished")
	return nil
}

func exec(db *gorm.DB, log *zap.Logger, step string, sql string) error {
	if err := db.Exec(sql).Error; err != nil {
		log.Error("migration step failed", zap.String("step", step), zap.Error(err))
		return fmt.Errorf("%s: %w", step, err)
	}
	log.Debug("migration step applied", zap.String("step", step))
	return nil
}

func quoted[T ~string](values []T) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, "'"+string(v)+"'")
	}
	return strings.Join(parts, ",")
}
