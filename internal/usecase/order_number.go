package usecase

import (
	"fmt"
	"io"

	"github.com/oklog/ulid/v2"
)

// 注文番号: ORD-YYYYMMDD-XXXXXXXXXXXXXXXX（時刻と乱数80bitだけで決まる）
// 一意性はDBのUNIQUEで保証する
type OrderNumberGenerator struct {
	clock   Clock
	entropy io.Reader
}

// entropyは並行に呼ばれる。nilならulidのデフォルト（スレッドセーフ）
func NewOrderNumberGenerator(clock Clock, entropy io.Reader) *OrderNumberGenerator {
	if clock == nil {
		clock = systemClock{}
	}
	if entropy == nil {
		entropy = ulid.DefaultEntropy()
	}
	return &OrderNumberGenerator{clock: clock, entropy: entropy}
}

func (g *OrderNumberGenerator) Next() (string, error) {
	now := g.clock.Now().UTC()
	id, err := ulid.New(ulid.Timestamp(now), g.entropy)
	if err != nil {
		return "", fmt.Errorf("generate order number: %w", err)
	}
	// ULIDの乱数部分（16文字）をそのまま使う。時刻部分は日付と重なるので捨てる
	suffix := id.String()[10:]
	return fmt.Sprintf("ORD-%s-%s", now.Format("20060102"), suffix), nil
}
