package caption

import (
	"strings"

	"optwatch/internal/watch"

	"github.com/shopspring/decimal"
)

// Name 标识一个文案模板。
type Name string

const (
	SelectFirst  Name = "select_first"
	WaitAnnounce Name = "wait_announce"
	WaitFirst    Name = "wait_first"
	EnterFirst   Name = "enter_first"
	Update       Name = "update"
	ExitContract Name = "exit_contract"
)

// Names 是必须存在的模板集合。
var Names = []Name{SelectFirst, WaitAnnounce, WaitFirst, EnterFirst, Update, ExitContract}

const (
	typeCallAr = "🟢 كول 🟢"
	typePutAr  = "🔴 بوت 🔴"
)

// Fields 是模板占位符的取值。
type Fields struct {
	Symbol      string
	Strike      string
	Expiration  string
	TypeAr      string
	Price       string
	TargetPrice string
	EntryPrice  string
}

// FieldsFor 按监控命令与当前价格生成占位符，价格统一保留两位小数。
func FieldsFor(w watch.Watch, price decimal.Decimal) Fields {
	typeAr := typePutAr
	if w.Kind == watch.Call {
		typeAr = typeCallAr
	}
	return Fields{
		Symbol:      w.Symbol,
		Strike:      w.Strike.String(),
		Expiration:  w.Expiration,
		TypeAr:      typeAr,
		Price:       price.StringFixed(2),
		TargetPrice: nullFixed(w.TargetPrice),
		EntryPrice:  nullFixed(w.EntryPrice),
	}
}

func nullFixed(v decimal.NullDecimal) string {
	if !v.Valid {
		return decimal.Zero.StringFixed(2)
	}
	return v.Decimal.StringFixed(2)
}

func (f Fields) replacer() *strings.Replacer {
	return strings.NewReplacer(
		"{symbol}", f.Symbol,
		"{strike}", f.Strike,
		"{expiration}", f.Expiration,
		"{type_ar}", f.TypeAr,
		"{price}", f.Price,
		"{target_price}", f.TargetPrice,
		"{entry_price}", f.EntryPrice,
	)
}
