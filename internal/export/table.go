package export

import (
	"strconv"
	"time"

	"github.com/kaitori-compare/backend/internal/domain"
)

// ShopInfo is static per-shop metadata shown in the comparison table
// header: whether the shop requires an ID document and whether it
// supports cash on delivery.
type ShopInfo struct {
	IDRequired     string
	CashOnDelivery string
}

// shopDirectory is the fixed lookup table of known buyback shops.
// Shops not listed here get blank metadata cells.
var shopDirectory = map[string]ShopInfo{
	"商店":       {IDRequired: "不要", CashOnDelivery: "○"},
	"海峡":       {IDRequired: "不要", CashOnDelivery: "○"},
	"海峡(モバイフ)": {IDRequired: "不要", CashOnDelivery: "○"},
	"ルデヤ":      {IDRequired: "不要", CashOnDelivery: "×"},
	"市場":       {IDRequired: "不要", CashOnDelivery: "×"},
	"wiki":     {IDRequired: "必要", CashOnDelivery: "○"},
	"森森":       {IDRequired: "必要", CashOnDelivery: "○"},
	"一丁目":      {IDRequired: "必要", CashOnDelivery: "○"},
	"けんさく":     {},
	"ホムヌ":      {},
	"アハウテック":   {},
}

// shopInfoFor looks up a shop's metadata, returning blanks for unknown shops
func shopInfoFor(name string) ShopInfo {
	return shopDirectory[name]
}

// shopColumns returns the union of shop names across all records in
// first-seen order, which fixes the comparison table's column layout.
func shopColumns(records []domain.ProductRecord) []string {
	seen := make(map[string]bool)
	var columns []string
	for _, record := range records {
		for _, shop := range record.Shops {
			if !seen[shop.Name] {
				seen[shop.Name] = true
				columns = append(columns, shop.Name)
			}
		}
	}
	return columns
}

// priceCell renders one offer cell: the buy price, or blank when the
// shop offered nothing or offered zero.
func priceCell(record domain.ProductRecord, shopName string) string {
	offer, ok := record.Offer(shopName)
	if !ok || offer.BuyPrice <= 0 {
		return ""
	}
	return strconv.Itoa(offer.BuyPrice)
}

// Filename returns the dated export file name with the given extension
func Filename(ext string) string {
	return "買取価格比較_" + time.Now().Format("2006-01-02") + "." + ext
}
