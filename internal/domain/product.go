package domain

// ProductRecord represents the pricing data extracted from one screenshot
type ProductRecord struct {
	ProductName   string      `json:"productName"`
	ProductCode   string      `json:"productCode,omitempty"`
	Quantity      string      `json:"quantity,omitempty"`
	PurchasePrice string      `json:"purchasePrice,omitempty"`
	Shops         []ShopOffer `json:"shops"`
}

// ShopOffer is one vendor's buyback quote within a ProductRecord.
// BuyPrice and Profit are integers at rest; the model reply may render
// them as comma-formatted strings, which the extraction pipeline
// normalizes before a record leaves the pipeline.
type ShopOffer struct {
	Name     string `json:"name"`
	BuyPrice int    `json:"buyPrice"`
	Profit   int    `json:"profit"`
	TimeAgo  string `json:"timeAgo,omitempty"`
}

// BestPrice returns the highest buy price among the record's offers,
// or 0 if the record has no offers.
func (r *ProductRecord) BestPrice() int {
	best := 0
	for _, s := range r.Shops {
		if s.BuyPrice > best {
			best = s.BuyPrice
		}
	}
	return best
}

// Offer returns the record's offer from the named shop, if any.
func (r *ProductRecord) Offer(shopName string) (ShopOffer, bool) {
	for _, s := range r.Shops {
		if s.Name == shopName {
			return s, true
		}
	}
	return ShopOffer{}, false
}
