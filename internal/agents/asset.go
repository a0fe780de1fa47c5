package agents

// Asset is a named tradeable good. It is owned by exactly one agent and moves
// between agents whole, keeping its price and price history.
type Asset struct {
	Name         string    `json:"name"`
	Quantity     int       `json:"quantity"`
	Price        float64   `json:"price"`
	PriceHistory []float64 `json:"price_history"`
}

// NewAsset creates an asset with an empty price history.
func NewAsset(name string, quantity int, price float64) *Asset {
	return &Asset{Name: name, Quantity: quantity, Price: price}
}

// RecordPrice appends the current price to the history.
func (as *Asset) RecordPrice() {
	as.PriceHistory = append(as.PriceHistory, as.Price)
}

// Drift shifts the current price by delta. History is not touched.
func (as *Asset) Drift(delta float64) {
	as.Price += delta
}

// MeanPrice returns the arithmetic mean of the recorded history.
// ok is false when nothing has been recorded yet.
func (as *Asset) MeanPrice() (mean float64, ok bool) {
	if len(as.PriceHistory) == 0 {
		return 0, false
	}
	sum := 0.0
	for _, p := range as.PriceHistory {
		sum += p
	}
	return sum / float64(len(as.PriceHistory)), true
}

// Trend is the direction of the last recorded price move.
type Trend uint8

const (
	TrendStable Trend = iota
	TrendUp
	TrendDown
)

var trendNames = [...]string{"stable", "up", "down"}

func (t Trend) String() string {
	if int(t) < len(trendNames) {
		return trendNames[t]
	}
	return "unknown"
}

// Trend compares the two most recent history entries. Fewer than two
// entries is stable.
func (as *Asset) Trend() Trend {
	n := len(as.PriceHistory)
	if n < 2 {
		return TrendStable
	}
	last, prev := as.PriceHistory[n-1], as.PriceHistory[n-2]
	switch {
	case last > prev:
		return TrendUp
	case last < prev:
		return TrendDown
	default:
		return TrendStable
	}
}
