package testkit

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"time"
)

// ShoppingColumns is the header written by the shopping generator
var ShoppingColumns = []string{
	"order_id", "customer_id", "country", "signup_channel", "order_date",
	"quantity", "unit_price", "discount_pct", "order_total", "returned",
}

// ShoppingGeneratorConfig configures the shopping data generator
type ShoppingGeneratorConfig struct {
	OrderCount    int       `json:"order_count"`
	CustomerCount int       `json:"customer_count"`
	MissingRate   float64   `json:"missing_rate"` // share of rows with one blank cell
	OutlierRate   float64   `json:"outlier_rate"` // share of rows with an extreme order_total
	StartDate     time.Time `json:"start_date"`
	EndDate       time.Time `json:"end_date"`
	Seed          int64     `json:"seed"`
}

// DefaultShoppingConfig returns sensible defaults for shopping data generation
func DefaultShoppingConfig() ShoppingGeneratorConfig {
	return ShoppingGeneratorConfig{
		OrderCount:    200,
		CustomerCount: 40,
		MissingRate:   0.05,
		OutlierRate:   0.01,
		StartDate:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:       time.Date(2024, 3, 31, 23, 59, 59, 0, time.UTC),
		Seed:          42,
	}
}

// ShoppingDataGenerator generates a realistic e-commerce order table
type ShoppingDataGenerator struct {
	config ShoppingGeneratorConfig
	rng    *rand.Rand
}

// NewShoppingDataGenerator creates a new shopping data generator
func NewShoppingDataGenerator(config ShoppingGeneratorConfig) *ShoppingDataGenerator {
	if config.CustomerCount < 1 {
		config.CustomerCount = 1
	}
	if !config.EndDate.After(config.StartDate) {
		config.EndDate = config.StartDate.AddDate(0, 1, 0)
	}
	return &ShoppingDataGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

// GenerateRecords returns the header followed by one record per order
func (g *ShoppingDataGenerator) GenerateRecords() [][]string {
	records := make([][]string, 0, g.config.OrderCount+1)
	records = append(records, append([]string(nil), ShoppingColumns...))

	for i := 0; i < g.config.OrderCount; i++ {
		records = append(records, g.generateOrder(i))
	}
	return records
}

// GenerateCSV renders the records as CSV bytes
func (g *ShoppingDataGenerator) GenerateCSV() ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(g.GenerateRecords()); err != nil {
		return nil, fmt.Errorf("failed to write shopping CSV: %w", err)
	}
	return buf.Bytes(), nil
}

func (g *ShoppingDataGenerator) generateOrder(i int) []string {
	customer := g.rng.Intn(g.config.CustomerCount) + 1
	quantity := 1 + int(math.Abs(g.rng.NormFloat64()*2))
	unitPrice := math.Round((5+g.rng.ExpFloat64()*25)*100) / 100
	discount := g.randomDiscount()
	total := float64(quantity) * unitPrice * (1 - discount/100)
	if g.rng.Float64() < g.config.OutlierRate {
		total *= 40
	}

	// Deeper discounts return more often.
	returned := g.rng.Float64() < 0.05+discount/200

	record := []string{
		fmt.Sprintf("order_%05d", i+1),
		fmt.Sprintf("customer_%04d", customer),
		g.randomCountry(),
		g.randomSignupChannel(),
		g.randomTimeInRange(g.config.StartDate, g.config.EndDate).Format("2006-01-02"),
		strconv.Itoa(quantity),
		strconv.FormatFloat(unitPrice, 'f', 2, 64),
		strconv.FormatFloat(discount, 'f', 0, 64),
		strconv.FormatFloat(math.Round(total*100)/100, 'f', 2, 64),
		strconv.FormatBool(returned),
	}

	if g.rng.Float64() < g.config.MissingRate {
		// never blank the id so rows stay distinguishable
		record[1+g.rng.Intn(len(record)-1)] = ""
	}
	return record
}

func (g *ShoppingDataGenerator) randomDiscount() float64 {
	switch r := g.rng.Float64(); {
	case r < 0.6:
		return 0
	case r < 0.85:
		return 10
	case r < 0.97:
		return 25
	default:
		return 50
	}
}

func (g *ShoppingDataGenerator) randomCountry() string {
	countries := []string{"US", "CA", "GB", "DE", "FR", "AU"}
	weights := []float64{0.45, 0.12, 0.15, 0.12, 0.1, 0.06}
	return weightedChoice(g.rng, countries, weights)
}

func (g *ShoppingDataGenerator) randomSignupChannel() string {
	channels := []string{"organic", "paid_search", "social", "referral", "email"}
	weights := []float64{0.35, 0.25, 0.2, 0.1, 0.1}
	return weightedChoice(g.rng, channels, weights)
}

func (g *ShoppingDataGenerator) randomTimeInRange(start, end time.Time) time.Time {
	span := end.Sub(start)
	return start.Add(time.Duration(g.rng.Int63n(int64(span))))
}

func weightedChoice(rng *rand.Rand, options []string, weights []float64) string {
	r := rng.Float64()
	cumulative := 0.0
	for i, w := range weights {
		cumulative += w
		if r < cumulative {
			return options[i]
		}
	}
	return options[len(options)-1]
}
