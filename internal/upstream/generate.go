// Package upstream implements a deterministic stand-in for the customer
// orders API. It generates free-text order records from a seed and serves
// them over HTTP in the same shape real upstreams expose.
package upstream

import (
	"fmt"
	"math/rand"
	"strings"
)

var firstNames = []string{
	"James", "Mary", "John", "Patricia", "Robert", "Jennifer", "Michael",
	"Linda", "David", "Elizabeth", "William", "Barbara", "Richard", "Susan",
	"Joseph", "Jessica", "Thomas", "Sarah", "Charles", "Karen", "Daniel",
	"Nancy", "Matthew", "Lisa", "Anthony", "Margaret", "Mark", "Betty",
	"Donald", "Sandra", "Steven", "Ashley", "Paul", "Dorothy", "Andrew",
	"Kimberly", "Joshua", "Emily", "Kenneth", "Donna",
}

var lastNames = []string{
	"Smith", "Johnson", "Williams", "Brown", "Jones", "Garcia", "Miller",
	"Davis", "Rodriguez", "Martinez", "Hernandez", "Lopez", "Gonzalez",
	"Wilson", "Anderson", "Thomas", "Taylor", "Moore", "Jackson", "Martin",
	"Lee", "Perez", "Thompson", "White", "Harris", "Sanchez", "Clark",
	"Ramirez", "Lewis", "Robinson", "Walker", "Young", "Allen", "King",
	"Wright", "Scott", "Torres", "Nguyen", "Hill", "Flores",
}

var cities = []string{
	"Columbus", "Austin", "Portland", "Denver", "Nashville", "Charlotte",
	"Raleigh", "Tampa", "Madison", "Boise", "Tucson", "Omaha", "Tulsa",
	"Richmond", "Spokane", "Fresno", "Albany", "Savannah", "Boulder",
	"Asheville", "Lexington", "Knoxville", "Dayton", "Peoria", "Eugene",
	"Scottsdale", "Chandler", "Plano", "Irving", "Norfolk",
}

var states = []string{
	"AL", "AK", "AZ", "AR", "CA", "CO", "CT", "DE", "FL", "GA", "HI", "ID",
	"IL", "IN", "IA", "KS", "KY", "LA", "ME", "MD", "MA", "MI", "MN", "MS",
	"MO", "MT", "NE", "NV", "NH", "NJ", "NM", "NY", "NC", "ND", "OH", "OK",
	"OR", "PA", "RI", "SC", "SD", "TN", "TX", "UT", "VT", "VA", "WA", "WV",
	"WI", "WY",
}

var productAdjectives = []string{
	"Sleek", "Rustic", "Ergonomic", "Incredible", "Practical", "Durable",
	"Refined", "Handcrafted", "Lightweight", "Intelligent", "Gorgeous",
	"Awesome", "Small", "Fantastic", "Enormous",
}

var productMaterials = []string{
	"Wooden", "Steel", "Cotton", "Granite", "Rubber", "Leather", "Silk",
	"Plastic", "Aluminum", "Bronze", "Concrete", "Marble", "Bamboo",
}

var productNames = []string{
	"Chair", "Lamp", "Keyboard", "Watch", "Backpack", "Table", "Shirt",
	"Shoes", "Wallet", "Bottle", "Gloves", "Headphones", "Speaker",
	"Notebook", "Mug", "Clock", "Blanket", "Knife", "Mouse", "Hat",
}

// StartID is the order ID assigned to the first generated order.
const StartID = 1001

// Generator produces reproducible free-text order records.
type Generator struct {
	rng *rand.Rand
}

// NewGenerator returns a generator seeded for reproducible output.
func NewGenerator(seed int64) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

// returnProbability maps average item rating to the chance an order was
// returned. Rating 1.0 yields 0.50, rating 5.0 yields 0.05, clamped to
// [0, 1].
func returnProbability(avgRating float64) float64 {
	p := 0.50 - (avgRating-1.0)*0.1125
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// Order generates a single free-text order record for the given ID.
func (g *Generator) Order(orderID int) string {
	buyer := g.pick(firstNames) + " " + g.pick(lastNames)
	city := g.pick(cities)
	state := g.pick(states)

	numItems := g.rng.Intn(4) + 1

	var total, ratingSum float64
	items := make([]string, 0, numItems)
	for i := 0; i < numItems; i++ {
		name := g.pick(productAdjectives) + " " + g.pick(productMaterials) + " " + g.pick(productNames)
		price := roundCents(9.99 + g.rng.Float64()*(999.99-9.99))
		total += price

		rating := roundTenth(1.0 + g.rng.Float64()*4.0)
		ratingSum += rating

		items = append(items, fmt.Sprintf("%s (%.1f*)", name, rating))
	}

	avgRating := ratingSum / float64(numItems)
	returned := "No"
	if g.rng.Float64() < returnProbability(avgRating) {
		returned = "Yes"
	}

	return fmt.Sprintf("Order %d: Buyer=%s, Location=%s, %s, Total=$%.2f, Items: %s, Returned=%s",
		orderID, buyer, city, state, total, strings.Join(items, ", "), returned)
}

// Orders generates count records with sequential IDs starting at StartID.
func (g *Generator) Orders(count int) []string {
	orders := make([]string, count)
	for i := range orders {
		orders[i] = g.Order(StartID + i)
	}
	return orders
}

func (g *Generator) pick(options []string) string {
	return options[g.rng.Intn(len(options))]
}

func roundCents(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}

func roundTenth(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}
