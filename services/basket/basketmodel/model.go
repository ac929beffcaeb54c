package basketmodel

import "sort"

// Item is a single basket line. Immutable except Count.
type Item struct {
	ProductID   string
	ProductName string
	Count       int
	Price       int // cents
}

func (i Item) Subtotal() int {
	return i.Price * i.Count
}

// Basket is materialized on read from the per-item store: it is never
// persisted as a single object.
type Basket struct {
	UserID           string
	Items            []Item
	TotalPrice       int // cents
	RemainingBalance int // cents
}

func TotalPrice(items []Item) int {
	var total int
	for _, item := range items {
		total += item.Subtotal()
	}
	return total
}

func Sort(items []Item) {
	sort.Slice(items, func(i, j int) bool {
		return items[i].ProductID < items[j].ProductID
	})
}
