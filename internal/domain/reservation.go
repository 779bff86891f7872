package domain

// Reservation is a request to decrement a product's stock atomically.
type Reservation struct {
	ProductID string
	Quantity  int
}
