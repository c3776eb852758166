package domain

import "errors"

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists indicates a unique key is already taken.
	ErrAlreadyExists = errors.New("already exists")
	// ErrBasketFrozen is returned when mutating a basket that is no longer open.
	ErrBasketFrozen = errors.New("basket is not open")
	// ErrAlreadyPlaced is returned when a basket already produced an order.
	ErrAlreadyPlaced = errors.New("order already placed for basket")
	// ErrEmptyBasket is returned when checking out a basket without lines.
	ErrEmptyBasket = errors.New("basket is empty")
	// ErrProductUnavailable is returned for products that cannot be bought.
	ErrProductUnavailable = errors.New("product unavailable")
)
