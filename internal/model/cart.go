package model

// CartLine is one product+quantity entry in a cart. Quantity is always >= 1;
// a cart holds at most one line per product id.
type CartLine struct {
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
}

// LineTotal returns the post-discount total for this line.
func (l CartLine) LineTotal() float64 {
	return l.Product.EffectiveUnitPrice() * float64(l.Quantity)
}

// AddCartItemRequest is the request to add a product to the cart.
type AddCartItemRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// UpdateCartItemRequest is the request to overwrite a line's quantity.
type UpdateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

// CartResponse is the cart view returned to clients.
type CartResponse struct {
	Lines     []CartLine `json:"lines"`
	ItemCount int        `json:"item_count"`
	Subtotal  float64    `json:"subtotal"`
}
