package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Cart is a user's shopping cart. At most one cart per user is active.
type Cart struct {
	ID        string
	UserID    string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CartItem is one product line of a cart. No price is stored here; the unit
// price is always read live from the product.
type CartItem struct {
	ID        string
	CartID    string
	ProductID string
	Quantity  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CartLine joins a cart item with the product it references.
type CartLine struct {
	Item     CartItem
	Product  Product
	Subtotal decimal.Decimal
}

// CartItemDetail is a cart item together with its owning cart and product,
// used for ownership and stock checks on item mutations.
type CartItemDetail struct {
	Item    CartItem
	Cart    Cart
	Product Product
}

// CartView is the fully rendered cart returned after every read or mutation.
type CartView struct {
	ID     string
	UserID string
	Lines  []CartLine
	Total  decimal.Decimal
}

// NewCartView prices every line at the live product price and sums the total.
func NewCartView(cart Cart, lines []CartLine) *CartView {
	view := &CartView{
		ID:     cart.ID,
		UserID: cart.UserID,
		Lines:  make([]CartLine, len(lines)),
		Total:  decimal.Zero,
	}
	for i, line := range lines {
		line.Subtotal = LineTotal(line.Product.Price, line.Item.Quantity)
		view.Total = view.Total.Add(line.Subtotal)
		view.Lines[i] = line
	}
	return view
}
