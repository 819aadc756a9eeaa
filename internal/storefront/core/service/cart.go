package service

import (
	"context"

	"github.com/jcmexdev/storefront/internal/storefront/core/apperr"
	"github.com/jcmexdev/storefront/internal/storefront/core/domain/entity"
	"github.com/jcmexdev/storefront/internal/storefront/core/ports"
)

// CartService owns the user's active cart. Every mutation returns the cart
// re-read after commit.
type CartService struct {
	store ports.Store
}

// NewCartService returns a CartService backed by store.
func NewCartService(store ports.Store) *CartService {
	return &CartService{store: store}
}

// GetCart returns nil without error when the user has no active cart.
func (s *CartService) GetCart(ctx context.Context, userID string) (*entity.CartView, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	return loadCart(ctx, s.store, userID)
}

func loadCart(ctx context.Context, q ports.Queries, userID string) (*entity.CartView, error) {
	cart, err := q.FindActiveCart(ctx, userID)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Wrap(err, "load cart")
	}
	lines, err := q.ListCartLines(ctx, cart.ID)
	if err != nil {
		return nil, apperr.Wrap(err, "load cart lines")
	}
	return entity.NewCartView(*cart, lines), nil
}

// AddItem adds quantity of a product, merging into an existing line. The
// stock check applies to the requested quantity and again to the merged total.
func (s *CartService) AddItem(ctx context.Context, userID, productID string, quantity int) (*entity.CartView, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if quantity < 1 {
		return nil, apperr.New(apperr.Validation, "Quantity must be at least 1")
	}

	err := s.store.WithinTx(ctx, func(q ports.Queries) error {
		product, err := q.GetProduct(ctx, productID)
		if isNotFound(err) {
			return apperr.New(apperr.NotFound, "Product not found")
		}
		if err != nil {
			return apperr.Wrap(err, "load product")
		}
		if !product.IsActive {
			return apperr.New(apperr.BadRequest, "Product is unavailable")
		}
		if product.Stock < quantity {
			return apperr.New(apperr.StockLimit, "Requested quantity exceeds available stock")
		}

		cart, err := q.EnsureActiveCart(ctx, userID)
		if err != nil {
			return apperr.Wrap(err, "ensure cart")
		}

		existing, err := q.FindCartItem(ctx, cart.ID, productID)
		switch {
		case err == nil:
			total := existing.Quantity + quantity
			if product.Stock < total {
				return apperr.New(apperr.StockLimit, "Requested quantity exceeds available stock")
			}
			if err := q.UpdateCartItemQuantity(ctx, existing.ID, total); err != nil {
				return apperr.Wrap(err, "update cart item")
			}
		case isNotFound(err):
			item := &entity.CartItem{CartID: cart.ID, ProductID: productID, Quantity: quantity}
			if err := q.InsertCartItem(ctx, item); err != nil {
				return apperr.Wrap(err, "insert cart item")
			}
		default:
			return apperr.Wrap(err, "find cart item")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.freshCart(ctx, userID)
}

// UpdateItem sets the quantity of one of the caller's cart lines.
func (s *CartService) UpdateItem(ctx context.Context, userID, itemID string, quantity int) (*entity.CartView, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if quantity < 1 {
		return nil, apperr.New(apperr.Validation, "Quantity must be at least 1")
	}

	err := s.store.WithinTx(ctx, func(q ports.Queries) error {
		detail, err := ownedItem(ctx, q, userID, itemID)
		if err != nil {
			return err
		}
		if quantity > detail.Product.Stock {
			return apperr.New(apperr.Conflict, "Insufficient stock. Only %d available.", detail.Product.Stock)
		}
		if err := q.UpdateCartItemQuantity(ctx, itemID, quantity); err != nil {
			return apperr.Wrap(err, "update cart item")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.freshCart(ctx, userID)
}

// RemoveItem deletes one of the caller's cart lines.
func (s *CartService) RemoveItem(ctx context.Context, userID, itemID string) (*entity.CartView, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}

	err := s.store.WithinTx(ctx, func(q ports.Queries) error {
		if _, err := ownedItem(ctx, q, userID, itemID); err != nil {
			return err
		}
		if err := q.DeleteCartItem(ctx, itemID); err != nil {
			return apperr.Wrap(err, "delete cart item")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.freshCart(ctx, userID)
}

// ownedItem loads an item of an active cart and checks the caller owns it.
func ownedItem(ctx context.Context, q ports.Queries, userID, itemID string) (*entity.CartItemDetail, error) {
	detail, err := q.GetCartItemDetail(ctx, itemID)
	if isNotFound(err) {
		return nil, apperr.New(apperr.NotFound, "Item not found")
	}
	if err != nil {
		return nil, apperr.Wrap(err, "load cart item")
	}
	if detail.Cart.UserID != userID {
		return nil, apperr.New(apperr.Forbidden, "You do not own this cart item")
	}
	// Lines of a checked-out cart are history, not editable items.
	if !detail.Cart.IsActive {
		return nil, apperr.New(apperr.NotFound, "Item not found")
	}
	return detail, nil
}

func (s *CartService) freshCart(ctx context.Context, userID string) (*entity.CartView, error) {
	view, err := loadCart(ctx, s.store, userID)
	if err != nil {
		return nil, err
	}
	if view == nil {
		return nil, apperr.Wrap(ports.ErrNotFound, "cart retrieval failed")
	}
	return view, nil
}
