package cart

import (
	"context"
	"errors"

	"github.com/angelmondragon/storefront-backend/pkg/cartclient"
	"github.com/google/uuid"
)

// ServiceServerCart binds the cart service to one user so in-process callers
// can drive a cartclient.Syncer without going through HTTP.
type ServiceServerCart struct {
	svc    Service
	userID uuid.UUID
}

var _ cartclient.ServerCart = (*ServiceServerCart)(nil)

func NewServiceServerCart(svc Service, userID uuid.UUID) (*ServiceServerCart, error) {
	if svc == nil {
		return nil, errors.New("cart service required")
	}
	if userID == uuid.Nil {
		return nil, errors.New("user id required")
	}
	return &ServiceServerCart{svc: svc, userID: userID}, nil
}

func (c *ServiceServerCart) GetCart(ctx context.Context) ([]cartclient.RemoteLine, error) {
	dto, err := c.svc.GetCart(ctx, c.userID)
	if err != nil {
		return nil, err
	}
	lines := make([]cartclient.RemoteLine, 0, len(dto.Items))
	for _, item := range dto.Items {
		line := cartclient.RemoteLine{
			ProductID: item.ProductID,
			Name:      item.Name,
			Price:     item.Price,
			Quantity:  item.Quantity,
		}
		if item.ImageURL != nil {
			line.ImageURL = *item.ImageURL
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func (c *ServiceServerCart) AddItem(ctx context.Context, productID, quantity int) error {
	_, err := c.svc.AddItem(ctx, c.userID, productID, quantity)
	return err
}

func (c *ServiceServerCart) RemoveItem(ctx context.Context, productID int) error {
	_, err := c.svc.RemoveItem(ctx, c.userID, productID)
	return err
}

func (c *ServiceServerCart) UpdateItemQuantity(ctx context.Context, productID, quantity int) error {
	_, err := c.svc.UpdateQuantity(ctx, c.userID, productID, quantity)
	return err
}

func (c *ServiceServerCart) Clear(ctx context.Context) error {
	return c.svc.Clear(ctx, c.userID)
}

func (c *ServiceServerCart) ReplaceItems(ctx context.Context, lines []cartclient.RemoteLine) error {
	inputs := make([]LineInput, 0, len(lines))
	for _, l := range lines {
		inputs = append(inputs, LineInput{ProductID: l.ProductID, Quantity: l.Quantity})
	}
	_, err := c.svc.ReplaceItems(ctx, c.userID, inputs)
	return err
}
