package enums

// OrderStatus tracks fulfillment of an order. Checkout only ever writes pending.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusRefunded   OrderStatus = "refunded"
)

var orderStatuses = newValueSet("order status",
	OrderStatusPending, OrderStatusProcessing, OrderStatusShipped,
	OrderStatusDelivered, OrderStatusCancelled, OrderStatusRefunded,
)

func (s OrderStatus) String() string { return string(s) }

func (s OrderStatus) IsValid() bool { return orderStatuses.has(s) }

func ParseOrderStatus(value string) (OrderStatus, error) { return orderStatuses.parse(value) }

// OrderStatuses lists every status in lifecycle order.
func OrderStatuses() []OrderStatus { return orderStatuses.all() }
