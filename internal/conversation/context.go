package conversation

import (
	"encoding/json"
	"time"
)

// State is the single active phase of a conversation.
type State string

const (
	StateIdle                     State = "IDLE"
	StateConfirmingProduct        State = "CONFIRMING_PRODUCT"
	StateSelectingCartItems       State = "SELECTING_CART_ITEMS"
	StateCollectingMultiVariation State = "COLLECTING_MULTI_VARIATIONS"
	StateCollectingName           State = "COLLECTING_NAME"
	StateCollectingPhone          State = "COLLECTING_PHONE"
	StateCollectingAddress        State = "COLLECTING_ADDRESS"
	StateCollectingPaymentDigits  State = "COLLECTING_PAYMENT_DIGITS"
	StateConfirmingOrder          State = "CONFIRMING_ORDER"
	StateAwaitingCustomerDetails  State = "AWAITING_CUSTOMER_DETAILS"
)

// maxPendingImages bounds the recognized-but-unconfirmed image queue.
const maxPendingImages = 5

// CartItem is one product line in the in-conversation cart.
type CartItem struct {
	ProductID    uint    `json:"product_id"`
	ProductName  string  `json:"product_name"`
	ProductPrice float64 `json:"product_price"`
	Quantity     int     `json:"quantity"`
	Size         string  `json:"size,omitempty"`
	Color        string  `json:"color,omitempty"`
}

// Checkout accumulates customer and order fields as collection steps
// complete. A field, once set, is only overwritten by a later successful
// collection of that same field.
type Checkout struct {
	CustomerName         string  `json:"customer_name,omitempty"`
	CustomerPhone        string  `json:"customer_phone,omitempty"`
	CustomerAddress      string  `json:"customer_address,omitempty"`
	DeliveryCharge       float64 `json:"delivery_charge,omitempty"`
	TotalAmount          float64 `json:"total_amount,omitempty"`
	PaymentMethod        string  `json:"payment_method,omitempty"`
	PaymentLastTwoDigits string  `json:"payment_last_two_digits,omitempty"`
}

// Metadata is advisory tracking state; nothing here is required for
// correctness.
type Metadata struct {
	LastImageHash     string `json:"last_image_hash,omitempty"`
	LastImageURL      string `json:"last_image_url,omitempty"`
	MessageCount      int    `json:"message_count,omitempty"`
	DetectedLanguage  string `json:"detected_language,omitempty"`
	ReturningCustomer bool   `json:"returning_customer,omitempty"`
}

// PendingImage is a recognized product awaiting customer confirmation,
// queued for multi-product batching.
type PendingImage struct {
	ProductID    uint      `json:"product_id"`
	ProductName  string    `json:"product_name"`
	ProductPrice float64   `json:"product_price"`
	ImageURL     string    `json:"image_url,omitempty"`
	ReceivedAt   time.Time `json:"received_at"`
}

// Context is the full per-conversation state bundle persisted as JSON
// alongside the conversation row. The legacy scalar fields mirror
// cart[0]/checkout for records written before the rich structure existed.
type Context struct {
	State         State          `json:"state"`
	Cart          []CartItem     `json:"cart,omitempty"`
	Checkout      Checkout       `json:"checkout"`
	Metadata      Metadata       `json:"metadata"`
	PendingImages []PendingImage `json:"pending_images,omitempty"`

	// Legacy mirror fields.
	ProductID       uint    `json:"product_id,omitempty"`
	ProductName     string  `json:"product_name,omitempty"`
	ProductPrice    float64 `json:"product_price,omitempty"`
	CustomerName    string  `json:"customer_name,omitempty"`
	CustomerPhone   string  `json:"customer_phone,omitempty"`
	CustomerAddress string  `json:"customer_address,omitempty"`
	DeliveryCharge  float64 `json:"delivery_charge,omitempty"`
	TotalAmount     float64 `json:"total_amount,omitempty"`
}

// NewContext returns a fresh idle context.
func NewContext() *Context {
	return &Context{State: StateIdle}
}

// ParseContext decodes a persisted context JSON blob. An empty blob yields a
// fresh idle context.
func ParseContext(raw string) (*Context, error) {
	if raw == "" || raw == "{}" {
		return NewContext(), nil
	}
	var ctx Context
	if err := json.Unmarshal([]byte(raw), &ctx); err != nil {
		return nil, err
	}
	if ctx.State == "" {
		ctx.State = StateIdle
	}
	return &ctx, nil
}

// Encode serializes the context for persistence.
func (c *Context) Encode() (string, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// AddToCart inserts an item or, if the product is already present,
// increments its quantity. Product ids stay unique within the cart.
func (c *Context) AddToCart(item CartItem) {
	if item.Quantity < 1 {
		item.Quantity = 1
	}
	for i := range c.Cart {
		if c.Cart[i].ProductID == item.ProductID {
			c.Cart[i].Quantity += item.Quantity
			return
		}
	}
	c.Cart = append(c.Cart, item)
}

// RemoveFromCart drops the line for productID if present.
func (c *Context) RemoveFromCart(productID uint) {
	for i := range c.Cart {
		if c.Cart[i].ProductID == productID {
			c.Cart = append(c.Cart[:i], c.Cart[i+1:]...)
			return
		}
	}
}

// CartSubtotal sums price*quantity over the cart.
func (c *Context) CartSubtotal() float64 {
	var total float64
	for _, item := range c.Cart {
		total += item.ProductPrice * float64(item.Quantity)
	}
	return total
}

// PushPendingImage queues a recognized product for later confirmation,
// deduplicated by product id and bounded to maxPendingImages (oldest
// dropped first).
func (c *Context) PushPendingImage(img PendingImage) {
	for _, existing := range c.PendingImages {
		if existing.ProductID == img.ProductID {
			return
		}
	}
	c.PendingImages = append(c.PendingImages, img)
	if len(c.PendingImages) > maxPendingImages {
		c.PendingImages = c.PendingImages[len(c.PendingImages)-maxPendingImages:]
	}
}

// ResetFlow clears cart, checkout and pending images and returns to IDLE.
// Metadata survives a reset.
func (c *Context) ResetFlow() {
	c.State = StateIdle
	c.Cart = nil
	c.PendingImages = nil
	c.Checkout = Checkout{}
	c.ProductID = 0
	c.ProductName = ""
	c.ProductPrice = 0
	c.CustomerName = ""
	c.CustomerPhone = ""
	c.CustomerAddress = ""
	c.DeliveryCharge = 0
	c.TotalAmount = 0
}

// MigrateLegacyContext populates the rich cart/checkout structure from the
// legacy scalar fields. It is lossless and idempotent: running it on an
// already-migrated context changes nothing.
func MigrateLegacyContext(c *Context) *Context {
	if c == nil {
		return NewContext()
	}
	if c.State == "" {
		c.State = StateIdle
	}

	if len(c.Cart) == 0 && c.ProductID != 0 {
		c.Cart = []CartItem{{
			ProductID:    c.ProductID,
			ProductName:  c.ProductName,
			ProductPrice: c.ProductPrice,
			Quantity:     1,
		}}
	}

	if c.Checkout.CustomerName == "" && c.CustomerName != "" {
		c.Checkout.CustomerName = c.CustomerName
	}
	if c.Checkout.CustomerPhone == "" && c.CustomerPhone != "" {
		c.Checkout.CustomerPhone = c.CustomerPhone
	}
	if c.Checkout.CustomerAddress == "" && c.CustomerAddress != "" {
		c.Checkout.CustomerAddress = c.CustomerAddress
	}
	if c.Checkout.DeliveryCharge == 0 && c.DeliveryCharge != 0 {
		c.Checkout.DeliveryCharge = c.DeliveryCharge
	}
	if c.Checkout.TotalAmount == 0 && c.TotalAmount != 0 {
		c.Checkout.TotalAmount = c.TotalAmount
	}

	return c
}

// SyncLegacyFields mirrors cart[0]/checkout back onto the legacy scalars so
// older readers keep working.
func (c *Context) SyncLegacyFields() {
	if len(c.Cart) > 0 {
		c.ProductID = c.Cart[0].ProductID
		c.ProductName = c.Cart[0].ProductName
		c.ProductPrice = c.Cart[0].ProductPrice
	}
	c.CustomerName = c.Checkout.CustomerName
	c.CustomerPhone = c.Checkout.CustomerPhone
	c.CustomerAddress = c.Checkout.CustomerAddress
	c.DeliveryCharge = c.Checkout.DeliveryCharge
	c.TotalAmount = c.Checkout.TotalAmount
}
