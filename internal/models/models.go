package models

import (
	"time"
)

// Conversation is the persisted state of one customer thread, keyed by
// (page_id, psid). CurrentState always mirrors the state inside the Context
// JSON; the orchestrator writes both in one update.
type Conversation struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	WorkspaceID  uint      `gorm:"index;not null" json:"workspace_id"`
	PageID       string    `gorm:"type:varchar(50);not null;uniqueIndex:ux_page_psid,priority:1" json:"page_id"`
	PSID         string    `gorm:"type:varchar(50);not null;uniqueIndex:ux_page_psid,priority:2" json:"psid"`
	CustomerName string    `gorm:"type:varchar(255)" json:"customer_name"`
	CurrentState string    `gorm:"type:varchar(50);default:'IDLE'" json:"current_state"`
	Context      string    `gorm:"type:text" json:"context"` // JSON conversation context
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Conversation) TableName() string {
	return "conversations"
}

// Message is one turn of a conversation, customer or bot.
type Message struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ConversationID uint      `gorm:"index;not null" json:"conversation_id"`
	Sender         string    `gorm:"type:varchar(20);not null" json:"sender"` // customer | bot
	Content        string    `gorm:"type:text" json:"content"`
	Type           string    `gorm:"type:varchar(20)" json:"type"` // text | image
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Message) TableName() string {
	return "messages"
}

// Product is a catalog entry. Colors and Keywords are JSON arrays kept as
// text so recognition can score against them without extra joins.
type Product struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	WorkspaceID uint      `gorm:"index;not null" json:"workspace_id"`
	Name        string    `gorm:"type:varchar(255);not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	Price       float64   `gorm:"not null" json:"price"`
	Category    string    `gorm:"type:varchar(100)" json:"category"`
	Brand       string    `gorm:"type:varchar(100)" json:"brand"`
	Colors      string    `gorm:"type:text" json:"colors"`   // JSON [[r,g,b],...], dominant first
	Keywords    string    `gorm:"type:text" json:"keywords"` // JSON ["keyword",...]
	AspectRatio float64   `json:"aspect_ratio"`
	ImageURL    string    `gorm:"type:text" json:"image_url"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Product) TableName() string {
	return "products"
}

// ProductImageHash backs the tier-1 exact lookup: hash of the raw image
// bytes to a known product.
type ProductImageHash struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Hash      string    `gorm:"type:varchar(64);not null;uniqueIndex" json:"hash"`
	ProductID uint      `gorm:"index;not null" json:"product_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (ProductImageHash) TableName() string {
	return "product_image_hashes"
}

// Order is created exactly once per completed checkout and never mutated by
// the conversation engine afterward.
type Order struct {
	ID                   uint        `gorm:"primaryKey" json:"id"`
	OrderNumber          string      `gorm:"type:varchar(50);not null;uniqueIndex" json:"order_number"`
	WorkspaceID          uint        `gorm:"index;not null" json:"workspace_id"`
	ConversationID       uint        `gorm:"index" json:"conversation_id"`
	CustomerName         string      `gorm:"type:varchar(255)" json:"customer_name"`
	CustomerPhone        string      `gorm:"type:varchar(20)" json:"customer_phone"`
	CustomerAddress      string      `gorm:"type:text" json:"customer_address"`
	DeliveryCharge       float64     `json:"delivery_charge"`
	TotalAmount          float64     `json:"total_amount"`
	Status               string      `gorm:"type:varchar(20);default:'pending'" json:"status"`
	PaymentStatus        string      `gorm:"type:varchar(20);default:'unpaid'" json:"payment_status"`
	PaymentMethod        string      `gorm:"type:varchar(50)" json:"payment_method"`
	PaymentLastTwoDigits string      `gorm:"type:varchar(2)" json:"payment_last_two_digits"`
	Items                []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE;" json:"items"`
	CreatedAt            time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Order) TableName() string {
	return "orders"
}

// OrderItem is a product-level snapshot at order time.
type OrderItem struct {
	ID          uint    `gorm:"primaryKey" json:"id"`
	OrderID     uint    `gorm:"index;not null" json:"order_id"`
	ProductID   uint    `gorm:"not null" json:"product_id"`
	ProductName string  `gorm:"type:varchar(255)" json:"product_name"`
	UnitPrice   float64 `json:"unit_price"`
	Quantity    int     `gorm:"not null;default:1" json:"quantity"`
	Size        string  `gorm:"type:varchar(20)" json:"size"`
	Color       string  `gorm:"type:varchar(50)" json:"color"`
}

func (OrderItem) TableName() string {
	return "order_items"
}

// WebhookEvent is the idempotency record: one row per processed inbound
// event. The unique index on EventID makes duplicate deliveries no-ops.
type WebhookEvent struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	EventID   string    `gorm:"type:varchar(64);not null;uniqueIndex" json:"event_id"`
	PageID    string    `gorm:"type:varchar(50)" json:"page_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (WebhookEvent) TableName() string {
	return "webhook_events"
}

// WorkspaceSettings is the per-tenant configuration row. Templates holds a
// JSON object of canned-message overrides keyed by template name.
type WorkspaceSettings struct {
	ID                    uint      `gorm:"primaryKey" json:"id"`
	WorkspaceID           uint      `gorm:"not null;uniqueIndex" json:"workspace_id"`
	BusinessName          string    `gorm:"type:varchar(255)" json:"business_name"`
	Tone                  string    `gorm:"type:varchar(50)" json:"tone"`
	LanguageMix           int       `gorm:"default:50" json:"language_mix"` // % Bengali in replies
	UseEmoji              bool      `gorm:"default:true" json:"use_emoji"`
	DeliveryChargeInside  float64   `gorm:"default:60" json:"delivery_charge_inside"`
	DeliveryChargeOutside float64   `gorm:"default:120" json:"delivery_charge_outside"`
	PaymentMethods        string    `gorm:"type:text" json:"payment_methods"` // JSON ["bkash","nagad",...]
	PaymentNumber         string    `gorm:"type:varchar(20)" json:"payment_number"`
	ConfidenceThreshold   int       `gorm:"default:70" json:"confidence_threshold"`
	QuickForm             bool      `gorm:"default:false" json:"quick_form"`
	Templates             string    `gorm:"type:text" json:"templates"` // JSON {key: override}
	CreatedAt             time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (WorkspaceSettings) TableName() string {
	return "workspace_settings"
}

// AIUsageLog records token usage and computed USD cost for every LLM call,
// success or not.
type AIUsageLog struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	WorkspaceID  uint      `gorm:"index" json:"workspace_id"`
	Kind         string    `gorm:"type:varchar(20)" json:"kind"` // director | vision
	Model        string    `gorm:"type:varchar(100)" json:"model"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	CostUSD      float64   `json:"cost_usd"`
	Success      bool      `json:"success"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (AIUsageLog) TableName() string {
	return "ai_usage_logs"
}
