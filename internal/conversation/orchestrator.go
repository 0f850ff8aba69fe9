package conversation

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"messenger-commerce/internal/logging"
	"messenger-commerce/internal/models"
	"messenger-commerce/internal/recognition"
)

// Store is the storage contract the orchestrator drives.
type Store interface {
	LoadConversation(ctx context.Context, workspaceID uint, pageID, psid string) (*models.Conversation, error)
	SaveConversation(ctx context.Context, conv *models.Conversation, cctx *Context) error
	History(ctx context.Context, conversationID uint, limit int) ([]HistoryTurn, error)
	AppendMessage(ctx context.Context, conversationID uint, sender, content, msgType string) error
	InsertOrder(ctx context.Context, order *models.Order) error
	ProductByID(ctx context.Context, id, workspaceID uint) (*models.Product, error)
	SearchProducts(ctx context.Context, query string, workspaceID uint) ([]models.Product, error)
}

// Settings resolves per-tenant configuration.
type Settings interface {
	Resolve(ctx context.Context, workspaceID uint) (*ResolvedSettings, error)
}

// Recognizer is the product-matching pipeline.
type Recognizer interface {
	Match(ctx context.Context, imageURL string, workspaceID uint) (*recognition.Result, error)
}

// Directing is the AI fallback decision maker.
type Directing interface {
	Direct(ctx context.Context, in DirectorInput) *Decision
}

// Sender dispatches the outbound reply. A failed send never rolls back a
// committed state transition.
type Sender interface {
	SendText(ctx context.Context, pageID, psid, text string) error
}

// Publisher fans message events out to live dashboard clients. Optional.
type Publisher interface {
	PublishMessage(conversationID uint, sender, content string)
}

// InboundEvent is one webhook-delivered customer message, already past the
// idempotency check.
type InboundEvent struct {
	WorkspaceID uint
	PageID      string
	PSID        string
	MessageID   string
	Text        string
	ImageURL    string
	Timestamp   time.Time
}

// Orchestrator drives a single inbound message to completion:
// load -> decide -> execute -> persist -> reply. Events for the same
// conversation are serialized through a striped mutex; different
// conversations proceed fully in parallel.
type Orchestrator struct {
	store      Store
	settings   Settings
	recognizer Recognizer
	director   Directing
	sender     Sender
	publisher  Publisher
	locks      keyedMutex
	log        *zap.Logger
}

func NewOrchestrator(store Store, settings Settings, recognizer Recognizer, director Directing, sender Sender, publisher Publisher, log *zap.Logger) *Orchestrator {
	return &Orchestrator{
		store:      store,
		settings:   settings,
		recognizer: recognizer,
		director:   director,
		sender:     sender,
		publisher:  publisher,
		log:        log,
	}
}

// HandleEvent processes one inbound event end to end.
func (o *Orchestrator) HandleEvent(ctx context.Context, ev InboundEvent) error {
	key := ev.PageID + ":" + ev.PSID
	unlock := o.locks.lock(key)
	defer unlock()

	ctx = logging.WithFields(ctx, ev.WorkspaceID, key)
	log := o.log.With(logging.FieldsFromContext(ctx)...)

	conv, err := o.store.LoadConversation(ctx, ev.WorkspaceID, ev.PageID, ev.PSID)
	if err != nil {
		return fmt.Errorf("load conversation: %w", err)
	}

	settings, err := o.settings.Resolve(ctx, conv.WorkspaceID)
	if err != nil {
		return fmt.Errorf("resolve settings: %w", err)
	}

	cctx, err := ParseContext(conv.Context)
	if err != nil {
		log.Warn("context parse failed, starting fresh", zap.Error(err))
		cctx = NewContext()
	}
	cctx = MigrateLegacyContext(cctx)
	cctx.Metadata.MessageCount++

	inbound := ev.Text
	msgType := "text"
	if ev.ImageURL != "" {
		inbound = "[image] " + ev.ImageURL
		msgType = "image"
	}
	if err := o.store.AppendMessage(ctx, conv.ID, "customer", inbound, msgType); err != nil {
		log.Error("failed to store inbound message", zap.Error(err))
	}
	if o.publisher != nil {
		o.publisher.PublishMessage(conv.ID, "customer", inbound)
	}

	var decision *Decision
	var lastMatch string

	if ev.ImageURL != "" {
		// Images bypass the fast lane entirely.
		decision, lastMatch = o.decideFromImage(ctx, ev, cctx, settings, log)
	} else if strings.TrimSpace(ev.Text) != "" {
		if match := TryFastLane(ev.Text, cctx.State, cctx, settings); match.Matched {
			decision = mapFastMatch(match, cctx.State)
			fields := []zap.Field{
				zap.String("fast_action", string(match.Action)),
				zap.String("new_state", string(match.NewState)),
			}
			if match.Detail != "" {
				fields = append(fields, zap.String("detail", match.Detail))
			}
			log.Info("fast lane matched", fields...)
		}
	}

	if decision == nil {
		history, err := o.store.History(ctx, conv.ID, 10)
		if err != nil {
			log.Warn("history load failed", zap.Error(err))
		}
		decision = o.director.Direct(ctx, DirectorInput{
			Text:        ev.Text,
			Context:     cctx,
			Settings:    settings,
			History:     history,
			LastMatch:   lastMatch,
			WorkspaceID: conv.WorkspaceID,
		})
		log.Info("director decided",
			zap.String("action", string(decision.Action)),
			zap.Int("confidence", decision.Confidence))
	}

	reply := o.executeDecision(ctx, conv, cctx, decision, settings, log)

	// Persist before dispatch: a reply without a committed transition is
	// an accepted at-least-once risk, the reverse is not.
	cctx.SyncLegacyFields()
	if err := o.store.SaveConversation(ctx, conv, cctx); err != nil {
		return fmt.Errorf("persist conversation: %w", err)
	}

	if reply != "" {
		if err := o.sender.SendText(ctx, ev.PageID, ev.PSID, reply); err != nil {
			log.Error("reply send failed", zap.Error(err))
		} else {
			if err := o.store.AppendMessage(ctx, conv.ID, "bot", reply, "text"); err != nil {
				log.Error("failed to store bot message", zap.Error(err))
			}
			if o.publisher != nil {
				o.publisher.PublishMessage(conv.ID, "bot", reply)
			}
		}
	}

	return nil
}

// decideFromImage runs the recognition pipeline and translates the result
// straight into a decision.
func (o *Orchestrator) decideFromImage(ctx context.Context, ev InboundEvent, cctx *Context, settings *ResolvedSettings, log *zap.Logger) (*Decision, string) {
	result, err := o.recognizer.Match(ctx, ev.ImageURL, ev.WorkspaceID)
	if err != nil || result == nil || result.Product == nil {
		if err != nil {
			log.Warn("recognition failed", zap.Error(err))
		}
		return &Decision{
			Action:   ActionSendResponse,
			Response: settings.Template(TplProductNotFound, nil),
			NewState: cctx.State,
		}, "no product matched"
	}

	product := result.Product
	cctx.Metadata.LastImageURL = ev.ImageURL
	cctx.Metadata.LastImageHash = result.ImageHash

	patch := &ContextPatch{
		CartAdds: []CartItem{{
			ProductID:    product.ID,
			ProductName:  product.Name,
			ProductPrice: product.Price,
			Quantity:     1,
		}},
	}
	cctx.PushPendingImage(PendingImage{
		ProductID:    product.ID,
		ProductName:  product.Name,
		ProductPrice: product.Price,
		ImageURL:     ev.ImageURL,
		ReceivedAt:   ev.Timestamp,
	})

	lastMatch := fmt.Sprintf("matched %q (tier %d, confidence %.1f)", product.Name, result.Tier, result.Confidence)

	return &Decision{
		Action: ActionAddToCart,
		Response: settings.Template(TplProductConfirm, map[string]string{
			"product_name":  product.Name,
			"product_price": trimFloat(product.Price),
		}),
		NewState:   StateConfirmingProduct,
		Patch:      patch,
		ActionData: &ActionData{ProductID: product.ID, Quantity: 1},
		Confidence: int(result.Confidence),
	}, lastMatch
}

// mapFastMatch translates the fast lane vocabulary into the Decision
// vocabulary. One override: a CONFIRM that completes the flow while in
// CONFIRMING_ORDER becomes CREATE_ORDER.
func mapFastMatch(match Match, state State) *Decision {
	decision := &Decision{
		Response:   match.Response,
		NewState:   match.NewState,
		Patch:      match.Patch,
		Confidence: 100,
	}

	switch match.Action {
	case FastGreeting, FastAnswer, FastInvalid:
		decision.Action = ActionSendResponse
	case FastConfirm:
		if state == StateConfirmingOrder && match.NewState == StateIdle {
			decision.Action = ActionCreateOrder
		} else {
			decision.Action = ActionTransitionState
		}
	case FastDecline:
		decision.Action = ActionResetConversation
	case FastCollectName, FastCollectPhone, FastCollectAddress, FastCollectDetails, FastSelectItems, FastSetVariation:
		decision.Action = ActionUpdateCheckout
	case FastCreateOrder:
		decision.Action = ActionCreateOrder
	default:
		decision.Action = ActionSendResponse
	}
	return decision
}

// executeDecision mutates the context per the decision and returns the
// final reply text.
func (o *Orchestrator) executeDecision(ctx context.Context, conv *models.Conversation, cctx *Context, decision *Decision, settings *ResolvedSettings, log *zap.Logger) string {
	decision.Patch.Apply(cctx)
	reply := decision.Response

	switch decision.Action {
	case ActionAddToCart:
		// Fast-lane and image patches already carry the cart line; the
		// director may instead reference a product id to look up.
		if decision.ActionData != nil && decision.ActionData.ProductID != 0 && decision.Patch == nil {
			if product, err := o.store.ProductByID(ctx, decision.ActionData.ProductID, conv.WorkspaceID); err == nil {
				qty := decision.ActionData.Quantity
				if qty < 1 {
					qty = 1
				}
				cctx.AddToCart(CartItem{
					ProductID:    product.ID,
					ProductName:  product.Name,
					ProductPrice: product.Price,
					Quantity:     qty,
				})
			} else {
				log.Warn("add_to_cart product lookup failed", zap.Error(err))
			}
		}

	case ActionRemoveFromCart:
		if decision.ActionData != nil {
			cctx.RemoveFromCart(decision.ActionData.ProductID)
		}

	case ActionSearchProducts:
		if decision.ActionData != nil && decision.ActionData.Query != "" {
			products, err := o.store.SearchProducts(ctx, decision.ActionData.Query, conv.WorkspaceID)
			if err != nil {
				log.Warn("product search failed", zap.Error(err))
			} else if len(products) > 0 {
				var b strings.Builder
				b.WriteString(reply + "\n")
				for _, p := range products {
					fmt.Fprintf(&b, "- %s: %s Tk\n", p.Name, trimFloat(p.Price))
				}
				reply = strings.TrimRight(b.String(), "\n")
			}
		}

	case ActionResetConversation:
		cctx.ResetFlow()

	case ActionCreateOrder:
		orderNumber, err := o.createOrder(ctx, conv, cctx)
		if err != nil {
			log.Error("order creation failed", zap.Error(err))
			return settings.Template(TplApology, nil)
		}
		reply = strings.ReplaceAll(reply, "{{order_number}}", orderNumber)
		// Orders confirmed without the payment-digits step still need the
		// payment instructions appended when the tenant configured them.
		if cctx.Checkout.PaymentLastTwoDigits == "" && settings.PaymentNumber != "" {
			reply += "\n\n" + settings.Template(TplPaymentInstructions, map[string]string{
				"total_amount": trimFloat(cctx.Checkout.TotalAmount),
			})
		}
		cctx.ResetFlow()
	}

	if decision.NewState != "" && decision.Action != ActionCreateOrder && decision.Action != ActionResetConversation {
		cctx.State = decision.NewState
	}

	return reply
}

// createOrder inserts the order row exactly once per completed checkout.
// Once this begins it runs to completion; there is no abort path.
func (o *Orchestrator) createOrder(ctx context.Context, conv *models.Conversation, cctx *Context) (string, error) {
	orderNumber := "ORD-" + strings.ToUpper(uuid.NewString()[:8])

	order := &models.Order{
		OrderNumber:          orderNumber,
		WorkspaceID:          conv.WorkspaceID,
		ConversationID:       conv.ID,
		CustomerName:         cctx.Checkout.CustomerName,
		CustomerPhone:        cctx.Checkout.CustomerPhone,
		CustomerAddress:      cctx.Checkout.CustomerAddress,
		DeliveryCharge:       cctx.Checkout.DeliveryCharge,
		TotalAmount:          cctx.Checkout.TotalAmount,
		Status:               "pending",
		PaymentStatus:        "unpaid",
		PaymentMethod:        cctx.Checkout.PaymentMethod,
		PaymentLastTwoDigits: cctx.Checkout.PaymentLastTwoDigits,
	}
	for _, item := range cctx.Cart {
		order.Items = append(order.Items, models.OrderItem{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			UnitPrice:   item.ProductPrice,
			Quantity:    item.Quantity,
			Size:        item.Size,
			Color:       item.Color,
		})
	}

	if err := o.store.InsertOrder(ctx, order); err != nil {
		return "", err
	}

	o.log.Info("order created",
		zap.String("order_number", orderNumber),
		zap.Uint("conversation_id", conv.ID),
		zap.Float64("total", order.TotalAmount))

	return orderNumber, nil
}

// keyedMutex serializes work per conversation without a global lock.
type keyedMutex struct {
	shards [64]sync.Mutex
}

func (k *keyedMutex) lock(key string) func() {
	h := fnv.New32a()
	h.Write([]byte(key))
	shard := &k.shards[h.Sum32()%uint32(len(k.shards))]
	shard.Lock()
	return shard.Unlock
}
