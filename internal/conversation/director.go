package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"messenger-commerce/internal/llm"
)

// DecisionAction is the closed action set the engine can execute.
type DecisionAction string

const (
	ActionSendResponse      DecisionAction = "SEND_RESPONSE"
	ActionTransitionState   DecisionAction = "TRANSITION_STATE"
	ActionAddToCart         DecisionAction = "ADD_TO_CART"
	ActionRemoveFromCart    DecisionAction = "REMOVE_FROM_CART"
	ActionUpdateCheckout    DecisionAction = "UPDATE_CHECKOUT"
	ActionCreateOrder       DecisionAction = "CREATE_ORDER"
	ActionSearchProducts    DecisionAction = "SEARCH_PRODUCTS"
	ActionShowHelp          DecisionAction = "SHOW_HELP"
	ActionResetConversation DecisionAction = "RESET_CONVERSATION"
)

var validActions = map[DecisionAction]bool{
	ActionSendResponse:      true,
	ActionTransitionState:   true,
	ActionAddToCart:         true,
	ActionRemoveFromCart:    true,
	ActionUpdateCheckout:    true,
	ActionCreateOrder:       true,
	ActionSearchProducts:    true,
	ActionShowHelp:          true,
	ActionResetConversation: true,
}

var validStates = map[State]bool{
	StateIdle: true, StateConfirmingProduct: true, StateSelectingCartItems: true,
	StateCollectingMultiVariation: true, StateCollectingName: true,
	StateCollectingPhone: true, StateCollectingAddress: true,
	StateCollectingPaymentDigits: true, StateConfirmingOrder: true,
	StateAwaitingCustomerDetails: true,
}

// ActionData is the typed payload bag for actions that need one.
type ActionData struct {
	ProductID uint   `json:"product_id,omitempty"`
	Quantity  int    `json:"quantity,omitempty"`
	Query     string `json:"query,omitempty"`
}

// Decision is the one shape every layer's output is normalized into before
// the orchestrator executes it.
type Decision struct {
	Action     DecisionAction
	Response   string
	NewState   State
	Patch      *ContextPatch
	ActionData *ActionData
	Confidence int
	Reasoning  string
}

// decisionWire is the JSON contract the LLM must return. Anything not
// matching it is a parse failure, never a crash.
type decisionWire struct {
	Action         string          `json:"action"`
	Response       string          `json:"response"`
	NewState       string          `json:"newState,omitempty"`
	UpdatedContext *contextPatchWire `json:"updatedContext,omitempty"`
	ActionData     *ActionData     `json:"actionData,omitempty"`
	Confidence     int             `json:"confidence"`
	Reasoning      string          `json:"reasoning,omitempty"`
}

type contextPatchWire struct {
	CustomerName         string `json:"customerName,omitempty"`
	CustomerPhone        string `json:"customerPhone,omitempty"`
	CustomerAddress      string `json:"customerAddress,omitempty"`
	PaymentMethod        string `json:"paymentMethod,omitempty"`
	PaymentLastTwoDigits string `json:"paymentLastTwoDigits,omitempty"`
}

// Completer is the slice of the LLM client the director needs.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (*llm.Result, error)
}

// UsageRecorder persists token usage for billing. Called on every attempt,
// successful or not.
type UsageRecorder interface {
	RecordUsage(ctx context.Context, workspaceID uint, kind string, usage llm.Usage, success bool)
}

// DirectorInput is the live snapshot the prompt is built from.
type DirectorInput struct {
	Text        string
	Context     *Context
	Settings    *ResolvedSettings
	History     []HistoryTurn
	LastMatch   string // last image-recognition result, human readable
	WorkspaceID uint
}

// HistoryTurn is one prior message in the conversation.
type HistoryTurn struct {
	Sender  string // customer | bot
	Content string
}

// Director is the LLM-backed fallback decision maker.
type Director struct {
	completer Completer
	usage     UsageRecorder
	log       *zap.Logger
}

func NewDirector(completer Completer, usage UsageRecorder, log *zap.Logger) *Director {
	return &Director{completer: completer, usage: usage, log: log}
}

// Direct asks the model for a decision. On any failure (call error,
// malformed JSON, unknown action) it returns the deterministic per-state
// fallback: the customer always gets a reply.
func (d *Director) Direct(ctx context.Context, in DirectorInput) *Decision {
	systemPrompt := buildSystemPrompt(in.Settings)
	userPrompt := buildUserPrompt(in)

	result, err := d.completer.Complete(ctx, systemPrompt, userPrompt)
	if err != nil {
		d.usage.RecordUsage(ctx, in.WorkspaceID, "director", llm.Usage{}, false)
		d.log.Warn("director call failed", zap.Error(err))
		return fallbackDecision(in.Context.State, in.Settings)
	}

	d.usage.RecordUsage(ctx, in.WorkspaceID, "director", result.Usage, true)

	decision, err := ParseDecision(result.Text)
	if err != nil {
		d.log.Warn("director returned unparseable decision", zap.Error(err),
			zap.String("raw", truncate(result.Text, 300)))
		return fallbackDecision(in.Context.State, in.Settings)
	}
	return decision
}

// ParseDecision validates the model output against the Decision contract.
func ParseDecision(raw string) (*Decision, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var wire decisionWire
	if err := json.Unmarshal([]byte(cleaned), &wire); err != nil {
		return nil, fmt.Errorf("decision is not valid JSON: %w", err)
	}

	action := DecisionAction(wire.Action)
	if !validActions[action] {
		return nil, fmt.Errorf("unknown action %q", wire.Action)
	}
	if wire.Response == "" {
		return nil, fmt.Errorf("decision has no response text")
	}

	decision := &Decision{
		Action:     action,
		Response:   wire.Response,
		ActionData: wire.ActionData,
		Confidence: clamp(wire.Confidence, 0, 100),
		Reasoning:  wire.Reasoning,
	}

	if wire.NewState != "" {
		state := State(wire.NewState)
		if !validStates[state] {
			return nil, fmt.Errorf("unknown state %q", wire.NewState)
		}
		decision.NewState = state
	}

	if wire.UpdatedContext != nil {
		patch := &ContextPatch{}
		if v := wire.UpdatedContext.CustomerName; v != "" {
			patch.CustomerName = &v
		}
		if v := wire.UpdatedContext.CustomerPhone; v != "" {
			if normalized := normalizeLoosePhone(v); normalized != "" {
				patch.CustomerPhone = &normalized
			}
		}
		if v := wire.UpdatedContext.CustomerAddress; v != "" {
			patch.CustomerAddress = &v
		}
		if v := wire.UpdatedContext.PaymentLastTwoDigits; v != "" {
			patch.PaymentLastTwoDigits = &v
		}
		decision.Patch = patch
	}

	return decision, nil
}

// fallbackDecision is the deterministic safe reply per state when the model
// fails. State is preserved unchanged.
func fallbackDecision(state State, settings *ResolvedSettings) *Decision {
	var response string
	switch state {
	case StateCollectingName:
		response = settings.Template(TplAskName, nil)
	case StateCollectingPhone:
		response = settings.Template(TplAskPhone, nil)
	case StateCollectingAddress:
		response = settings.Template(TplAskAddress, nil)
	case StateCollectingPaymentDigits:
		response = settings.Template(TplInvalidPayment, nil)
	case StateAwaitingCustomerDetails:
		response = settings.Template(TplQuickForm, nil)
	case StateConfirmingProduct, StateConfirmingOrder:
		response = "Please reply yes to continue or no to cancel."
	default:
		response = settings.Template(TplApology, nil)
	}
	return &Decision{
		Action:     ActionSendResponse,
		Response:   response,
		NewState:   state,
		Confidence: 0,
		Reasoning:  "fallback",
	}
}

func buildSystemPrompt(settings *ResolvedSettings) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are the sales assistant for %q, a Facebook page shop in Bangladesh.\n", settings.BusinessName)
	fmt.Fprintf(&b, "Tone: %s. Write replies mixing roughly %d%% Bengali and %d%% English.",
		settings.Tone, settings.LanguageMix, 100-settings.LanguageMix)
	if settings.UseEmoji {
		b.WriteString(" Use at most one emoji per reply.")
	} else {
		b.WriteString(" Do not use emoji.")
	}
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "Delivery charge: %s Tk inside Dhaka, %s Tk outside.\n",
		trimFloat(settings.DeliveryChargeInside), trimFloat(settings.DeliveryChargeOutside))
	if len(settings.PaymentMethods) > 0 {
		fmt.Fprintf(&b, "Payment methods: %s", strings.Join(settings.PaymentMethods, ", "))
		if settings.PaymentNumber != "" {
			fmt.Fprintf(&b, " (number %s)", settings.PaymentNumber)
		}
		b.WriteString(".\n")
	}

	b.WriteString(`
You must respond with ONLY a JSON object in exactly this shape:
{"action": "...", "response": "...", "newState": "...", "updatedContext": {...}, "actionData": {...}, "confidence": 0-100, "reasoning": "..."}

Valid actions: SEND_RESPONSE, TRANSITION_STATE, ADD_TO_CART, REMOVE_FROM_CART, UPDATE_CHECKOUT, CREATE_ORDER, SEARCH_PRODUCTS, SHOW_HELP, RESET_CONVERSATION.
Valid states: IDLE, CONFIRMING_PRODUCT, SELECTING_CART_ITEMS, COLLECTING_MULTI_VARIATIONS, COLLECTING_NAME, COLLECTING_PHONE, COLLECTING_ADDRESS, COLLECTING_PAYMENT_DIGITS, CONFIRMING_ORDER, AWAITING_CUSTOMER_DETAILS.
"newState", "updatedContext", "actionData" and "reasoning" are optional. "action" and "response" are required.

Examples:
Customer asks what you sell:
{"action": "SEND_RESPONSE", "response": "We sell premium punjabi and shirts! Send a photo or ask about any product.", "confidence": 90}
Customer wants to search for a product by name:
{"action": "SEARCH_PRODUCTS", "response": "Let me check our black punjabi collection for you...", "actionData": {"query": "black punjabi"}, "confidence": 85}
Customer clearly abandons mid-checkout:
{"action": "RESET_CONVERSATION", "response": "No problem! Message us anytime.", "newState": "IDLE", "confidence": 80}

Never invent prices or stock. Stay within the order flow; do not skip collection steps.`)

	return b.String()
}

func buildUserPrompt(in DirectorInput) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Conversation state: %s\n", in.Context.State)

	if len(in.Context.Cart) > 0 {
		b.WriteString("Cart:\n")
		for _, item := range in.Context.Cart {
			fmt.Fprintf(&b, "- %s x%d @ %s Tk\n", item.ProductName, item.Quantity, trimFloat(item.ProductPrice))
		}
	} else {
		b.WriteString("Cart: empty\n")
	}

	co := in.Context.Checkout
	fmt.Fprintf(&b, "Checkout so far: name=%q phone=%q address=%q total=%s\n",
		co.CustomerName, co.CustomerPhone, co.CustomerAddress, trimFloat(co.TotalAmount))

	if in.LastMatch != "" {
		fmt.Fprintf(&b, "Last image recognition: %s\n", in.LastMatch)
	}

	if len(in.History) > 0 {
		b.WriteString("\nRecent messages:\n")
		history := in.History
		if len(history) > 5 {
			history = history[len(history)-5:]
		}
		for _, turn := range history {
			fmt.Fprintf(&b, "%s: %s\n", turn.Sender, truncate(turn.Content, 200))
		}
	}

	fmt.Fprintf(&b, "\nCustomer says: %s\n", in.Text)
	b.WriteString("Decide the next action as JSON.")

	return b.String()
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
