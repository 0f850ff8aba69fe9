package conversation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// FastAction is the fast lane's result vocabulary. The orchestrator maps it
// onto the Decision action set.
type FastAction string

const (
	FastGreeting       FastAction = "GREETING"
	FastConfirm        FastAction = "CONFIRM"
	FastDecline        FastAction = "DECLINE"
	FastCollectName    FastAction = "COLLECT_NAME"
	FastCollectPhone   FastAction = "COLLECT_PHONE"
	FastCollectAddress FastAction = "COLLECT_ADDRESS"
	FastCollectDetails FastAction = "COLLECT_DETAILS"
	FastSelectItems    FastAction = "SELECT_ITEMS"
	FastSetVariation   FastAction = "SET_VARIATION"
	FastCreateOrder    FastAction = "CREATE_ORDER"
	FastAnswer         FastAction = "ANSWER"  // interruption answered, state unchanged
	FastInvalid        FastAction = "INVALID" // validation error, state unchanged
)

// ContextPatch is the typed set of context changes a match wants applied.
// The fast lane itself never mutates anything.
type ContextPatch struct {
	CustomerName         *string
	CustomerPhone        *string
	CustomerAddress      *string
	DeliveryCharge       *float64
	TotalAmount          *float64
	PaymentLastTwoDigits *string
	CartAdds             []CartItem
	ReplaceCart          bool // drop the existing cart before applying CartAdds
	ClearPending         bool
	SetVariation         *VariationPatch
}

// VariationPatch assigns a size/color selection to one cart line.
type VariationPatch struct {
	ProductID uint
	Size      string
	Color     string
}

// Apply writes the patch onto a context. Checkout fields are plain
// overwrites: a patch field is only ever set by a successful collection
// step for that field.
func (p *ContextPatch) Apply(c *Context) {
	if p == nil {
		return
	}
	if p.CustomerName != nil {
		c.Checkout.CustomerName = *p.CustomerName
	}
	if p.CustomerPhone != nil {
		c.Checkout.CustomerPhone = *p.CustomerPhone
	}
	if p.CustomerAddress != nil {
		c.Checkout.CustomerAddress = *p.CustomerAddress
	}
	if p.DeliveryCharge != nil {
		c.Checkout.DeliveryCharge = *p.DeliveryCharge
	}
	if p.TotalAmount != nil {
		c.Checkout.TotalAmount = *p.TotalAmount
	}
	if p.PaymentLastTwoDigits != nil {
		c.Checkout.PaymentLastTwoDigits = *p.PaymentLastTwoDigits
	}
	if p.ReplaceCart {
		c.Cart = nil
	}
	for _, item := range p.CartAdds {
		c.AddToCart(item)
	}
	if p.ClearPending {
		c.PendingImages = nil
	}
	if p.SetVariation != nil {
		for i := range c.Cart {
			if c.Cart[i].ProductID == p.SetVariation.ProductID {
				c.Cart[i].Size = p.SetVariation.Size
				c.Cart[i].Color = p.SetVariation.Color
			}
		}
	}
}

// Match is the fast lane result: either no match (defer to the AI
// director) or a fully-formed transition.
type Match struct {
	Matched  bool
	Action   FastAction
	Response string
	NewState State
	Patch    *ContextPatch
	Detail   string // diagnostic note for the orchestrator's log line
}

var noMatch = Match{}

// Phone patterns cover the four accepted national formats: bare, with
// country code, and both with separators.
var phonePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^01[3-9]\d{8}$`),
	regexp.MustCompile(`^(?:\+88|88)01[3-9]\d{8}$`),
	regexp.MustCompile(`^01[3-9][ -]?\d{4}[ -]?\d{4}$`),
	regexp.MustCompile(`^(?:\+88|88)[ -]?01[3-9][ -]?\d{4}[ -]?\d{4}$`),
}

var nameShape = regexp.MustCompile(`^[A-Za-z\x{0980}-\x{09FF}][A-Za-z\x{0980}-\x{09FF} .\-]{1,49}$`)

var paymentDigits = regexp.MustCompile(`^\d{2}$`)

var nonDigits = regexp.MustCompile(`\D`)

var titleCaser = cases.Title(language.English)

// NormalizePhone strips separators and the country code and returns the
// 11-digit canonical form, or "" if the input is not a valid number.
func NormalizePhone(input string) string {
	input = strings.TrimSpace(input)
	matched := false
	for _, p := range phonePatterns {
		if p.MatchString(input) {
			matched = true
			break
		}
	}
	if !matched {
		return ""
	}
	digits := nonDigits.ReplaceAllString(input, "")
	if strings.HasPrefix(digits, "88") && len(digits) == 13 {
		digits = digits[2:]
	}
	if len(digits) != 11 || !strings.HasPrefix(digits, "01") {
		return ""
	}
	return digits
}

// TryFastLane runs the deterministic pattern matcher. Pure and synchronous:
// no storage, no network. A no-match result is the escalation signal for
// the AI director, never an error.
func TryFastLane(input string, state State, cctx *Context, settings *ResolvedSettings) Match {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return noMatch
	}
	normalized := strings.ToLower(trimmed)

	// Greetings are a global interrupt: reset to IDLE from any state.
	if isGreeting(normalized) {
		return Match{
			Matched:  true,
			Action:   FastGreeting,
			Response: settings.Template(TplGreeting, nil),
			NewState: StateIdle,
		}
	}

	switch state {
	case StateConfirmingProduct:
		return handleConfirmingProduct(trimmed, normalized, cctx, settings)
	case StateSelectingCartItems:
		return handleSelectingCartItems(trimmed, normalized, cctx, settings)
	case StateCollectingMultiVariation:
		return handleCollectingVariations(trimmed, normalized, cctx, settings)
	case StateCollectingName:
		return handleCollectingName(trimmed, normalized, cctx, settings)
	case StateCollectingPhone:
		return handleCollectingPhone(trimmed, normalized, cctx, settings)
	case StateCollectingAddress:
		return handleCollectingAddress(trimmed, normalized, cctx, settings)
	case StateConfirmingOrder:
		return handleConfirmingOrder(trimmed, normalized, cctx, settings)
	case StateCollectingPaymentDigits:
		return handleCollectingPaymentDigits(trimmed, normalized, cctx, settings)
	case StateAwaitingCustomerDetails:
		return handleAwaitingCustomerDetails(trimmed, normalized, cctx, settings)
	}

	// Unhandled states (including IDLE) fall through to the AI director.
	return noMatch
}

// answerInterruption answers a mid-flow question from settings templates and
// re-prompts for whatever the state is collecting. State never advances.
func answerInterruption(i Interruption, state State, cctx *Context, settings *ResolvedSettings) Match {
	vars := productVars(cctx)
	answer := settings.Template(interruptionTemplate(i), vars)
	if reprompt := repromptFor(state, settings, vars); reprompt != "" {
		answer += "\n\n" + reprompt
	}
	return Match{Matched: true, Action: FastAnswer, Response: answer, NewState: state}
}

// answerDetails handles a details/price request with the same re-prompt
// pattern as interruptions.
func answerDetails(state State, cctx *Context, settings *ResolvedSettings) Match {
	vars := productVars(cctx)
	answer := settings.Template(TplAnswerDetails, vars)
	if reprompt := repromptFor(state, settings, vars); reprompt != "" {
		answer += "\n\n" + reprompt
	}
	return Match{Matched: true, Action: FastAnswer, Response: answer, NewState: state}
}

// repromptFor returns the collection prompt for a state, or "" when the
// state has nothing to re-ask.
func repromptFor(state State, settings *ResolvedSettings, vars map[string]string) string {
	switch state {
	case StateConfirmingProduct:
		return settings.Template(TplProductConfirm, vars)
	case StateCollectingName:
		return settings.Template(TplAskName, vars)
	case StateCollectingPhone:
		return settings.Template(TplAskPhone, vars)
	case StateCollectingAddress:
		return settings.Template(TplAskAddress, vars)
	case StateConfirmingOrder:
		return "Shall we confirm your order?"
	case StateCollectingPaymentDigits:
		return settings.Template(TplInvalidPayment, vars)
	case StateAwaitingCustomerDetails:
		return settings.Template(TplQuickForm, vars)
	}
	return ""
}

func productVars(cctx *Context) map[string]string {
	vars := map[string]string{}
	if len(cctx.Cart) > 0 {
		vars["product_name"] = cctx.Cart[0].ProductName
		vars["product_price"] = trimFloat(cctx.Cart[0].ProductPrice)
	}
	vars["customer_name"] = cctx.Checkout.CustomerName
	return vars
}

func handleConfirmingProduct(trimmed, normalized string, cctx *Context, settings *ResolvedSettings) Match {
	if cls := Classify(normalized); cls.Interruption != InterruptNone {
		return answerInterruption(cls.Interruption, StateConfirmingProduct, cctx, settings)
	} else if cls.DetailsRequest {
		return answerDetails(StateConfirmingProduct, cctx, settings)
	}

	if isAffirmative(normalized) {
		// More than one pending product: let the customer pick which ones.
		if len(cctx.PendingImages) > 1 {
			return Match{
				Matched:  true,
				Action:   FastSelectItems,
				Response: settings.Template(TplSelectItems, pendingVars(cctx)),
				NewState: StateSelectingCartItems,
			}
		}
		return advanceToCustomerDetails(cctx, settings, &ContextPatch{ClearPending: true})
	}

	if isNegative(normalized) {
		return Match{
			Matched:  true,
			Action:   FastDecline,
			Response: settings.Template(TplDecline, nil),
			NewState: StateIdle,
		}
	}

	return noMatch
}

// advanceToCustomerDetails routes confirmation to the three-step collection
// flow, or to the single-message quick form when the tenant is configured
// for it.
func advanceToCustomerDetails(cctx *Context, settings *ResolvedSettings, patch *ContextPatch) Match {
	if settings.QuickForm {
		return Match{
			Matched:  true,
			Action:   FastConfirm,
			Response: settings.Template(TplQuickForm, nil),
			NewState: StateAwaitingCustomerDetails,
			Patch:    patch,
		}
	}
	return Match{
		Matched:  true,
		Action:   FastConfirm,
		Response: settings.Template(TplAskName, nil),
		NewState: StateCollectingName,
		Patch:    patch,
	}
}

func pendingVars(cctx *Context) map[string]string {
	var lines strings.Builder
	for i, img := range cctx.PendingImages {
		fmt.Fprintf(&lines, "%d. %s - %s Tk\n", i+1, img.ProductName, trimFloat(img.ProductPrice))
	}
	return map[string]string{
		"pending_count": strconv.Itoa(len(cctx.PendingImages)),
		"pending_items": lines.String(),
	}
}

func handleSelectingCartItems(trimmed, normalized string, cctx *Context, settings *ResolvedSettings) Match {
	if cls := Classify(normalized); cls.Interruption != InterruptNone {
		return answerInterruption(cls.Interruption, StateSelectingCartItems, cctx, settings)
	}

	var selected []PendingImage
	if normalized == "all" || normalized == "sob" || normalized == "সব" || normalized == "সবগুলো" {
		selected = cctx.PendingImages
	} else if picks := parseSelection(normalized, len(cctx.PendingImages)); len(picks) > 0 {
		for _, idx := range picks {
			selected = append(selected, cctx.PendingImages[idx])
		}
	}

	if len(selected) == 0 {
		return noMatch
	}

	// Recognition already queued every image into the cart; the selection is
	// authoritative, so the cart is rebuilt from the picks alone.
	patch := &ContextPatch{ReplaceCart: true, ClearPending: true}
	for _, img := range selected {
		patch.CartAdds = append(patch.CartAdds, CartItem{
			ProductID:    img.ProductID,
			ProductName:  img.ProductName,
			ProductPrice: img.ProductPrice,
			Quantity:     1,
		})
	}
	return advanceToCustomerDetails(cctx, settings, patch)
}

// parseSelection reads "1,3" style picks and returns zero-based indexes,
// dropping anything out of range.
func parseSelection(input string, max int) []int {
	parts := strings.FieldsFunc(input, func(r rune) bool {
		return r == ',' || r == ' ' || r == '.'
	})
	var picks []int
	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 1 || n > max {
			return nil
		}
		picks = append(picks, n-1)
	}
	return picks
}

func handleCollectingVariations(trimmed, normalized string, cctx *Context, settings *ResolvedSettings) Match {
	// Size words are the expected input here, so a size "interruption" is
	// really an answer; every other category still interrupts.
	if cls := Classify(normalized); cls.Interruption != InterruptNone && cls.Interruption != InterruptSize {
		return answerInterruption(cls.Interruption, StateCollectingMultiVariation, cctx, settings)
	}

	target := -1
	for i, item := range cctx.Cart {
		if item.Size == "" && item.Color == "" {
			target = i
			break
		}
	}
	if target < 0 {
		return noMatch
	}

	size, color := parseVariation(trimmed)
	if size == "" && color == "" {
		return noMatch
	}

	patch := &ContextPatch{SetVariation: &VariationPatch{
		ProductID: cctx.Cart[target].ProductID,
		Size:      size,
		Color:     color,
	}}

	// More lines still waiting for a selection: re-prompt for the next one.
	if target+1 < len(cctx.Cart) {
		next := cctx.Cart[target+1]
		return Match{
			Matched:  true,
			Action:   FastSetVariation,
			Response: settings.Template(TplAskVariation, map[string]string{"product_name": next.ProductName}),
			NewState: StateCollectingMultiVariation,
			Patch:    patch,
		}
	}

	m := advanceToCustomerDetails(cctx, settings, patch)
	m.Action = FastSetVariation
	return m
}

var sizeTokens = map[string]bool{
	"xs": true, "s": true, "m": true, "l": true, "xl": true, "xxl": true,
	"xxxl": true, "small": true, "medium": true, "large": true, "free": true,
}

var numericSize = regexp.MustCompile(`^\d{2}$`)

// parseVariation splits "M, Red" style input into a size and a color.
func parseVariation(input string) (size, color string) {
	parts := strings.FieldsFunc(input, func(r rune) bool {
		return r == ',' || r == '/' || r == ' '
	})
	var rest []string
	for _, part := range parts {
		lower := strings.ToLower(part)
		if size == "" && (sizeTokens[lower] || numericSize.MatchString(lower)) {
			size = strings.ToUpper(part)
			continue
		}
		rest = append(rest, part)
	}
	color = titleCaser.String(strings.ToLower(strings.Join(rest, " ")))
	return size, color
}

func handleCollectingName(trimmed, normalized string, cctx *Context, settings *ResolvedSettings) Match {
	if cls := Classify(normalized); cls.Interruption != InterruptNone {
		return answerInterruption(cls.Interruption, StateCollectingName, cctx, settings)
	} else if cls.DetailsRequest {
		return answerDetails(StateCollectingName, cctx, settings)
	}

	if !nameShape.MatchString(trimmed) {
		return noMatch
	}

	name := titleCaser.String(strings.ToLower(trimmed))
	return Match{
		Matched:  true,
		Action:   FastCollectName,
		Response: settings.Template(TplAskPhone, map[string]string{"customer_name": name}),
		NewState: StateCollectingPhone,
		Patch:    &ContextPatch{CustomerName: &name},
	}
}

func handleCollectingPhone(trimmed, normalized string, cctx *Context, settings *ResolvedSettings) Match {
	if cls := Classify(normalized); cls.Interruption != InterruptNone {
		return answerInterruption(cls.Interruption, StateCollectingPhone, cctx, settings)
	} else if cls.DetailsRequest {
		return answerDetails(StateCollectingPhone, cctx, settings)
	}

	phone := NormalizePhone(trimmed)
	if phone == "" {
		// Explicit validation error: stay in state, do not escalate to AI.
		return Match{
			Matched:  true,
			Action:   FastInvalid,
			Response: settings.Template(TplInvalidPhone, nil),
			NewState: StateCollectingPhone,
		}
	}

	return Match{
		Matched:  true,
		Action:   FastCollectPhone,
		Response: settings.Template(TplAskAddress, nil),
		NewState: StateCollectingAddress,
		Patch:    &ContextPatch{CustomerPhone: &phone},
	}
}

func handleCollectingAddress(trimmed, normalized string, cctx *Context, settings *ResolvedSettings) Match {
	// Length check comes BEFORE interruption detection: long free-text
	// addresses routinely contain lookalike keywords ("Dhaka", road names).
	if len([]rune(trimmed)) >= 10 {
		return acceptAddress(trimmed, cctx, settings)
	}

	if cls := Classify(normalized); cls.Interruption != InterruptNone {
		return answerInterruption(cls.Interruption, StateCollectingAddress, cctx, settings)
	} else if cls.DetailsRequest {
		return answerDetails(StateCollectingAddress, cctx, settings)
	}

	return noMatch
}

func acceptAddress(address string, cctx *Context, settings *ResolvedSettings) Match {
	charge := settings.DeliveryChargeOutside
	area := "outside Dhaka"
	if isMetroAddress(address) {
		charge = settings.DeliveryChargeInside
		area = "inside Dhaka"
	}

	subtotal := cctx.CartSubtotal()
	total := subtotal + charge

	var items strings.Builder
	for _, item := range cctx.Cart {
		line := fmt.Sprintf("- %s x%d = %s Tk", item.ProductName, item.Quantity,
			trimFloat(item.ProductPrice*float64(item.Quantity)))
		if item.Size != "" || item.Color != "" {
			line += " (" + strings.TrimPrefix(item.Size+" "+item.Color, " ") + ")"
		}
		items.WriteString(line + "\n")
	}

	summary := settings.Template(TplOrderSummary, map[string]string{
		"order_items":     items.String(),
		"subtotal":        trimFloat(subtotal),
		"delivery_area":   area,
		"delivery_charge": trimFloat(charge),
		"total_amount":    trimFloat(total),
	})

	addr := address
	return Match{
		Matched:  true,
		Action:   FastCollectAddress,
		Response: summary,
		NewState: StateConfirmingOrder,
		Patch: &ContextPatch{
			CustomerAddress: &addr,
			DeliveryCharge:  &charge,
			TotalAmount:     &total,
		},
	}
}

func handleConfirmingOrder(trimmed, normalized string, cctx *Context, settings *ResolvedSettings) Match {
	if cls := Classify(normalized); cls.Interruption != InterruptNone {
		return answerInterruption(cls.Interruption, StateConfirmingOrder, cctx, settings)
	}

	if isAffirmative(normalized) {
		// Without a configured payment number there are no digits to
		// collect; the orchestrator turns this CONFIRM into CREATE_ORDER.
		if settings.PaymentNumber == "" {
			return Match{
				Matched:  true,
				Action:   FastConfirm,
				Response: settings.Template(TplOrderCreated, orderCreatedVars(cctx)),
				NewState: StateIdle,
			}
		}
		return Match{
			Matched: true,
			Action:  FastConfirm,
			Response: settings.Template(TplPaymentInstructions, map[string]string{
				"total_amount": trimFloat(cctx.Checkout.TotalAmount),
			}),
			NewState: StateCollectingPaymentDigits,
		}
	}

	if isNegative(normalized) {
		return Match{
			Matched:  true,
			Action:   FastDecline,
			Response: settings.Template(TplCancel, nil),
			NewState: StateIdle,
		}
	}

	return noMatch
}

func handleCollectingPaymentDigits(trimmed, normalized string, cctx *Context, settings *ResolvedSettings) Match {
	if cls := Classify(normalized); cls.Interruption != InterruptNone {
		return answerInterruption(cls.Interruption, StateCollectingPaymentDigits, cctx, settings)
	}

	if paymentDigits.MatchString(trimmed) {
		digits := trimmed
		return Match{
			Matched:  true,
			Action:   FastCreateOrder,
			Response: settings.Template(TplOrderCreated, orderCreatedVars(cctx)),
			NewState: StateIdle,
			Patch:    &ContextPatch{PaymentLastTwoDigits: &digits},
		}
	}

	return Match{
		Matched:  true,
		Action:   FastInvalid,
		Response: settings.Template(TplInvalidPayment, nil),
		NewState: StateCollectingPaymentDigits,
	}
}

// orderCreatedVars leaves {{order_number}} for the orchestrator, which owns
// order-number generation.
func orderCreatedVars(cctx *Context) map[string]string {
	return map[string]string{
		"customer_address": cctx.Checkout.CustomerAddress,
	}
}
