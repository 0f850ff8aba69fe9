package conversation

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ResolvedSettings is the fully-defaulted per-tenant configuration,
// materialized once per request at the orchestrator boundary and consumed
// read-only downstream.
type ResolvedSettings struct {
	WorkspaceID           uint
	BusinessName          string
	Tone                  string
	LanguageMix           int // % Bengali in generated replies
	UseEmoji              bool
	DeliveryChargeInside  float64
	DeliveryChargeOutside float64
	PaymentMethods        []string
	PaymentNumber         string
	ConfidenceThreshold   int
	QuickForm             bool
	Templates             map[string]string
}

// DefaultSettings returns the baseline configuration used when a workspace
// has no settings row.
func DefaultSettings(workspaceID uint) *ResolvedSettings {
	return &ResolvedSettings{
		WorkspaceID:           workspaceID,
		BusinessName:          "our shop",
		Tone:                  "friendly",
		LanguageMix:           50,
		UseEmoji:              true,
		DeliveryChargeInside:  60,
		DeliveryChargeOutside: 120,
		PaymentMethods:        []string{"bkash", "nagad"},
		ConfidenceThreshold:   70,
		Templates:             map[string]string{},
	}
}

// Template names. Tenant overrides are looked up under these keys before
// the hard-coded defaults below apply.
const (
	TplGreeting            = "greeting"
	TplProductConfirm      = "product_confirm"
	TplProductNotFound     = "product_not_found"
	TplAskName             = "ask_name"
	TplAskPhone            = "ask_phone"
	TplInvalidPhone        = "invalid_phone"
	TplAskAddress          = "ask_address"
	TplOrderSummary        = "order_summary"
	TplPaymentInstructions = "payment_instructions"
	TplInvalidPayment      = "invalid_payment"
	TplOrderCreated        = "order_created"
	TplDecline             = "decline"
	TplCancel              = "cancel"
	TplQuickForm           = "quick_form"
	TplQuickFormRetry      = "quick_form_retry"
	TplSelectItems         = "select_items"
	TplAskVariation        = "ask_variation"
	TplApology             = "apology"

	TplAnswerDelivery  = "answer_delivery"
	TplAnswerPrice     = "answer_price"
	TplAnswerPayment   = "answer_payment"
	TplAnswerReturn    = "answer_return"
	TplAnswerSize      = "answer_size"
	TplAnswerUrgency   = "answer_urgency"
	TplAnswerObjection = "answer_objection"
	TplAnswerSeller    = "answer_seller"
	TplAnswerDetails   = "answer_details"
)

var defaultTemplates = map[string]string{
	TplGreeting:        "Assalamu alaikum! Welcome to {{business_name}}. Send us a product photo or tell us what you are looking for.",
	TplProductConfirm:  "This is {{product_name}}, price {{product_price}} Tk. Would you like to order it?",
	TplProductNotFound: "Sorry, we could not recognize that product. Please send a clearer photo or type the product name.",
	TplAskName:         "Great! Please tell us your name.",
	TplAskPhone:        "Thanks {{customer_name}}! Now please share your phone number.",
	TplInvalidPhone:    "That phone number does not look right. Please send an 11-digit number like 01712345678.",
	TplAskAddress:      "Got it. Please send your full delivery address.",
	TplOrderSummary: "Order summary:\n{{order_items}}Subtotal: {{subtotal}} Tk\nDelivery ({{delivery_area}}): {{delivery_charge}} Tk\nTotal: {{total_amount}} Tk\n\nShall we confirm the order?",
	TplPaymentInstructions: "Please send {{total_amount}} Tk to {{payment_methods}} number {{payment_number}} and reply with the last 2 digits of the sender number.",
	TplInvalidPayment:      "Please reply with exactly the last 2 digits of the number you paid from, e.g. 78.",
	TplOrderCreated:        "Your order {{order_number}} is confirmed! We will deliver to {{customer_address}}. Thank you for shopping with {{business_name}}.",
	TplDecline:             "No problem! Feel free to browse and message us anytime.",
	TplCancel:              "Order cancelled. Let us know if you change your mind.",
	TplQuickForm:           "Please send your details in one message:\nName: your name\nPhone: 01XXXXXXXXX\nAddress: your full address",
	TplQuickFormRetry:      "We could not read all the details. Please use this format:\nName: Rahim Uddin\nPhone: 01712345678\nAddress: House 1, Road 2, Dhaka",
	TplSelectItems:         "You have {{pending_count}} products pending. Reply with the numbers you want (e.g. 1,3) or 'all':\n{{pending_items}}",
	TplAskVariation:        "Please tell us the size/color for {{product_name}} (e.g. M, Red).",
	TplApology:             "Sorry, something went wrong on our side. Please try again in a moment.",

	TplAnswerDelivery:  "Delivery charge is {{delivery_inside}} Tk inside Dhaka and {{delivery_outside}} Tk outside. Delivery takes 2-3 days.",
	TplAnswerPrice:     "The price is {{product_price}} Tk for {{product_name}}.",
	TplAnswerPayment:   "We accept {{payment_methods}}. You can also pay cash on delivery.",
	TplAnswerReturn:    "We accept returns within 3 days if the product is unused. Exchange is also possible.",
	TplAnswerSize:      "Available sizes are listed on the product. Tell us your usual size and we will suggest one.",
	TplAnswerUrgency:   "We offer express delivery inside Dhaka. Tell us when you need it and we will try our best.",
	TplAnswerObjection: "Our prices are fixed but fair for the quality. We often run offers, keep an eye out!",
	TplAnswerSeller:    "One of our team members will get back to you shortly. Meanwhile we are happy to help here.",
	TplAnswerDetails:   "{{product_name}}: {{product_price}} Tk. Send the photo again or ask anything specific you want to know.",
}

// Template resolves a canned message: tenant override first, then the
// hard-coded default, with {{placeholder}} substitution from vars.
func (s *ResolvedSettings) Template(key string, vars map[string]string) string {
	text, ok := s.Templates[key]
	if !ok || text == "" {
		text = defaultTemplates[key]
	}
	return s.render(text, vars)
}

func (s *ResolvedSettings) render(text string, vars map[string]string) string {
	text = strings.ReplaceAll(text, "{{business_name}}", s.BusinessName)
	text = strings.ReplaceAll(text, "{{delivery_inside}}", trimFloat(s.DeliveryChargeInside))
	text = strings.ReplaceAll(text, "{{delivery_outside}}", trimFloat(s.DeliveryChargeOutside))
	text = strings.ReplaceAll(text, "{{payment_methods}}", strings.Join(s.PaymentMethods, "/"))
	text = strings.ReplaceAll(text, "{{payment_number}}", s.PaymentNumber)
	for k, v := range vars {
		text = strings.ReplaceAll(text, "{{"+k+"}}", v)
	}
	return text
}

// interruptionTemplate maps a classified interruption to its answer
// template key.
func interruptionTemplate(i Interruption) string {
	switch i {
	case InterruptDelivery:
		return TplAnswerDelivery
	case InterruptPrice:
		return TplAnswerPrice
	case InterruptPayment:
		return TplAnswerPayment
	case InterruptReturn:
		return TplAnswerReturn
	case InterruptSize:
		return TplAnswerSize
	case InterruptUrgency:
		return TplAnswerUrgency
	case InterruptObjection:
		return TplAnswerObjection
	case InterruptSeller:
		return TplAnswerSeller
	}
	return TplApology
}

// ParseSettingsRow maps raw settings-row JSON columns onto a fully
// defaulted ResolvedSettings.
func ParseSettingsRow(workspaceID uint, businessName, tone string, languageMix int, useEmoji bool,
	chargeInside, chargeOutside float64, paymentMethodsJSON, paymentNumber string,
	confidenceThreshold int, quickForm bool, templatesJSON string) *ResolvedSettings {

	s := DefaultSettings(workspaceID)
	if businessName != "" {
		s.BusinessName = businessName
	}
	if tone != "" {
		s.Tone = tone
	}
	if languageMix > 0 {
		s.LanguageMix = languageMix
	}
	s.UseEmoji = useEmoji
	if chargeInside > 0 {
		s.DeliveryChargeInside = chargeInside
	}
	if chargeOutside > 0 {
		s.DeliveryChargeOutside = chargeOutside
	}
	if paymentMethodsJSON != "" {
		var methods []string
		if err := json.Unmarshal([]byte(paymentMethodsJSON), &methods); err == nil && len(methods) > 0 {
			s.PaymentMethods = methods
		}
	}
	if paymentNumber != "" {
		s.PaymentNumber = paymentNumber
	}
	if confidenceThreshold > 0 {
		s.ConfidenceThreshold = confidenceThreshold
	}
	s.QuickForm = quickForm
	if templatesJSON != "" {
		var overrides map[string]string
		if err := json.Unmarshal([]byte(templatesJSON), &overrides); err == nil {
			s.Templates = overrides
		}
	}
	return s
}

func trimFloat(f float64) string {
	text := strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", f), "0"), ".")
	if text == "" {
		return "0"
	}
	return text
}
