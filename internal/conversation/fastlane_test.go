package conversation

import (
	"strings"
	"testing"
)

func testSettings() *ResolvedSettings {
	return DefaultSettings(1)
}

func cartContext(state State) *Context {
	c := NewContext()
	c.State = state
	c.AddToCart(CartItem{ProductID: 7, ProductName: "Black Punjabi", ProductPrice: 1200, Quantity: 1})
	return c
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"01712345678", "01712345678"},
		{"+8801712345678", "01712345678"},
		{"8801712345678", "01712345678"},
		{"017 1234 5678", "01712345678"},
		{"017-1234-5678", "01712345678"},
		{"+88 01712345678", "01712345678"},
		{" 01812345678 ", "01812345678"},
		{"01212345678", ""}, // 012 is not a valid operator prefix
		{"0171234567", ""},  // too short
		{"017123456789", ""},
		{"call me maybe", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := NormalizePhone(tt.input); got != tt.want {
				t.Errorf("NormalizePhone(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// A greeting resets to IDLE no matter where the conversation stands.
func TestGreetingResetsFromEveryState(t *testing.T) {
	states := []State{
		StateIdle, StateConfirmingProduct, StateSelectingCartItems,
		StateCollectingMultiVariation, StateCollectingName, StateCollectingPhone,
		StateCollectingAddress, StateCollectingPaymentDigits, StateConfirmingOrder,
		StateAwaitingCustomerDetails,
	}
	for _, state := range states {
		t.Run(string(state), func(t *testing.T) {
			m := TryFastLane("assalamu alaikum", state, cartContext(state), testSettings())
			if !m.Matched || m.Action != FastGreeting {
				t.Fatalf("match = %+v, want greeting", m)
			}
			if m.NewState != StateIdle {
				t.Errorf("NewState = %q, want IDLE", m.NewState)
			}
		})
	}
}

func TestIdleTextEscalates(t *testing.T) {
	m := TryFastLane("do you have red sarees?", StateIdle, NewContext(), testSettings())
	if m.Matched {
		t.Errorf("IDLE free text should defer to the director, got %+v", m)
	}
}

func TestEmptyInputEscalates(t *testing.T) {
	m := TryFastLane("   ", StateCollectingName, NewContext(), testSettings())
	if m.Matched {
		t.Errorf("blank input should not match, got %+v", m)
	}
}

func TestConfirmingProduct(t *testing.T) {
	t.Run("affirmative advances to name collection", func(t *testing.T) {
		m := TryFastLane("ji", StateConfirmingProduct, cartContext(StateConfirmingProduct), testSettings())
		if !m.Matched || m.Action != FastConfirm {
			t.Fatalf("match = %+v", m)
		}
		if m.NewState != StateCollectingName {
			t.Errorf("NewState = %q, want COLLECTING_NAME", m.NewState)
		}
		if m.Patch == nil || !m.Patch.ClearPending {
			t.Errorf("patch should clear pending images, got %+v", m.Patch)
		}
	})

	t.Run("affirmative with quick form configured", func(t *testing.T) {
		settings := testSettings()
		settings.QuickForm = true
		m := TryFastLane("yes", StateConfirmingProduct, cartContext(StateConfirmingProduct), settings)
		if m.NewState != StateAwaitingCustomerDetails {
			t.Errorf("NewState = %q, want AWAITING_CUSTOMER_DETAILS", m.NewState)
		}
	})

	t.Run("affirmative with multiple pending products", func(t *testing.T) {
		cctx := cartContext(StateConfirmingProduct)
		cctx.PendingImages = []PendingImage{
			{ProductID: 7, ProductName: "Black Punjabi", ProductPrice: 1200},
			{ProductID: 8, ProductName: "White Punjabi", ProductPrice: 1100},
		}
		m := TryFastLane("yes", StateConfirmingProduct, cctx, testSettings())
		if m.Action != FastSelectItems || m.NewState != StateSelectingCartItems {
			t.Fatalf("match = %+v, want item selection", m)
		}
		if !strings.Contains(m.Response, "White Punjabi") {
			t.Errorf("selection prompt should list pending products: %q", m.Response)
		}
	})

	t.Run("negative declines to idle", func(t *testing.T) {
		m := TryFastLane("na", StateConfirmingProduct, cartContext(StateConfirmingProduct), testSettings())
		if m.Action != FastDecline || m.NewState != StateIdle {
			t.Errorf("match = %+v, want decline to IDLE", m)
		}
	})

	t.Run("price question answered in place", func(t *testing.T) {
		m := TryFastLane("dam koto?", StateConfirmingProduct, cartContext(StateConfirmingProduct), testSettings())
		if m.Action != FastAnswer || m.NewState != StateConfirmingProduct {
			t.Fatalf("match = %+v", m)
		}
		if !strings.Contains(m.Response, "1200") {
			t.Errorf("price answer should carry the cart price: %q", m.Response)
		}
	})

	t.Run("ambiguous input escalates", func(t *testing.T) {
		m := TryFastLane("let me think about it", StateConfirmingProduct, cartContext(StateConfirmingProduct), testSettings())
		if m.Matched {
			t.Errorf("ambiguous input should defer, got %+v", m)
		}
	})
}

func TestSelectingCartItems(t *testing.T) {
	newCtx := func() *Context {
		c := NewContext()
		c.State = StateSelectingCartItems
		c.PendingImages = []PendingImage{
			{ProductID: 1, ProductName: "A", ProductPrice: 100},
			{ProductID: 2, ProductName: "B", ProductPrice: 200},
			{ProductID: 3, ProductName: "C", ProductPrice: 300},
		}
		return c
	}

	t.Run("numbered picks", func(t *testing.T) {
		m := TryFastLane("1,3", StateSelectingCartItems, newCtx(), testSettings())
		if !m.Matched || m.Patch == nil {
			t.Fatalf("match = %+v", m)
		}
		if len(m.Patch.CartAdds) != 2 || m.Patch.CartAdds[0].ProductID != 1 || m.Patch.CartAdds[1].ProductID != 3 {
			t.Errorf("cart adds = %+v", m.Patch.CartAdds)
		}
		if !m.Patch.ReplaceCart {
			t.Error("selection must rebuild the cart, not append to it")
		}
		if !m.Patch.ClearPending {
			t.Error("pending queue should be cleared after selection")
		}
	})

	// Recognition puts every image in the cart up front; the selection patch
	// must leave only the picked lines, each exactly once.
	t.Run("selection replaces image-time cart lines", func(t *testing.T) {
		cctx := newCtx()
		cctx.Cart = []CartItem{
			{ProductID: 1, ProductName: "A", ProductPrice: 100, Quantity: 1},
			{ProductID: 2, ProductName: "B", ProductPrice: 200, Quantity: 1},
			{ProductID: 3, ProductName: "C", ProductPrice: 300, Quantity: 1},
		}
		m := TryFastLane("1", StateSelectingCartItems, cctx, testSettings())
		if !m.Matched || m.Patch == nil {
			t.Fatalf("match = %+v", m)
		}
		m.Patch.Apply(cctx)
		if len(cctx.Cart) != 1 || cctx.Cart[0].ProductID != 1 || cctx.Cart[0].Quantity != 1 {
			t.Errorf("cart = %+v, want only product 1 once", cctx.Cart)
		}
		if cctx.CartSubtotal() != 100 {
			t.Errorf("subtotal = %v, want 100", cctx.CartSubtotal())
		}
	})

	t.Run("all keyword", func(t *testing.T) {
		m := TryFastLane("all", StateSelectingCartItems, newCtx(), testSettings())
		if len(m.Patch.CartAdds) != 3 {
			t.Errorf("cart adds = %+v, want all three", m.Patch.CartAdds)
		}
	})

	t.Run("out of range escalates", func(t *testing.T) {
		m := TryFastLane("5", StateSelectingCartItems, newCtx(), testSettings())
		if m.Matched {
			t.Errorf("out-of-range pick should defer, got %+v", m)
		}
	})
}

func TestCollectingVariations(t *testing.T) {
	newCtx := func() *Context {
		c := NewContext()
		c.State = StateCollectingMultiVariation
		c.Cart = []CartItem{
			{ProductID: 1, ProductName: "A", ProductPrice: 100, Quantity: 1},
			{ProductID: 2, ProductName: "B", ProductPrice: 200, Quantity: 1},
		}
		return c
	}

	t.Run("first selection re-prompts for next item", func(t *testing.T) {
		m := TryFastLane("M, Red", StateCollectingMultiVariation, newCtx(), testSettings())
		if !m.Matched || m.Action != FastSetVariation {
			t.Fatalf("match = %+v", m)
		}
		if m.NewState != StateCollectingMultiVariation {
			t.Errorf("NewState = %q, should stay collecting", m.NewState)
		}
		v := m.Patch.SetVariation
		if v == nil || v.ProductID != 1 || v.Size != "M" || v.Color != "Red" {
			t.Errorf("variation patch = %+v", v)
		}
		if !strings.Contains(m.Response, "B") {
			t.Errorf("re-prompt should name the next product: %q", m.Response)
		}
	})

	t.Run("last selection advances to details", func(t *testing.T) {
		cctx := newCtx()
		cctx.Cart[0].Size = "M"
		cctx.Cart[0].Color = "Red"
		m := TryFastLane("XL", StateCollectingMultiVariation, cctx, testSettings())
		if m.NewState != StateCollectingName {
			t.Errorf("NewState = %q, want COLLECTING_NAME", m.NewState)
		}
		if m.Patch.SetVariation.ProductID != 2 || m.Patch.SetVariation.Size != "XL" {
			t.Errorf("variation patch = %+v", m.Patch.SetVariation)
		}
	})
}

func TestParseVariation(t *testing.T) {
	tests := []struct {
		input     string
		size, col string
	}{
		{"M, Red", "M", "Red"},
		{"xl/blue", "XL", "Blue"},
		{"42 black", "42", "Black"},
		{"large", "LARGE", ""},
		{"sky blue", "", "Sky Blue"},
	}
	for _, tt := range tests {
		size, color := parseVariation(tt.input)
		if size != tt.size || color != tt.col {
			t.Errorf("parseVariation(%q) = (%q, %q), want (%q, %q)", tt.input, size, color, tt.size, tt.col)
		}
	}
}

func TestCollectingName(t *testing.T) {
	t.Run("valid name title-cased", func(t *testing.T) {
		m := TryFastLane("rahim uddin", StateCollectingName, cartContext(StateCollectingName), testSettings())
		if !m.Matched || m.Action != FastCollectName {
			t.Fatalf("match = %+v", m)
		}
		if m.Patch == nil || m.Patch.CustomerName == nil || *m.Patch.CustomerName != "Rahim Uddin" {
			t.Errorf("name patch = %+v", m.Patch)
		}
		if m.NewState != StateCollectingPhone {
			t.Errorf("NewState = %q, want COLLECTING_PHONE", m.NewState)
		}
	})

	t.Run("interruption answered without consuming the name slot", func(t *testing.T) {
		m := TryFastLane("delivery charge koto?", StateCollectingName, cartContext(StateCollectingName), testSettings())
		if m.Action != FastAnswer || m.NewState != StateCollectingName {
			t.Fatalf("match = %+v", m)
		}
		if !strings.Contains(m.Response, "60") || !strings.Contains(m.Response, "120") {
			t.Errorf("delivery answer should carry both charges: %q", m.Response)
		}
	})

	t.Run("gibberish escalates", func(t *testing.T) {
		m := TryFastLane("!!!???", StateCollectingName, cartContext(StateCollectingName), testSettings())
		if m.Matched {
			t.Errorf("non-name input should defer, got %+v", m)
		}
	})
}

func TestCollectingPhone(t *testing.T) {
	t.Run("valid phone advances to address", func(t *testing.T) {
		m := TryFastLane("+8801712345678", StateCollectingPhone, cartContext(StateCollectingPhone), testSettings())
		if !m.Matched || m.Action != FastCollectPhone {
			t.Fatalf("match = %+v", m)
		}
		if *m.Patch.CustomerPhone != "01712345678" {
			t.Errorf("phone patch = %q, want canonical form", *m.Patch.CustomerPhone)
		}
		if m.NewState != StateCollectingAddress {
			t.Errorf("NewState = %q, want COLLECTING_ADDRESS", m.NewState)
		}
	})

	t.Run("invalid phone re-prompts without escalating", func(t *testing.T) {
		m := TryFastLane("01212345678", StateCollectingPhone, cartContext(StateCollectingPhone), testSettings())
		if !m.Matched || m.Action != FastInvalid {
			t.Fatalf("match = %+v, want explicit validation error", m)
		}
		if m.NewState != StateCollectingPhone {
			t.Errorf("NewState = %q, should stay collecting", m.NewState)
		}
		if m.Patch != nil {
			t.Errorf("invalid phone must not patch context: %+v", m.Patch)
		}
	})

	t.Run("question answered in place", func(t *testing.T) {
		m := TryFastLane("bkash ache?", StateCollectingPhone, cartContext(StateCollectingPhone), testSettings())
		if m.Action != FastAnswer || m.NewState != StateCollectingPhone {
			t.Errorf("match = %+v", m)
		}
	})
}

func TestCollectingAddress(t *testing.T) {
	t.Run("metro address accepted with inside charge", func(t *testing.T) {
		m := TryFastLane("House 12, Road 4, Dhanmondi, Dhaka", StateCollectingAddress,
			cartContext(StateCollectingAddress), testSettings())
		if !m.Matched || m.Action != FastCollectAddress {
			t.Fatalf("match = %+v", m)
		}
		if m.NewState != StateConfirmingOrder {
			t.Errorf("NewState = %q, want CONFIRMING_ORDER", m.NewState)
		}
		if *m.Patch.DeliveryCharge != 60 {
			t.Errorf("charge = %v, want inside-Dhaka 60", *m.Patch.DeliveryCharge)
		}
		if *m.Patch.TotalAmount != 1260 {
			t.Errorf("total = %v, want 1260", *m.Patch.TotalAmount)
		}
		if !strings.Contains(m.Response, "1260") || !strings.Contains(m.Response, "Black Punjabi") {
			t.Errorf("summary missing items or total: %q", m.Response)
		}
	})

	t.Run("non-metro address gets outside charge", func(t *testing.T) {
		m := TryFastLane("Vill: Charpara, Post: Sadar, Mymensingh", StateCollectingAddress,
			cartContext(StateCollectingAddress), testSettings())
		if *m.Patch.DeliveryCharge != 120 {
			t.Errorf("charge = %v, want outside 120", *m.Patch.DeliveryCharge)
		}
	})

	// A long address wins over interruption keywords it happens to contain;
	// a short question is still an interruption.
	t.Run("length check precedes interruption detection", func(t *testing.T) {
		long := TryFastLane("23 Delivery Road, Gulshan 2, Dhaka", StateCollectingAddress,
			cartContext(StateCollectingAddress), testSettings())
		if long.Action != FastCollectAddress {
			t.Errorf("long address misread as interruption: %+v", long)
		}

		short := TryFastLane("delivery?", StateCollectingAddress,
			cartContext(StateCollectingAddress), testSettings())
		if short.Action != FastAnswer || short.NewState != StateCollectingAddress {
			t.Errorf("short question not answered in place: %+v", short)
		}
	})
}

func TestConfirmingOrder(t *testing.T) {
	newCtx := func() *Context {
		c := cartContext(StateConfirmingOrder)
		c.Checkout.TotalAmount = 1260
		return c
	}

	t.Run("yes without payment number completes immediately", func(t *testing.T) {
		m := TryFastLane("yes", StateConfirmingOrder, newCtx(), testSettings())
		if m.Action != FastConfirm || m.NewState != StateIdle {
			t.Fatalf("match = %+v", m)
		}
		// The order number is substituted later by the order creator.
		if !strings.Contains(m.Response, "{{order_number}}") {
			t.Errorf("response should carry the order-number placeholder: %q", m.Response)
		}
	})

	t.Run("yes with payment number asks for digits", func(t *testing.T) {
		settings := testSettings()
		settings.PaymentNumber = "01700000000"
		m := TryFastLane("hobe", StateConfirmingOrder, newCtx(), settings)
		if m.NewState != StateCollectingPaymentDigits {
			t.Fatalf("NewState = %q, want COLLECTING_PAYMENT_DIGITS", m.NewState)
		}
		if !strings.Contains(m.Response, "01700000000") || !strings.Contains(m.Response, "1260") {
			t.Errorf("payment instructions incomplete: %q", m.Response)
		}
	})

	t.Run("no cancels to idle", func(t *testing.T) {
		m := TryFastLane("lagbe na", StateConfirmingOrder, newCtx(), testSettings())
		if m.Action != FastDecline || m.NewState != StateIdle {
			t.Errorf("match = %+v", m)
		}
	})
}

func TestCollectingPaymentDigits(t *testing.T) {
	t.Run("two digits finalize the order", func(t *testing.T) {
		m := TryFastLane("78", StateCollectingPaymentDigits,
			cartContext(StateCollectingPaymentDigits), testSettings())
		if m.Action != FastCreateOrder || m.NewState != StateIdle {
			t.Fatalf("match = %+v", m)
		}
		if *m.Patch.PaymentLastTwoDigits != "78" {
			t.Errorf("digits patch = %q", *m.Patch.PaymentLastTwoDigits)
		}
	})

	t.Run("anything else re-prompts", func(t *testing.T) {
		for _, input := range []string{"7", "789", "ab", "paid"} {
			m := TryFastLane(input, StateCollectingPaymentDigits,
				cartContext(StateCollectingPaymentDigits), testSettings())
			if m.Action != FastInvalid || m.NewState != StateCollectingPaymentDigits {
				t.Errorf("TryFastLane(%q) = %+v, want re-prompt", input, m)
			}
		}
	})
}

func TestContextPatchApply(t *testing.T) {
	c := NewContext()
	c.AddToCart(CartItem{ProductID: 1, ProductName: "A", ProductPrice: 100, Quantity: 1})
	c.PendingImages = []PendingImage{{ProductID: 9}}

	name := "Rahim"
	charge := 60.0
	patch := &ContextPatch{
		CustomerName:   &name,
		DeliveryCharge: &charge,
		CartAdds:       []CartItem{{ProductID: 1, Quantity: 1}, {ProductID: 2, ProductName: "B", Quantity: 1}},
		ClearPending:   true,
		SetVariation:   &VariationPatch{ProductID: 1, Size: "M", Color: "Red"},
	}
	patch.Apply(c)

	if c.Checkout.CustomerName != "Rahim" || c.Checkout.DeliveryCharge != 60 {
		t.Errorf("checkout = %+v", c.Checkout)
	}
	if len(c.Cart) != 2 || c.Cart[0].Quantity != 2 {
		t.Errorf("cart = %+v, want merged quantity", c.Cart)
	}
	if len(c.PendingImages) != 0 {
		t.Errorf("pending images not cleared")
	}
	if c.Cart[0].Size != "M" || c.Cart[0].Color != "Red" {
		t.Errorf("variation not applied: %+v", c.Cart[0])
	}

	var nilPatch *ContextPatch
	nilPatch.Apply(c) // must be a safe no-op
}

func TestContextPatchReplaceCart(t *testing.T) {
	c := NewContext()
	c.AddToCart(CartItem{ProductID: 1, ProductName: "A", ProductPrice: 100, Quantity: 1})
	c.AddToCart(CartItem{ProductID: 2, ProductName: "B", ProductPrice: 200, Quantity: 1})

	patch := &ContextPatch{
		ReplaceCart: true,
		CartAdds:    []CartItem{{ProductID: 2, ProductName: "B", ProductPrice: 200, Quantity: 1}},
	}
	patch.Apply(c)

	if len(c.Cart) != 1 || c.Cart[0].ProductID != 2 || c.Cart[0].Quantity != 1 {
		t.Errorf("cart = %+v, want product 2 once", c.Cart)
	}
}
