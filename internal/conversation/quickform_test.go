package conversation

import (
	"strings"
	"testing"
)

func TestParseQuickFormLabeled(t *testing.T) {
	input := "Name: rahim uddin\nPhone: 01712345678\nAddress: House 1, Road 2, Dhaka"
	got := ParseQuickForm(input)

	if !got.Complete() {
		t.Fatalf("expected complete form, got %+v", got)
	}
	if got.Name != "Rahim Uddin" {
		t.Errorf("Name = %q, want title-cased", got.Name)
	}
	if got.Phone != "01712345678" {
		t.Errorf("Phone = %q", got.Phone)
	}
	if got.Address != "House 1, Road 2, Dhaka" {
		t.Errorf("Address = %q", got.Address)
	}
}

func TestParseQuickFormBengaliLabels(t *testing.T) {
	input := "নাম: রহিম\nফোন: +8801712345678\nঠিকানা: ধানমন্ডি ৪, ঢাকা রোড নাম্বার ২"
	got := ParseQuickForm(input)

	if !got.Complete() {
		t.Fatalf("expected complete form, got %+v", got)
	}
	if got.Phone != "01712345678" {
		t.Errorf("Phone = %q, want canonical form", got.Phone)
	}
}

func TestParseQuickFormPositional(t *testing.T) {
	input := "Rahim Uddin\n017 1234 5678\nHouse 5, Road 2, Dhanmondi, Dhaka"
	got := ParseQuickForm(input)

	if !got.Complete() {
		t.Fatalf("expected complete form, got %+v", got)
	}
	if got.Name != "Rahim Uddin" || got.Phone != "01712345678" {
		t.Errorf("got %+v", got)
	}
	if !strings.Contains(got.Address, "Dhanmondi") {
		t.Errorf("Address = %q", got.Address)
	}
}

// Labeled extraction wins per field; positional parsing only fills fields
// still missing.
func TestParseQuickFormLabeledWinsOverPositional(t *testing.T) {
	input := "Name: Karima Akter\nRahim\n01712345678\nHouse 9, Banani, Dhaka"
	got := ParseQuickForm(input)

	if got.Name != "Karima Akter" {
		t.Errorf("Name = %q, labeled value must win", got.Name)
	}
	if got.Phone != "01712345678" || !strings.Contains(got.Address, "Banani") {
		t.Errorf("positional fallback incomplete: %+v", got)
	}
}

func TestParseQuickFormIncomplete(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"missing address", "Rahim Uddin\n01712345678"},
		{"address too short", "Rahim Uddin\n01712345678\nDhaka"},
		{"invalid phone", "Name: Rahim\nPhone: 01212345678\nAddress: House 1, Road 2, Dhaka"},
		{"no phone anchor", "Rahim Uddin\nHouse 1, Road 2, Dhanmondi, Dhaka"},
		{"free text", "I want to order the black one"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseQuickForm(tt.input); got.Complete() {
				t.Errorf("ParseQuickForm(%q) = %+v, want incomplete", tt.input, got)
			}
		})
	}
}

func TestNormalizeLoosePhone(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"01712345678", "01712345678"},
		{"+88 01712-345678", "01712345678"},
		{"01712345678 (personal)", "01712345678"},
		{"01212345678", ""},
		{"12345", ""},
	}
	for _, tt := range tests {
		if got := normalizeLoosePhone(tt.input); got != tt.want {
			t.Errorf("normalizeLoosePhone(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestAwaitingCustomerDetails(t *testing.T) {
	settings := testSettings()
	settings.QuickForm = true

	newCtx := func() *Context {
		c := cartContext(StateAwaitingCustomerDetails)
		return c
	}

	t.Run("complete form produces the order summary", func(t *testing.T) {
		input := "Name: Rahim Uddin\nPhone: 01712345678\nAddress: House 5, Road 2, Dhanmondi, Dhaka"
		m := TryFastLane(input, StateAwaitingCustomerDetails, newCtx(), settings)
		if !m.Matched || m.Action != FastCollectDetails {
			t.Fatalf("match = %+v", m)
		}
		if m.NewState != StateConfirmingOrder {
			t.Errorf("NewState = %q, want CONFIRMING_ORDER", m.NewState)
		}
		if *m.Patch.CustomerName != "Rahim Uddin" || *m.Patch.CustomerPhone != "01712345678" {
			t.Errorf("patch = %+v", m.Patch)
		}
		if *m.Patch.DeliveryCharge != 60 {
			t.Errorf("charge = %v, Dhanmondi is inside Dhaka", *m.Patch.DeliveryCharge)
		}
	})

	t.Run("partial form re-prompts with the format", func(t *testing.T) {
		m := TryFastLane("Rahim Uddin 01712345678", StateAwaitingCustomerDetails, newCtx(), settings)
		if m.Action != FastInvalid || m.NewState != StateAwaitingCustomerDetails {
			t.Fatalf("match = %+v, want retry", m)
		}
		if !strings.Contains(m.Response, "Name:") {
			t.Errorf("retry should show the expected format: %q", m.Response)
		}
		if !strings.Contains(m.Detail, "phone=true") || !strings.Contains(m.Detail, "address=false") {
			t.Errorf("detail = %q, want the parsed-field summary", m.Detail)
		}
	})

	t.Run("short question is an interruption", func(t *testing.T) {
		m := TryFastLane("delivery?", StateAwaitingCustomerDetails, newCtx(), settings)
		if m.Action != FastAnswer || m.NewState != StateAwaitingCustomerDetails {
			t.Errorf("match = %+v", m)
		}
	})

	// A long form message may contain interruption lookalikes in the address;
	// it must still parse as a form.
	t.Run("long form with lookalike keywords parses", func(t *testing.T) {
		input := "Rahim Uddin\n01712345678\n23 Delivery Road, Gulshan, Dhaka"
		m := TryFastLane(input, StateAwaitingCustomerDetails, newCtx(), settings)
		if m.Action != FastCollectDetails {
			t.Errorf("match = %+v, want form parse", m)
		}
	})
}
