package conversation

import "testing"

func TestClassifyCategories(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Interruption
	}{
		{"delivery english", "what's the delivery charge?", InterruptDelivery},
		{"delivery banglish", "kobe pabo vai", InterruptDelivery},
		{"delivery bengali", "ডেলিভারি কত দিন লাগে", InterruptDelivery},
		{"price english", "how much is this", InterruptPrice},
		{"price banglish", "dam koto", InterruptPrice},
		{"payment", "bkash e pay korbo", InterruptPayment},
		{"return", "return kora jabe?", InterruptReturn},
		{"size", "size koto ache", InterruptSize},
		{"urgency", "ajke lagbe urgent", InterruptUrgency},
		{"objection", "eto dam keno", InterruptObjection},
		{"seller", "admin er sathe kotha bolte chai", InterruptSeller},
		{"no match", "thank you bhai", InterruptNone},
		{"empty", "", InterruptNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.text)
			if got.Interruption != tt.want {
				t.Errorf("Classify(%q).Interruption = %q, want %q", tt.text, got.Interruption, tt.want)
			}
		})
	}
}

// Overlapping vocabulary must resolve by fixed priority, first category wins.
func TestClassifyPriority(t *testing.T) {
	tests := []struct {
		text string
		want Interruption
	}{
		{"delivery charge koto taka", InterruptDelivery}, // delivery beats price
		{"dam koto, bkash ache?", InterruptPrice},        // price beats payment
		{"bkash e advance, return hobe?", InterruptPayment},
	}
	for _, tt := range tests {
		if got := Classify(tt.text).Interruption; got != tt.want {
			t.Errorf("Classify(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestClassifyIntentFlags(t *testing.T) {
	if !Classify("order korbo").OrderIntent {
		t.Error("expected order intent for 'order korbo'")
	}
	if !Classify("details janate paren?").DetailsRequest {
		t.Error("expected details request for 'details janate paren?'")
	}
	got := Classify("ei shirt ta nibo, details den")
	if !got.OrderIntent || !got.DetailsRequest {
		t.Errorf("expected both flags, got %+v", got)
	}
}

// Short tokens must match on word boundaries only: "xl" inside "axle" is not
// a size question, standalone "xl" is.
func TestShortKeywordWordBoundary(t *testing.T) {
	tests := []struct {
		text string
		want Interruption
	}{
		{"xl ache?", InterruptSize},
		{"the axle is broken", InterruptNone},
		{"size xl", InterruptSize},
	}
	for _, tt := range tests {
		if got := Classify(tt.text).Interruption; got != tt.want {
			t.Errorf("Classify(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestContainsWord(t *testing.T) {
	tests := []struct {
		text, kw string
		want     bool
	}{
		{"ji vai", "ji", true},
		{"rahim", "hi", false}, // bounded by letters
		{"hi there", "hi", true},
		{"say hi", "hi", true},
		{"jim korbo", "ji", false},
		{"ji", "ji", true},
	}
	for _, tt := range tests {
		if got := containsWord(tt.text, tt.kw); got != tt.want {
			t.Errorf("containsWord(%q, %q) = %v, want %v", tt.text, tt.kw, got, tt.want)
		}
	}
}

func TestGreetingDetection(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"hello", true},
		{"assalamu alaikum", true},
		{"হ্যালো", true},
		{"rahim uddin", false}, // "hi" inside a name must not fire
		{"start over", true},
	}
	for _, tt := range tests {
		if got := isGreeting(tt.text); got != tt.want {
			t.Errorf("isGreeting(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestMetroAddressDetection(t *testing.T) {
	if !isMetroAddress("House 12, Road 4, Dhanmondi, Dhaka") {
		t.Error("Dhanmondi address should be metro")
	}
	if isMetroAddress("Vill: Charpara, Post: Sadar, Mymensingh") {
		t.Error("Mymensingh address should not be metro")
	}
}
