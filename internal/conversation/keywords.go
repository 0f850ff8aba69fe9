package conversation

// Keyword tables for the interruption/intent classifier and the fast lane
// patterns. These are deliberately literal data, not logic: they are tuned
// per market (Bangladesh: English, Banglish, Bengali script) and must stay
// auditable. Matching policy lives in classifier.go.

// Interruption is a customer question arriving mid-flow.
type Interruption string

const (
	InterruptNone     Interruption = ""
	InterruptDelivery Interruption = "delivery"
	InterruptPrice    Interruption = "price"
	InterruptPayment  Interruption = "payment"
	InterruptReturn   Interruption = "return"
	InterruptSize     Interruption = "size"
	InterruptUrgency  Interruption = "urgency"
	InterruptObjection Interruption = "objection"
	InterruptSeller   Interruption = "seller"
)

// interruptionOrder fixes priority when categories overlap in vocabulary.
// First match wins; do not reorder.
var interruptionOrder = []Interruption{
	InterruptDelivery,
	InterruptPrice,
	InterruptPayment,
	InterruptReturn,
	InterruptSize,
	InterruptUrgency,
	InterruptObjection,
	InterruptSeller,
}

var interruptionKeywords = map[Interruption][]string{
	InterruptDelivery: {
		"delivery", "deliver", "shipping", "courier", "parcel",
		"kobe pabo", "kotodin", "koydin", "cash on delivery", "cod",
		"delivery charge", "delivery cost",
		"ডেলিভারি", "কুরিয়ার", "কবে পাবো", "কত দিন", "ক্যাশ অন ডেলিভারি",
	},
	InterruptPrice: {
		"price", "dam koto", "koto taka", "mullo", "how much", "discount",
		"offer", "koto porbe", "total koto",
		"দাম", "কত টাকা", "মূল্য", "কত পড়বে", "ডিসকাউন্ট", "ছাড়",
	},
	InterruptPayment: {
		"bkash", "nagad", "rocket", "payment", "advance", "pay korbo",
		"bikash", "taka pathabo", "payment number",
		"বিকাশ", "নগদ", "রকেট", "পেমেন্ট", "এডভান্স", "টাকা পাঠাবো",
	},
	InterruptReturn: {
		"return", "exchange", "refund", "ferot", "change kora jabe",
		"poshale", "bodlano",
		"ফেরত", "রিটার্ন", "এক্সচেঞ্জ", "পাল্টানো", "বদলানো",
	},
	InterruptSize: {
		"size", "measurement", "mape", "size koto", "l size", "m size",
		"xl", "xxl", "boro size", "choto size",
		"সাইজ", "মাপ", "সাইজ কত", "বড় সাইজ", "ছোট সাইজ",
	},
	InterruptUrgency: {
		"urgent", "taratari", "jaldi", "emergency", "ajke lagbe",
		"kalke lagbe", "express delivery",
		"জরুরি", "তাড়াতাড়ি", "আজকে লাগবে", "কালকে লাগবে", "আর্জেন্ট",
	},
	InterruptObjection: {
		"expensive", "beshi dam", "dam beshi", "costly", "komano jabe",
		"onno jaygay kom", "eto dam",
		"দাম বেশি", "এত দাম", "কমানো যাবে", "কমাবেন", "বেশি দাম",
	},
	InterruptSeller: {
		"admin", "seller", "owner", "call me", "call diyen", "phone diyen",
		"kotha bolte chai", "manush",
		"এডমিন", "সেলার", "মালিক", "কথা বলতে চাই", "ফোন দিন", "কল দিন",
	},
}

// orderIntentKeywords flag an explicit wish to buy.
var orderIntentKeywords = []string{
	"order", "order korbo", "order dibo", "nibo", "nite chai", "kinbo",
	"kinte chai", "buy", "purchase", "confirm korbo", "lagbe",
	"অর্ডার", "নিব", "নিবো", "নিতে চাই", "কিনব", "কিনতে চাই", "লাগবে",
}

// detailsRequestKeywords flag a request for product details/description.
var detailsRequestKeywords = []string{
	"details", "detail", "description", "about this", "jante chai",
	"bistarito", "aro jante", "specification", "kemon",
	"বিস্তারিত", "ডিটেইলস", "জানতে চাই", "আরো জানতে", "কেমন",
}

// Fast-lane pattern tables.

var greetingKeywords = []string{
	"hi", "hello", "hey", "salam", "assalamualaikum", "assalamu alaikum",
	"good morning", "good evening", "good afternoon", "start over",
	"হাই", "হ্যালো", "সালাম", "আসসালামু আলাইকুম", "শুরু",
}

var yesKeywords = []string{
	"yes", "yeah", "yup", "y", "ji", "jee", "ji vai", "hmm", "hm", "ok",
	"okay", "acha", "accha", "thik ache", "sure", "confirm", "done",
	"hobe", "hae", "han", "nibo",
	"হ্যাঁ", "জি", "জ্বি", "আচ্ছা", "ঠিক আছে", "হবে", "নিব", "কনফার্ম",
}

var noKeywords = []string{
	"no", "nah", "nope", "na", "cancel", "bad din", "lagbe na",
	"nibo na", "thak", "baad",
	"না", "নাহ", "লাগবে না", "নিব না", "থাক", "বাদ", "ক্যানসেল",
}

// metroAreaKeywords decide the in-metro delivery charge when they appear in
// a delivery address.
var metroAreaKeywords = []string{
	"dhaka", "dhanmondi", "gulshan", "banani", "mirpur", "uttara",
	"mohammadpur", "motijheel", "badda", "rampura", "khilgaon", "tejgaon",
	"farmgate", "shyamoli", "bashundhara", "baridhara", "wari", "jatrabari",
	"ঢাকা", "ধানমন্ডি", "গুলশান", "বনানী", "মিরপুর", "উত্তরা", "মোহাম্মদপুর",
}
