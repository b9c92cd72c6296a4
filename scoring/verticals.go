package scoring

// Vertical is a client business category.
type Vertical string

const (
	VerticalLegal         Vertical = "legal"
	VerticalHealthcare    Vertical = "healthcare"
	VerticalEcommerce     Vertical = "ecommerce"
	VerticalSaaS          Vertical = "saas"
	VerticalFinance       Vertical = "finance"
	VerticalRealEstate    Vertical = "real_estate"
	VerticalHomeServices  Vertical = "home_services"
	VerticalMarketing     Vertical = "marketing"
	VerticalDefense       Vertical = "defense"
	VerticalLocalBusiness Vertical = "local_business"
	VerticalManufacturing Vertical = "manufacturing"
	VerticalOther         Vertical = "other"
)

type verticalPattern struct {
	keywords  []string
	modifiers []string
}

var verticalPatterns = map[Vertical]verticalPattern{
	VerticalLegal: {
		keywords: []string{"lawyer", "attorney", "law", "legal", "court", "litigation", "lawsuit",
			"divorce", "custody", "injury", "accident", "criminal", "defense", "estate",
			"bankruptcy", "immigration", "patent", "trademark", "contract"},
		modifiers: []string{"firm", "office", "services", "consultation", "representation"},
	},
	VerticalHealthcare: {
		keywords: []string{"doctor", "hospital", "clinic", "medical", "health", "treatment", "therapy",
			"surgery", "diagnosis", "symptoms", "disease", "condition", "care", "patient",
			"dental", "dentist", "orthodontist", "physician", "specialist"},
		modifiers: []string{"center", "practice", "services", "treatment", "provider"},
	},
	VerticalEcommerce: {
		keywords: []string{"buy", "shop", "store", "price", "cheap", "discount", "sale", "deal",
			"product", "order", "shipping", "delivery", "review", "best", "top"},
		modifiers: []string{"online", "free shipping", "wholesale", "retail"},
	},
	VerticalSaaS: {
		keywords: []string{"software", "app", "tool", "platform", "solution", "system", "api",
			"automation", "integration", "dashboard", "analytics", "management"},
		modifiers: []string{"free", "trial", "pricing", "enterprise", "cloud"},
	},
	VerticalFinance: {
		keywords: []string{"loan", "mortgage", "credit", "investment", "insurance", "bank", "finance",
			"tax", "accounting", "financial", "advisor", "wealth", "retirement"},
		modifiers: []string{"rates", "calculator", "services", "planning"},
	},
	VerticalRealEstate: {
		keywords: []string{"home", "house", "property", "real estate", "realtor", "agent", "buy",
			"sell", "rent", "apartment", "condo", "listing", "mls"},
		modifiers: []string{"for sale", "for rent", "near me", "local"},
	},
	VerticalHomeServices: {
		keywords: []string{"plumber", "electrician", "hvac", "roofing", "contractor", "repair",
			"install", "maintenance", "service", "cleaning", "landscaping", "painting"},
		modifiers: []string{"near me", "local", "emergency", "residential", "commercial"},
	},
	VerticalMarketing: {
		keywords: []string{"seo", "marketing", "advertising", "ppc", "social media", "content",
			"brand", "agency", "campaign", "digital", "email", "conversion"},
		modifiers: []string{"services", "strategy", "agency", "consultant"},
	},
	VerticalDefense: {
		keywords: []string{"defense", "military", "aerospace", "government", "dod", "contractor",
			"security", "clearance", "weapons", "systems", "tactical", "intel",
			"cybersecurity", "satellite", "missiles", "naval", "army", "air force"},
		modifiers: []string{"contractor", "supplier", "solutions", "systems", "services"},
	},
	VerticalLocalBusiness: {
		keywords: []string{"near me", "local", "city", "town", "neighborhood", "community",
			"small business", "family owned", "locally owned", "shop local"},
		modifiers: []string{"near me", "in", "nearby", "around", "closest"},
	},
	VerticalManufacturing: {
		keywords: []string{"manufacturing", "factory", "production", "industrial", "fabrication",
			"assembly", "machining", "cnc", "oem", "supplier", "parts", "components",
			"custom", "precision", "tooling", "warehouse", "distribution"},
		modifiers: []string{"company", "services", "solutions", "supplier", "manufacturer"},
	},
}

// Known reports whether v has matching patterns.
func (v Vertical) Known() bool {
	_, ok := verticalPatterns[v]
	return ok
}

// Verticals lists every accepted vertical, including other.
func Verticals() []Vertical {
	return []Vertical{
		VerticalLegal, VerticalHealthcare, VerticalEcommerce, VerticalSaaS, VerticalFinance,
		VerticalRealEstate, VerticalHomeServices, VerticalMarketing, VerticalDefense,
		VerticalLocalBusiness, VerticalManufacturing, VerticalOther,
	}
}

// ValidVertical reports whether s names a vertical.
func ValidVertical(s string) bool {
	for _, v := range Verticals() {
		if string(v) == s {
			return true
		}
	}
	return false
}
