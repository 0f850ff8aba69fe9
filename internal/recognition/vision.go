package recognition

import (
	"encoding/json"
	"fmt"
	"strings"

	"messenger-commerce/internal/models"
)

// VisionAttributes is the structured description tier 3 requests from the
// vision model.
type VisionAttributes struct {
	Category string   `json:"category"`
	Color    string   `json:"color"`
	Material string   `json:"material"`
	Keywords []string `json:"keywords"`
	Brand    string   `json:"brand"`
}

const visionInstructions = `Describe the product in this photo as JSON only:
{"category": "product type e.g. punjabi/shirt/saree/shoe", "color": "main color", "material": "fabric or material if visible", "keywords": ["distinctive", "visual", "keywords"], "brand": "any brand name or text visible, else empty"}`

// ParseVisionAttributes decodes the vision model's JSON description.
func ParseVisionAttributes(raw string) (*VisionAttributes, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")

	var attrs VisionAttributes
	if err := json.Unmarshal([]byte(strings.TrimSpace(cleaned)), &attrs); err != nil {
		return nil, fmt.Errorf("vision response is not valid JSON: %w", err)
	}
	return &attrs, nil
}

// Keyword-overlap scoring weights. The precomputed path rewards curated
// keyword hits more than the raw-field fallback does.
const (
	scoreCategory        = 10
	scoreColor           = 15
	scoreKeywordCurated  = 12
	scoreKeywordFallback = 5
	scoreBrand           = 20
)

// ScoreProduct awards points for overlap between the vision attributes and
// a product. Products with a precomputed keyword list use the curated
// weights; others fall back to raw name/description matching.
func ScoreProduct(attrs *VisionAttributes, product *models.Product) int {
	keywords := productKeywords(product)
	if len(keywords) > 0 {
		return scoreAgainstKeywords(attrs, product, keywords, scoreKeywordCurated)
	}

	// Fallback: score against raw name + description words.
	raw := strings.Fields(strings.ToLower(product.Name + " " + product.Description))
	seen := map[string]bool{}
	var fallback []string
	for _, word := range raw {
		if len(word) > 2 && !seen[word] {
			seen[word] = true
			fallback = append(fallback, word)
		}
	}
	return scoreAgainstKeywords(attrs, product, fallback, scoreKeywordFallback)
}

func scoreAgainstKeywords(attrs *VisionAttributes, product *models.Product, keywords []string, perKeyword int) int {
	score := 0

	category := strings.ToLower(attrs.Category)
	if category != "" && (containsFold(product.Category, category) || containsFold(product.Name, category)) {
		score += scoreCategory
	}

	color := strings.ToLower(attrs.Color)
	if color != "" && (containsAnyFold(keywords, color) || containsFold(product.Name, color) || containsFold(product.Description, color)) {
		score += scoreColor
	}

	for _, kw := range attrs.Keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if containsAnyFold(keywords, kw) {
			score += perKeyword
		}
	}

	brand := strings.ToLower(attrs.Brand)
	if brand != "" && (containsFold(product.Brand, brand) || containsFold(product.Name, brand)) {
		score += scoreBrand
	}

	return score
}

// productKeywords parses the product's precomputed keyword list; empty on
// any decode problem so scoring falls back to raw fields.
func productKeywords(product *models.Product) []string {
	if product.Keywords == "" {
		return nil
	}
	var keywords []string
	if err := json.Unmarshal([]byte(product.Keywords), &keywords); err != nil {
		return nil
	}
	return keywords
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), needle)
}

func containsAnyFold(list []string, needle string) bool {
	for _, item := range list {
		item = strings.ToLower(item)
		if strings.Contains(item, needle) || strings.Contains(needle, item) {
			return true
		}
	}
	return false
}
