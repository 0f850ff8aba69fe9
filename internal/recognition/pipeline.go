package recognition

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"messenger-commerce/internal/llm"
	"messenger-commerce/internal/models"
)

// Config carries the acceptance thresholds. Both were tuned empirically and
// stay configurable rather than hard invariants.
type Config struct {
	VisualMatchThreshold float64 // tier 2 accepts strictly above this
	VisionScoreThreshold int     // tier 3 accepts strictly above this
	ImageFetchTimeout    time.Duration
}

func DefaultConfig() Config {
	return Config{
		VisualMatchThreshold: 92,
		VisionScoreThreshold: 30,
		ImageFetchTimeout:    10 * time.Second,
	}
}

// AcceptVisual applies the strict tier-2 rule: the best candidate below or
// at the threshold is still a miss.
func (c Config) AcceptVisual(score float64) bool {
	return score > c.VisualMatchThreshold
}

// AcceptVision applies the strict tier-3 rule.
func (c Config) AcceptVision(score int) bool {
	return score > c.VisionScoreThreshold
}

// Result is the shared contract of all three tiers.
type Result struct {
	Product    *models.Product
	Confidence float64
	Tier       int
	Method     string
	ImageHash  string
}

// VisionAnalyzer is the slice of the LLM client tier 3 needs.
type VisionAnalyzer interface {
	AnalyzeImage(ctx context.Context, imageURL, instructions string) (*llm.Result, error)
}

// UsageRecorder persists token usage for billing.
type UsageRecorder interface {
	RecordUsage(ctx context.Context, workspaceID uint, kind string, usage llm.Usage, success bool)
}

// Pipeline resolves a product image through three escalating tiers: exact
// hash lookup, visual-feature similarity, AI vision. A tier failing is not
// an error, it is the trigger to escalate.
type Pipeline struct {
	db     *gorm.DB
	vision VisionAnalyzer
	usage  UsageRecorder
	http   *http.Client
	cfg    Config
	log    *zap.Logger
}

func NewPipeline(db *gorm.DB, vision VisionAnalyzer, usage UsageRecorder, cfg Config, log *zap.Logger) *Pipeline {
	return &Pipeline{
		db:     db,
		vision: vision,
		usage:  usage,
		http:   &http.Client{Timeout: cfg.ImageFetchTimeout},
		cfg:    cfg,
		log:    log,
	}
}

// Match runs the tiers in order. A nil Product in the result means all
// tiers missed; the caller replies "not found" and stays in IDLE.
func (p *Pipeline) Match(ctx context.Context, imageURL string, workspaceID uint) (*Result, error) {
	data, err := p.fetchImage(ctx, imageURL)
	if err != nil {
		return nil, fmt.Errorf("image fetch failed: %w", err)
	}

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	// Tier 1: exact hash lookup.
	if product := p.lookupByHash(hash, workspaceID); product != nil {
		p.log.Info("image matched by hash", zap.Uint("product_id", product.ID))
		return &Result{Product: product, Confidence: 100, Tier: 1, Method: "hash", ImageHash: hash}, nil
	}

	var products []models.Product
	if err := p.db.Where("workspace_id = ?", workspaceID).Find(&products).Error; err != nil {
		return nil, err
	}

	// Tier 2: visual feature similarity.
	if result := p.matchVisual(data, products); result != nil {
		result.ImageHash = hash
		p.log.Info("image matched by visual features",
			zap.Uint("product_id", result.Product.ID), zap.Float64("score", result.Confidence))
		return result, nil
	}

	// Tier 3: AI vision.
	result, err := p.matchVision(ctx, imageURL, workspaceID, products)
	if err != nil {
		p.log.Warn("vision tier failed", zap.Error(err))
		return &Result{Tier: 3, Method: "vision", ImageHash: hash}, nil
	}
	result.ImageHash = hash
	return result, nil
}

func (p *Pipeline) fetchImage(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", imageURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image fetch returned %d", resp.StatusCode)
	}
	// 10 MB cap; Messenger images are far smaller.
	return io.ReadAll(io.LimitReader(resp.Body, 10<<20))
}

func (p *Pipeline) lookupByHash(hash string, workspaceID uint) *models.Product {
	var record models.ProductImageHash
	if err := p.db.Where("hash = ?", hash).First(&record).Error; err != nil {
		return nil
	}
	var product models.Product
	if err := p.db.Where("id = ? AND workspace_id = ?", record.ProductID, workspaceID).First(&product).Error; err != nil {
		return nil
	}
	return &product
}

func (p *Pipeline) matchVisual(data []byte, products []models.Product) *Result {
	input, err := ExtractFeatures(data)
	if err != nil {
		p.log.Debug("feature extraction failed", zap.Error(err))
		return nil
	}

	var best *models.Product
	var bestScore float64
	for i := range products {
		candidate, ok := storedFeatures(&products[i])
		if !ok {
			continue
		}
		score := VisualScore(*input, candidate)
		if score > bestScore {
			bestScore = score
			best = &products[i]
		}
	}

	if best == nil || !p.cfg.AcceptVisual(bestScore) {
		return nil
	}
	return &Result{Product: best, Confidence: bestScore, Tier: 2, Method: "visual"}
}

func (p *Pipeline) matchVision(ctx context.Context, imageURL string, workspaceID uint, products []models.Product) (*Result, error) {
	result, err := p.vision.AnalyzeImage(ctx, imageURL, visionInstructions)
	if err != nil {
		p.usage.RecordUsage(ctx, workspaceID, "vision", llm.Usage{}, false)
		return nil, err
	}
	p.usage.RecordUsage(ctx, workspaceID, "vision", result.Usage, true)

	attrs, err := ParseVisionAttributes(result.Text)
	if err != nil {
		return nil, err
	}

	var best *models.Product
	bestScore := 0
	for i := range products {
		score := ScoreProduct(attrs, &products[i])
		if score > bestScore {
			bestScore = score
			best = &products[i]
		}
	}

	if best == nil || !p.cfg.AcceptVision(bestScore) {
		return &Result{Tier: 3, Method: "vision"}, nil
	}
	return &Result{Product: best, Confidence: float64(bestScore), Tier: 3, Method: "vision"}, nil
}

// storedFeatures rebuilds a product's visual fingerprint from its columns.
func storedFeatures(product *models.Product) (VisualFeatures, bool) {
	if product.Colors == "" || product.AspectRatio == 0 {
		return VisualFeatures{}, false
	}
	var triples [][3]uint8
	if err := json.Unmarshal([]byte(product.Colors), &triples); err != nil || len(triples) == 0 {
		return VisualFeatures{}, false
	}
	features := VisualFeatures{AspectRatio: product.AspectRatio}
	for _, t := range triples {
		features.Colors = append(features.Colors, RGB{R: t[0], G: t[1], B: t[2]})
	}
	return features, true
}
