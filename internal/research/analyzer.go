package research

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"
)

// Scenario labels.
const (
	ScenarioBull = "BULL"
	ScenarioBase = "BASE"
	ScenarioBear = "BEAR"
)

// Primary trends.
const (
	TrendAccumulation = "ACCUMULATION"
	TrendDistribution = "DISTRIBUTION"
)

type Scenario struct {
	Name        string `json:"name"`
	Probability int    `json:"probability"`
	Logic       string `json:"logic"`
}

type StructuralNote struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Breakdown is the structural read of one chart image.
type Breakdown struct {
	AssetDetected   string           `json:"asset_detected"`
	PrimaryTrend    string           `json:"primary_trend"`
	Scenarios       []Scenario       `json:"scenarios"`
	StructuralLogic []StructuralNote `json:"structural_logic"`
	ConfidenceScore int              `json:"confidence_score"`
}

// Image is an uploaded chart.
type Image struct {
	Filename    string
	ContentType string
	Data        []byte
}

// VisionAnalyzer reads a chart image.
type VisionAnalyzer interface {
	Analyze(ctx context.Context, img Image) (Breakdown, error)
}

type scenarioSpec struct {
	kind     string
	min, max int
	logic    string
}

var mockScenarios = []scenarioSpec{
	{ScenarioBull, 30, 60, "Demand zone at current levels verified by volume expansion. RSI indicates bullish divergence."},
	{ScenarioBase, 20, 40, "Consolidation within the mid-range. Awaiting confirmation of either break above or below the value area."},
	{ScenarioBear, 10, 30, "Failure to hold the 50-day EMA would signal a transition to a distribution phase."},
}

var mockStructure = []StructuralNote{
	{Title: "VOLUME_PROFILE", Content: "Developing value area identified. Point of control acting as magnet."},
	{Title: "PRICE_ACTION", Content: "HH-HL structure detected on the selected timeframe."},
}

// MockAnalyzer draws probabilities from a seeded source; the image bytes are
// not inspected.
type MockAnalyzer struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewMockAnalyzer seeds from the clock when seed is 0.
func NewMockAnalyzer(seed int64) *MockAnalyzer {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &MockAnalyzer{rng: rand.New(rand.NewSource(seed))}
}

func (m *MockAnalyzer) Analyze(ctx context.Context, _ Image) (Breakdown, error) {
	if err := ctx.Err(); err != nil {
		return Breakdown{}, err
	}
	m.mu.Lock()
	scenarios := make([]Scenario, 0, len(mockScenarios))
	for _, spec := range mockScenarios {
		scenarios = append(scenarios, Scenario{
			Name:        spec.kind,
			Probability: m.between(spec.min, spec.max),
			Logic:       spec.logic,
		})
	}
	confidence := m.between(75, 95)
	m.mu.Unlock()

	sort.SliceStable(scenarios, func(i, j int) bool {
		return scenarios[i].Probability > scenarios[j].Probability
	})
	trend := TrendDistribution
	if scenarios[0].Name == ScenarioBull {
		trend = TrendAccumulation
	}
	return Breakdown{
		AssetDetected:   "CHART_VISUAL",
		PrimaryTrend:    trend,
		Scenarios:       scenarios,
		StructuralLogic: append([]StructuralNote(nil), mockStructure...),
		ConfidenceScore: confidence,
	}, nil
}

// between returns an int in [lo, hi].
func (m *MockAnalyzer) between(lo, hi int) int {
	return lo + m.rng.Intn(hi-lo+1)
}
