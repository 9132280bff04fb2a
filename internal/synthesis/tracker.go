package synthesis

import "sync"

// CostRates converts token and image usage into money. Token rates are USD
// per million tokens; ImageCallUSD is the flat price of one image call.
type CostRates struct {
	InputTokenUSDPerM  float64
	OutputTokenUSDPerM float64
	ImageCallUSD       float64
}

// CostTracker accumulates cost and progress for one run. It is the only
// object mutated by concurrent calls within a bisection level, so every
// update is additive under the mutex. The counters never decrease within a
// run; a new run gets a fresh tracker.
type CostTracker struct {
	mu      sync.Mutex
	rates   CostRates
	costUSD float64
	steps   int
}

func NewCostTracker(rates CostRates) *CostTracker {
	return &CostTracker{rates: rates}
}

func (t *CostTracker) AddTokenUsage(promptTokens, completionTokens int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.costUSD += float64(promptTokens) / 1e6 * t.rates.InputTokenUSDPerM
	t.costUSD += float64(completionTokens) / 1e6 * t.rates.OutputTokenUSDPerM
}

func (t *CostTracker) AddImageCalls(count int) {
	if count <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.costUSD += float64(count) * t.rates.ImageCallUSD
}

// StepCompleted advances the progress counter: one step per resolved frame
// plus one for the planning call.
func (t *CostTracker) StepCompleted() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.steps++
}

func (t *CostTracker) Snapshot() (costUSD float64, steps int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.costUSD, t.steps
}
