package marketmetrics

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"RiskPulse/internal/domain/models"
	"RiskPulse/internal/services/features"
	"RiskPulse/pkg/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeData struct {
	mu    sync.Mutex
	hist  map[string]models.PriceHistory
	fail  map[string]error
	calls map[string]int
}

func newFakeData() *fakeData {
	return &fakeData{hist: map[string]models.PriceHistory{}, fail: map[string]error{}, calls: map[string]int{}}
}

func (f *fakeData) Info(context.Context, string) (models.SymbolInfo, error) { return nil, nil }

func (f *fakeData) History(_ context.Context, symbol, _ string) (models.PriceHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[symbol]++
	if err := f.fail[symbol]; err != nil {
		return nil, err
	}
	return f.hist[symbol], nil
}

func (f *fakeData) count(symbol string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[symbol]
}

func series(vals ...float64) models.PriceHistory {
	h := make(models.PriceHistory, len(vals))
	for i, v := range vals {
		c := v
		h[i] = models.PricePoint{Time: time.Unix(int64(i)*86400, 0), Close: &c}
	}
	return h
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestRegimeBoundaries(t *testing.T) {
	tests := []struct {
		index float64
		want  models.MarketRegime
	}{
		{11.9, models.RegimeUltraLow},
		{12.0, models.RegimeLow},
		{15.9, models.RegimeLow},
		{16.0, models.RegimeNormal},
		{19.9, models.RegimeNormal},
		{20.0, models.RegimeHigh},
		{29.9, models.RegimeHigh},
		{30.0, models.RegimeExtreme},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Regime(tt.index), "index %.1f", tt.index)
	}
}

func TestScenarioLiveIndexNoAgentData(t *testing.T) {
	d := newFakeData()
	d.hist["^VIX"] = series(17.2, 18.5)
	d.fail["AAPL"] = errors.New("timeout")

	e := New(d)
	r := e.Compute(context.Background(), "AAPL", nil)

	assert.Equal(t, 18.5, r.VolatilityIndex)
	assert.Equal(t, models.SourceLive, r.IndexSource)
	assert.Equal(t, models.RegimeNormal, r.MarketRegime)
	assert.Equal(t, 25.0, r.AssetVolatility)
	// 14.8 + 15 + 7.5
	assert.Equal(t, 37, r.RiskIndex)
	assert.Equal(t, "LOW", e.RiskLevelDescription(r.RiskIndex))
}

func TestDivergenceComponent(t *testing.T) {
	agent := &models.AgentData{
		ConsensusPoints:    []string{"a", "b", "c"},
		DisagreementTopics: []string{"x"},
		CouncilOpinions: []string{
			"Bull (HIGH): strong trend",
			"Bear (MEDIUM): fading",
			"Quant (HIGH): momentum",
			"Macro (HIGH): rates",
			"Risk (HIGH): outlook unclear",
		},
	}
	assert.InDelta(t, 11.5, divergence(agent), 1e-9)
	assert.Equal(t, 15.0, divergence(nil))
}

func TestDivergenceIsCapped(t *testing.T) {
	agent := &models.AgentData{
		DisagreementTopics: []string{"x", "y"},
		CouncilOpinions:    []string{"LOW conviction"},
	}
	assert.Equal(t, 30.0, divergence(agent))
}

func TestDivergenceMarkersAreCaseSensitive(t *testing.T) {
	agent := &models.AgentData{CouncilOpinions: []string{"low", "Uncertain", "medium"}}
	assert.Equal(t, 0.0, divergence(agent))
}

func TestEmptyAgentDataScoresZeroDivergence(t *testing.T) {
	assert.Equal(t, 0.0, divergence(&models.AgentData{}))
}

func TestRiskIndexVolatilityComponent(t *testing.T) {
	// vol missing falls back to the index: 16 + 15 + 12
	assert.Equal(t, 43, RiskIndex(20, nil, 0))
	// 16 + 15 + 30 (capped)
	assert.Equal(t, 61, RiskIndex(20, nil, 150))
}

func TestRiskIndexAlwaysInRange(t *testing.T) {
	agents := []*models.AgentData{
		nil,
		{},
		{DisagreementTopics: []string{"a", "b", "c"}, CouncilOpinions: []string{"LOW", "unclear"}},
		{ConsensusPoints: []string{"a"}},
	}
	for index := 0.0; index <= 100; index += 2.5 {
		for vol := 0.0; vol <= 200; vol += 10 {
			for _, a := range agents {
				r := RiskIndex(index, a, vol)
				assert.GreaterOrEqual(t, r, 0)
				assert.LessOrEqual(t, r, 100)
			}
		}
	}
	assert.Equal(t, 0, RiskIndex(math.NaN(), &models.AgentData{}, math.NaN()))
	assert.Equal(t, 85, RiskIndex(1000, nil, 1000))
	assert.Equal(t, 100, RiskIndex(1000, &models.AgentData{DisagreementTopics: []string{"x"}}, 1000))
}

func TestIndexCachedForTTL(t *testing.T) {
	d := newFakeData()
	d.hist["^VIX"] = series(22)
	c := &clock{t: time.Date(2024, 5, 1, 14, 0, 0, 0, time.UTC)}
	e := New(d, WithClock(c.now))

	v, src := e.VolatilityIndex(context.Background())
	assert.Equal(t, 22.0, v)
	assert.Equal(t, models.SourceLive, src)

	d.hist["^VIX"] = series(35)
	c.advance(299 * time.Second)
	v, src = e.VolatilityIndex(context.Background())
	assert.Equal(t, 22.0, v)
	assert.Equal(t, models.SourceCache, src)
	assert.Equal(t, 1, d.count("^VIX"))

	c.advance(time.Second)
	v, src = e.VolatilityIndex(context.Background())
	assert.Equal(t, 35.0, v)
	assert.Equal(t, models.SourceLive, src)
	assert.Equal(t, 2, d.count("^VIX"))
}

func TestIndexCacheIsShared(t *testing.T) {
	d := newFakeData()
	d.hist["^VIX"] = series(18)
	shared := cache.NewTTL[float64](300 * time.Second)

	first := New(d, WithIndexCache(shared))
	v, src := first.VolatilityIndex(context.Background())
	assert.Equal(t, 18.0, v)
	assert.Equal(t, models.SourceLive, src)

	second := New(d, WithIndexCache(shared))
	v, src = second.VolatilityIndex(context.Background())
	assert.Equal(t, 18.0, v)
	assert.Equal(t, models.SourceCache, src)
	assert.Equal(t, 1, d.count("^VIX"))
}

func TestIndexFallsBackToProxy(t *testing.T) {
	d := newFakeData()
	d.fail["^VIX"] = errors.New("404")
	d.hist["SPY"] = series(500, 505, 498, 502, 510, 507, 503)

	e := New(d)
	v, src := e.VolatilityIndex(context.Background())

	vol, ok := features.AnnualizedVolatility(features.PctReturns(d.hist["SPY"]))
	require.True(t, ok)
	assert.Equal(t, models.SourceProxy, src)
	assert.InDelta(t, vol*1.5, v, 1e-9)

	// proxy estimates are not cached
	_, src = e.VolatilityIndex(context.Background())
	assert.Equal(t, models.SourceProxy, src)
	assert.Equal(t, 2, d.count("^VIX"))
}

func TestIndexEmptyLiveHistoryFallsThrough(t *testing.T) {
	d := newFakeData()
	d.hist["^VIX"] = models.PriceHistory{{Time: time.Now()}}
	d.hist["SPY"] = series(500, 505, 498)

	_, src := New(d).VolatilityIndex(context.Background())
	assert.Equal(t, models.SourceProxy, src)
}

func TestIndexDefaultsWhenEverythingFails(t *testing.T) {
	d := newFakeData()
	d.fail["^VIX"] = errors.New("down")
	d.fail["SPY"] = errors.New("down")

	v, src := New(d).VolatilityIndex(context.Background())
	assert.Equal(t, 20.0, v)
	assert.Equal(t, models.SourceDefault, src)
}

func TestRealizedVolatility(t *testing.T) {
	d := newFakeData()
	d.hist["MSFT"] = series(400, 404, 399, 402, 410, 405)
	d.hist["THIN"] = series(10, 11, 12, 13, 14)

	e := New(d)
	want, ok := features.RealizedVolatility(d.hist["MSFT"], 6)
	require.True(t, ok)
	assert.InDelta(t, want, e.RealizedVolatility(context.Background(), "MSFT"), 1e-9)
	assert.Equal(t, 25.0, e.RealizedVolatility(context.Background(), "THIN"))
	assert.Equal(t, 25.0, e.RealizedVolatility(context.Background(), "NONE"))
}

func TestAllMetricsRounds(t *testing.T) {
	d := newFakeData()
	d.hist["^VIX"] = series(18.456)
	d.hist["AAPL"] = series(100, 101.3, 99.7, 102.1, 100.4, 103.9)

	e := New(d)
	r := e.AllMetrics(context.Background(), "AAPL", nil)
	assert.Equal(t, 18.46, r.VolatilityIndex)
	assert.Equal(t, math.Round(r.AssetVolatility*100)/100, r.AssetVolatility)
}

func TestSnapshotLabels(t *testing.T) {
	e := New(newFakeData())
	s := e.Snapshot(models.MetricsResult{MarketRegime: models.RegimeExtreme, RiskIndex: 85})
	assert.Equal(t, "VERY HIGH", s.RiskLevel)
	assert.Equal(t, "#cc0000", s.RegimeColor)
}

func TestStaticLookups(t *testing.T) {
	e := New(newFakeData())
	levels := map[int]string{0: "VERY LOW", 19: "VERY LOW", 20: "LOW", 39: "LOW", 40: "MODERATE", 60: "HIGH", 79: "HIGH", 80: "VERY HIGH", 100: "VERY HIGH"}
	for idx, want := range levels {
		assert.Equal(t, want, e.RiskLevelDescription(idx), "index %d", idx)
	}
	assert.Equal(t, "#44ff88", e.RegimeColor(models.RegimeUltraLow))
	assert.Equal(t, "#ffd700", e.RegimeColor(models.RegimeNormal))
	assert.Equal(t, "#8899aa", e.RegimeColor("SIDEWAYS"))
}

func TestConcurrentCompute(t *testing.T) {
	d := newFakeData()
	d.hist["^VIX"] = series(18)
	e := New(d)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := e.Compute(context.Background(), "SPY", nil)
			assert.Equal(t, 18.0, r.VolatilityIndex)
		}()
	}
	wg.Wait()
}
