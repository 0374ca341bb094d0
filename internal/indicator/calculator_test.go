package indicator

import (
	"math"
	"testing"
)

func TestCompute_RisingSeriesSaturatesRSI(t *testing.T) {
	calc := NewCalculator(DefaultConfig())
	prices := make([]float64, 40)
	for i := range prices {
		prices[i] = 100 + float64(i)
	}

	bands, err := calc.Compute(prices)
	if err != nil {
		t.Fatalf("Compute returned error: %v", err)
	}
	if bands.Warmup != 19 {
		t.Fatalf("expected warmup 19, got %d", bands.Warmup)
	}
	for i := bands.Warmup; i < bands.Len(); i++ {
		if math.Abs(bands.RSI[i]-100) > 1e-9 {
			t.Fatalf("expected RSI 100 at %d, got %f", i, bands.RSI[i])
		}
		if !(bands.Upper[i] > bands.Middle[i] && bands.Middle[i] > bands.Lower[i]) {
			t.Fatalf("band order invalid at %d: %f %f %f", i, bands.Upper[i], bands.Middle[i], bands.Lower[i])
		}
	}
}

func TestCompute_NoLookAhead(t *testing.T) {
	calc := NewCalculator(Config{RSIPeriod: 5, BollingerPeriod: 6, BollingerStdDev: 2})
	prices := []float64{10, 12, 11, 13, 15, 14, 13, 16, 18, 17, 15, 14, 19, 21, 20}

	full, err := calc.Compute(prices)
	if err != nil {
		t.Fatalf("Compute returned error: %v", err)
	}

	for end := calc.Warmup() + 1; end <= len(prices); end++ {
		prefix, err := calc.Compute(prices[:end])
		if err != nil {
			t.Fatalf("Compute prefix %d returned error: %v", end, err)
		}
		i := end - 1
		if prefix.RSI[i] != full.RSI[i] || prefix.Upper[i] != full.Upper[i] || prefix.Lower[i] != full.Lower[i] {
			t.Fatalf("value at %d depends on later prices", i)
		}
	}
}

func TestCompute_TooShort(t *testing.T) {
	calc := NewCalculator(DefaultConfig())
	if _, err := calc.Compute(make([]float64, 19)); err == nil {
		t.Fatal("expected error for short series")
	}
}

func TestBands_Flags(t *testing.T) {
	b := Bands{
		Upper: []float64{110, 100},
		Lower: []float64{90, 100},
	}
	if !b.Overbought(0, 111) || b.Oversold(0, 111) {
		t.Errorf("expected overbought only above the upper band")
	}
	if !b.Oversold(0, 90) {
		t.Errorf("expected oversold at the lower band")
	}
	if got := b.Position(0, 100); got != 0.5 {
		t.Errorf("expected %%B 0.5, got %f", got)
	}
	if b.Overbought(1, 100) || b.Oversold(1, 100) || b.Position(1, 100) != 0 {
		t.Errorf("collapsed band must not raise flags")
	}
}

func TestNewCalculator_FallsBackToDefaults(t *testing.T) {
	calc := NewCalculator(Config{})
	if calc.Config() != DefaultConfig() {
		t.Fatalf("expected default config, got %+v", calc.Config())
	}
}
