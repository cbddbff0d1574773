package util

import (
	"testing"
)

func TestNewStats(t *testing.T) {
	s := NewStats([]float64{2, 4, 4, 4, 5, 5, 7, 9})

	if s.Mean != 5 {
		t.Errorf("Expected mean 5, got %f", s.Mean)
	}
	if s.StdDeviation != 2 {
		t.Errorf("Expected std deviation 2, got %f", s.StdDeviation)
	}
	if s.Min != 2 || s.Max != 9 {
		t.Errorf("Expected min 2 and max 9, got %f and %f", s.Min, s.Max)
	}

	if empty := NewStats(nil); empty != (Stats{}) {
		t.Errorf("Expected zero stats for no values, got %+v", empty)
	}
}

func TestNewDistributionStats(t *testing.T) {
	even := NewDistributionStats([]float64{10, 10, 10, 10})
	if even.DistributionQuality != 1 {
		t.Errorf("Expected quality 1 for an even distribution, got %f", even.DistributionQuality)
	}

	skewed := NewDistributionStats([]float64{0, 0, 0, 40})
	if skewed.DistributionQuality >= even.DistributionQuality {
		t.Errorf("Expected a skewed distribution to rate lower, got %f", skewed.DistributionQuality)
	}
}

func TestSizeHistogram(t *testing.T) {
	h := NewSizeHistogram()
	if h.MedianEstimate() != 0 || h.AverageSize() != 0 {
		t.Errorf("Expected zero estimates for an empty histogram")
	}

	for i := 0; i < 90; i++ {
		h.AddSample(10) // first bucket
	}
	for i := 0; i < 10; i++ {
		h.AddSample(1000) // 256..1024 bucket
	}

	if h.Count() != 100 {
		t.Errorf("Expected 100 samples, got %d", h.Count())
	}
	if h.AverageSize() != 109 {
		t.Errorf("Expected average 109, got %d", h.AverageSize())
	}
	if h.MedianEstimate() != 8 {
		t.Errorf("Expected median estimate 8, got %d", h.MedianEstimate())
	}
	if p := h.GetPercentileEstimate(99); p != 640 {
		t.Errorf("Expected p99 estimate 640, got %d", p)
	}

	h.AddSample(sizeBoundaries[len(sizeBoundaries)-1] + 1)
	if p := h.GetPercentileEstimate(100); p != sizeBoundaries[len(sizeBoundaries)-1]*2 {
		t.Errorf("Expected the overflow bucket estimate, got %d", p)
	}
}
