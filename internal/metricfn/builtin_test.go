package metricfn

import (
	"testing"

	"midasnode/internal/catalog"
)

func TestMean(t *testing.T) {
	data := catalog.ChannelData{Values: [][]float64{{1, 2, 3, 4}}}
	result, err := Mean(data)
	if err != nil {
		t.Fatalf("Mean returned error: %v", err)
	}
	if result.(float64) != 2.5 {
		t.Fatalf("Mean() = %v, want 2.5", result)
	}
}

func TestMeanRequiresChannel(t *testing.T) {
	_, err := Mean(catalog.ChannelData{})
	if err == nil {
		t.Fatal("expected error for missing channel")
	}
}

func TestRMSUnscaled(t *testing.T) {
	data := catalog.ChannelData{Values: [][]float64{{3, 4}}}
	result, err := RMS(data)
	if err != nil {
		t.Fatalf("RMS returned error: %v", err)
	}
	got := result.(float64)
	want := 3.5355339059327378 // sqrt((9+16)/2)
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("RMS() = %v, want %v", got, want)
	}
}

func TestRMSScaled(t *testing.T) {
	data := catalog.ChannelData{Values: [][]float64{{3, 4}}}
	result, err := RMS(data, catalog.NewNumberParam(2))
	if err != nil {
		t.Fatalf("RMS returned error: %v", err)
	}
	got := result.(float64)
	want := 2 * 3.5355339059327378
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("RMS() scaled = %v, want %v", got, want)
	}
}
