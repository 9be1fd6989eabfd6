// Package metricfn provides the example metric functions registered
// against a node's catalog at start-up.
package metricfn

import (
	"fmt"
	"math"
	"math/rand"

	"midasnode/internal/catalog"
)

// Test is the toy metric from the original node: it ignores its channel
// data and returns one of two fixed outcomes.
func Test(data catalog.ChannelData, params ...catalog.Param) (interface{}, error) {
	choices := []string{"ping", "pong"}
	return choices[rand.Intn(len(choices))], nil
}

// Mean returns the arithmetic mean of the first requested channel.
func Mean(data catalog.ChannelData, params ...catalog.Param) (interface{}, error) {
	if len(data.Values) < 1 {
		return nil, fmt.Errorf("mean() requires 1 channel, got %d", len(data.Values))
	}
	vals := data.Values[0]
	if len(vals) == 0 {
		return 0.0, nil
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals)), nil
}

// RMS returns the root-mean-square of the first requested channel,
// optionally scaled by a numeric extra parameter.
func RMS(data catalog.ChannelData, params ...catalog.Param) (interface{}, error) {
	if len(data.Values) < 1 {
		return nil, fmt.Errorf("rms() requires 1 channel, got %d", len(data.Values))
	}
	vals := data.Values[0]
	if len(vals) == 0 {
		return 0.0, nil
	}
	var sumSq float64
	for _, v := range vals {
		sumSq += v * v
	}
	rms := math.Sqrt(sumSq / float64(len(vals)))

	scale := 1.0
	if len(params) > 0 && params[0].IsNum {
		scale = params[0].Number
	}
	return rms * scale, nil
}
