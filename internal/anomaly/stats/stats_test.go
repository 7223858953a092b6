package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMean(t *testing.T) {
	assert.Equal(t, 0.0, Mean(nil))
	assert.Equal(t, 5.0, Mean([]float64{5}))
	assert.Equal(t, 2.5, Mean([]float64{1, 2, 3, 4}))
}

func TestStdDev(t *testing.T) {
	assert.Equal(t, 0.0, StdDev(nil))
	assert.Equal(t, 0.0, StdDev([]float64{7, 7, 7}))
	// Population std dev of {2,4,4,4,5,5,7,9} is exactly 2.
	assert.InDelta(t, 2.0, StdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9}), 1e-9)
}

func TestMedian(t *testing.T) {
	assert.Equal(t, 0.0, Median(nil))
	assert.Equal(t, 3.0, Median([]float64{5, 1, 3}))
	assert.Equal(t, 2.5, Median([]float64{4, 1, 2, 3}))
	// Input is not mutated.
	values := []float64{9, 1, 5}
	Median(values)
	assert.Equal(t, []float64{9, 1, 5}, values)
}

func TestQuartiles(t *testing.T) {
	q1, q3 := Quartiles(nil)
	assert.Equal(t, 0.0, q1)
	assert.Equal(t, 0.0, q3)

	// Even length: halves split cleanly.
	q1, q3 = Quartiles([]float64{1, 2, 3, 4, 5, 6, 7, 8})
	assert.Equal(t, 2.5, q1)
	assert.Equal(t, 6.5, q3)

	// Odd length: the median element belongs to neither half.
	q1, q3 = Quartiles([]float64{1, 2, 3, 4, 5, 6, 7})
	assert.Equal(t, 2.0, q1)
	assert.Equal(t, 6.0, q3)
}

func TestIQR(t *testing.T) {
	assert.Equal(t, 0.0, IQR(nil))
	assert.Equal(t, 4.0, IQR([]float64{1, 2, 3, 4, 5, 6, 7, 8}))
}

func TestMAD(t *testing.T) {
	assert.Equal(t, 0.0, MAD(nil))
	assert.Equal(t, 0.0, MAD([]float64{4, 4, 4}))
	// Median 3, absolute deviations {2,1,0,1,5}, median deviation 1.
	assert.Equal(t, 1.0, MAD([]float64{1, 3, 2, 4, 8}))
}
