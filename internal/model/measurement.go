package model

import "strconv"

// Measurement is a metric value that may not exist yet. A zero Measurement is NoData,
// which is never the same as a measured zero.
type Measurement struct {
	Value float64
	OK    bool
}

// NoData is the measurement used when there aren't samples to compute a value.
var NoData = Measurement{}

// Measured returns a valid measurement with the value.
func Measured(v float64) Measurement { return Measurement{Value: v, OK: true} }

// OrZero returns the value or zero when there is no data.
func (m Measurement) OrZero() float64 {
	if !m.OK {
		return 0
	}
	return m.Value
}

// Format formats the value with prec decimals, or returns noData.
func (m Measurement) Format(prec int, noData string) string {
	if !m.OK {
		return noData
	}
	return strconv.FormatFloat(m.Value, 'f', prec, 64)
}

func (m Measurement) String() string { return m.Format(2, "n/a") }
