// Package simulate generates realistic accelerometer traffic for exercising
// the detection pipeline without hardware: a random-walk drive model plus
// Gaussian-enveloped pothole waveforms injected into a smooth-road stream.
package simulate

import (
	"math"
	"math/rand"
)

const (
	earthRadiusM = 6_371_000
	// Smooth road sits around 1 g with a few percent of jitter.
	baselineMg     = 1000
	baselineJitter = 0.05
)

// Device is one simulated vehicle: position, heading and speed evolve by
// random walk the way the server-side simulator drives its fake fleet.
type Device struct {
	Lat        float64
	Lon        float64
	BearingDeg float64
	SpeedMps   float64

	rng *rand.Rand
}

// NewDevice creates a device at the given position with a random heading and
// urban driving speed.
func NewDevice(lat, lon float64, seed int64) *Device {
	rng := rand.New(rand.NewSource(seed))
	return &Device{
		Lat:        lat,
		Lon:        lon,
		BearingDeg: rng.Float64() * 360,
		SpeedMps:   8 + rng.Float64()*14, // 30-80 km/h
		rng:        rng,
	}
}

// Step advances the drive model by dt seconds: drift the bearing, wander the
// speed, move the position.
func (d *Device) Step(dt float64) {
	d.BearingDeg += d.rng.Float64()*20 - 10
	for d.BearingDeg < 0 {
		d.BearingDeg += 360
	}
	for d.BearingDeg >= 360 {
		d.BearingDeg -= 360
	}

	d.SpeedMps += d.rng.Float64()*2 - 1
	if d.SpeedMps < 2 {
		d.SpeedMps = 2
	}
	if d.SpeedMps > 33 {
		d.SpeedMps = 33
	}

	dist := d.SpeedMps * dt
	rad := d.BearingDeg * math.Pi / 180
	d.Lat += dist * math.Cos(rad) / earthRadiusM * 180 / math.Pi
	d.Lon += dist * math.Sin(rad) / (earthRadiusM * math.Cos(d.Lat*math.Pi/180)) * 180 / math.Pi
}

// SmoothMagnitude returns one smooth-road sample: the 1 g baseline within a
// few percent of jitter, never enough to trigger detection.
func (d *Device) SmoothMagnitude() int32 {
	jitter := 1 + (d.rng.Float64()*2-1)*baselineJitter
	return int32(math.Round(baselineMg * jitter))
}

// HitPeakMg draws a plausible peak magnitude for the given severity tier,
// matching the distribution the fleet simulator uses.
func (d *Device) HitPeakMg(severity int) int32 {
	switch severity {
	case 1:
		return int32(2000 + d.rng.Intn(1000))
	case 2:
		return int32(3000 + d.rng.Intn(2000))
	default:
		return int32(5000 + d.rng.Intn(3000))
	}
}

// RandomSeverity draws a severity tier weighted toward minor hits
// (60/30/10), as observed in real traffic.
func (d *Device) RandomSeverity() int {
	r := d.rng.Intn(100)
	switch {
	case r < 60:
		return 1
	case r < 90:
		return 2
	default:
		return 3
	}
}

// Waveform builds a Gaussian-enveloped pothole waveform of n samples rising
// from the road baseline to peakMg and back, with sensor noise.
func (d *Device) Waveform(peakMg int32, n int) []int32 {
	waveform := make([]int32, n)
	mid := n / 2
	sigma := math.Max(float64(mid)*0.4, 1)
	for i := range waveform {
		dist := float64(i - mid)
		factor := math.Exp(-0.5 * (dist / sigma) * (dist / sigma))
		noise := float64(d.rng.Intn(201) - 100)
		waveform[i] = int32(baselineMg + float64(peakMg-baselineMg)*factor + noise)
	}
	return waveform
}
