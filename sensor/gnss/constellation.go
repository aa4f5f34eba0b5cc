// Package gnss simulates a satellite positioning receiver. A synthetic
// GPS-like constellation is generated as two-line element sets at start-up
// and propagated with SGP4; the number of satellites above the elevation
// mask decides whether the receiver has a fix and how good it is.
package gnss

import (
	"fmt"
	"math"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/signalsfoundry/geolocator/geo"
)

// Walker-style 24/6/1 constellation in roughly 12 hour orbits.
const (
	planes          = 6
	satsPerPlane    = 4
	inclinationDeg  = 55.0
	eccentricity    = 0.0001
	meanMotionRevs  = 2.00561 // revolutions per day
	planePhasingDeg = 15.0
)

// Satellite is one constellation member and its element set.
type Satellite struct {
	PRN   int
	Line1 string
	Line2 string

	sat satellite.Satellite
}

// Constellation propagates a fixed set of satellites.
type Constellation struct {
	epoch time.Time
	sats  []Satellite
}

// NewConstellation generates the constellation with element sets at epoch.
func NewConstellation(epoch time.Time) *Constellation {
	epoch = epoch.UTC()
	c := &Constellation{epoch: epoch}
	for p := 0; p < planes; p++ {
		raan := float64(p) * 360.0 / planes
		for k := 0; k < satsPerPlane; k++ {
			prn := p*satsPerPlane + k + 1
			anomaly := math.Mod(float64(k)*360.0/satsPerPlane+float64(p)*planePhasingDeg, 360)
			l1, l2 := tleLines(prn, epoch, raan, anomaly)
			c.sats = append(c.sats, Satellite{
				PRN:   prn,
				Line1: l1,
				Line2: l2,
				sat:   satellite.TLEToSat(l1, l2, satellite.GravityWGS72),
			})
		}
	}
	return c
}

// Epoch returns the element set epoch.
func (c *Constellation) Epoch() time.Time { return c.epoch }

// Satellites returns the constellation members.
func (c *Constellation) Satellites() []Satellite {
	return append([]Satellite(nil), c.sats...)
}

// Positions returns every satellite's ECEF position in kilometres at t.
// Satellites whose propagation fails are omitted.
func (c *Constellation) Positions(t time.Time) []geo.Vec3 {
	t = t.UTC()
	year, month, day := t.Date()
	hour, min, sec := t.Clock()
	gmst := satellite.ThetaG_JD(satellite.JDay(year, int(month), day, hour, min, sec))

	out := make([]geo.Vec3, 0, len(c.sats))
	for _, s := range c.sats {
		eci, _ := satellite.Propagate(s.sat, year, int(month), day, hour, min, sec)
		ecef := satellite.ECIToECEF(eci, gmst)
		v := geo.Vec3{X: ecef.X, Y: ecef.Y, Z: ecef.Z}
		if v.Norm() == 0 || math.IsNaN(v.Norm()) {
			continue
		}
		out = append(out, v)
	}
	return out
}

// Visible counts satellites above maskDeg as seen from observer at t.
func (c *Constellation) Visible(observer geo.Vec3, t time.Time, maskDeg float64) int {
	n := 0
	for _, pos := range c.Positions(t) {
		if geo.ElevationDegrees(observer, pos) >= maskDeg {
			n++
		}
	}
	return n
}

func tleLines(prn int, epoch time.Time, raan, anomaly float64) (string, string) {
	yearStart := time.Date(epoch.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	dayOfYear := 1 + epoch.Sub(yearStart).Hours()/24

	line1 := fmt.Sprintf("1 %05dU %-8s %02d%012.8f  .00000000  00000-0  00000-0 0  999",
		prn, fmt.Sprintf("26%03dA", prn), epoch.Year()%100, dayOfYear)
	line2 := fmt.Sprintf("2 %05d %8.4f %8.4f %07d %8.4f %8.4f %11.8f%05d",
		prn, inclinationDeg, raan, int(math.Round(eccentricity*1e7)), 0.0, anomaly, meanMotionRevs, 0)
	return line1 + checksum(line1), line2 + checksum(line2)
}

// checksum is the modulo-10 TLE line checksum: digits count at face value
// and minus signs count as one.
func checksum(line string) string {
	sum := 0
	for _, r := range line {
		switch {
		case r >= '0' && r <= '9':
			sum += int(r - '0')
		case r == '-':
			sum++
		}
	}
	return fmt.Sprintf("%d", sum%10)
}
