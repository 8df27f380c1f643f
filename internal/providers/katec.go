package providers

import "math"

// KATEC (TM128) is a transverse Mercator grid on the Bessel 1841 ellipsoid.
// Converting to WGS84 is an inverse projection followed by a three-parameter
// datum shift through earth-centred coordinates.
const (
	besselA  = 6377397.155
	besselF  = 1 / 299.1528128
	wgs84A   = 6378137.0
	wgs84F   = 1 / 298.257223563
	katecLat = 38.0
	katecLon = 128.0
	katecK0  = 0.9999
	katecFE  = 400000.0
	katecFN  = 600000.0
)

// Bessel to WGS84 translation in metres
var katecToWGS84 = [3]float64{-146.43, 507.89, 681.46}

type ellipsoid struct {
	a, e2 float64
}

var (
	bessel = ellipsoid{a: besselA, e2: 2*besselF - besselF*besselF}
	wgs84  = ellipsoid{a: wgs84A, e2: 2*wgs84F - wgs84F*wgs84F}
)

func rad(deg float64) float64 { return deg * math.Pi / 180 }
func deg(r float64) float64   { return r * 180 / math.Pi }

// meridianArc is the distance along the meridian from the equator to phi
func (el ellipsoid) meridianArc(phi float64) float64 {
	e2 := el.e2
	e4 := e2 * e2
	e6 := e4 * e2
	return el.a * ((1-e2/4-3*e4/64-5*e6/256)*phi -
		(3*e2/8+3*e4/32+45*e6/1024)*math.Sin(2*phi) +
		(15*e4/256+45*e6/1024)*math.Sin(4*phi) -
		(35*e6/3072)*math.Sin(6*phi))
}

// KATECToWGS84 converts KATEC easting/northing in metres to WGS84 degrees
func KATECToWGS84(x, y float64) (lat, lng float64) {
	el := bessel
	e2 := el.e2
	ep2 := e2 / (1 - e2)
	lat0, lon0 := rad(katecLat), rad(katecLon)

	m := el.meridianArc(lat0) + (y-katecFN)/katecK0
	mu := m / (el.a * (1 - e2/4 - 3*e2*e2/64 - 5*e2*e2*e2/256))
	e1 := (1 - math.Sqrt(1-e2)) / (1 + math.Sqrt(1-e2))
	phi1 := mu +
		(3*e1/2-27*math.Pow(e1, 3)/32)*math.Sin(2*mu) +
		(21*e1*e1/16-55*math.Pow(e1, 4)/32)*math.Sin(4*mu) +
		(151*math.Pow(e1, 3)/96)*math.Sin(6*mu) +
		(1097*math.Pow(e1, 4)/512)*math.Sin(8*mu)

	sin1, cos1, tan1 := math.Sin(phi1), math.Cos(phi1), math.Tan(phi1)
	c1 := ep2 * cos1 * cos1
	t1 := tan1 * tan1
	n1 := el.a / math.Sqrt(1-e2*sin1*sin1)
	r1 := el.a * (1 - e2) / math.Pow(1-e2*sin1*sin1, 1.5)
	d := (x - katecFE) / (n1 * katecK0)

	phi := phi1 - (n1*tan1/r1)*(d*d/2-
		(5+3*t1+10*c1-4*c1*c1-9*ep2)*math.Pow(d, 4)/24+
		(61+90*t1+298*c1+45*t1*t1-252*ep2-3*c1*c1)*math.Pow(d, 6)/720)
	lambda := lon0 + (d-
		(1+2*t1+c1)*math.Pow(d, 3)/6+
		(5-2*c1+28*t1-3*c1*c1+8*ep2+24*t1*t1)*math.Pow(d, 5)/120)/cos1

	return shiftDatum(phi, lambda, bessel, wgs84, katecToWGS84, 1)
}

// WGS84ToKATEC converts WGS84 degrees to KATEC easting/northing in metres
func WGS84ToKATEC(lat, lng float64) (x, y float64) {
	bLat, bLng := shiftDatum(rad(lat), rad(lng), wgs84, bessel, katecToWGS84, -1)
	phi, lambda := rad(bLat), rad(bLng)

	el := bessel
	e2 := el.e2
	ep2 := e2 / (1 - e2)
	lat0, lon0 := rad(katecLat), rad(katecLon)

	sinP, cosP, tanP := math.Sin(phi), math.Cos(phi), math.Tan(phi)
	n := el.a / math.Sqrt(1-e2*sinP*sinP)
	t := tanP * tanP
	c := ep2 * cosP * cosP
	a := (lambda - lon0) * cosP

	x = katecFE + katecK0*n*(a+
		(1-t+c)*math.Pow(a, 3)/6+
		(5-18*t+t*t+72*c-58*ep2)*math.Pow(a, 5)/120)
	y = katecFN + katecK0*(el.meridianArc(phi)-el.meridianArc(lat0)+
		n*tanP*(a*a/2+
			(5-t+9*c+4*c*c)*math.Pow(a, 4)/24+
			(61-58*t+t*t+600*c-330*ep2)*math.Pow(a, 6)/720))
	return x, y
}

// shiftDatum moves a geodetic position (radians) from one ellipsoid to another
// by translating its earth-centred coordinates by sign*shift. It returns degrees.
func shiftDatum(phi, lambda float64, from, to ellipsoid, shift [3]float64, sign float64) (lat, lng float64) {
	sinP, cosP := math.Sin(phi), math.Cos(phi)
	n := from.a / math.Sqrt(1-from.e2*sinP*sinP)
	x := n * cosP * math.Cos(lambda)
	y := n * cosP * math.Sin(lambda)
	z := n * (1 - from.e2) * sinP

	x += sign * shift[0]
	y += sign * shift[1]
	z += sign * shift[2]

	p := math.Hypot(x, y)
	lambda = math.Atan2(y, x)
	phi = math.Atan2(z, p*(1-to.e2))
	for i := 0; i < 10; i++ {
		s := math.Sin(phi)
		nn := to.a / math.Sqrt(1-to.e2*s*s)
		h := p/math.Cos(phi) - nn
		next := math.Atan2(z, p*(1-to.e2*nn/(nn+h)))
		if math.Abs(next-phi) < 1e-12 {
			phi = next
			break
		}
		phi = next
	}
	return deg(phi), deg(lambda)
}

// inKorea reports whether a WGS84 position falls in a box around the Korean peninsula
func inKorea(lat, lng float64) bool {
	return lat >= 32 && lat <= 39.5 && lng >= 123 && lng <= 132.5
}
