package skycore

import "math"

// planetElements are the JPL "Keplerian elements for approximate positions of the major planets"
// (valid 1800 AD - 2050 AD), referred to the J2000 ecliptic and equinox. Rates are per century.
type planetElements struct {
	a, e, i, L, ϖ, Ω       float64 // AU, -, degrees
	da, de, di, dL, dϖ, dΩ float64
}

var planetTable = map[PositionFunc]planetElements{
	FuncMercury: {0.38709843, 0.20563661, 7.00559432, 252.25166724, 77.45771895, 48.33961819,
		0.00000000, 0.00002123, -0.00590158, 149472.67486623, 0.15940013, -0.12214182},
	FuncVenus: {0.72333566, 0.00677672, 3.39467605, 181.97970850, 131.76755713, 76.67984255,
		0.00000390, -0.00004107, -0.00078890, 58517.81538729, 0.05679648, -0.27769418},
	FuncEarth: {1.00000261, 0.01671123, -0.00001531, 100.46457166, 102.93768193, 0.0,
		0.00000562, -0.00004392, -0.01294668, 35999.37306329, 0.32327364, 0.0},
	FuncMars: {1.52371034, 0.09339410, 1.84969142, -4.55343205, -23.94362959, 49.55953891,
		0.00001847, 0.00007882, -0.00813131, 19140.30268499, 0.44441088, -0.29257343},
	FuncJupiter: {5.20288700, 0.04838624, 1.30439695, 34.39644051, 14.72847983, 100.47390909,
		-0.00011607, -0.00013253, -0.00183714, 3034.74612775, 0.21252668, 0.20469106},
	FuncSaturn: {9.53667594, 0.05386179, 2.48599187, 49.95424423, 92.59887831, 113.66242448,
		-0.00125060, -0.00050991, 0.00193609, 1222.49362201, -0.41897216, -0.28867794},
	FuncUranus: {19.18916464, 0.04725744, 0.77263783, 313.23810451, 170.95427630, 74.01692503,
		-0.00196176, -0.00004397, -0.00242939, 428.48202785, 0.40805281, 0.04240589},
	FuncNeptune: {30.06992276, 0.00859048, 1.77004347, -55.12002969, 44.96476227, 131.78422574,
		0.00026291, 0.00005105, 0.00035372, 218.45945325, -0.32241464, -0.00508664},
}

// position returns the heliocentric VSOP87-frame position in AU.
func (p planetElements) position(jd float64) []float64 {
	T := (jd - J2000) / DaysPerCentury
	a := p.a + p.da*T
	e := p.e + p.de*T
	i := (p.i + p.di*T) * deg2rad
	L := (p.L + p.dL*T) * deg2rad
	ϖ := (p.ϖ + p.dϖ*T) * deg2rad
	Ω := (p.Ω + p.dΩ*T) * deg2rad
	pqw := conicPosition(a*(1-e), e, L-ϖ)
	return Rot313Vec(Ω, i, ϖ-Ω, pqw)
}

// satelliteElements are mean orbital elements of a natural satellite at J2000, referred to the
// equator of its planet.
type satelliteElements struct {
	a, e, i, Ω, ω, M0 float64 // km, -, degrees
	period            float64 // days
	parent            PositionFunc
}

// planetPoles holds the IAU right ascension and declination (degrees, J2000) of planetary north poles.
var planetPoles = map[PositionFunc][2]float64{
	FuncMars:    {317.681, 52.887},
	FuncJupiter: {268.057, 64.495},
	FuncSaturn:  {40.589, 83.537},
	FuncUranus:  {257.311, -15.175},
	FuncNeptune: {299.36, 43.46},
}

var satelliteTable = map[PositionFunc]satelliteElements{
	FuncPhobos:    {9376.0, 0.0151, 1.093, 208.2, 157.1, 165.8 - 208.2 - 157.1, 0.31891, FuncMars},
	FuncDeimos:    {23458.0, 0.00033, 1.791, 24.5, 260.7, 286.5 - 24.5 - 260.7, 1.26244, FuncMars},
	FuncIo:        {421800.0, 0.0041, 0.05, 43.977, 84.129, 342.02 - 43.977 - 84.129, 1.769138, FuncJupiter},
	FuncEuropa:    {671100.0, 0.0094, 0.47, 219.106, 88.970, 171.02 - 219.106 - 88.970, 3.551181, FuncJupiter},
	FuncGanymede:  {1070400.0, 0.0013, 0.21, 63.552, 192.417, 317.54 - 63.552 - 192.417, 7.154553, FuncJupiter},
	FuncCallisto:  {1882700.0, 0.0074, 0.51, 298.848, 52.643, 181.41 - 298.848 - 52.643, 16.689018, FuncJupiter},
	FuncMimas:     {185539.0, 0.0196, 1.574, 333.2, 210.8, 218.0 - 333.2 - 210.8, 0.942422, FuncSaturn},
	FuncEnceladus: {238042.0, 0.0047, 0.019, 337.1, 337.8, 26.7 - 337.1 - 337.8, 1.370218, FuncSaturn},
	FuncTethys:    {294619.0, 0.0001, 1.091, 259.842, 262.845, 189.003, 1.887802, FuncSaturn},
	FuncDione:     {377396.0, 0.0022, 0.028, 290.415, 168.820, 284.315, 2.736915, FuncSaturn},
	FuncRhea:      {527108.0, 0.0012, 0.345, 345.487, 162.1, 171.4 - 345.487 - 162.1, 4.518212, FuncSaturn},
	FuncTitan:     {1221870.0, 0.0288, 0.34854, 28.0212, 186.5442, 127.64 - 28.0212 - 186.5442, 15.945, FuncSaturn},
	FuncHyperion:  {1500934.0, 0.1230, 0.615, 264.022, 214.0, 295.906, 21.276609, FuncSaturn},
	FuncIapetus:   {3560820.0, 0.0286, 8.298, 81.105, 271.606, 201.789, 79.3215, FuncSaturn},
	FuncMiranda:   {129390.0, 0.0013, 4.338, 326.438, 68.312, 311.330, 1.413479, FuncUranus},
	FuncAriel:     {191020.0, 0.0012, 0.041, 22.394, 115.349, 39.481, 2.520379, FuncUranus},
	FuncUmbriel:   {266000.0, 0.0039, 0.128, 33.485, 84.709, 12.469, 4.144177, FuncUranus},
	FuncTitania:   {435910.0, 0.0011, 0.340, 262.772, 284.400, 24.614 - 262.772 - 284.400, 8.705872, FuncUranus},
	FuncOberon:    {583520.0, 0.0014, 0.068, 279.771, 104.400, 283.088, 13.463239, FuncUranus},
}

// orbit returns the elliptical orbit of the satellite around its planet, in AU.
func (s satelliteElements) orbit() EllipticalOrbit {
	pole := planetPoles[s.parent]
	obl, node := PoleToObliquityNode(pole[0]*deg2rad, pole[1]*deg2rad)
	return EllipticalOrbit{
		PericenterDistance: s.a * (1 - s.e) / AU,
		Eccentricity:       s.e,
		Inclination:        s.i * deg2rad,
		AscendingNode:      s.Ω * deg2rad,
		ArgOfPericenter:    s.ω * deg2rad,
		MeanAnomalyAtEpoch: math.Mod(s.M0, 360) * deg2rad,
		Period:             s.period,
		Epoch:              J2000,
		Parent:             NewParentFrame(obl, node),
	}
}
