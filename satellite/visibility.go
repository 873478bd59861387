package satellite

import (
	"math"

	"github.com/chengxinlun/skycore"
)

// Visibility is the observing condition of a satellite.
type Visibility uint8

const (
	// NotVisible means the satellite is below the horizon.
	NotVisible Visibility = iota
	// SunlitObserver means the satellite is above the horizon in daylight, only detectable by radar.
	SunlitObserver
	// Visible means the satellite is illuminated above a dark sky.
	Visible
	// ShadowRadarNight means the satellite is in the shadow of the Earth at night.
	ShadowRadarNight
)

func (v Visibility) String() string {
	switch v {
	case NotVisible:
		return "not visible"
	case SunlitObserver:
		return "radar (sun)"
	case Visible:
		return "visible"
	case ShadowRadarNight:
		return "radar (night)"
	default:
		panic("unknown visibility")
	}
}

// ClassifyVisibility returns the visibility from the altitude of the satellite, the altitude of the
// Sun (any angular unit) and the distance in km of the satellite from the Earth-Sun line.
func ClassifyVisibility(satAlt, sunAlt, dist float64) Visibility {
	switch {
	case satAlt <= 0:
		return NotVisible
	case sunAlt > 0:
		return SunlitObserver
	case dist > wgs72Earth.Er:
		return Visible
	default:
		return ShadowRadarNight
	}
}

// Visibility returns the observing condition of the satellite at the cached epoch.
func (s *Satellite) Visibility(o skycore.Observer, sun SunLocator) (Visibility, error) {
	jd, pos, _, err := s.state()
	if err != nil {
		return NotVisible, err
	}
	obs, _ := ObserverECI(o, jd)
	satAlt, _ := skycore.AltAz(toSEZ(skycore.Sub(pos, obs), o, jd))
	if satAlt <= 0 {
		return NotVisible, nil
	}
	sunPos := sun.SunECI(jd)
	sunAlt, _ := skycore.AltAz(toSEZ(skycore.Sub(sunPos, obs), o, jd))
	dist := skycore.Norm(pos) * math.Sin(skycore.Angle(sunPos, pos))
	return ClassifyVisibility(satAlt, sunAlt, dist), nil
}
