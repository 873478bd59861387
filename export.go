package skycore

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/soniakeys/meeus/v3/julian"
)

// ExportFormat selects how exported states are written.
type ExportFormat uint8

// Export formats.
const (
	// FormatCSV writes one CSV row per body and date.
	FormatCSV ExportFormat = iota
	// FormatInterpolated writes space separated <jd> <x> <y> <z> records, as read by
	// ParseInterpolatedStates.
	FormatInterpolated
)

// ParseExportFormat returns the format from its name (csv or xyz).
func ParseExportFormat(name string) (ExportFormat, error) {
	switch strings.ToLower(name) {
	case "", "csv":
		return FormatCSV, nil
	case "xyz":
		return FormatInterpolated, nil
	}
	return 0, errors.Errorf("unknown export format %q", name)
}

// EphemerisState is the state of one body at one date, as seen by the export observer.
type EphemerisState struct {
	JD       float64
	Body     string
	Position []float64 // heliocentric, km, VSOP87 frame
	Distance float64   // km from the observer
	Alt, Az  float64   // degrees
}

// FromText initializes from text.
// The `record` parameter must be an array of four items.
func (e *EphemerisState) FromText(record []string) error {
	if len(record) != 4 {
		return errors.Errorf("expected four fields, got %d", len(record))
	}
	vals := make([]float64, 4)
	for i, field := range record {
		val, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return errors.Wrapf(err, "field %d", i)
		}
		vals[i] = val
	}
	e.JD = vals[0]
	e.Position = vals[1:]
	return nil
}

// ToText converts to text for written output.
func (e EphemerisState) ToText() string {
	return fmt.Sprintf("%f %f %f %f", e.JD, e.Position[0], e.Position[1], e.Position[2])
}

// ParseInterpolatedStates reads the records written in FormatInterpolated. The body names are in
// the comments and are not recovered.
func ParseInterpolatedStates(rd io.Reader) ([]EphemerisState, error) {
	var states []EphemerisState
	r := csv.NewReader(rd)
	r.Comma = ' '
	r.Comment = '#'
	for {
		record, err := r.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
		var state EphemerisState
		if err = state.FromText(record); err != nil {
			return nil, err
		}
		states = append(states, state)
	}
	return states, nil
}

// ExportConfig configures an ephemeris export.
type ExportConfig struct {
	Bodies   []string // every visible body when empty
	Start    float64  // JD
	End      float64  // JD, included
	Step     float64  // days
	Observer Observer
}

// Validate returns an error if the export cannot run.
func (c ExportConfig) Validate() error {
	if c.Step <= 0 || math.IsNaN(c.Step) {
		return errors.Errorf("step must be positive, got %f", c.Step)
	}
	if c.End < c.Start {
		return errors.Errorf("end %f before start %f", c.End, c.Start)
	}
	return nil
}

// Ephemeris ticks the system at each step of the export and sends the states of the selected
// bodies on the channel. The channel is closed when the export is over, even on error.
func (s *System) Ephemeris(conf ExportConfig, states chan<- EphemerisState) error {
	defer close(states)
	if err := conf.Validate(); err != nil {
		return err
	}
	ids, err := s.exportBodies(conf.Bodies)
	if err != nil {
		return err
	}
	steps := int(math.Floor((conf.End-conf.Start)/conf.Step + 1e-9))
	for k := 0; k <= steps; k++ {
		jd := conf.Start + float64(k)*conf.Step
		if _, err = s.Tick(jd, conf.Observer); err != nil {
			return err
		}
		for _, id := range ids {
			b, _ := s.Body(id)
			alt, az, err := s.AltAz(id)
			if err != nil {
				return err
			}
			states <- EphemerisState{JD: jd, Body: b.Name, Position: Scale(AU, b.HelioPos), Distance: b.Distance * AU, Alt: alt * r2d, Az: az * r2d}
		}
	}
	return nil
}

func (s *System) exportBodies(names []string) ([]BodyID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []BodyID
	if len(names) == 0 {
		for _, b := range s.cat.bodies {
			if !b.Hidden {
				ids = append(ids, b.ID)
			}
		}
		return ids, nil
	}
	for _, name := range names {
		id, ok := s.cat.lookup(name)
		if !ok {
			return nil, errors.Wrapf(ErrUnknownBody, "%q", name)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// StreamStates writes the states read from the channel until it is closed. The channel is always
// drained; the first write error is returned.
func StreamStates(w io.Writer, format ExportFormat, states <-chan EphemerisState) error {
	var werr error
	keep := func(err error) {
		if werr == nil && err != nil {
			werr = err
		}
	}
	switch format {
	case FormatInterpolated:
		_, err := fmt.Fprintf(w, "# Creation date (UTC): %s\n# Records are <jd> <x> <y> <z>\n#   Time is a UT Julian date\n#   Heliocentric position in km, J2000 ecliptic\n", time.Now().UTC().Format(time.RFC3339))
		keep(err)
		prev := ""
		for state := range states {
			if werr != nil {
				continue
			}
			if state.Body != prev {
				_, err = fmt.Fprintf(w, "# %s\n", state.Body)
				keep(err)
				prev = state.Body
			}
			_, err = fmt.Fprintln(w, state.ToText())
			keep(err)
		}
	default:
		cw := csv.NewWriter(w)
		keep(cw.Write([]string{"date", "jd", "body", "x", "y", "z", "distance", "alt", "az"}))
		f := func(v float64, prec int) string {
			return strconv.FormatFloat(v, 'f', prec, 64)
		}
		for state := range states {
			if werr != nil {
				continue
			}
			keep(cw.Write([]string{
				julian.JDToTime(state.JD).UTC().Format("2006-01-02 15:04:05"),
				f(state.JD, 6),
				state.Body,
				f(state.Position[0], 3), f(state.Position[1], 3), f(state.Position[2], 3),
				f(state.Distance, 3),
				f(state.Alt, 4), f(state.Az, 4),
			}))
		}
		cw.Flush()
		keep(cw.Error())
	}
	return werr
}
