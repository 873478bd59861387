package skycore

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

func export(t *testing.T, s *System, conf ExportConfig, format ExportFormat) (*bytes.Buffer, error) {
	var buf bytes.Buffer
	states := make(chan EphemerisState, 4)
	errc := make(chan error, 1)
	go func() {
		errc <- s.Ephemeris(conf, states)
	}()
	if err := StreamStates(&buf, format, states); err != nil {
		t.Fatal(err)
	}
	return &buf, <-errc
}

func TestExportCSV(t *testing.T) {
	s := loadedSystem(t)
	conf := ExportConfig{Bodies: []string{"Sun", "moon"}, Start: J2000, End: J2000 + 1, Step: 0.5, Observer: NewObserver(48.85, 2.35, 35)}
	buf, err := export(t, s, conf, FormatCSV)
	if err != nil {
		t.Fatal(err)
	}
	records, err := csv.NewReader(buf).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 7 {
		t.Fatalf("expected a header and six rows, got %d", len(records))
	}
	if records[0][0] != "date" || records[1][0] != "2000-01-01 12:00:00" || records[1][2] != "Sun" || records[2][2] != "Moon" {
		t.Fatalf("incorrect records %v", records[:3])
	}
	if records[6][1] != "2451546.000000" {
		t.Fatalf("incorrect last date %s", records[6][1])
	}
}

func TestExportInterpolated(t *testing.T) {
	s := loadedSystem(t)
	conf := ExportConfig{Bodies: []string{"Mars"}, Start: J2000, End: J2000 + 10, Step: 3, Observer: NewObserver(0, 0, 0)}
	buf, err := export(t, s, conf, FormatInterpolated)
	if err != nil {
		t.Fatal(err)
	}
	states, err := ParseInterpolatedStates(buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(states) != 4 {
		t.Fatalf("expected four states, got %d", len(states))
	}
	if _, err = s.Tick(J2000+9, conf.Observer); err != nil {
		t.Fatal(err)
	}
	mars, _ := s.Lookup("Mars")
	if states[3].JD != J2000+9 || !floats.EqualApprox(states[3].Position, Scale(AU, mars.HelioPos), 1e-6) {
		t.Fatalf("incorrect state %+v", states[3])
	}
}

func TestExportInvalid(t *testing.T) {
	s := loadedSystem(t)
	for _, conf := range []ExportConfig{
		{Start: J2000, End: J2000 + 1, Step: 0},
		{Start: J2000, End: J2000 - 1, Step: 1},
	} {
		if err := conf.Validate(); err == nil {
			t.Fatalf("%+v should be invalid", conf)
		}
	}
	_, err := export(t, s, ExportConfig{Bodies: []string{"Vulcan"}, Start: J2000, End: J2000, Step: 1, Observer: NewObserver(0, 0, 0)}, FormatCSV)
	if errors.Cause(err) != ErrUnknownBody {
		t.Fatalf("expected an unknown body, got %v", err)
	}
	if _, err = ParseExportFormat("pdf"); err == nil {
		t.Fatal("unknown format")
	}
	if f, _ := ParseExportFormat("XYZ"); f != FormatInterpolated {
		t.Fatal("incorrect format")
	}
	var state EphemerisState
	if err = state.FromText([]string{"1", "2", "x", "4"}); err == nil {
		t.Fatal("invalid record")
	}
}
