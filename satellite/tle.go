package satellite

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// tleField is a fixed-column numeric field and the text the kernel parses it from.
type tleField struct {
	name    string
	text    func(line string) string
	integer bool
}

func columns(from, to int) func(string) string {
	return func(line string) string { return line[from:to] }
}

func unspaced(from, to int) func(string) string {
	return func(line string) string { return strings.Replace(line[from:to], " ", "", 2) }
}

// The fields are read exactly as the go-satellite parser reads them, so that an element set
// accepted here never reaches one of its fatal parse errors.
var (
	line1Fields = []tleField{
		{name: "satellite number", text: func(l string) string { return strings.TrimSpace(l[2:7]) }, integer: true},
		{name: "epoch year", text: columns(18, 20), integer: true},
		{name: "epoch day", text: columns(20, 32)},
		{name: "mean motion derivative", text: unspaced(33, 43)},
		{name: "mean motion second derivative", text: func(l string) string {
			return strings.Replace(l[44:45]+"."+l[45:50]+"e"+l[50:52], " ", "", 2)
		}},
		{name: "bstar", text: func(l string) string {
			return strings.Replace(l[53:54]+"."+l[54:59]+"e"+l[59:61], " ", "", 2)
		}},
	}
	line2Fields = []tleField{
		{name: "inclination", text: unspaced(8, 16)},
		{name: "right ascension", text: unspaced(17, 25)},
		{name: "eccentricity", text: func(l string) string { return "." + l[26:33] }},
		{name: "argument of perigee", text: unspaced(34, 42)},
		{name: "mean anomaly", text: unspaced(43, 51)},
		{name: "mean motion", text: unspaced(52, 63)},
	}
)

// checksum returns the modulo 10 checksum of the first 68 characters of a line: digits count for
// their value and minus signs for one.
func checksum(line string) int {
	sum := 0
	for _, c := range line[:tleLineLength-1] {
		switch {
		case c >= '0' && c <= '9':
			sum += int(c - '0')
		case c == '-':
			sum++
		}
	}
	return sum % 10
}

// validateLine checks the line number, the checksum and the numeric fields of one line.
func validateLine(line string, number byte, fields []tleField) error {
	if len(line) < tleLineLength {
		return errors.Errorf("line %c must be at least %d characters, got %d", number, tleLineLength, len(line))
	}
	if line[0] != number || line[1] != ' ' {
		return errors.Errorf("line %c does not start with %q", number, string(number)+" ")
	}
	expected, err := strconv.Atoi(line[tleLineLength-1 : tleLineLength])
	if err != nil {
		return errors.Wrapf(err, "line %c: checksum", number)
	}
	if got := checksum(line); got != expected {
		return errors.Errorf("line %c: checksum mismatch, expected %d, got %d", number, expected, got)
	}
	for _, f := range fields {
		text := f.text(line)
		if f.integer {
			_, err = strconv.ParseInt(text, 10, 0)
		} else {
			_, err = strconv.ParseFloat(text, 64)
		}
		if err != nil {
			return errors.Wrapf(err, "line %c: %s", number, f.name)
		}
	}
	return nil
}

// ValidateTLE returns an error wrapping ErrInvalidTLE if the two lines are not a well formed
// element set.
func ValidateTLE(line1, line2 string) error {
	if err := validateLine(line1, '1', line1Fields); err != nil {
		return errors.Wrap(ErrInvalidTLE, err.Error())
	}
	if err := validateLine(line2, '2', line2Fields); err != nil {
		return errors.Wrap(ErrInvalidTLE, err.Error())
	}
	if strings.TrimSpace(line1[2:7]) != strings.TrimSpace(line2[2:7]) {
		return errors.Wrapf(ErrInvalidTLE, "satellite numbers differ: %q and %q", line1[2:7], line2[2:7])
	}
	return nil
}
