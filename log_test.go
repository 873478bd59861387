package skycore

import (
	"bytes"
	"strings"
	"testing"

	"github.com/go-kit/log/level"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "info")
	level.Debug(logger).Log("msg", "hidden")
	level.Info(logger).Log("msg", "shown", "bodies", 3)
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatal("debug message not filtered")
	}
	for _, exp := range []string{"level=info", "msg=shown", "bodies=3", "ts="} {
		if !strings.Contains(out, exp) {
			t.Fatalf("%q not in %q", exp, out)
		}
	}

	buf.Reset()
	level.Debug(NewLogger(&buf, "DEBUG")).Log("msg", "shown")
	if !strings.Contains(buf.String(), "level=debug") {
		t.Fatal("debug level not enabled")
	}
	buf.Reset()
	level.Warn(NewLogger(&buf, "error")).Log("msg", "hidden")
	if buf.Len() != 0 {
		t.Fatal("warning not filtered")
	}
}
