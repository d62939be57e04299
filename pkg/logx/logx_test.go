package logx

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func lastLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var out map[string]any
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &out); err != nil {
		t.Fatalf("unmarshal %q: %v", lines[len(lines)-1], err)
	}
	return out
}

func TestWriterEmitsFields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewWriter(&buf, "debug")

	log.Info("broadcast finished",
		String("comp", "broadcast"),
		Int("sent", 240),
		Int64("operator_id", 9),
		Bool("stopped", false),
		Float64("rate", 0.5),
		Duration("took", 1500*time.Millisecond),
		Err(errors.New("partial")),
	)

	got := lastLine(t, &buf)
	if got["message"] != "broadcast finished" {
		t.Errorf("message = %v", got["message"])
	}
	if got["comp"] != "broadcast" {
		t.Errorf("comp = %v", got["comp"])
	}
	if got["sent"] != float64(240) {
		t.Errorf("sent = %v", got["sent"])
	}
	if got["operator_id"] != float64(9) {
		t.Errorf("operator_id = %v", got["operator_id"])
	}
	if got["error"] != "partial" {
		t.Errorf("error = %v", got["error"])
	}
	if _, ok := got["time"]; !ok {
		t.Error("timestamp missing")
	}
}

func TestWithCarriesFixedFields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewWriter(&buf, "info").With(String("comp", "panel"))

	log.Warn("send failed", Int64("chat_id", -100))

	got := lastLine(t, &buf)
	if got["comp"] != "panel" {
		t.Errorf("comp = %v", got["comp"])
	}
	if got["chat_id"] != float64(-100) {
		t.Errorf("chat_id = %v", got["chat_id"])
	}

	// The parent logger is unchanged.
	buf.Reset()
	NewWriter(&buf, "info").Info("plain")
	if got := lastLine(t, &buf); got["comp"] != nil {
		t.Errorf("parent logger inherited field: %v", got)
	}
}

func TestLevelFiltering(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewWriter(&buf, "warn")
	log.Debug("hidden")
	log.Info("hidden too")
	if buf.Len() != 0 {
		t.Fatalf("below-threshold entries written: %q", buf.String())
	}
	log.Warn("visible")
	if buf.Len() == 0 {
		t.Fatal("warn entry suppressed")
	}
}

func TestZeroAndNopAreSilent(t *testing.T) {
	t.Parallel()

	var zero Logger
	if !zero.IsZero() {
		t.Fatal("zero value not IsZero")
	}
	// Must not panic.
	zero.Info("nothing", String("k", "v"))
	zero.With(Int("n", 1)).Error("still nothing")

	nop := Nop()
	if nop.IsZero() {
		t.Fatal("Nop() reports IsZero")
	}
	nop.Error("discarded")
}

func TestErrFieldNil(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	NewWriter(&buf, "info").Info("ok", Err(nil))
	if got := lastLine(t, &buf); got["error"] != nil {
		t.Errorf("nil error serialized: %v", got)
	}
}
