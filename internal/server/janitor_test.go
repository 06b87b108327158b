package server

import (
	"testing"
	"time"
)

func TestIsDueFirstRun(t *testing.T) {
	for _, spec := range []string{"@hourly", "@daily", "*/5 * * * *"} {
		if !isDue(spec, nil) {
			t.Fatalf("%s: first run must be due", spec)
		}
	}
}

func TestIsDueHourly(t *testing.T) {
	recent := time.Now().Add(-30 * time.Minute)
	if isDue("@hourly", &recent) {
		t.Fatal("swept 30m ago, not due")
	}
	old := time.Now().Add(-2 * time.Hour)
	if !isDue("@hourly", &old) {
		t.Fatal("swept 2h ago, due")
	}
}

func TestIsDueCronExpr(t *testing.T) {
	old := time.Now().Add(-10 * time.Minute)
	if !isDue("*/5 * * * *", &old) {
		t.Fatal("five-minute schedule, swept 10m ago, due")
	}
	justNow := time.Now()
	if isDue("*/5 * * * *", &justNow) {
		t.Fatal("just swept, not due")
	}
}
