package capture

import (
	"testing"
	"time"
)

func TestPlanSpecialContainer(t *testing.T) {
	desc := Classify("/data/cam.asf")
	plan := Plan(desc, PlanConfig{})

	wantOrder := []BackendID{BackendFFmpeg, BackendGStreamer, BackendAny, BackendDefault}
	if len(plan) != len(wantOrder) {
		t.Fatalf("plan length = %d, want %d", len(plan), len(wantOrder))
	}
	for i, want := range wantOrder {
		if plan[i].ID != want {
			t.Errorf("plan[%d].ID = %v, want %v", i, plan[i].ID, want)
		}
	}

	for i, b := range plan[:3] {
		if b.OpenTimeout != 15*time.Second || b.ReadTimeout != 15*time.Second {
			t.Errorf("plan[%d] timeouts = %v/%v, want 15s/15s", i, b.OpenTimeout, b.ReadTimeout)
		}
		if b.BufferSize != 1 {
			t.Errorf("plan[%d].BufferSize = %d, want 1", i, b.BufferSize)
		}
		if b.PreferredFourCC != "MJPG" {
			t.Errorf("plan[%d].PreferredFourCC = %q, want MJPG", i, b.PreferredFourCC)
		}
	}
	last := plan[3]
	if last.OpenTimeout != 0 || last.BufferSize != 0 || last.PreferredFourCC != "" {
		t.Errorf("final candidate carries tuning: %+v", last)
	}
}

func TestPlanLiveStream(t *testing.T) {
	plan := Plan(Classify("rtsp://cam/1"), PlanConfig{})
	if len(plan) != 1 {
		t.Fatalf("plan length = %d, want 1", len(plan))
	}
	b := plan[0]
	if b.ID != BackendFFmpeg {
		t.Errorf("ID = %v, want %v", b.ID, BackendFFmpeg)
	}
	if b.OpenTimeout != 5*time.Second || b.ReadTimeout != 5*time.Second {
		t.Errorf("timeouts = %v/%v, want 5s/5s", b.OpenTimeout, b.ReadTimeout)
	}
	if b.BufferSize != 1 {
		t.Errorf("BufferSize = %d, want 1", b.BufferSize)
	}
}

func TestPlanPlainFile(t *testing.T) {
	plan := Plan(Classify("/data/traffic.mp4"), PlanConfig{})
	if len(plan) != 1 {
		t.Fatalf("plan length = %d, want 1", len(plan))
	}
	if plan[0].ID != BackendDefault {
		t.Errorf("ID = %v, want %v", plan[0].ID, BackendDefault)
	}
	if plan[0].OpenTimeout != 0 || plan[0].PreferredFourCC != "" {
		t.Errorf("plain file candidate carries tuning: %+v", plan[0])
	}
}

func TestPlanConfigOverrides(t *testing.T) {
	cfg := PlanConfig{SpecialTimeout: 2 * time.Second, LiveTimeout: time.Second}
	if got := Plan(Classify("a.wmv"), cfg)[0].OpenTimeout; got != 2*time.Second {
		t.Errorf("special OpenTimeout = %v, want 2s", got)
	}
	if got := Plan(Classify("rtsp://x"), cfg)[0].OpenTimeout; got != time.Second {
		t.Errorf("live OpenTimeout = %v, want 1s", got)
	}
}
