package schedule

import (
	"testing"

	"github.com/gosampler/rtengine"
)

func TestResolveClampsToFragmentBounds(t *testing.T) {
	g := NewGenerator(44100)
	g.UpdateFragmentTime(1_000_000_000, 512) // 1s mark, 512-sample fragment

	// Event slightly before the fragment begins clamps to 0.
	early := rtengine.Event{WallClockNanos: 999_000_000}
	g.Resolve(&early)
	if early.FragmentPos != 0 {
		t.Fatalf("FragmentPos = %d, want 0 for early event", early.FragmentPos)
	}

	// Event exactly at fragment start resolves near 0.
	atStart := rtengine.Event{WallClockNanos: 1_000_000_000}
	g.Resolve(&atStart)
	if atStart.FragmentPos != 0 {
		t.Fatalf("FragmentPos = %d, want 0 at fragment start", atStart.FragmentPos)
	}

	// Event beyond the fragment end clamps to samplesToProcess-1.
	late := rtengine.Event{WallClockNanos: 2_000_000_000}
	g.Resolve(&late)
	if late.FragmentPos != 511 {
		t.Fatalf("FragmentPos = %d, want 511 for late event", late.FragmentPos)
	}
}

func TestResolveInvariantAlwaysWithinFragment(t *testing.T) {
	g := NewGenerator(44100)
	g.UpdateFragmentTime(5_000_000_000, 256)
	for _, ns := range []int64{-1000, 0, 5_000_000_000, 5_005_804_988, 6_000_000_000} {
		ev := rtengine.Event{WallClockNanos: ns}
		g.Resolve(&ev)
		if ev.FragmentPos < 0 || ev.FragmentPos >= 256 {
			t.Fatalf("FragmentPos %d out of [0,256) for ns=%d", ev.FragmentPos, ns)
		}
	}
}

func TestSchedulerClockMonotonic(t *testing.T) {
	g := NewGenerator(44100)
	var last SchedTime
	for cycle := 0; cycle < 5; cycle++ {
		g.UpdateFragmentTime(int64(cycle)*1e7, 128)
		if g.TotalSamplesProcessed() < last {
			t.Fatalf("scheduler clock went backwards")
		}
		last = g.TotalSamplesProcessed()
		g.AdvanceFragment(128)
	}
}
