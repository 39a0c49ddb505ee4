package media

import "testing"

func TestMediaTimeSub(t *testing.T) {
	tb := Fraction{1, 1000}
	a := NewMediaTime(tb, 1000)
	b := NewMediaTime(tb, 1040)
	d := b.Sub(a)
	if d.Ticks != 40 {
		t.Fatalf("Sub() ticks = %d, want 40", d.Ticks)
	}
}

func TestMediaTimeWithDTS(t *testing.T) {
	tb := Fraction{1, 1000}
	mt := NewMediaTime(tb, 100).WithDTS(80)
	if mt.DTS != 80 || mt.PTS != 100 {
		t.Fatalf("WithDTS() = %+v, want PTS=100 DTS=80", mt)
	}
}

func TestMediaDurationRescale(t *testing.T) {
	// 48000 ticks at 48kHz timebase is exactly 1 second; rescaled into a
	// 1/1000 timebase it should be 1000 ticks.
	d := MediaDuration{Timebase: Fraction{1, 48000}, Ticks: 48000}
	out := d.Rescale(Fraction{1, 1000})
	if out.Ticks != 1000 {
		t.Fatalf("Rescale() = %d, want 1000", out.Ticks)
	}
}

func TestMediaDurationRescaleRoundsToNearest(t *testing.T) {
	// 2 ticks at 1/3 of the target resolution should round, not truncate.
	d := MediaDuration{Timebase: Fraction{1, 3}, Ticks: 2}
	out := d.Rescale(Fraction{1, 1})
	// 2 ticks of 1/3s = 0.666s, rounds to 1 at a 1-tick-per-second timebase.
	if out.Ticks != 1 {
		t.Fatalf("Rescale() = %d, want 1", out.Ticks)
	}
}
