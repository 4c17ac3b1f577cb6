package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCacheSizeGaugeTracksCallback(t *testing.T) {
	entries := 0.0
	g := RegisterCacheSize(func() float64 { return entries })

	if got := testutil.ToFloat64(g); got != 0 {
		t.Errorf("gauge = %v, want 0", got)
	}

	entries = 3
	if got := testutil.ToFloat64(g); got != 3 {
		t.Errorf("gauge = %v, want 3 after the cache grew", got)
	}

	entries = 0
	if got := testutil.ToFloat64(g); got != 0 {
		t.Errorf("gauge = %v, want 0 after the cache was cleared", got)
	}
}
