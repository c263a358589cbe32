package layout_test

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shiftcal/internal/layout"
)

// randomDay builds n events with durations of at least 15 minutes, some of
// them running past midnight.
func randomDay(rnd *rand.Rand, n int) []layout.Event[int] {
	events := make([]layout.Event[int], n)
	for i := range events {
		start := rnd.Intn(23 * 60)
		dur := 15 + rnd.Intn(300)
		s := day.Add(time.Duration(start) * time.Minute)
		events[i] = layout.Event[int]{
			StartAt: s,
			EndAt:   s.Add(time.Duration(dur) * time.Minute),
			Payload: i,
		}
	}
	return events
}

// maxConcurrency is a brute-force sweep: the peak number of cards active
// at any card's start minute.
func maxConcurrency(cards []layout.Style) int {
	peak := 0
	for _, c := range cards {
		active := 0
		for _, o := range cards {
			if o.Top <= c.Top && c.Top < o.Top+o.Height {
				active++
			}
		}
		peak = max(peak, active)
	}
	return peak
}

func TestProperties_RandomDays(t *testing.T) {
	rnd := rand.New(rand.NewSource(20250310))

	for round := 0; round < 200; round++ {
		events := randomDay(rnd, 1+rnd.Intn(40))
		width := float64(100 + rnd.Intn(400))
		minCard := float64(20 + rnd.Intn(80))

		got := layout.ComputeLayout(events, width, minCard)

		// Cardinality, and every payload shows up exactly once.
		require.Len(t, got, len(events))
		seen := make(map[int]bool, len(got))
		for _, r := range got {
			assert.False(t, seen[r.Payload])
			seen[r.Payload] = true
		}

		clusters := map[int][]layout.Style{}
		for _, r := range got {
			clusters[r.Layout.Cluster] = append(clusters[r.Layout.Cluster], r.Layout)
		}

		for ci, cards := range clusters {
			k := cards[0].Columns

			// Minimality: columns == peak concurrency inside the cluster.
			assert.Equal(t, maxConcurrency(cards), k, "round %d cluster %d", round, ci)

			deck := width/float64(k) < minCard
			for _, c := range cards {
				assert.Equal(t, k, c.Columns)
				assert.Equal(t, deck, c.IsDeck)
				if deck {
					assert.Equal(t, 10+c.Column, c.ZIndex)
					assert.InDelta(t, 100.0, float64(c.Left+c.Width), 1e-9)
					continue
				}
				assert.InDelta(t, 100.0/float64(k), float64(c.Width), 1e-9)
				assert.InDelta(t, float64(c.Column)*100/float64(k), float64(c.Left), 1e-9)
			}
		}

		// Cards sharing a column never overlap in time.
		for _, a := range got {
			for _, b := range got {
				if a.ID == b.ID || a.Layout.Cluster != b.Layout.Cluster || a.Layout.Column != b.Layout.Column {
					continue
				}
				aEnd := a.Layout.Top + a.Layout.Height
				bEnd := b.Layout.Top + b.Layout.Height
				assert.False(t, a.Layout.Top < bEnd && b.Layout.Top < aEnd, "round %d: %s and %s share a column", round, a.ID, b.ID)
			}
		}

		// Clusters are ordered and disjoint in time.
		for i := 1; i < len(got); i++ {
			prev, cur := got[i-1].Layout, got[i].Layout
			assert.LessOrEqual(t, prev.Cluster, cur.Cluster)
			assert.LessOrEqual(t, prev.Top, cur.Top)
		}

		assert.Equal(t, got, layout.ComputeLayout(events, width, minCard), "round %d not idempotent", round)
	}
}

func TestProperties_ColumnsWidthsSumToWhole(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	for round := 0; round < 50; round++ {
		events := randomDay(rnd, 1+rnd.Intn(8))
		got := layout.ComputeLayout(events, 10000, 1)

		perCluster := map[int]map[int]float64{}
		for _, r := range got {
			require.False(t, r.Layout.IsDeck)
			if perCluster[r.Layout.Cluster] == nil {
				perCluster[r.Layout.Cluster] = map[int]float64{}
			}
			perCluster[r.Layout.Cluster][r.Layout.Column] = float64(r.Layout.Width)
		}
		for _, cols := range perCluster {
			sum := 0.0
			for _, w := range cols {
				sum += w
			}
			assert.InDelta(t, 100.0, sum, 1e-9)
		}
	}
}
