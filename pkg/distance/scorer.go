package distance

import (
	"fmt"
)

// Options configures the distance computation.
type Options struct {
	// Radius bounds the BFS from each seed; seeds farther than Radius
	// hops from a target do not contribute to its avg/max. Must be >= 1.
	Radius int
	// Sentinel is assigned to min, avg and max when no malicious seed
	// is reachable within Radius, so downstream numeric consumers
	// never see a null.
	Sentinel float64
}

// DefaultOptions returns the stock radius and sentinel.
func DefaultOptions() Options {
	return Options{Radius: 6, Sentinel: 100}
}

// Score holds the hop-distance summary for one FQDN.
type Score struct {
	Host string
	Min  float64
	Avg  float64
	Max  float64
}

// seedDistances accumulates, per target FQDN, the distances to every
// seed whose bounded BFS reached it.
type seedDistances struct {
	count int
	sum   int
	min   int
	max   int
}

// ScoreAll computes {min, avg, max} seed distance for every target
// host. A target that is itself malicious scores 0 across the board;
// a target no seed reaches within the radius gets the sentinel.
func ScoreAll(idx *Index, targets []string, opts Options) ([]Score, error) {
	if opts.Radius < 1 {
		return nil, fmt.Errorf("radius must be >= 1, got %d", opts.Radius)
	}

	acc := make(map[string]*seedDistances)
	for _, seed := range idx.seeds {
		bfsFromSeed(idx, seed, opts.Radius, acc)
	}

	scores := make([]Score, 0, len(targets))
	for _, host := range targets {
		if idx.seedSet[host] {
			scores = append(scores, Score{Host: host})
			continue
		}

		d, ok := acc[host]
		if !ok {
			scores = append(scores, Score{
				Host: host,
				Min:  opts.Sentinel,
				Avg:  opts.Sentinel,
				Max:  opts.Sentinel,
			})
			continue
		}

		scores = append(scores, Score{
			Host: host,
			Min:  float64(d.min),
			Avg:  float64(d.sum) / float64(d.count),
			Max:  float64(d.max),
		})
	}

	return scores, nil
}

// bfsFromSeed runs a radius-bounded BFS from one malicious seed over
// the shared-infrastructure index, folding the discovered distances
// into acc. Groups are expanded at most once per seed, keeping each
// search linear in the index size.
func bfsFromSeed(idx *Index, seed string, radius int, acc map[string]*seedDistances) {
	visited := map[string]bool{seed: true}
	groupSeen := make(map[string]bool)

	frontier := []string{seed}
	for hop := 1; hop <= radius && len(frontier) > 0; hop++ {
		var next []string

		for _, host := range frontier {
			for _, group := range idx.byFQDN[host] {
				gk := group.String()
				if groupSeen[gk] {
					continue
				}
				groupSeen[gk] = true

				for _, neighbor := range idx.groups[group] {
					if visited[neighbor] {
						continue
					}
					visited[neighbor] = true
					next = append(next, neighbor)

					d, ok := acc[neighbor]
					if !ok {
						d = &seedDistances{min: hop, max: hop}
						acc[neighbor] = d
					} else {
						if hop < d.min {
							d.min = hop
						}
						if hop > d.max {
							d.max = hop
						}
					}
					d.count++
					d.sum += hop
				}
			}
		}

		frontier = next
	}
}
