package aggregate

import (
	"fmt"
	"sort"

	"github.com/dd0wney/beaconforge/pkg/graph"
)

// DomainScore is the aggregate over one Domain node's FQDN children
// and, transitively, the IPs those children resolve to.
type DomainScore struct {
	Domain string

	CntFQDN     int
	CntIP       int
	CntMalFQDNs int

	SumMalEng float64
	MaxMalEng float64
	MinMalEng float64
	AvgMalEng float64

	MaxCisco float64
	MinCisco float64
	AvgCisco float64

	MalFQDNRatio float64
	MalEngRatio  float64

	SumMal float64
	MaxMal float64
	MinMal float64
	AvgMal float64
}

// DomainPass recomputes the aggregate for every Domain node in the
// graph and writes it back onto the node's properties. Returns the
// scores keyed by registered domain.
func DomainPass(store graph.Store, policy Policy) (map[string]DomainScore, error) {
	scores := make(map[string]DomainScore)

	for _, domain := range store.NodesByKind(graph.KindDomain) {
		score, err := scoreDomain(store, domain.Key, policy)
		if err != nil {
			return nil, fmt.Errorf("domain pass failed on %s: %w", domain.Key, err)
		}
		scores[domain.Key] = score

		if err := writeDomainScore(store, score); err != nil {
			return nil, err
		}
	}

	return scores, nil
}

func scoreDomain(store graph.Store, domain string, policy Policy) (DomainScore, error) {
	score := DomainScore{Domain: domain}
	ref := graph.NodeRef{Kind: graph.KindDomain, Key: domain}

	var eng, cisco, mal summary
	ips := make(map[string]struct{})

	for _, fref := range store.In(ref, graph.EdgeBelongsTo) {
		fqdn, err := store.Node(graph.KindFQDN, fref.Key)
		if err != nil {
			return score, fmt.Errorf("missing FQDN %s: %w", fref.Key, err)
		}

		score.CntFQDN++
		if fqdn.Bool(graph.PropIsMalicious) {
			score.CntMalFQDNs++
		}

		engagement := fqdn.Float(graph.PropMalEngagement)
		eng.add(engagement)
		cisco.add(fqdn.Float(graph.PropPopularity))
		mal.add(policy.Composite(engagement, fqdn.Text(graph.PropLogDay)))

		for _, ipRef := range store.Out(fref, graph.EdgeResolvesTo) {
			ips[ipRef.Key] = struct{}{}
		}
	}

	score.CntIP = len(ips)

	score.SumMalEng = eng.sum
	score.MaxMalEng = eng.max
	score.MinMalEng = eng.min
	score.AvgMalEng = eng.avg()

	score.MaxCisco = cisco.max
	score.MinCisco = cisco.min
	score.AvgCisco = cisco.avg()

	score.MalFQDNRatio = ratio(float64(score.CntMalFQDNs), float64(score.CntFQDN))
	score.MalEngRatio = ratio(score.SumMalEng, float64(score.CntFQDN))

	score.SumMal = mal.sum
	score.MaxMal = mal.max
	score.MinMal = mal.min
	score.AvgMal = mal.avg()

	return score, nil
}

func writeDomainScore(store graph.Store, score DomainScore) error {
	_, _, err := store.UpsertNode(graph.KindDomain, score.Domain, map[string]graph.Value{
		"cntFQDN":       graph.IntValue(int64(score.CntFQDN)),
		"cntIP":         graph.IntValue(int64(score.CntIP)),
		"cntMalFQDNs":   graph.IntValue(int64(score.CntMalFQDNs)),
		"sumMalEng":     graph.FloatValue(score.SumMalEng),
		"maxMalEng":     graph.FloatValue(score.MaxMalEng),
		"minMalEng":     graph.FloatValue(score.MinMalEng),
		"avgMalEng":     graph.FloatValue(score.AvgMalEng),
		"maxCisco":      graph.FloatValue(score.MaxCisco),
		"minCisco":      graph.FloatValue(score.MinCisco),
		"avgCisco":      graph.FloatValue(score.AvgCisco),
		"malFQDN_ratio": graph.FloatValue(score.MalFQDNRatio),
		"malEng_ratio":  graph.FloatValue(score.MalEngRatio),
		"sumMal":        graph.FloatValue(score.SumMal),
		"maxMal":        graph.FloatValue(score.MaxMal),
		"minMal":        graph.FloatValue(score.MinMal),
		"avgMal":        graph.FloatValue(score.AvgMal),
	})
	if err != nil {
		return fmt.Errorf("failed to write aggregate for domain %s: %w", score.Domain, err)
	}
	return nil
}

// SortedDomains returns the score keys in deterministic order for
// export.
func SortedDomains(scores map[string]DomainScore) []string {
	keys := make([]string, 0, len(scores))
	for k := range scores {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
