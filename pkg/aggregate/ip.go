package aggregate

import (
	"fmt"
	"sort"

	"github.com/dd0wney/beaconforge/pkg/graph"
)

// IPScore is the aggregate over the Domains sharing one server
// address. An IP hosting many malicious domains is itself a risk
// indicator, independent of any single FQDN on it.
type IPScore struct {
	IP string

	CntDom    int // ipDom
	CntMalDom int // ipMalDom

	MalDomRatio float64

	SumDomMalEng float64
	MaxDomMalEng float64
	MinDomMalEng float64
	AvgDomMalEng float64
}

// IPPass recomputes the aggregate for every IP node. It consumes the
// Domain pass output, so the Domain pass must have run on the same
// graph state first.
func IPPass(store graph.Store, domainScores map[string]DomainScore) (map[string]IPScore, error) {
	scores := make(map[string]IPScore)

	for _, ip := range store.NodesByKind(graph.KindIP) {
		score := scoreIP(store, ip.Key, domainScores)
		scores[ip.Key] = score

		if err := writeIPScore(store, score); err != nil {
			return nil, err
		}
	}

	return scores, nil
}

func scoreIP(store graph.Store, ip string, domainScores map[string]DomainScore) IPScore {
	score := IPScore{IP: ip}
	ref := graph.NodeRef{Kind: graph.KindIP, Key: ip}

	domains := make(map[string]struct{})
	for _, fref := range store.In(ref, graph.EdgeResolvesTo) {
		for _, dref := range store.Out(fref, graph.EdgeBelongsTo) {
			domains[dref.Key] = struct{}{}
		}
	}

	var eng summary
	for domain := range domains {
		score.CntDom++
		ds, ok := domainScores[domain]
		if !ok {
			continue
		}
		if ds.CntMalFQDNs > 0 {
			score.CntMalDom++
		}
		eng.add(ds.SumMalEng)
	}

	score.MalDomRatio = ratio(float64(score.CntMalDom), float64(score.CntDom))
	score.SumDomMalEng = eng.sum
	score.MaxDomMalEng = eng.max
	score.MinDomMalEng = eng.min
	score.AvgDomMalEng = eng.avg()

	return score
}

func writeIPScore(store graph.Store, score IPScore) error {
	_, _, err := store.UpsertNode(graph.KindIP, score.IP, map[string]graph.Value{
		"ipDom":          graph.IntValue(int64(score.CntDom)),
		"ipMalDom":       graph.IntValue(int64(score.CntMalDom)),
		"ipMalDom_ratio": graph.FloatValue(score.MalDomRatio),
		"sumIpDomMalEng": graph.FloatValue(score.SumDomMalEng),
		"maxIpDomMalEng": graph.FloatValue(score.MaxDomMalEng),
		"minIpDomMalEng": graph.FloatValue(score.MinDomMalEng),
		"avgIpDomMalEng": graph.FloatValue(score.AvgDomMalEng),
	})
	if err != nil {
		return fmt.Errorf("failed to write aggregate for IP %s: %w", score.IP, err)
	}
	return nil
}

// SortedIPs returns the score keys in deterministic order for export.
func SortedIPs(scores map[string]IPScore) []string {
	keys := make([]string, 0, len(scores))
	for k := range scores {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
