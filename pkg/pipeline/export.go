package pipeline

import (
	"os"

	"github.com/dd0wney/beaconforge/pkg/aggregate"
	"github.com/dd0wney/beaconforge/pkg/assemble"
	"github.com/dd0wney/beaconforge/pkg/distance"
	"github.com/dd0wney/beaconforge/pkg/graph"
	"github.com/dd0wney/beaconforge/pkg/logging"
)

var domainScoreColumns = []string{
	"cntFQDN", "cntIP", "cntMalFQDNs",
	"sumMalEng", "maxMalEng", "minMalEng", "avgMalEng",
	"maxCisco", "minCisco", "avgCisco",
	"malFQDN_ratio", "malEng_ratio",
	"sumMal", "maxMal", "minMal", "avgMal",
}

var ipScoreColumns = []string{
	"ipDom", "ipMalDom", "ipMalDom_ratio",
	"sumIpDomMalEng", "maxIpDomMalEng", "minIpDomMalEng", "avgIpDomMalEng",
}

var distanceColumns = []string{"minMalDist", "avgMalDist", "maxMalDist"}

func domainScoreValues(s aggregate.DomainScore) []float64 {
	return []float64{
		float64(s.CntFQDN), float64(s.CntIP), float64(s.CntMalFQDNs),
		s.SumMalEng, s.MaxMalEng, s.MinMalEng, s.AvgMalEng,
		s.MaxCisco, s.MinCisco, s.AvgCisco,
		s.MalFQDNRatio, s.MalEngRatio,
		s.SumMal, s.MaxMal, s.MinMal, s.AvgMal,
	}
}

func ipScoreValues(s aggregate.IPScore) []float64 {
	return []float64{
		float64(s.CntDom), float64(s.CntMalDom), s.MalDomRatio,
		s.SumDomMalEng, s.MaxDomMalEng, s.MinDomMalEng, s.AvgDomMalEng,
	}
}

// exportScores writes the raw per-node score tables: Domain-level and
// IP-level keyed by node key, distance keyed by host. Each table is
// published atomically.
func (p *Pipeline) exportScores(domainScores map[string]aggregate.DomainScore, ipScores map[string]aggregate.IPScore, distScores []distance.Score) error {
	domains := assemble.NewTable("domain_scores", domainScoreColumns)
	for key, score := range domainScores {
		if err := domains.Set(key, domainScoreValues(score)); err != nil {
			return err
		}
	}
	if err := domains.WriteCSV(p.outPath("domain_scores"), []string{"domain"}, selfKey); err != nil {
		return err
	}

	ips := assemble.NewTable("ip_scores", ipScoreColumns)
	for key, score := range ipScores {
		if err := ips.Set(key, ipScoreValues(score)); err != nil {
			return err
		}
	}
	if err := ips.WriteCSV(p.outPath("ip_scores"), []string{"ip"}, selfKey); err != nil {
		return err
	}

	dist := distanceTable(distScores)
	return dist.WriteCSV(p.outPath("distance_scores"), []string{"host"}, selfKey)
}

func selfKey(key string) []string {
	return []string{key}
}

func distanceTable(scores []distance.Score) *assemble.Table {
	t := assemble.NewTable("distance", distanceColumns)
	for _, s := range scores {
		t.Rows[s.Host] = []float64{s.Min, s.Avg, s.Max}
	}
	return t
}

// hostDomainTable maps each host's registered-domain aggregate onto
// the host key, so domain scores can join the wide table by host.
func hostDomainTable(store graph.Store, targets []string, scores map[string]aggregate.DomainScore) *assemble.Table {
	t := assemble.NewTable("domain", domainScoreColumns)
	for _, host := range targets {
		ref := graph.NodeRef{Kind: graph.KindFQDN, Key: host}
		for _, dref := range store.Out(ref, graph.EdgeBelongsTo) {
			if score, ok := scores[dref.Key]; ok {
				t.Rows[host] = domainScoreValues(score)
			}
			break
		}
	}
	return t
}

// hostIPTable folds the aggregates of every IP a host resolves to
// into one row per host, taking the element-wise maximum. The riskiest
// shared-infrastructure signal wins.
func hostIPTable(store graph.Store, targets []string, scores map[string]aggregate.IPScore) *assemble.Table {
	t := assemble.NewTable("ip", ipScoreColumns)
	for _, host := range targets {
		ref := graph.NodeRef{Kind: graph.KindFQDN, Key: host}

		var row []float64
		for _, ipRef := range store.Out(ref, graph.EdgeResolvesTo) {
			score, ok := scores[ipRef.Key]
			if !ok {
				continue
			}
			values := ipScoreValues(score)
			if row == nil {
				row = values
				continue
			}
			for i, v := range values {
				if v > row[i] {
					row[i] = v
				}
			}
		}
		if row != nil {
			t.Rows[host] = row
		}
	}
	return t
}

// assemblePass joins all feature groups and publishes the wide table.
// Missing optional inputs zero-fill their group with a warning.
func (p *Pipeline) assemblePass(log logging.Logger, store graph.Store, targets []string, domainScores map[string]aggregate.DomainScore, ipScores map[string]aggregate.IPScore, distScores []distance.Score) error {
	external := []struct {
		name string
		path string
	}{
		{"history", p.cfg.Inputs.History},
		{"periodicity", p.cfg.Inputs.Periodicity},
		{"lexical", p.cfg.Inputs.Lexical},
		{"malicious_score", p.cfg.Inputs.MaliciousScore},
	}

	// Precedence order anchors the join.
	tables := []*assemble.Table{
		distanceTable(distScores),
		hostDomainTable(store, targets, domainScores),
		hostIPTable(store, targets, ipScores),
	}

	for _, ext := range external {
		if ext.path == "" {
			continue
		}
		table, err := assemble.ReadCSV(ext.path, ext.name)
		if err != nil {
			if os.IsNotExist(err) {
				log.Warn("feature table missing, group zero-filled",
					logging.String("group", ext.name), logging.Path(ext.path))
				continue
			}
			return err
		}
		tables = append(tables, table)
	}

	wide, err := assemble.Assemble(tables, dropColumns)
	if err != nil {
		return err
	}

	day := p.cfg.Day
	if err := wide.WriteCSV(p.outPath("features"), []string{"host", "day"}, func(host string) []string {
		return []string{host, day}
	}); err != nil {
		return err
	}

	p.met.FeatureRowsPublished.Set(float64(len(wide.Rows)))
	log.Info("feature table published", logging.Pass("assemble"),
		logging.Int("rows", len(wide.Rows)), logging.Int("columns", len(wide.Columns)))
	return nil
}
