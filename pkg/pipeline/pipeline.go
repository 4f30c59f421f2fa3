// Package pipeline orchestrates one day's run: ingest, graph upsert,
// label merge, the two aggregation passes, distance scoring, score
// exports and final feature assembly. Passes run single-threaded in
// that fixed order because each depends on the previous pass's writes.
// A failed run is retried wholesale; upsert idempotency makes the
// retry safe.
package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/dd0wney/beaconforge/pkg/aggregate"
	"github.com/dd0wney/beaconforge/pkg/config"
	"github.com/dd0wney/beaconforge/pkg/distance"
	"github.com/dd0wney/beaconforge/pkg/graph"
	"github.com/dd0wney/beaconforge/pkg/ingest"
	"github.com/dd0wney/beaconforge/pkg/labels"
	"github.com/dd0wney/beaconforge/pkg/logging"
	"github.com/dd0wney/beaconforge/pkg/metrics"
)

// Scaffolding join columns never published in the final table.
var dropColumns = []string{"domain", "registered_domain"}

// Pipeline runs the daily feature build.
type Pipeline struct {
	cfg config.Config
	log logging.Logger
	met *metrics.Registry
}

// New creates a pipeline. logger and reg may be nil.
func New(cfg config.Config, logger logging.Logger, reg *metrics.Registry) *Pipeline {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if reg == nil {
		reg = metrics.NewRegistry(nil)
	}
	return &Pipeline{cfg: cfg, log: logger, met: reg}
}

// Run executes one day end to end. Fatal errors abort before the
// final table or the graph snapshot is published, so downstream
// consumers never observe partial state.
func (p *Pipeline) Run() error {
	runID := uuid.NewString()
	log := p.log.With(logging.RunID(runID), logging.Day(p.cfg.Day))

	if err := p.run(log); err != nil {
		p.met.RunsTotal.WithLabelValues("error").Inc()
		log.Error("run failed", logging.Error(err))
		return err
	}

	p.met.RunsTotal.WithLabelValues("ok").Inc()
	return nil
}

func (p *Pipeline) run(log logging.Logger) error {
	runDay, err := p.cfg.RunDay()
	if err != nil {
		return fmt.Errorf("invalid run day: %w", err)
	}
	if err := os.MkdirAll(p.cfg.OutDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	// Store unavailability is fatal: no partial aggregation.
	store, err := graph.Open(p.cfg.DataDir)
	if err != nil {
		return err
	}

	targets, err := p.ingestPass(log, store)
	if err != nil {
		return err
	}

	if err := p.labelPass(log, store); err != nil {
		return err
	}

	domainScores, ipScores, err := p.aggregatePass(log, store, runDay)
	if err != nil {
		return err
	}

	distScores, err := p.distancePass(log, store, targets)
	if err != nil {
		return err
	}

	if err := p.exportScores(domainScores, ipScores, distScores); err != nil {
		return err
	}

	if err := p.assemblePass(log, store, targets, domainScores, ipScores, distScores); err != nil {
		return err
	}

	// Persist the cumulative graph only after a fully successful run.
	if err := store.Snapshot(); err != nil {
		return err
	}

	stats := store.Statistics()
	p.met.GraphNodesTotal.Set(float64(stats.NodeCount))
	p.met.GraphEdgesTotal.Set(float64(stats.EdgeCount))
	log.Info("run complete",
		logging.Uint64("graph_nodes", stats.NodeCount),
		logging.Uint64("graph_edges", stats.EdgeCount))
	return nil
}

// ingestPass reads and upserts the daily batch, returning the distinct
// hosts observed today in first-seen order.
func (p *Pipeline) ingestPass(log logging.Logger, store graph.Store) ([]string, error) {
	timer := logging.StartTimer(log, "ingest pass done", logging.Pass("ingest"))
	start := time.Now()

	popularity, err := p.readPopularity(log)
	if err != nil {
		return nil, err
	}

	res, err := ingest.ReadTraffic(p.cfg.Inputs.Traffic, p.cfg.Day, popularity)
	if err != nil {
		timer.EndError(err)
		return nil, err
	}

	batch, err := store.UpsertBatch(res.Rows)
	if err != nil {
		timer.EndError(err)
		return nil, err
	}

	p.met.RowsIngestedTotal.Add(float64(batch.RowsApplied))
	p.met.RowErrorsTotal.Add(float64(res.RowErrors + batch.RowsSkipped))
	p.met.NodesCreatedTotal.Add(float64(batch.NodesCreated))
	p.met.EdgesCreatedTotal.Add(float64(batch.EdgesCreated))
	p.met.ObservePass("ingest", time.Since(start))

	timer.End(
		logging.Int("rows", batch.RowsApplied),
		logging.Int("row_errors", res.RowErrors+batch.RowsSkipped),
		logging.Int("nodes_created", batch.NodesCreated),
		logging.Int("edges_created", batch.EdgesCreated))

	seen := make(map[string]bool, len(res.Rows))
	targets := make([]string, 0, len(res.Rows))
	for _, row := range res.Rows {
		if row.Host == "" || seen[row.Host] {
			continue
		}
		seen[row.Host] = true
		targets = append(targets, row.Host)
	}
	return targets, nil
}

func (p *Pipeline) readPopularity(log logging.Logger) (map[string]float64, error) {
	if p.cfg.Inputs.Popularity == "" {
		return nil, nil
	}
	popularity, err := ingest.ReadPopularity(p.cfg.Inputs.Popularity)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn("popularity file missing, scores default to 0",
				logging.Path(p.cfg.Inputs.Popularity))
			return nil, nil
		}
		return nil, err
	}
	return popularity, nil
}

// labelPass merges the malicious history onto the graph. A missing
// history file means no labels to propagate this run, not a failure.
func (p *Pipeline) labelPass(log logging.Logger, store graph.Store) error {
	if p.cfg.Inputs.MaliciousHistory == "" {
		return nil
	}
	start := time.Now()

	rows, err := ingest.ReadMaliciousHistory(p.cfg.Inputs.MaliciousHistory)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn("malicious history missing, propagating no labels",
				logging.Path(p.cfg.Inputs.MaliciousHistory))
			return nil
		}
		return err
	}

	updated, err := labels.Apply(store, rows)
	if err != nil {
		return fmt.Errorf("label propagation failed: %w", err)
	}

	p.met.LabelsAppliedTotal.Add(float64(updated))
	p.met.ObservePass("labels", time.Since(start))
	log.Info("label pass done", logging.Pass("labels"), logging.Count(updated))
	return nil
}

// aggregatePass recomputes Domain then IP aggregates. Both passes run
// to completion before distance scoring; stale aggregates are a
// correctness bug.
func (p *Pipeline) aggregatePass(log logging.Logger, store graph.Store, runDay time.Time) (map[string]aggregate.DomainScore, map[string]aggregate.IPScore, error) {
	policy := aggregate.Policy{Decay: p.cfg.Scoring.Decay, RunDay: runDay}

	start := time.Now()
	domainScores, err := aggregate.DomainPass(store, policy)
	if err != nil {
		return nil, nil, err
	}
	p.met.ObservePass("aggregate_domain", time.Since(start))

	start = time.Now()
	ipScores, err := aggregate.IPPass(store, domainScores)
	if err != nil {
		return nil, nil, err
	}
	p.met.ObservePass("aggregate_ip", time.Since(start))

	log.Info("aggregate passes done", logging.Pass("aggregate"),
		logging.Int("domains", len(domainScores)), logging.Int("ips", len(ipScores)))
	return domainScores, ipScores, nil
}

func (p *Pipeline) distancePass(log logging.Logger, store graph.Store, targets []string) ([]distance.Score, error) {
	start := time.Now()

	idx := distance.BuildIndex(store)
	p.met.MaliciousSeeds.Set(float64(idx.SeedCount()))

	opts := distance.Options{
		Radius:   p.cfg.Distance.Radius,
		Sentinel: p.cfg.Distance.Sentinel,
	}
	scores, err := distance.ScoreAll(idx, targets, opts)
	if err != nil {
		return nil, fmt.Errorf("distance scoring failed: %w", err)
	}

	p.met.ObservePass("distance", time.Since(start))
	log.Info("distance pass done", logging.Pass("distance"),
		logging.Int("targets", len(targets)), logging.Int("seeds", idx.SeedCount()))
	return scores, nil
}

func (p *Pipeline) outPath(name string) string {
	return filepath.Join(p.cfg.OutDir, fmt.Sprintf("%s_%s.csv", name, p.cfg.Day))
}
