package graph

// BatchRow is one row of a daily traffic batch, already normalized by
// the ingest layer: host lowercased, registered domain extracted, bare
// IP hosts flagged. Client addresses never reach the graph.
type BatchRow struct {
	Host             string
	ServerIP         string
	RegisteredDomain string
	IsIP             bool
	LogDay           string
	// Popularity is the externally derived global-rank score in [0,1].
	// Negative means "not supplied, leave the stored value alone".
	Popularity float64
}

// BatchResult reports what a batch upsert touched, for observability.
type BatchResult struct {
	RowsApplied  int
	RowsSkipped  int
	NodesCreated int
	EdgesCreated int
}

// UpsertBatch applies one day's rows on top of the cumulative graph.
// Applying the same batch twice yields the same graph state as
// applying it once. Malformed rows (missing host) are skipped and
// counted, never fatal.
func (ms *MemoryStore) UpsertBatch(rows []BatchRow) (BatchResult, error) {
	var res BatchResult

	for _, row := range rows {
		if row.Host == "" {
			res.RowsSkipped++
			continue
		}

		props := map[string]Value{
			PropLogDay: StringValue(row.LogDay),
			PropIsIP:   BoolValue(row.IsIP),
		}
		if row.Popularity >= 0 {
			props[PropPopularity] = FloatValue(row.Popularity)
		}

		fqdn, created, err := ms.UpsertNode(KindFQDN, row.Host, props)
		if err != nil {
			res.RowsSkipped++
			continue
		}
		if created {
			res.NodesCreated++
		}

		// A bare-IP host collapses onto itself, no Domain node.
		if !row.IsIP && row.RegisteredDomain != "" {
			_, created, err := ms.UpsertNode(KindDomain, row.RegisteredDomain, nil)
			if err == nil {
				if created {
					res.NodesCreated++
				}
				added, err := ms.UpsertEdge(fqdn.Ref(), NodeRef{Kind: KindDomain, Key: row.RegisteredDomain}, EdgeBelongsTo)
				if err == nil && added {
					res.EdgesCreated++
				}
			}
		}

		if row.ServerIP != "" {
			_, created, err := ms.UpsertNode(KindIP, row.ServerIP, nil)
			if err == nil {
				if created {
					res.NodesCreated++
				}
				added, err := ms.UpsertEdge(fqdn.Ref(), NodeRef{Kind: KindIP, Key: row.ServerIP}, EdgeResolvesTo)
				if err == nil && added {
					res.EdgesCreated++
				}
			}
		}

		res.RowsApplied++
	}

	return res, nil
}
