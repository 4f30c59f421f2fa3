// Package ingest reads the daily traffic batch and normalizes it into
// graph batch rows: hosts lowercased, registered domains extracted,
// bare-IP hosts flagged. The client address column is read past and
// never surfaces beyond this package.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"

	"golang.org/x/net/publicsuffix"

	"github.com/dd0wney/beaconforge/pkg/graph"
	"github.com/dd0wney/beaconforge/pkg/labels"
)

// Result reports what a traffic read produced.
type Result struct {
	Rows      []graph.BatchRow
	RowErrors int
}

// NormalizeHost lowercases and trims a host string, dropping any
// trailing dot from DNS notation.
func NormalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	return strings.TrimSuffix(host, ".")
}

// RegisteredDomain extracts the public-suffix-aware eTLD+1 for a host.
// Bare-IP hosts report isIP true and no domain. Extraction failure
// falls back to the raw host string rather than dropping the row.
func RegisteredDomain(host string) (domain string, isIP bool) {
	if net.ParseIP(host) != nil {
		return "", true
	}
	etld1, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host, false
	}
	return etld1, false
}

// ReadTraffic loads one day's batch from a CSV of
// (host, server_ip, port, client_ip). Rows with a missing host are
// counted as row errors and skipped; the batch itself never fails on
// them. popularity supplies the externally derived per-host score and
// may be nil.
func ReadTraffic(path, logday string, popularity map[string]float64) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("failed to open traffic batch: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	var res Result
	first := true
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			res.RowErrors++
			continue
		}
		if first {
			first = false
			if isTrafficHeader(record) {
				continue
			}
		}

		row, ok := parseTrafficRecord(record, logday, popularity)
		if !ok {
			res.RowErrors++
			continue
		}
		res.Rows = append(res.Rows, row)
	}

	return res, nil
}

func isTrafficHeader(record []string) bool {
	return len(record) > 0 && strings.EqualFold(strings.TrimSpace(record[0]), "host")
}

func parseTrafficRecord(record []string, logday string, popularity map[string]float64) (graph.BatchRow, bool) {
	if len(record) < 2 {
		return graph.BatchRow{}, false
	}

	host := NormalizeHost(record[0])
	if host == "" {
		return graph.BatchRow{}, false
	}

	serverIP := strings.TrimSpace(record[1])
	if serverIP != "" && net.ParseIP(serverIP) == nil {
		return graph.BatchRow{}, false
	}

	domain, isIP := RegisteredDomain(host)

	row := graph.BatchRow{
		Host:             host,
		ServerIP:         serverIP,
		RegisteredDomain: domain,
		IsIP:             isIP,
		LogDay:           logday,
		Popularity:       -1,
	}
	if score, ok := popularity[host]; ok {
		row.Popularity = score
	}
	return row, true
}

// ReadPopularity loads the externally derived per-host popularity
// scores from a CSV of (host, score).
func ReadPopularity(path string) (map[string]float64, error) {
	records, err := readAll(path)
	if err != nil {
		return nil, err
	}

	scores := make(map[string]float64)
	for _, record := range records {
		if len(record) < 2 {
			continue
		}
		host := NormalizeHost(record[0])
		score, err := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
		if host == "" || err != nil {
			continue
		}
		scores[host] = score
	}
	return scores, nil
}

// ReadMaliciousHistory loads the historical malicious list from a CSV
// of (host, engagement_score, ...). Trailing decay metadata columns
// are ignored.
func ReadMaliciousHistory(path string) ([]labels.MaliciousRow, error) {
	records, err := readAll(path)
	if err != nil {
		return nil, err
	}

	rows := make([]labels.MaliciousRow, 0, len(records))
	for _, record := range records {
		if len(record) < 2 {
			continue
		}
		host := NormalizeHost(record[0])
		engagement, err := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
		if host == "" || err != nil || engagement < 0 {
			continue
		}
		rows = append(rows, labels.MaliciousRow{Host: host, Engagement: engagement})
	}
	return rows, nil
}

func readAll(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(records) > 0 && isTrafficHeader(records[0]) {
		records = records[1:]
	}
	return records, nil
}
