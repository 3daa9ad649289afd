package warehouse

import (
	"context"
	"fmt"
	"time"

	"github.com/kdimtricp/moviewarehouse/internal/rawstore"
)

// Counter reports document counts per raw collection.
type Counter interface {
	Counts(ctx context.Context) (map[string]int64, error)
}

type TableCount struct {
	Table     string `json:"table"`
	RawStore  int64  `json:"raw_store"`
	Warehouse int64  `json:"warehouse"`
	Match     bool   `json:"match"`
}

type VerifyReport struct {
	Tables    []TableCount `json:"tables"`
	OK        bool         `json:"ok"`
	CheckedAt time.Time    `json:"checked_at"`
}

// Mismatches returns the tables whose counts differ.
func (r VerifyReport) Mismatches() []TableCount {
	var out []TableCount
	for _, t := range r.Tables {
		if !t.Match {
			out = append(out, t)
		}
	}
	return out
}

// Verify compares raw store document counts with warehouse row counts for
// every raw table.
func (db *DB) Verify(ctx context.Context, counter Counter) (VerifyReport, error) {
	raw, err := counter.Counts(ctx)
	if err != nil {
		return VerifyReport{}, fmt.Errorf("counting raw store: %w", err)
	}

	report := VerifyReport{OK: true, CheckedAt: time.Now().UTC()}
	for _, name := range rawstore.Collections {
		n, err := db.Count(ctx, name)
		if err != nil {
			return VerifyReport{}, err
		}

		tc := TableCount{Table: name, RawStore: raw[name], Warehouse: n}
		tc.Match = tc.RawStore == tc.Warehouse
		if !tc.Match {
			report.OK = false
		}
		report.Tables = append(report.Tables, tc)
	}

	return report, nil
}
