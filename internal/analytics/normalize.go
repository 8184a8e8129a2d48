// Package analytics reshapes subgraph pair data into the records and figures
// shown on a pair analytics page.
package analytics

import (
	"slices"

	"github.com/lpdesk/lpdesk/internal/domain"
)

// NormalizeSwap attributes the amounts and tokens of a swap so that token0 and
// amount0 always describe the side that left the pool.
func NormalizeSwap(s domain.RawSwap) domain.TransactionRecord {
	rec := domain.TransactionRecord{
		Kind:      domain.TxnSwap,
		Hash:      s.Hash,
		Timestamp: s.Timestamp,
		Account:   s.Origin,
		AmountUSD: s.AmountUSD,
	}

	var token0Out bool
	switch s.Schema {
	case domain.SchemaV2:
		token0Out = s.V2.Amount0Out.IsPositive()
		rec.Amount0 = s.V2.Amount1Out
		if token0Out {
			rec.Amount0 = s.V2.Amount0Out
		}
		rec.Amount1 = s.V2.Amount1In
		if s.V2.Amount0In.IsPositive() {
			rec.Amount1 = s.V2.Amount0In
		}
	default:
		token0Out = s.V3.Amount0.IsPositive()
		if token0Out {
			rec.Amount0 = s.V3.Amount0
			rec.Amount1 = s.V3.Amount1.Abs()
		} else {
			rec.Amount0 = s.V3.Amount1.Abs()
			rec.Amount1 = s.V3.Amount0.Abs()
		}
	}

	if token0Out {
		rec.Token0, rec.Token1 = s.Pair.Token0, s.Pair.Token1
	} else {
		rec.Token0, rec.Token1 = s.Pair.Token1, s.Pair.Token0
	}
	return rec
}

func liquidityRecord(kind domain.TxnKind, e domain.RawLiquidityEvent) domain.TransactionRecord {
	return domain.TransactionRecord{
		Kind:      kind,
		Hash:      e.Hash,
		Timestamp: e.Timestamp,
		Account:   e.Origin,
		Amount0:   e.Amount0,
		Amount1:   e.Amount1,
		Token0:    e.Pair.Token0,
		Token1:    e.Pair.Token1,
		AmountUSD: e.AmountUSD,
	}
}

// NormalizeTransactions flattens a pair's events into one tagged sequence:
// adds, then swaps, then removes. A nil input yields nil.
func NormalizeTransactions(raw *domain.RawPairTransactions) []domain.TransactionRecord {
	if raw == nil {
		return nil
	}
	out := make([]domain.TransactionRecord, 0, len(raw.Mints)+len(raw.Swaps)+len(raw.Burns))
	for _, m := range raw.Mints {
		out = append(out, liquidityRecord(domain.TxnAdd, m))
	}
	for _, s := range raw.Swaps {
		if s.Schema == "" {
			s.Schema = raw.Schema
		}
		out = append(out, NormalizeSwap(s))
	}
	for _, b := range raw.Burns {
		out = append(out, liquidityRecord(domain.TxnRemove, b))
	}
	return out
}

// SortByTimestamp returns a copy of records ordered newest first. Records with
// the same timestamp keep their relative order.
func SortByTimestamp(records []domain.TransactionRecord) []domain.TransactionRecord {
	out := slices.Clone(records)
	slices.SortStableFunc(out, func(a, b domain.TransactionRecord) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	return out
}

// FilterKind keeps only records of the given kind. An empty kind keeps all.
func FilterKind(records []domain.TransactionRecord, kind domain.TxnKind) []domain.TransactionRecord {
	if kind == "" {
		return records
	}
	out := make([]domain.TransactionRecord, 0, len(records))
	for _, r := range records {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}
