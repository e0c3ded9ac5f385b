package counting

import "github.com/montanaflynn/stats"

// Summary aggregates the running variance of a ledger.
type Summary struct {
	Items          int     `json:"items"`
	StoreTotal     int     `json:"quant_loja"`
	WarehouseTotal int     `json:"quant_estoque"`
	StockTotal     int     `json:"saldo_estoque"`
	NetVariance    int     `json:"total"`
	Surplus        int     `json:"surplus_items"`
	Shortage       int     `json:"shortage_items"`
	Matched        int     `json:"matched_items"`
	MeanVariance   float64 `json:"mean_variance"`
	MedianVariance float64 `json:"median_variance"`
}

// VarianceSign classifies a total: 1 surplus, -1 shortage, 0 matched.
func VarianceSign(total int) int {
	switch {
	case total > 0:
		return 1
	case total < 0:
		return -1
	default:
		return 0
	}
}

// Summarize computes the summary of the given records.
func Summarize(records []ProductCount) Summary {
	s := Summary{Items: len(records)}
	if len(records) == 0 {
		return s
	}
	totals := make(stats.Float64Data, 0, len(records))
	for _, rec := range records {
		s.StoreTotal += rec.StoreQuantity
		s.WarehouseTotal += rec.WarehouseQuantity
		s.StockTotal += rec.StockBalance
		s.NetVariance += rec.Total
		switch VarianceSign(rec.Total) {
		case 1:
			s.Surplus++
		case -1:
			s.Shortage++
		default:
			s.Matched++
		}
		totals = append(totals, float64(rec.Total))
	}
	if mean, err := stats.Mean(totals); err == nil {
		s.MeanVariance = mean
	}
	if median, err := stats.Median(totals); err == nil {
		s.MedianVariance = median
	}
	return s
}

// Summary summarises the ledger.
func (l *Ledger) Summary() Summary {
	return Summarize(l.records)
}
