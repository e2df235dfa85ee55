package scanner

import (
	"oanda-trading-bot/internal/broker"
)

// correlationIndex maps normalized symbols to the groups they belong to.
type correlationIndex map[string][]string

func buildCorrelationIndex(groups map[string][]string) correlationIndex {
	idx := make(correlationIndex)
	for name, symbols := range groups {
		for _, s := range symbols {
			norm := broker.NormalizeSymbol(s)
			idx[norm] = append(idx[norm], name)
		}
	}
	return idx
}

func (idx correlationIndex) shareGroup(a, b string) bool {
	groupsA := idx[broker.NormalizeSymbol(a)]
	groupsB := idx[broker.NormalizeSymbol(b)]
	for _, ga := range groupsA {
		for _, gb := range groupsB {
			if ga == gb {
				return true
			}
		}
	}
	return false
}

// AdjustForCorrelation penalizes opportunities that stack exposure inside
// one correlation group. Each same-direction groupmate adds 0.3 to the
// correlation estimate, each opposite-direction one 0.1, capped at 1.0;
// the score is then scaled by (1 - correlation/2).
func AdjustForCorrelation(opps []Opportunity, groups map[string][]string) []Opportunity {
	idx := buildCorrelationIndex(groups)

	out := make([]Opportunity, len(opps))
	copy(out, opps)
	for i := range out {
		corr := 0.0
		for j := range out {
			if i == j || !idx.shareGroup(out[i].Symbol, out[j].Symbol) {
				continue
			}
			if out[i].Direction == out[j].Direction {
				corr += 0.3
			} else {
				corr += 0.1
			}
		}
		if corr > 1.0 {
			corr = 1.0
		}
		out[i].Correlation = corr
		out[i].Score = out[i].RawScore * (1 - corr*0.5)
	}
	return out
}
