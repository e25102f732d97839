package metrics

import "hedge-lab/internal/domain"

// computeSummary derives the headline counts. Coverage percentages are 0
// when the population is empty.
func computeSummary(pairs []domain.HedgePair, pop Population) Summary {
	s := Summary{TotalPairs: len(pairs)}
	if len(pairs) == 0 {
		return s
	}

	users := make(map[string]struct{})
	accounts := make(map[string]struct{})
	confidences := make([]float64, len(pairs))

	for i := range pairs {
		p := &pairs[i]
		switch p.Type {
		case domain.PairTypeSelfHedge:
			s.SelfHedges++
		case domain.PairTypeInterUserHedge:
			s.InterUserHedges++
		}
		confidences[i] = p.Confidence

		users[p.TradeA.UserID] = struct{}{}
		users[p.TradeB.UserID] = struct{}{}
		accounts[p.TradeA.AccountID] = struct{}{}
		accounts[p.TradeB.AccountID] = struct{}{}
	}

	s.AvgConfidence = computeMean(confidences)
	s.UniqueUsers = len(users)
	s.UniqueAccounts = len(accounts)
	s.UsersPercentage = percentage(s.UniqueUsers, pop.Users)
	s.AccountsPercentage = percentage(s.UniqueAccounts, pop.Accounts)
	return s
}

// computeMean calculates arithmetic mean.
func computeMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// percentage returns part/whole*100, or 0 when whole is 0.
func percentage(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}
