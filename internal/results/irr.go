package results

// PercentAgreement is the average, over items with at least two ratings, of
// the fraction of rater pairs that chose the same category. Returns false
// when no item has two ratings to compare.
func PercentAgreement(items map[string][]string) (float64, bool) {
	var sum float64
	var eligible int
	for _, ratings := range items {
		n := len(ratings)
		if n < 2 {
			continue
		}
		var agree, pairs int
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				pairs++
				if ratings[i] == ratings[j] {
					agree++
				}
			}
		}
		sum += float64(agree) / float64(pairs)
		eligible++
	}
	if eligible == 0 {
		return 0, false
	}
	return sum / float64(eligible), true
}

// FleissKappa computes Fleiss' kappa over items with at least two ratings,
// tolerating unequal rater counts per item. Returns false when the statistic
// is undefined: no eligible items, or expected agreement of 1 (every rating
// in a single category leaves nothing to correct for).
func FleissKappa(items map[string][]string) (float64, bool) {
	var itemAgreements []float64
	categoryTotals := make(map[string]int)
	var ratingTotal int

	for _, ratings := range items {
		n := len(ratings)
		if n < 2 {
			continue
		}
		counts := make(map[string]int)
		for _, r := range ratings {
			counts[r]++
			categoryTotals[r]++
		}
		ratingTotal += n
		var sumSquares int
		for _, c := range counts {
			sumSquares += c * c
		}
		itemAgreements = append(itemAgreements, float64(sumSquares-n)/float64(n*(n-1)))
	}
	if len(itemAgreements) == 0 {
		return 0, false
	}

	var observed float64
	for _, p := range itemAgreements {
		observed += p
	}
	observed /= float64(len(itemAgreements))

	var expected float64
	for _, total := range categoryTotals {
		p := float64(total) / float64(ratingTotal)
		expected += p * p
	}

	denom := 1 - expected
	if denom < 1e-12 {
		return 0, false
	}
	return (observed - expected) / denom, true
}
