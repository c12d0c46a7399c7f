package normalize

import "nba_altprops/ingestion/internal/models"

// PreserveFirstSeen computes the row to persist for a freshly grouped
// candidate given the stored row for the same key, if any.
//
// Current prices always come from the candidate. First-seen prices are kept
// from previous when set there; otherwise they take the candidate's prices.
func PreserveFirstSeen(candidate models.OddsLine, previous *models.OddsLine) models.OddsLine {
	merged := candidate
	merged.FirstOverPrice = candidate.OverPrice
	merged.FirstUnderPrice = candidate.UnderPrice

	if previous == nil {
		return merged
	}

	if previous.FirstOverPrice.Valid {
		merged.FirstOverPrice = previous.FirstOverPrice
	}
	if previous.FirstUnderPrice.Valid {
		merged.FirstUnderPrice = previous.FirstUnderPrice
	}

	return merged
}
