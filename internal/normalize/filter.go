package normalize

import (
	"fmt"

	"nba_altprops/ingestion/internal/metrics"
	"nba_altprops/ingestion/internal/models"
)

// SidePolicy decides which grouped lines are persisted
type SidePolicy string

const (
	// KeepAll persists every grouped line, including ones with no price
	KeepAll SidePolicy = "keep_all"
	// DropEmpty drops lines that have neither an over nor an under price
	DropEmpty SidePolicy = "drop_empty"
	// TwoSided keeps only lines that have both prices
	TwoSided SidePolicy = "two_sided"
)

// ParseSidePolicy validates a policy name
func ParseSidePolicy(s string) (SidePolicy, error) {
	switch p := SidePolicy(s); p {
	case KeepAll, DropEmpty, TwoSided:
		return p, nil
	case "":
		return TwoSided, nil
	default:
		return "", fmt.Errorf("unknown side policy %q", s)
	}
}

// FilterLines applies the side policy to grouped lines, preserving order
func FilterLines(lines []models.OddsLine, policy SidePolicy) []models.OddsLine {
	if policy == KeepAll {
		return lines
	}

	kept := make([]models.OddsLine, 0, len(lines))
	for i := range lines {
		switch policy {
		case DropEmpty:
			if !lines[i].HasAnySide() {
				continue
			}
		default:
			if !lines[i].HasBothSides() {
				continue
			}
		}
		kept = append(kept, lines[i])
	}

	metrics.RecordLinesFiltered(string(policy), len(lines)-len(kept))
	return kept
}
