package grading

import "assessment-engine/internal/domain"

// DefaultLightCopyingThreshold is the highest offense total still classed as light copying.
const DefaultLightCopyingThreshold = 3

func CheatingStatus(offenses domain.Offenses, lightThreshold int) domain.CheatingStatus {
	total := offenses.Total()
	switch {
	case total == 0:
		return domain.NoCopying
	case total <= lightThreshold:
		return domain.LightCopying
	default:
		return domain.HeavyCopying
	}
}

// Recompute derives totals and the verdict from the record's items. A record with manual
// items stays provisional until the review is finished, however many marks are in.
func Recompute(g *domain.GradeRecord, passingPercentage float64, reviewFinished bool) {
	total, obtainable := 0.0, 0.0
	for _, it := range g.Items {
		total += it.ObtainedMarks
		obtainable += it.MaxMarks
	}
	g.Total = total
	g.Obtainable = obtainable
	if obtainable > 0 {
		g.Percentage = total / obtainable * 100
	} else {
		g.Percentage = 0
	}
	g.Passed = g.Percentage >= passingPercentage
	g.Provisional = g.HasManualItems() && !reviewFinished
}

// Finalize closes review: flagged items keep their current mark and the verdict stops being provisional.
func Finalize(g *domain.GradeRecord, passingPercentage float64) {
	for i := range g.Items {
		if g.Items[i].NeedsManualReview {
			g.Items[i].Reviewed = true
		}
	}
	Recompute(g, passingPercentage, true)
}
