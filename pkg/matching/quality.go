package matching

// Quality grades a match score for display.
type Quality string

const (
	QualityExcellent Quality = "excellent"
	QualityGood      Quality = "good"
	QualityModerate  Quality = "moderate"
	QualityPoor      Quality = "poor"
)

// Grade maps a score onto a Quality.
func Grade(score float64) Quality {
	switch {
	case score >= 0.8:
		return QualityExcellent
	case score >= 0.6:
		return QualityGood
	case score >= 0.4:
		return QualityModerate
	default:
		return QualityPoor
	}
}

func (q Quality) Explanation() string {
	switch q {
	case QualityExcellent:
		return "This is very likely the correct location!"
	case QualityGood:
		return "Strong similarity, but maybe not perfect."
	case QualityModerate:
		return "Some similarity, but probably not the right spot."
	default:
		return "Very low similarity - keep searching!"
	}
}
