package model

// Confusion counts binary predictions against the true labels.
type Confusion struct {
	TrueNegatives  int `json:"tn"`
	FalsePositives int `json:"fp"`
	FalseNegatives int `json:"fn"`
	TruePositives  int `json:"tp"`
}

// Metrics summarizes classifier quality on a held-out test set.
// Undefined ratios (no predicted or actual positives) are reported as 0.
type Metrics struct {
	Accuracy  float64   `json:"accuracy"`
	Precision float64   `json:"precision"`
	Recall    float64   `json:"recall"`
	F1        float64   `json:"f1"`
	Support   int       `json:"support"`
	Confusion Confusion `json:"confusion"`
}

// Evaluate compares predicted labels with actual labels. Extra entries in the
// longer slice are ignored.
func Evaluate(predicted, actual []int) Metrics {
	n := min(len(predicted), len(actual))

	var c Confusion
	for i := 0; i < n; i++ {
		switch {
		case predicted[i] == 1 && actual[i] == 1:
			c.TruePositives++
		case predicted[i] == 1:
			c.FalsePositives++
		case actual[i] == 1:
			c.FalseNegatives++
		default:
			c.TrueNegatives++
		}
	}

	m := Metrics{Support: n, Confusion: c}
	if n > 0 {
		m.Accuracy = float64(c.TruePositives+c.TrueNegatives) / float64(n)
	}
	m.Precision = ratio(c.TruePositives, c.TruePositives+c.FalsePositives)
	m.Recall = ratio(c.TruePositives, c.TruePositives+c.FalseNegatives)
	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	return m
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
