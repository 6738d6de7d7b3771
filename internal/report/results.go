package report

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/chriscorrea/civil/internal/model"
	"github.com/chriscorrea/civil/internal/stats"
	"github.com/chriscorrea/civil/internal/store"
)

// Normalized pairs an input with its normalized form.
type Normalized struct {
	Input      string `json:"input"`
	Normalized string `json:"normalized"`
}

// Normalized writes normalization results. Plain text output is the bare
// normalized string per line so it can be piped.
func (p *Printer) Normalized(results []Normalized) error {
	switch p.format {
	case JSON:
		return p.json(results)
	case Text:
		for _, r := range results {
			fmt.Fprintln(p.w, r.Normalized)
		}
		return nil
	default:
		table := p.table("Input", "Normalized")
		for _, r := range results {
			table.Append([]string{preview(r.Input), r.Normalized})
		}
		table.Render()
		return nil
	}
}

// Prediction is a classified input. Segment is -1 when the source was
// classified as a whole.
type Prediction struct {
	Source  string `json:"source"`
	Segment int    `json:"segment"`
	Text    string `json:"text"`
	model.Prediction
}

// Predictions writes classification results followed by a toxic count.
func (p *Printer) Predictions(results []Prediction) error {
	if p.format == JSON {
		return p.json(results)
	}

	toxic := lo.CountBy(results, func(r Prediction) bool { return r.Label == model.Toxic })

	if p.format == Text {
		for _, r := range results {
			fmt.Fprintf(p.w, "%s\t%.3f\t%s\t%s\n", p.label(r.Label), r.Probability, location(r), preview(r.Text))
		}
		return nil
	}

	table := p.table("Source", "Label", "P(toxic)", "Text")
	for _, r := range results {
		table.Append([]string{location(r), p.label(r.Label), fmt.Sprintf("%.3f", r.Probability), preview(r.Text)})
	}
	table.Render()
	fmt.Fprintf(p.w, "\n%d of %d classified toxic\n", toxic, len(results))
	return nil
}

func location(r Prediction) string {
	if r.Segment < 0 {
		return r.Source
	}
	return r.Source + "#" + strconv.Itoa(r.Segment)
}

// trainingJSON is the JSON shape of a training summary
type trainingJSON struct {
	ID          string                    `json:"id"`
	Name        string                    `json:"name,omitempty"`
	Fingerprint string                    `json:"fingerprint"`
	Stemmer     string                    `json:"stemmer"`
	TrainedAt   time.Time                 `json:"trained_at"`
	Params      model.Params              `json:"params"`
	Metrics     model.Metrics             `json:"metrics"`
	TopFeatures []model.FeatureImportance `json:"top_features,omitempty"`
}

// Training writes the summary of a newly trained and stored model: its test
// metrics, confusion matrix and most important terms.
func (p *Printer) Training(rec store.Record, a *model.Artifact) error {
	if p.format == JSON {
		return p.json(trainingJSON{
			ID:          rec.ID,
			Name:        rec.Name,
			Fingerprint: a.Fingerprint,
			Stemmer:     a.Stemmer,
			TrainedAt:   a.TrainedAt,
			Params:      a.Params,
			Metrics:     a.Metrics,
			TopFeatures: a.TopFeatures,
		})
	}

	m := a.Metrics
	rows := [][]string{
		{"Model", rec.ID},
		{"Stemmer", a.Stemmer},
		{"Examples", strconv.Itoa(a.Params.Examples)},
		{"Trees", strconv.Itoa(a.Params.Trees)},
		{"Accuracy", percent(m.Accuracy)},
		{"Precision", percent(m.Precision)},
		{"Recall", percent(m.Recall)},
		{"F1", fmt.Sprintf("%.3f", m.F1)},
		{"Test support", strconv.Itoa(m.Support)},
	}
	if rec.Name != "" {
		rows = append([][]string{{"Name", rec.Name}}, rows...)
	}

	if p.format == Text {
		for _, row := range rows {
			fmt.Fprintf(p.w, "%s: %s\n", strings.ToLower(row[0]), row[1])
		}
		c := m.Confusion
		fmt.Fprintf(p.w, "confusion: tn=%d fp=%d fn=%d tp=%d\n", c.TrueNegatives, c.FalsePositives, c.FalseNegatives, c.TruePositives)
		return nil
	}

	p.heading("Model")
	summary := p.table("Field", "Value")
	summary.AppendBulk(rows)
	summary.Render()

	fmt.Fprintln(p.w)
	p.heading("Confusion matrix (test split)")
	confusion := p.table("Actual", "Predicted non-toxic", "Predicted toxic")
	c := m.Confusion
	confusion.Append([]string{"non-toxic", strconv.Itoa(c.TrueNegatives), strconv.Itoa(c.FalsePositives)})
	confusion.Append([]string{"toxic", strconv.Itoa(c.FalseNegatives), strconv.Itoa(c.TruePositives)})
	confusion.Render()

	if len(a.TopFeatures) > 0 {
		fmt.Fprintln(p.w)
		p.heading("Most important stems")
		features := p.table("Stem", "Importance")
		for _, f := range a.TopFeatures {
			features.Append([]string{f.Term, fmt.Sprintf("%.4f", f.Importance)})
		}
		features.Render()
	}
	return nil
}

// modelJSON is the JSON shape of a registry entry
type modelJSON struct {
	ID          string    `json:"id"`
	Name        string    `json:"name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	Fingerprint string    `json:"fingerprint"`
	Stemmer     string    `json:"stemmer"`
	Examples    int       `json:"examples"`
	Accuracy    float64   `json:"accuracy"`
	F1          float64   `json:"f1"`
}

// Models writes the model registry listing.
func (p *Printer) Models(records []store.Record) error {
	if p.format == JSON {
		return p.json(lo.Map(records, func(r store.Record, _ int) modelJSON {
			return modelJSON{
				ID:          r.ID,
				Name:        r.Name,
				CreatedAt:   r.CreatedAt,
				Fingerprint: r.Fingerprint,
				Stemmer:     r.Stemmer,
				Examples:    r.Examples,
				Accuracy:    r.Accuracy,
				F1:          r.F1,
			}
		}))
	}

	if p.format == Text {
		for _, r := range records {
			fmt.Fprintf(p.w, "%s\t%s\t%s\t%.3f\t%s\n", r.ID, r.CreatedAt.Local().Format(time.DateTime), r.Stemmer, r.F1, r.Name)
		}
		return nil
	}

	if len(records) == 0 {
		fmt.Fprintln(p.w, "No models trained yet.")
		return nil
	}
	table := p.table("ID", "Name", "Created", "Stemmer", "Examples", "Accuracy", "F1")
	for _, r := range records {
		table.Append([]string{
			r.ID,
			r.Name,
			r.CreatedAt.Local().Format(time.DateTime),
			r.Stemmer,
			strconv.Itoa(r.Examples),
			percent(r.Accuracy),
			fmt.Sprintf("%.3f", r.F1),
		})
	}
	table.Render()
	return nil
}

// Stats writes a corpus summary.
func (p *Printer) Stats(s *stats.Summary) error {
	if p.format == JSON {
		return p.json(s)
	}

	if p.format == Text {
		fmt.Fprintf(p.w, "examples: %d\n", s.Examples)
		fmt.Fprintf(p.w, "vocabulary: %d\n", s.Vocabulary)
		fmt.Fprintf(p.w, "retention: %.3f\n", s.Retention)
		for _, c := range s.Classes {
			fmt.Fprintf(p.w, "%s: examples=%d mean_%s=%.1f mean_stems=%.1f empty=%d\n",
				c.Label, c.Examples, s.Unit, c.MeanLength, c.MeanStems, c.Empty)
		}
		return nil
	}

	p.heading("Classes")
	classes := p.table("Label", "Examples", "Mean "+s.Unit, "Mean stems", "Empty", "Top stems")
	for _, c := range s.Classes {
		top := lo.Map(c.TopStems, func(sc stats.StemCount, _ int) string {
			return sc.Stem + " (" + strconv.Itoa(sc.Count) + ")"
		})
		classes.Append([]string{
			p.label(c.Label),
			strconv.Itoa(c.Examples),
			fmt.Sprintf("%.1f", c.MeanLength),
			fmt.Sprintf("%.1f", c.MeanStems),
			strconv.Itoa(c.Empty),
			strings.Join(top, ", "),
		})
	}
	classes.Render()

	fmt.Fprintln(p.w)
	fmt.Fprintf(p.w, "Vocabulary: %d distinct stems\n", s.Vocabulary)
	fmt.Fprintf(p.w, "Retention:  %.3f stems per raw word\n", s.Retention)
	if len(s.Languages) > 0 {
		fmt.Fprintf(p.w, "Languages:  %s (%s non-English)\n", languages(s.Languages), percent(s.NonEnglishShare()))
	}
	return nil
}

// languages formats language counts, most frequent first
func languages(counts map[string]int) string {
	codes := lo.Keys(counts)
	sort.Slice(codes, func(i, j int) bool {
		if counts[codes[i]] != counts[codes[j]] {
			return counts[codes[i]] > counts[codes[j]]
		}
		return codes[i] < codes[j]
	})
	parts := lo.Map(codes, func(code string, _ int) string {
		return code + "=" + strconv.Itoa(counts[code])
	})
	return strings.Join(parts, " ")
}
