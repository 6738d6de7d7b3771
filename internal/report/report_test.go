package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/chriscorrea/civil/internal/model"
	"github.com/chriscorrea/civil/internal/stats"
	"github.com/chriscorrea/civil/internal/store"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    Format
		wantErr bool
	}{
		{"", Table, false},
		{"table", Table, false},
		{" TEXT ", Text, false},
		{"txt", Text, false},
		{"json", JSON, false},
		{"yaml", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseFormat(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
	if JSON.String() != "json" || Format(7).String() != "unknown" {
		t.Error("Format.String() mismatch")
	}
}

func TestPreview(t *testing.T) {
	if got := preview("  a\n\tb  "); got != "a b" {
		t.Errorf("preview() = %q, want %q", got, "a b")
	}
	long := strings.Repeat("é", previewRunes+10)
	got := preview(long)
	if utf8.RuneCountInString(got) != previewRunes || !strings.HasSuffix(got, "…") {
		t.Errorf("preview() = %q (%d runes)", got, utf8.RuneCountInString(got))
	}
}

func predictions() []Prediction {
	return []Prediction{
		{Source: "text", Segment: -1, Text: "You are so stupid and worthless!!!",
			Prediction: model.Prediction{Label: model.Toxic, Probability: 0.91, Normalized: "stupid worthless"}},
		{Source: "page.html", Segment: 2, Text: "Thanks for the edit.",
			Prediction: model.Prediction{Label: model.NonToxic, Probability: 0.12, Normalized: "thank edit"}},
	}
}

func TestPredictions(t *testing.T) {
	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		if err := New(&buf, Table, false).Predictions(predictions()); err != nil {
			t.Fatalf("Predictions() unexpected error: %v", err)
		}
		out := buf.String()
		for _, want := range []string{"SOURCE", "P(TOXIC)", "page.html#2", "0.910", "non-toxic", "1 of 2 classified toxic"} {
			if !strings.Contains(out, want) {
				t.Errorf("table output missing %q:\n%s", want, out)
			}
		}
	})

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		if err := New(&buf, Text, false).Predictions(predictions()); err != nil {
			t.Fatalf("Predictions() unexpected error: %v", err)
		}
		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		if len(lines) != 2 {
			t.Fatalf("text output has %d lines, want 2", len(lines))
		}
		if lines[0] != "toxic\t0.910\ttext\tYou are so stupid and worthless!!!" {
			t.Errorf("first line = %q", lines[0])
		}
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		if err := New(&buf, JSON, true).Predictions(predictions()); err != nil {
			t.Fatalf("Predictions() unexpected error: %v", err)
		}
		var decoded []map[string]any
		if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
		}
		if len(decoded) != 2 || decoded[0]["label"] != "toxic" || decoded[1]["segment"] != float64(2) {
			t.Errorf("decoded = %v", decoded)
		}
		if strings.Contains(buf.String(), "\x1b[") {
			t.Error("JSON output contains color codes")
		}
	})
}

func TestNormalized(t *testing.T) {
	results := []Normalized{{Input: "The quick Fox3 runs!!", Normalized: "quick run"}, {Input: "the", Normalized: ""}}

	var buf bytes.Buffer
	if err := New(&buf, Text, false).Normalized(results); err != nil {
		t.Fatalf("Normalized() unexpected error: %v", err)
	}
	if buf.String() != "quick run\n\n" {
		t.Errorf("text output = %q", buf.String())
	}

	buf.Reset()
	if err := New(&buf, Table, false).Normalized(results); err != nil {
		t.Fatalf("Normalized() unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "NORMALIZED") || !strings.Contains(buf.String(), "quick run") {
		t.Errorf("table output = %q", buf.String())
	}
}

func TestTraining(t *testing.T) {
	rec := store.Record{ID: "01HZX", Name: "baseline"}
	artifact := &model.Artifact{
		Fingerprint: "normalize/v1",
		Stemmer:     "lancaster",
		Params:      model.Params{Trees: 100, Examples: 40},
		Metrics: model.Metrics{
			Accuracy: 0.75, Precision: 0.8, Recall: 2.0 / 3.0, F1: 0.727, Support: 8,
			Confusion: model.Confusion{TrueNegatives: 2, FalsePositives: 1, FalseNegatives: 1, TruePositives: 4},
		},
		TopFeatures: []model.FeatureImportance{{Term: "stupid", Importance: 0.25}},
	}

	var buf bytes.Buffer
	if err := New(&buf, Table, false).Training(rec, artifact); err != nil {
		t.Fatalf("Training() unexpected error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"baseline", "01HZX", "75.0%", "0.727", "PREDICTED TOXIC", "stupid", "0.2500"} {
		if !strings.Contains(out, want) {
			t.Errorf("table output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	if err := New(&buf, Text, false).Training(rec, artifact); err != nil {
		t.Fatalf("Training() unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "confusion: tn=2 fp=1 fn=1 tp=4") {
		t.Errorf("text output = %q", buf.String())
	}

	buf.Reset()
	if err := New(&buf, JSON, false).Training(rec, artifact); err != nil {
		t.Fatalf("Training() unexpected error: %v", err)
	}
	var decoded struct {
		ID      string        `json:"id"`
		Metrics model.Metrics `json:"metrics"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if decoded.ID != "01HZX" || decoded.Metrics.Confusion.TruePositives != 4 {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestModels(t *testing.T) {
	var buf bytes.Buffer
	if err := New(&buf, Table, false).Models(nil); err != nil {
		t.Fatalf("Models() unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "No models trained yet.") {
		t.Errorf("empty listing = %q", buf.String())
	}

	records := []store.Record{
		{ID: "B", Name: "second", CreatedAt: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), Stemmer: "porter2", Examples: 10, Accuracy: 0.9, F1: 0.88},
		{ID: "A", CreatedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), Stemmer: "lancaster", Examples: 12, Accuracy: 0.8, F1: 0.75},
	}

	buf.Reset()
	if err := New(&buf, Table, false).Models(records); err != nil {
		t.Fatalf("Models() unexpected error: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "second") || !strings.Contains(out, "90.0%") || strings.Index(out, "porter2") > strings.Index(out, "lancaster") {
		t.Errorf("table output = %q", out)
	}

	buf.Reset()
	if err := New(&buf, JSON, false).Models(records); err != nil {
		t.Fatalf("Models() unexpected error: %v", err)
	}
	var decoded []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if len(decoded) != 2 || decoded[1]["id"] != "A" {
		t.Errorf("decoded = %v", decoded)
	}
	if _, ok := decoded[1]["name"]; ok {
		t.Error("empty name should be omitted")
	}
}

func TestStats(t *testing.T) {
	summary := &stats.Summary{
		Unit:       "words",
		Examples:   4,
		Vocabulary: 7,
		Retention:  0.5,
		Languages:  map[string]int{"en": 3, "de": 1},
		Classes: [2]stats.ClassSummary{
			{Label: model.NonToxic, Examples: 2, MeanLength: 6, MeanStems: 2, Empty: 1},
			{Label: model.Toxic, Examples: 2, MeanLength: 4, MeanStems: 2,
				TopStems: []stats.StemCount{{Stem: "stupid", Count: 2}}},
		},
	}

	var buf bytes.Buffer
	if err := New(&buf, Table, false).Stats(summary); err != nil {
		t.Fatalf("Stats() unexpected error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"MEAN WORDS", "stupid (2)", "Vocabulary: 7", "en=3 de=1", "25.0% non-English"} {
		if !strings.Contains(out, want) {
			t.Errorf("table output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	if err := New(&buf, Text, false).Stats(summary); err != nil {
		t.Fatalf("Stats() unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "toxic: examples=2 mean_words=4.0 mean_stems=2.0 empty=0") {
		t.Errorf("text output = %q", buf.String())
	}
}
