package app

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/abadojack/whatlanggo"

	"github.com/chriscorrea/civil/internal/boilerplate"
	"github.com/chriscorrea/civil/internal/extract"
	"github.com/chriscorrea/civil/internal/fetch"
	"github.com/chriscorrea/civil/internal/model"
	"github.com/chriscorrea/civil/internal/normalize"
	"github.com/chriscorrea/civil/internal/report"
	"github.com/chriscorrea/civil/internal/segment"
	"github.com/chriscorrea/civil/internal/store"
)

// textSource labels inputs given directly on the command line.
const textSource = "text"

// languageConfidence is the detection confidence above which a non-English
// input is reported.
const languageConfidence = 0.8

// PredictConfig holds the options of a prediction run.
type PredictConfig struct {
	Env
	ModelID    string   // empty selects the newest model
	Texts      []string // comments given directly
	Sources    []string // URLs, file paths, or "-" for stdin
	Selector   string   // CSS selector for HTML sources
	Split      bool     // classify each comment of a page instead of the whole page
	MaxRunes   int      // segment size limit when splitting
	IncludeAll bool     // keep page chrome when splitting
	Workers    int
}

// input is one document waiting for classification
type input struct {
	source  string
	segment int
	text    string
}

// Predict classifies comments with a stored model. Texts are classified as
// given; each source is fetched, reduced to its readable text and either
// classified whole or split into comments first.
func Predict(ctx context.Context, cfg PredictConfig) (store.Record, []report.Prediction, error) {
	st, err := cfg.openStore(ctx)
	if err != nil {
		return store.Record{}, nil, err
	}
	defer st.Close()

	rec, artifact, err := loadModel(ctx, st, cfg.ModelID)
	if err != nil {
		return store.Record{}, nil, err
	}

	// serve with the stemmer the model was trained with
	n, err := normalize.New(normalize.Options{Stemmer: artifact.Stemmer})
	if err != nil {
		return rec, nil, err
	}
	clf, err := model.NewClassifier(n, artifact)
	if err != nil {
		return rec, nil, err
	}

	inputs, err := cfg.collectInputs(ctx)
	if err != nil {
		return rec, nil, err
	}
	cfg.checkLanguages(inputs)

	texts := make([]string, len(inputs))
	for i, in := range inputs {
		texts[i] = in.text
	}
	docs, err := model.NormalizeAll(ctx, n, texts, cfg.Workers)
	if err != nil {
		return rec, nil, err
	}

	results := make([]report.Prediction, len(inputs))
	for i, in := range inputs {
		results[i] = report.Prediction{
			Source:     in.source,
			Segment:    in.segment,
			Text:       in.text,
			Prediction: clf.PredictNormalized(docs[i]),
		}
	}
	slog.Debug("Predictions complete", "model", rec.ID, "inputs", len(results))
	return rec, results, nil
}

// collectInputs gathers direct texts and source contents. Stdin is read when
// neither is given.
func (cfg PredictConfig) collectInputs(ctx context.Context) ([]input, error) {
	var inputs []input
	for i, text := range cfg.Texts {
		inputs = append(inputs, input{source: textSource, segment: i, text: text})
	}

	sources := cfg.Sources
	if len(sources) == 0 && len(cfg.Texts) == 0 {
		sources = []string{"-"}
	}

	fetcher := cfg.fetcher(0)
	for _, source := range sources {
		text, err := cfg.readSource(ctx, fetcher, source)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			cfg.warnf("failed to process source %q: %v", source, err)
			continue
		}
		inputs = append(inputs, cfg.segmentSource(source, text)...)
	}

	if len(inputs) == 0 {
		return nil, fmt.Errorf("no comments to classify")
	}
	return inputs, nil
}

// readSource fetches a source and reduces it to readable text
func (cfg PredictConfig) readSource(ctx context.Context, fetcher *fetch.Fetcher, source string) (string, error) {
	data, err := fetcher.ReadAll(ctx, source)
	if err != nil {
		return "", fmt.Errorf("failed to fetch content: %w", err)
	}

	var baseURL *url.URL
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		baseURL, _ = url.Parse(source)
	}

	text, err := extract.ToText(bytes.NewReader(data), extract.Options{Selector: cfg.Selector, BaseURL: baseURL})
	if err != nil {
		return "", fmt.Errorf("failed to extract content: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("no content extracted")
	}
	return text, nil
}

// segmentSource turns a source's text into inputs
func (cfg PredictConfig) segmentSource(source, text string) []input {
	if !cfg.Split {
		return []input{{source: source, segment: -1, text: strings.TrimSpace(text)}}
	}

	segments := segment.Split(text, cfg.MaxRunes)
	if !cfg.IncludeAll {
		segments = boilerplate.New().Filter(segments)
	}
	if len(segments) == 0 {
		cfg.warnf("no comments found in source %q", source)
	}

	inputs := make([]input, len(segments))
	for i, s := range segments {
		inputs[i] = input{source: source, segment: s.Index, text: s.Text}
	}
	return inputs
}

// checkLanguages warns about inputs that are reliably not English; the
// normalizer's stopwords and stemmers are English only.
func (cfg PredictConfig) checkLanguages(inputs []input) {
	if cfg.Quiet {
		return
	}
	foreign := make(map[string]int)
	for _, in := range inputs {
		info := whatlanggo.Detect(in.text)
		if info.Confidence >= languageConfidence && info.Lang.Iso6391() != "en" {
			foreign[info.Lang.Iso6391()]++
		}
	}
	for lang, count := range foreign {
		cfg.warnf("%d input(s) detected as %q; predictions are only reliable for English", count, lang)
	}
}

// NormalizeConfig holds the options of a normalization run.
type NormalizeConfig struct {
	Env
	Texts   []string // documents given directly; stdin lines are read when empty
	Stemmer string
	Workers int
}

// Normalize runs the shared normalizer over texts, or over each line of
// stdin when no texts are given.
func Normalize(ctx context.Context, cfg NormalizeConfig) ([]report.Normalized, error) {
	n, err := normalize.New(normalize.Options{Stemmer: cfg.Stemmer})
	if err != nil {
		return nil, err
	}

	texts := cfg.Texts
	if len(texts) == 0 {
		texts, err = cfg.readLines(ctx)
		if err != nil {
			return nil, err
		}
	}

	docs, err := model.NormalizeAll(ctx, n, texts, cfg.Workers)
	if err != nil {
		return nil, err
	}

	results := make([]report.Normalized, len(texts))
	for i, text := range texts {
		results[i] = report.Normalized{Input: text, Normalized: docs[i]}
	}
	return results, nil
}

// readLines reads stdin one document per line
func (cfg NormalizeConfig) readLines(ctx context.Context) ([]string, error) {
	rc, err := cfg.fetcher(0).Open(ctx, "-")
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var lines []string
	scanner := bufio.NewScanner(rc)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read stdin: %w", err)
	}
	return lines, nil
}
