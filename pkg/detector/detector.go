// Package detector wires data loading, preprocessing, training and
// evaluation into a supervised anomaly detection pipeline.
package detector

import (
	"fmt"
	"log/slog"

	"github.com/hed1ad/goboostml/pkg/classifiers"
	"github.com/hed1ad/goboostml/pkg/classifiers/gbtree"
	"github.com/hed1ad/goboostml/pkg/dataset"
	"github.com/hed1ad/goboostml/pkg/dataset/csv"
	"github.com/hed1ad/goboostml/pkg/eval"
	"github.com/hed1ad/goboostml/pkg/preprocess"
)

// Config holds the detector configuration.
type Config struct {
	// NormalPath is the source of normal-class rows.
	NormalPath string `yaml:"normal_path"`
	// AnomalousPath is the source of anomalous-class rows.
	AnomalousPath string `yaml:"anomalous_path"`
	// LabelColumn names the class-indicator column.
	LabelColumn string `yaml:"label_column"`
	// TestFraction is the held-out split ratio.
	TestFraction float64 `yaml:"test_fraction"`
	// RandomSeed makes the split and the model reproducible.
	RandomSeed int64 `yaml:"random_seed"`
}

// DefaultConfig returns sensible defaults for the detector.
func DefaultConfig() Config {
	return Config{
		LabelColumn:  "label",
		TestFraction: 0.2,
		RandomSeed:   42,
	}
}

// Validate checks the configuration before training.
func (c Config) Validate() error {
	if c.LabelColumn == "" {
		return fmt.Errorf("label column must be set")
	}
	if c.TestFraction <= 0 || c.TestFraction >= 1 {
		return fmt.Errorf("test fraction %v out of (0, 1)", c.TestFraction)
	}
	return nil
}

// AnomalyDetector trains a classifier to separate normal from anomalous
// rows. Training produces an explicit Pipeline value; the detector holds
// no fitted state of its own.
type AnomalyDetector struct {
	cfg    Config
	logger *slog.Logger

	normal    dataset.Source
	anomalous dataset.Source

	// newClassifier builds a fresh model per training run so repeated
	// runs never share learned state.
	newClassifier func() classifiers.Classifier
}

// Option configures an AnomalyDetector.
type Option func(*AnomalyDetector)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *AnomalyDetector) {
		d.logger = l
	}
}

// WithSources overrides the CSV paths with arbitrary dataset sources,
// such as pcap-backed ones.
func WithSources(normal, anomalous dataset.Source) Option {
	return func(d *AnomalyDetector) {
		d.normal = normal
		d.anomalous = anomalous
	}
}

// WithClassifier substitutes the classifier constructor. The factory is
// invoked once per training run.
func WithClassifier(factory func() classifiers.Classifier) Option {
	return func(d *AnomalyDetector) {
		d.newClassifier = factory
	}
}

// New creates an AnomalyDetector with the given configuration.
func New(cfg Config, opts ...Option) *AnomalyDetector {
	d := &AnomalyDetector{
		cfg:    cfg,
		logger: slog.Default(),
	}
	d.newClassifier = func() classifiers.Classifier {
		return gbtree.New(gbtree.WithSeed(cfg.RandomSeed))
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// loadCombined loads both sources, verifies the label column in each,
// and concatenates with normal rows first.
func (d *AnomalyDetector) loadCombined() (*dataset.Dataset, error) {
	load := func(src dataset.Source, path, class string) (*dataset.Dataset, error) {
		if src == nil {
			s, err := csv.New(path)
			if err != nil {
				return nil, fmt.Errorf("opening %s data: %w", class, err)
			}
			defer s.Close()
			src = s
		}

		ds, err := src.Load()
		if err != nil {
			return nil, fmt.Errorf("loading %s data: %w", class, err)
		}
		if err := ds.RequireColumn(d.cfg.LabelColumn); err != nil {
			return nil, fmt.Errorf("%s data: %w", class, err)
		}

		d.logger.Info("loaded source", "class", class, "rows", ds.Len(), "columns", len(ds.Columns))
		return ds, nil
	}

	normal, err := load(d.normal, d.cfg.NormalPath, "normal")
	if err != nil {
		return nil, err
	}
	anomalous, err := load(d.anomalous, d.cfg.AnomalousPath, "anomalous")
	if err != nil {
		return nil, err
	}

	combined, err := dataset.Concat(normal, anomalous)
	if err != nil {
		return nil, err
	}

	d.logger.Info("combined sources", "rows", combined.Len())
	return combined, nil
}

// Train runs the full pipeline: load, encode, split, scale, fit,
// evaluate. It returns the fitted pipeline and the held-out report.
func (d *AnomalyDetector) Train() (*Pipeline, *eval.Report, error) {
	if err := d.cfg.Validate(); err != nil {
		return nil, nil, err
	}

	combined, err := d.loadCombined()
	if err != nil {
		return nil, nil, err
	}

	labels, err := combined.Column(d.cfg.LabelColumn)
	if err != nil {
		return nil, nil, err
	}
	features, err := combined.Drop(d.cfg.LabelColumn)
	if err != nil {
		return nil, nil, err
	}

	// Fresh transformer state for every run.
	p := &Pipeline{
		featureColumns: features.Columns,
		kinds:          make([]dataset.ColumnKind, len(features.Columns)),
		encoders:       make([]*preprocess.CategoryEncoder, len(features.Columns)),
		labels:         preprocess.NewLabelEncoder(),
		scaler:         preprocess.NewStandardScaler(),
		model:          d.newClassifier(),
	}

	matrix, err := p.encodeFeatures(features)
	if err != nil {
		return nil, nil, err
	}
	y, err := p.labels.FitTransform(labels)
	if err != nil {
		return nil, nil, err
	}

	d.logger.Info("prepared features",
		"rows", len(matrix),
		"features", len(p.featureColumns),
		"classes", len(p.labels.Classes()))

	split, err := preprocess.StratifiedSplit(matrix, y, d.cfg.TestFraction, d.cfg.RandomSeed)
	if err != nil {
		return nil, nil, err
	}

	xTrain, err := p.scaler.FitTransform(split.XTrain)
	if err != nil {
		return nil, nil, err
	}
	xTest, err := p.scaler.Transform(split.XTest)
	if err != nil {
		return nil, nil, err
	}

	d.logger.Info("training classifier", "train_rows", len(xTrain), "test_rows", len(xTest))
	if err := p.model.Fit(xTrain, split.YTrain); err != nil {
		return nil, nil, fmt.Errorf("training classifier: %w", err)
	}
	p.fitted = true

	yPred, err := p.model.Predict(xTest)
	if err != nil {
		return nil, nil, err
	}
	proba, err := p.model.PredictProba(xTest)
	if err != nil {
		return nil, nil, err
	}

	positive := make([]float64, len(proba))
	for i, row := range proba {
		positive[i] = row[len(row)-1]
	}

	report, err := eval.Evaluate(split.YTest, yPred, positive, p.labels.Classes())
	if err != nil {
		return nil, nil, err
	}

	d.logger.Info("evaluation complete",
		"accuracy", report.Accuracy,
		"precision", report.Precision,
		"recall", report.Recall,
		"f1", report.F1)

	return p, report, nil
}
