package predictor

import (
	"context"

	onnxruntime "github.com/yalue/onnxruntime_go"

	"resonance/internal/domain/script"
	"resonance/internal/domain/trend"
	"resonance/pkg/errors"
	"resonance/pkg/logger"
)

// onnxFeatureCount is the width of the regression input vector. The order
// must match the training pipeline's feature order.
const onnxFeatureCount = 14

// ONNXConfig holds learned estimator knobs.
type ONNXConfig struct {
	ModelPath       string
	SupportedNiches []string
}

// ONNXEstimator runs a trained engagement regression model. The model maps
// a feature vector to (expected views, engagement rate, confidence).
type ONNXEstimator struct {
	cfg     ONNXConfig
	session *onnxruntime.DynamicAdvancedSession
	log     *logger.Logger
}

// NewONNXEstimator loads the regression model from file.
func NewONNXEstimator(cfg ONNXConfig, log *logger.Logger) (*ONNXEstimator, error) {
	if err := onnxruntime.InitializeEnvironment(); err != nil {
		return nil, errors.Wrap(err, "failed to initialize ONNX runtime")
	}

	options, err := onnxruntime.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create session options")
	}
	defer options.Destroy()

	session, err := onnxruntime.NewDynamicAdvancedSession(cfg.ModelPath,
		[]string{"input"}, []string{"output"}, options)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load engagement model")
	}

	return &ONNXEstimator{
		cfg:     cfg,
		session: session,
		log:     log.With("component", "onnx_predictor"),
	}, nil
}

var _ Predictor = (*ONNXEstimator)(nil)

// Predict runs inference for the candidate text against the trend.
func (e *ONNXEstimator) Predict(ctx context.Context, candidateText string, tr trend.RankedTrend, niche string) (script.PredictionResult, error) {
	if err := ctx.Err(); err != nil {
		return script.PredictionResult{}, errors.Wrap(errors.ErrTimeout, "predict canceled")
	}
	if e.session == nil {
		return script.PredictionResult{}, errors.Wrap(errors.ErrPredictionUnavailable, "model session is not loaded")
	}
	if candidateText == "" {
		return script.PredictionResult{}, errors.Wrap(errors.ErrPredictionUnavailable, "empty candidate text")
	}
	if !nicheInList(niche, e.cfg.SupportedNiches) {
		return script.PredictionResult{}, errors.Wrapf(errors.ErrPredictionUnavailable, "unsupported niche %q", niche)
	}

	features := buildFeatureVector(candidateText, tr)

	inputShape := onnxruntime.NewShape(1, int64(len(features)))
	inputTensor, err := onnxruntime.NewTensor(inputShape, features)
	if err != nil {
		return script.PredictionResult{}, errors.Wrap(err, "failed to create input tensor")
	}
	defer inputTensor.Destroy()

	// Output: [views, engagement_rate, confidence]
	output := make([]float64, 3)
	outputShape := onnxruntime.NewShape(1, 3)
	outputTensor, err := onnxruntime.NewTensor(outputShape, output)
	if err != nil {
		return script.PredictionResult{}, errors.Wrap(err, "failed to create output tensor")
	}
	defer outputTensor.Destroy()

	if err := e.session.Run(
		[]onnxruntime.Value{inputTensor},
		[]onnxruntime.Value{outputTensor},
	); err != nil {
		return script.PredictionResult{}, errors.Wrap(errors.ErrPredictionUnavailable, err.Error())
	}

	result := script.PredictionResult{
		ExpectedViews:          output[0],
		ExpectedEngagementRate: output[1],
		Confidence:             clamp(output[2], 0, 1),
	}
	if result.ExpectedViews < 0 {
		result.ExpectedViews = 0
	}
	if result.ExpectedEngagementRate < 0 {
		result.ExpectedEngagementRate = 0
	}
	return result, nil
}

// Close cleans up the session.
func (e *ONNXEstimator) Close() {
	if e.session != nil {
		e.session.Destroy()
		e.session = nil
	}
}

// buildFeatureVector assembles the regression input. Order is fixed by the
// training pipeline.
func buildFeatureVector(candidateText string, tr trend.RankedTrend) []float64 {
	text := ExtractTextFeatures(candidateText)
	series, hasSeries := ComputeSeriesFeatures(tr.StatsSnapshot.RecentWeights)

	features := make([]float64, 0, onnxFeatureCount)
	features = append(features,
		float64(text.Words),
		float64(text.Sentences),
		float64(text.HookCues),
		float64(text.CTACues),
		boolFeature(text.HasQuestion),
		boolFeature(text.HasNumber),
		tr.StatsSnapshot.DecayedEngagement,
		tr.StatsSnapshot.Velocity,
		float64(tr.StatsSnapshot.SampleCount),
		tr.Score,
		series.EMAFast,
		series.EMASlow,
		series.Momentum,
		boolFeature(hasSeries),
	)
	return features
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func nicheInList(niche string, list []string) bool {
	if niche == "" {
		return false
	}
	if len(list) == 0 {
		return true
	}
	for _, item := range list {
		if item == niche {
			return true
		}
	}
	return false
}
