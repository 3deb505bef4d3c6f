package localization

import (
	"math"

	"github.com/turtlelab/localize/logging"
	"github.com/turtlelab/localize/ros"
)

// Source provides the latest estimator output and ground truth.
type Source interface {
	Estimate() (ros.PoseWithCovarianceStamped, bool)
	GroundTruth() (ros.ModelStates, bool)
}

// PoseFuser recomputes the estimate, ground truth and their error on demand from the latest
// messages of a Source.
type PoseFuser struct {
	source    Source
	modelName string
	logger    logging.Logger
}

// NewPoseFuser returns a PoseFuser comparing the estimate with the ground truth of modelName.
func NewPoseFuser(source Source, modelName string, logger logging.Logger) *PoseFuser {
	return &PoseFuser{source: source, modelName: modelName, logger: logger}
}

// Estimate returns the latest estimator pose.
func (pf *PoseFuser) Estimate() (Pose, bool) {
	msg, ok := pf.source.Estimate()
	if !ok {
		return Pose{}, false
	}
	p, err := FromEstimate(msg)
	if err != nil {
		pf.logger.Warnw("discarding estimate", "topic", ros.TopicAmclPose, "error", err)
		return Pose{}, false
	}
	return p, true
}

// GroundTruth returns the latest true pose of the model.
func (pf *PoseFuser) GroundTruth() (Pose, bool) {
	states, ok := pf.source.GroundTruth()
	if !ok {
		return Pose{}, false
	}
	state, ok := states.Find(pf.modelName)
	if !ok {
		pf.logger.Debugw("model missing from ground truth", "topic", ros.TopicModelStates, "model", pf.modelName)
		return Pose{}, false
	}
	return FromModelState(state), true
}

// Fused is one evaluation of the estimate against the truth.
type Fused struct {
	Estimate    Pose
	GroundTruth Pose
	Error       float64
	Entropy     float64
}

// Evaluate fuses the latest messages. Without both an estimate and a ground truth the error is
// +Inf; without an estimate the entropy is +Inf.
func (pf *PoseFuser) Evaluate() Fused {
	f := Fused{Error: math.Inf(1), Entropy: math.Inf(1)}
	estimate, haveEstimate := pf.Estimate()
	truth, haveTruth := pf.GroundTruth()
	if haveEstimate {
		f.Estimate = estimate
		f.Entropy = estimate.Entropy
	}
	if haveTruth {
		f.GroundTruth = truth
	}
	if haveEstimate && haveTruth {
		f.Error = EstimateError(estimate, truth)
	}
	return f
}
