package pipeline

// StageKind identifies one discrete processing step applied to an item.
type StageKind string

const (
	StageDetect   StageKind = "detect"
	StageCrop     StageKind = "crop"
	StageOutpaint StageKind = "outpaint"
	StageRestore  StageKind = "restore"
	StageVerify   StageKind = "verify"
)

// PlannedStage pairs a stage kind with its progress weight. Weights across a
// plan sum to 1.
type PlannedStage struct {
	Kind   StageKind
	Weight float64
}

// Plan is the ordered stage list one item will execute. Verification is not
// part of the plan; it rides alongside and carries no weight.
type Plan []PlannedStage

const (
	weightDetect   = 0.15
	weightCrop     = 0.05
	weightOutpaint = 0.15
	weightRestore  = 0.65
)

// NewPlan builds the default stage plan. When outpainting is disabled the
// remaining weights are renormalized so they still sum to 1.
func NewPlan(withOutpaint bool) Plan {
	plan := Plan{
		{Kind: StageDetect, Weight: weightDetect},
		{Kind: StageCrop, Weight: weightCrop},
	}
	if withOutpaint {
		plan = append(plan, PlannedStage{Kind: StageOutpaint, Weight: weightOutpaint})
	}
	plan = append(plan, PlannedStage{Kind: StageRestore, Weight: weightRestore})
	return plan.normalized()
}

// WithoutStage returns a copy of the plan with the named stage removed and
// the remaining weights renormalized. Removing a stage only ever increases
// the completed fraction, so progress stays monotonic.
func (p Plan) WithoutStage(kind StageKind) Plan {
	trimmed := make(Plan, 0, len(p))
	for _, stage := range p {
		if stage.Kind == kind {
			continue
		}
		trimmed = append(trimmed, stage)
	}
	return trimmed.normalized()
}

// Index returns the position of the stage in the plan, or -1.
func (p Plan) Index(kind StageKind) int {
	for i, stage := range p {
		if stage.Kind == kind {
			return i
		}
	}
	return -1
}

func (p Plan) normalized() Plan {
	var total float64
	for _, stage := range p {
		total += stage.Weight
	}
	if total <= 0 {
		return p
	}
	normalized := make(Plan, len(p))
	for i, stage := range p {
		normalized[i] = PlannedStage{Kind: stage.Kind, Weight: stage.Weight / total}
	}
	return normalized
}
