package model

// StepInfo describes a step to pipeline options.
type StepInfo struct {
	Name     string
	Index    int
	Required bool
	Output   string
}

var (
	StartStep = &StepInfo{Name: "start", Index: -1}
	EndStep   = &StepInfo{Name: "end", Index: -1}
)
