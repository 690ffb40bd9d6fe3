package models

// Phase is the stage a generation flow is in when a progress event fires.
type Phase string

const (
	PhaseSeed       Phase = "seed"
	PhaseVisual     Phase = "visual"
	PhaseCompleting Phase = "completing"
	PhaseDone       Phase = "done"
)

// Label is the human readable description shown next to a progress bar.
func (p Phase) Label() string {
	switch p {
	case PhaseSeed:
		return "Uploading seed documents..."
	case PhaseVisual:
		return "Uploading visual assets..."
	case PhaseCompleting:
		return "Finalizing upload..."
	case PhaseDone:
		return "Upload complete!"
	default:
		return "Processing..."
	}
}

// UploadProgressState is a snapshot emitted by the sequencer. CurrentFileIndex
// counts across both batches and never decreases within one flow.
type UploadProgressState struct {
	SeedFiles        []string `json:"seedFiles"`
	VisualFiles      []string `json:"visualFiles"`
	CurrentFileIndex int      `json:"currentFileIndex"`
	TotalFiles       int      `json:"totalFiles"`
	CurrentFileName  string   `json:"currentFileName"`
	Phase            Phase    `json:"phase"`
}

// Percent returns completion in the range [0, 100]. An empty submission
// reports 0.
func (s UploadProgressState) Percent() float64 {
	if s.TotalFiles <= 0 {
		return 0
	}
	return float64(s.CurrentFileIndex) / float64(s.TotalFiles) * 100
}
