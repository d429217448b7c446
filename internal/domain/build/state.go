package build

// Phase identifies a transform step the engine has just finished.
// The engine reports phases through a typed callback so the orchestrator
// never has to match free-form strings.
type Phase string

const (
	// PhaseWorkspaceCleared means the scratch workspace was recreated empty.
	PhaseWorkspaceCleared Phase = "workspace-cleared"
	// PhaseTemplateCopied means the static template was laid down.
	PhaseTemplateCopied Phase = "template-copied"
	// PhaseExtracted means the release archive was unpacked over the template.
	PhaseExtracted Phase = "extracted"
	// PhaseModsRemoved means denylisted entries were deleted.
	PhaseModsRemoved Phase = "mods-removed"
	// PhaseScriptsCreated means the launcher scripts were generated.
	PhaseScriptsCreated Phase = "scripts-created"
	// PhaseArchived means the output archive was written.
	PhaseArchived Phase = "archived"
)

// StageStatus is the lifecycle state of a single pipeline stage.
type StageStatus string

const (
	// StatusPending means the stage has not started yet.
	StatusPending StageStatus = "pending"
	// StatusInProgress means the stage is currently executing.
	StatusInProgress StageStatus = "in-progress"
	// StatusCompleted means the stage finished successfully.
	StatusCompleted StageStatus = "completed"
	// StatusFailed means the stage aborted the run.
	StatusFailed StageStatus = "failed"
)

// Stage indices into State.Stages. Identity is positional.
const (
	StageUpdateCheck = iota
	StageDownload
	StageVerify
	StageCopyTemplate
	StageExtract
	StageRemoveMods
	StageCreateScripts
	StagePackArchive
	StageFinalize

	// NumStages is the fixed pipeline length.
	NumStages
)

// stageNames are the human-readable labels shown to status pollers.
//
//nolint:gochecknoglobals // Fixed pipeline metadata.
var stageNames = [NumStages]string{
	"Checking for updates",
	"Downloading release archive",
	"Verifying archive integrity",
	"Copying server template",
	"Extracting release archive",
	"Removing client-only mods",
	"Creating launcher scripts",
	"Packing server archive",
	"Publishing build",
}

// Stage is one named, ordered step in the build progress record.
type Stage struct {
	// Name is the human-readable label of the step.
	Name string `json:"name"`
	// Status is the current lifecycle state of the step.
	Status StageStatus `json:"status"`
	// Detail carries a free-text note, typically an error message.
	Detail string `json:"detail,omitempty"`
}

// State is the progress record of the build pipeline. One instance exists
// per process; it is reset and reused for every run. The orchestrator is
// the only writer, everyone else reads snapshots.
type State struct {
	// Running reports whether a build is currently executing.
	Running bool `json:"running"`
	// StatusMessage summarizes the last run outcome.
	StatusMessage string `json:"status_message"`
	// Stages is the fixed ordered sequence of pipeline steps.
	Stages []Stage `json:"stages"`
}

// NewState creates the progress record with all stages pending.
func NewState() *State {
	s := &State{
		Stages: make([]Stage, NumStages),
	}

	for i := range s.Stages {
		s.Stages[i] = Stage{Name: stageNames[i], Status: StatusPending}
	}

	return s
}

// Reset returns every stage to pending and clears the status message.
// Called at the start of each run.
func (s *State) Reset() {
	for i := range s.Stages {
		s.Stages[i].Status = StatusPending
		s.Stages[i].Detail = ""
	}

	s.StatusMessage = ""
}

// SetStage updates the status and detail of the stage at index i.
func (s *State) SetStage(i int, status StageStatus, detail string) {
	if i < 0 || i >= len(s.Stages) {
		return
	}

	s.Stages[i].Status = status
	s.Stages[i].Detail = detail
}

// InProgress returns the index of the stage currently in progress,
// or -1 when no stage is running.
func (s *State) InProgress() int {
	for i := range s.Stages {
		if s.Stages[i].Status == StatusInProgress {
			return i
		}
	}

	return -1
}

// Clone returns a deep copy of the state to avoid leaking internal references.
func (s *State) Clone() *State {
	cloned := &State{
		Running:       s.Running,
		StatusMessage: s.StatusMessage,
		Stages:        make([]Stage, len(s.Stages)),
	}

	copy(cloned.Stages, s.Stages)

	return cloned
}
