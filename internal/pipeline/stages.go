package pipeline

import "fmt"

// Stage is one state of the driver's state machine.
type Stage string

// Driver states in execution order. Failed is reachable from any
// non-terminal state.
const (
	StagePending                Stage = "PENDING"
	StageGeneratingQueries      Stage = "GENERATING_QUERIES"
	StageSearching              Stage = "SEARCHING"
	StageScreening              Stage = "SCREENING"
	StageEnriching              Stage = "ENRICHING"
	StageStructuringAndIndexing Stage = "STRUCTURING_AND_INDEXING"
	StageEvaluating             Stage = "EVALUATING"
	StageFinalizing             Stage = "FINALIZING"
	StageCompleted              Stage = "COMPLETED"
	StageFailed                 Stage = "FAILED"
)

// StageDefinition defines metadata for a driver state.
type StageDefinition struct {
	Stage    Stage
	Progress int
	Message  string
}

// StageRegistry lists the forward path in order.
var StageRegistry = []StageDefinition{
	{StagePending, 0, "Job queued"},
	{StageGeneratingQueries, 5, "Generating search queries"},
	{StageSearching, 15, "Searching for candidate profiles"},
	{StageScreening, 30, "Screening search results"},
	{StageEnriching, 45, "Fetching full profiles"},
	{StageStructuringAndIndexing, 60, "Structuring and indexing profiles"},
	{StageEvaluating, 75, "Scoring, verifying and preparing outreach"},
	{StageFinalizing, 90, "Merging and saving results"},
	{StageCompleted, 100, "Completed"},
}

// StageError is returned for a stage name outside the registry.
type StageError struct {
	Stage Stage
}

func (e *StageError) Error() string {
	return fmt.Sprintf("unknown stage: %s", e.Stage)
}

// Definition returns the registry entry for s.
func Definition(s Stage) (StageDefinition, error) {
	for _, def := range StageRegistry {
		if def.Stage == s {
			return def, nil
		}
	}
	return StageDefinition{}, &StageError{Stage: s}
}

// Next returns the stage that follows s on the forward path.
func Next(s Stage) (Stage, bool) {
	for i, def := range StageRegistry {
		if def.Stage == s && i+1 < len(StageRegistry) {
			return StageRegistry[i+1].Stage, true
		}
	}
	return "", false
}
