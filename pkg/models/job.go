package models

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// JobState is the lifecycle state of a job.
type JobState string

const (
	JobStateCreated   JobState = "created"   // Waiting for the engine
	JobStateScheduled JobState = "scheduled" // Async work requested, waiting for a worker
	JobStateStarted   JobState = "started"   // Timer outstanding
	JobStateFinished  JobState = "finished"  // Done, successors may be spawned
	JobStateFailed    JobState = "failed"    // Done, unsuccessfully
)

// OriginKind tells which graph node a job executes.
type OriginKind int

const (
	// OriginNone only appears on stored jobs with neither a trigger nor an element.
	OriginNone OriginKind = iota
	OriginTrigger
	OriginElement
)

func (k OriginKind) String() string {
	switch k {
	case OriginTrigger:
		return "trigger"
	case OriginElement:
		return "element"
	default:
		return "none"
	}
}

// Origin is the graph node a job was created for: a trigger or an element, never both.
type Origin struct {
	kind OriginKind
	id   string
}

// TriggerOrigin returns the origin of a trigger job.
func TriggerOrigin(triggerID string) Origin {
	return Origin{kind: OriginTrigger, id: triggerID}
}

// ElementOrigin returns the origin of an element job.
func ElementOrigin(elementID string) Origin {
	return Origin{kind: OriginElement, id: elementID}
}

// OriginFrom builds an origin from the two nullable identifiers stored with a job.
// Both set or neither set yields OriginNone.
func OriginFrom(triggerID, elementID *string) Origin {
	hasTrigger := triggerID != nil && *triggerID != ""
	hasElement := elementID != nil && *elementID != ""

	switch {
	case hasTrigger && !hasElement:
		return TriggerOrigin(*triggerID)
	case hasElement && !hasTrigger:
		return ElementOrigin(*elementID)
	default:
		return Origin{}
	}
}

func (o Origin) Kind() OriginKind { return o.kind }
func (o Origin) ID() string       { return o.id }

// TriggerID returns the trigger id, if the origin is a trigger.
func (o Origin) TriggerID() (string, bool) {
	return o.id, o.kind == OriginTrigger
}

// ElementID returns the element id, if the origin is an element.
func (o Origin) ElementID() (string, bool) {
	return o.id, o.kind == OriginElement
}

func (o Origin) String() string {
	if o.kind == OriginNone {
		return "none"
	}

	return fmt.Sprintf("%s:%s", o.kind, o.id)
}

type originJSON struct {
	TriggerID *string `json:"trigger_id,omitempty"`
	ElementID *string `json:"element_id,omitempty"`
}

func (o Origin) MarshalJSON() ([]byte, error) {
	var raw originJSON

	switch o.kind {
	case OriginTrigger:
		raw.TriggerID = &o.id
	case OriginElement:
		raw.ElementID = &o.id
	case OriginNone:
	}

	return json.Marshal(raw)
}

func (o *Origin) UnmarshalJSON(data []byte) error {
	var raw originJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*o = OriginFrom(raw.TriggerID, raw.ElementID)

	return nil
}

// Job is one execution of a trigger or an element for one user.
type Job struct {
	ID          string         `json:"id"`
	ScenarioID  string         `json:"scenario_id"`
	Origin      Origin         `json:"origin"`
	Parameters  Parameters     `json:"parameters"`
	Result      map[string]any `json:"result,omitempty"`
	State       JobState       `json:"state"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	FinishedAt  *time.Time     `json:"finished_at,omitempty"`
	ContinuedAt *time.Time     `json:"continued_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Outcome returns the branch outcome a worker reported in the job result, if any.
func (j *Job) Outcome() *bool {
	positive, ok := j.Result[ResultKeyPositive].(bool)
	if !ok {
		return nil
	}

	return &positive
}

// LogAttrs returns the full job context for structured logging.
func (j *Job) LogAttrs() []any {
	triggerID, _ := j.Origin.TriggerID()
	elementID, _ := j.Origin.ElementID()

	return []any{
		slog.Group("job",
			"id", j.ID,
			"scenario_id", j.ScenarioID,
			"trigger_id", triggerID,
			"element_id", elementID,
			"state", j.State,
			"parameters", j.Parameters,
			"result", j.Result,
			"started_at", j.StartedAt,
			"finished_at", j.FinishedAt,
			"created_at", j.CreatedAt,
			"updated_at", j.UpdatedAt,
		),
	}
}
