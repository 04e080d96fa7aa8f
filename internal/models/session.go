package models

import "time"

// Flow is the conversation a user is currently in.
type Flow string

const (
	FlowNone                 Flow = "none"
	FlowCreatingJob          Flow = "creating_job"
	FlowCreatingSubscription Flow = "creating_subscription"
	FlowSearching            Flow = "searching"
)

// Step is the position inside a flow.
type Step string

const (
	StepNone        Step = ""
	StepTitle       Step = "title"
	StepCompany     Step = "company"
	StepLocation    Step = "location"
	StepSalary      Step = "salary"
	StepDescription Step = "description"
	StepName        Step = "name"
	StepKeywords    Step = "keywords"
	StepExclude     Step = "exclude"
	StepFrequency   Step = "frequency"
	StepQuery       Step = "query"
	StepConfirm     Step = "confirm"
)

// Session is the dialogue state of one user. Drafts are filled in step by
// step and persisted only on confirmation.
type Session struct {
	UserID       int64         `json:"user_id"`
	Flow         Flow          `json:"flow"`
	Step         Step          `json:"step"`
	Job          *JobPosting   `json:"job,omitempty"`
	Subscription *Subscription `json:"subscription,omitempty"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

func (s *Session) Idle() bool {
	return s == nil || s.Flow == FlowNone || s.Flow == ""
}
