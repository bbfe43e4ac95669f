package incident

import "time"

// Severity of a policy violation.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Priority of an outgoing email draft.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
)

// Violation is one policy concern raised by the analysis.
type Violation struct {
	PolicySection  string   `json:"policy_section"`
	ViolationType  string   `json:"violation_type,omitempty"`
	Description    string   `json:"description"`
	Severity       Severity `json:"severity"`
	RequiredAction string   `json:"required_action"`
}

// ExtractedFacts are transcript details the model may report alongside its analysis.
type ExtractedFacts struct {
	ServiceUserName   string   `json:"service_user_name,omitempty"`
	Location          string   `json:"location,omitempty"`
	IncidentType      string   `json:"incident_type,omitempty"`
	IncidentTime      string   `json:"incident_time,omitempty"`
	RepeatedIncident  bool     `json:"repeated_incident,omitempty"`
	Injuries          []string `json:"injuries_mentioned,omitempty"`
	FirstAid          bool     `json:"first_aid_administered,omitempty"`
	EmergencyServices bool     `json:"emergency_services_contacted,omitempty"`
	Witnesses         []string `json:"witnesses,omitempty"`
}

func (f *ExtractedFacts) empty() bool {
	return f.ServiceUserName == "" && f.Location == "" && f.IncidentType == "" && f.IncidentTime == "" &&
		!f.RepeatedIncident && !f.FirstAid && !f.EmergencyServices &&
		len(f.Injuries) == 0 && len(f.Witnesses) == 0
}

// Analysis is the canonical, provider-independent result of analysing a transcript.
type Analysis struct {
	Summary               string          `json:"summary"`
	Violations            []Violation     `json:"violations"`
	NotificationsRequired []string        `json:"notifications_required"`
	RiskAssessments       []string        `json:"risk_assessments"`
	Recommendations       []string        `json:"recommendations"`
	ExtractedFacts        *ExtractedFacts `json:"extracted_facts,omitempty"`
}

// HasHighSeverity reports whether any violation is rated high.
func (a Analysis) HasHighSeverity() bool {
	for _, v := range a.Violations {
		if v.Severity == SeverityHigh {
			return true
		}
	}
	return false
}

// clone returns a deep copy so stored artifacts never share slices with callers.
func (a Analysis) clone() Analysis {
	out := a
	out.Violations = append([]Violation{}, a.Violations...)
	out.NotificationsRequired = append([]string{}, a.NotificationsRequired...)
	out.RiskAssessments = append([]string{}, a.RiskAssessments...)
	out.Recommendations = append([]string{}, a.Recommendations...)
	if a.ExtractedFacts != nil {
		facts := *a.ExtractedFacts
		facts.Injuries = append([]string(nil), a.ExtractedFacts.Injuries...)
		facts.Witnesses = append([]string(nil), a.ExtractedFacts.Witnesses...)
		out.ExtractedFacts = &facts
	}
	return out
}

// IncidentReport is the fixed-field record derived from an analysis.
type IncidentReport struct {
	DateTime                   string `json:"date_time"`
	ServiceUserName            string `json:"service_user_name"`
	Location                   string `json:"location"`
	IncidentType               string `json:"incident_type"`
	Description                string `json:"description"`
	ImmediateActions           string `json:"immediate_actions"`
	FirstAidAdministered       bool   `json:"first_aid_administered"`
	EmergencyServicesContacted bool   `json:"emergency_services_contacted"`
	WhoWasNotified             string `json:"who_was_notified"`
	Witnesses                  string `json:"witnesses"`
	AgreedNextSteps            string `json:"agreed_next_steps"`
	RiskAssessmentNeeded       bool   `json:"risk_assessment_needed"`
	RiskAssessmentType         string `json:"risk_assessment_type"`
}

// EmailDraft is the notification email derived from a report and analysis.
type EmailDraft struct {
	To          []string `json:"to"`
	CC          []string `json:"cc"`
	Subject     string   `json:"subject"`
	Body        string   `json:"body"`
	Priority    Priority `json:"priority"`
	Attachments []string `json:"attachments"`
}

func (e EmailDraft) clone() EmailDraft {
	out := e
	out.To = append([]string{}, e.To...)
	out.CC = append([]string{}, e.CC...)
	out.Attachments = append([]string{}, e.Attachments...)
	return out
}

// UpdateType selects which artifact an update request replaces.
type UpdateType string

const (
	UpdateIncidentReport UpdateType = "incident_report"
	UpdateEmail          UpdateType = "email_update"
	UpdateTranscript     UpdateType = "transcript_update"
)

// Session is the per-caller context kept between analysis and later updates.
type Session struct {
	ID             string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Version        int64
	Transcript     string
	Analysis       *Analysis
	Report         *IncidentReport
	Email          *EmailDraft
	LastUpdateType UpdateType
	LastUpdateInfo string
}

func (s Session) clone() Session {
	out := s
	if s.Analysis != nil {
		a := s.Analysis.clone()
		out.Analysis = &a
	}
	if s.Report != nil {
		r := *s.Report
		out.Report = &r
	}
	if s.Email != nil {
		e := s.Email.clone()
		out.Email = &e
	}
	return out
}
