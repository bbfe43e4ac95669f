package incident

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/wolfman30/incident-response-ai/internal/llm"
)

// SchemaVersion identifies the analysis output contract embedded in prompts.
// Renaming a field is a breaking change for ParseAnalysis.
const SchemaVersion = "incident-analysis/v1"

// PromptKind selects the instruction template.
type PromptKind string

const (
	KindInitialAnalysis     PromptKind = "initial_analysis"
	KindUpdate              PromptKind = "update"
	KindRegenerateComponent PromptKind = "regenerate_component"
)

// Target names the artifact an update or regeneration rewrites.
type Target string

const (
	TargetAnalysis Target = "analysis"
	TargetReport   Target = "incident_report"
	TargetEmail    Target = "email_draft"
)

// PriorContext is the stored state an update or regeneration builds on.
type PriorContext struct {
	Target     Target
	Transcript string
	// Artifact is the JSON of the stored artifact named by Target.
	Artifact string
	// Analysis is the JSON of the stored analysis, when Target is not the analysis itself.
	Analysis string
}

// PromptBuilder renders provider-neutral prompts. It holds no state.
type PromptBuilder struct{}

const analystRole = "You are an expert social care incident analyst. You review support line call transcripts " +
	"against the organisation's policies and report policy concerns, required notifications and follow-up actions."

const jsonOnly = "Return ONLY a single JSON object. Do not wrap it in markdown and do not add commentary."

// Build composes the prompt for kind. Identical inputs yield identical prompts.
func (PromptBuilder) Build(kind PromptKind, text, policies string, prior *PriorContext) llm.Prompt {
	switch kind {
	case KindUpdate:
		if prior == nil {
			break
		}
		return buildUpdate(text, policies, prior)
	case KindRegenerateComponent:
		if prior == nil {
			break
		}
		return buildRegenerate(text, prior)
	}
	return buildInitial(text, policies)
}

func buildInitial(transcript, policies string) llm.Prompt {
	var b strings.Builder
	b.WriteString("Analyze this social care call transcript against the policies below.\n\n")
	writeSection(&b, "POLICIES", policies)
	writeSection(&b, "TRANSCRIPT", transcript)
	b.WriteString(analysisContract())
	return llm.Prompt{System: analystRole, User: b.String()}
}

func buildUpdate(info, policies string, prior *PriorContext) llm.Prompt {
	var b strings.Builder
	switch prior.Target {
	case TargetReport:
		b.WriteString("Update an existing incident report with new information provided by the care coordinator.\n\n")
		writeSection(&b, "CURRENT INCIDENT REPORT JSON", prior.Artifact)
		writeOptional(&b, "ORIGINAL TRANSCRIPT", prior.Transcript)
		writeSection(&b, "NEW INFORMATION", info)
		b.WriteString(reportContract())
		b.WriteString("Change only the fields the new information relates to and keep every other field exactly as it is.\n")
		return llm.Prompt{System: "You are a social care incident report specialist.", User: b.String()}
	case TargetEmail:
		b.WriteString("Update an existing incident notification email with new information provided by the care coordinator.\n\n")
		writeSection(&b, "CURRENT EMAIL JSON", prior.Artifact)
		writeOptional(&b, "ANALYSIS JSON", prior.Analysis)
		writeSection(&b, "NEW INFORMATION", info)
		b.WriteString(emailContract())
		b.WriteString("Keep recipients unless the new information changes who must be told.\n")
		return llm.Prompt{System: "You are a social care coordinator drafting incident notification emails.", User: b.String()}
	default:
		b.WriteString("Revise a previous analysis using additional transcript information.\n\n")
		writeSection(&b, "POLICIES", policies)
		writeSection(&b, "ORIGINAL TRANSCRIPT", prior.Transcript)
		writeOptional(&b, "PREVIOUS ANALYSIS JSON", prior.Artifact)
		writeSection(&b, "ADDITIONAL TRANSCRIPT INFORMATION", info)
		b.WriteString(analysisContract())
		b.WriteString("Return the complete revised analysis, not only the changes.\n")
		return llm.Prompt{System: analystRole, User: b.String()}
	}
}

func buildRegenerate(feedback string, prior *PriorContext) llm.Prompt {
	var b strings.Builder
	switch prior.Target {
	case TargetEmail:
		b.WriteString("Rewrite the incident notification email below, incorporating the reviewer's feedback.\n\n")
		writeSection(&b, "ORIGINAL EMAIL JSON", prior.Artifact)
		writeSection(&b, "REVIEWER FEEDBACK", feedback)
		b.WriteString(emailContract())
		return llm.Prompt{System: "Update the email based on reviewer feedback while maintaining professional standards.", User: b.String()}
	default:
		b.WriteString("Rewrite the incident report below, incorporating the reviewer's feedback.\n\n")
		writeSection(&b, "ORIGINAL REPORT JSON", prior.Artifact)
		writeSection(&b, "REVIEWER FEEDBACK", feedback)
		b.WriteString(reportContract())
		return llm.Prompt{System: "Update the incident report based on reviewer feedback.", User: b.String()}
	}
}

func writeSection(b *strings.Builder, title, body string) {
	fmt.Fprintf(b, "%s:\n%s\n\n", title, strings.TrimSpace(body))
}

func writeOptional(b *strings.Builder, title, body string) {
	if strings.TrimSpace(body) == "" {
		return
	}
	writeSection(b, title, body)
}

// AnalysisSchemaExample is the canonical example object shown to the model.
func AnalysisSchemaExample() Analysis {
	return Analysis{
		Summary: "Service user reported a fall in the bedroom and could not get up without help.",
		Violations: []Violation{{
			PolicySection:  "Section 3: Mobility & Moving",
			ViolationType:  "Recurring falls",
			Description:    "Third fall reported this week.",
			Severity:       SeverityHigh,
			RequiredAction: "Email supervisor immediately and CC the risk assessor",
		}},
		NotificationsRequired: []string{"Supervisor", "Risk Assessor"},
		RiskAssessments:       []string{"Moving and handling risk assessment"},
		Recommendations:       []string{"Arrange a falls review within 24 hours"},
	}
}

func analysisContract() string {
	example, _ := json.MarshalIndent(AnalysisSchemaExample(), "", "  ")
	var b strings.Builder
	fmt.Fprintf(&b, "OUTPUT CONTRACT (%s):\n", SchemaVersion)
	b.WriteString("- summary: string, required, a brief factual summary of the incident\n")
	b.WriteString("- violations: list of objects with policy_section (string), violation_type (string), " +
		"description (string), severity (one of \"high\", \"medium\", \"low\"), required_action (string); use [] when none apply\n")
	b.WriteString("- notifications_required: list of roles to notify (for example \"Supervisor\", \"Risk Assessor\", \"Family/Next of Kin\")\n")
	b.WriteString("- risk_assessments: list of strings\n")
	b.WriteString("- recommendations: list of strings\n")
	b.WriteString("- extracted_facts: optional object with service_user_name, location, incident_type, incident_time, " +
		"repeated_incident (boolean), injuries_mentioned (list), first_aid_administered (boolean), " +
		"emergency_services_contacted (boolean), witnesses (list)\n\n")
	b.WriteString("Example:\n")
	b.Write(example)
	b.WriteString("\n\n")
	b.WriteString(jsonOnly)
	b.WriteString("\n")
	return b.String()
}

func reportContract() string {
	var b strings.Builder
	b.WriteString("OUTPUT CONTRACT: a JSON object with exactly these fields:\n")
	b.WriteString("- date_time, service_user_name, location, incident_type, description, immediate_actions, " +
		"who_was_notified, witnesses, agreed_next_steps, risk_assessment_type: strings\n")
	b.WriteString("- first_aid_administered, emergency_services_contacted, risk_assessment_needed: true or false\n\n")
	b.WriteString(jsonOnly)
	b.WriteString("\n")
	return b.String()
}

func emailContract() string {
	var b strings.Builder
	b.WriteString("OUTPUT CONTRACT: a JSON object with fields to (list of addresses), cc (list of addresses), " +
		"subject (string), body (string), priority (\"high\" or \"normal\"), attachments (list of file names).\n\n")
	b.WriteString(jsonOnly)
	b.WriteString("\n")
	return b.String()
}
