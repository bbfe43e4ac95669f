package incident

import (
	"fmt"
	"strings"
	"time"
)

const reportAttachment = "incident_report.pdf"

// Recipients is the address book used when deriving email drafts.
type Recipients struct {
	Supervisor    string
	RiskAssessor  string
	FamilyContact string
	Signature     string
}

// DefaultRecipients mirrors the stock organisation directory.
func DefaultRecipients() Recipients {
	return Recipients{
		Supervisor:    "supervisor@emmacare.com",
		RiskAssessor:  "riskassessment@emmacare.com",
		FamilyContact: "family.contact@emmacare.com",
		Signature:     "Emma Care Coordination Team",
	}
}

func (r Recipients) withDefaults() Recipients {
	def := DefaultRecipients()
	if strings.TrimSpace(r.Supervisor) == "" {
		r.Supervisor = def.Supervisor
	}
	if strings.TrimSpace(r.RiskAssessor) == "" {
		r.RiskAssessor = def.RiskAssessor
	}
	if strings.TrimSpace(r.FamilyContact) == "" {
		r.FamilyContact = def.FamilyContact
	}
	if strings.TrimSpace(r.Signature) == "" {
		r.Signature = def.Signature
	}
	return r
}

// DeriveEmail builds the notification draft. The supervisor is always
// addressed; the risk assessor is copied when any violation is high; the
// family contact is addressed when the analysis asks for family to be told.
func DeriveEmail(a Analysis, report IncidentReport, recipients Recipients) EmailDraft {
	recipients = recipients.withDefaults()

	draft := EmailDraft{
		To:          []string{recipients.Supervisor},
		CC:          []string{},
		Priority:    PriorityNormal,
		Attachments: []string{reportAttachment},
	}
	if a.HasHighSeverity() {
		draft.Priority = PriorityHigh
		draft.CC = append(draft.CC, recipients.RiskAssessor)
	}
	if requiresFamily(a.NotificationsRequired) {
		draft.To = appendUnique(draft.To, recipients.FamilyContact)
	}

	incidentType := orDefault(report.IncidentType, "Incident")
	name := orDefault(report.ServiceUserName, "Service User")
	if draft.Priority == PriorityHigh {
		draft.Subject = fmt.Sprintf("URGENT: %s - %s", incidentType, name)
	} else {
		draft.Subject = fmt.Sprintf("Incident Report: %s - %s", incidentType, name)
	}
	draft.Body = emailBody(a, report, draft.Priority, recipients.Signature)
	return draft
}

// EnsureRecipients re-applies the addressing rules of DeriveEmail to a
// model-edited draft. The supervisor leads To; the risk assessor is copied and
// priority is high exactly when a violation in a is high; the family contact is
// addressed exactly when a asks for family to be told.
func EnsureRecipients(draft EmailDraft, a Analysis, recipients Recipients) EmailDraft {
	recipients = recipients.withDefaults()
	out := draft.clone()

	managed := []string{recipients.Supervisor, recipients.RiskAssessor, recipients.FamilyContact}
	to := []string{recipients.Supervisor}
	for _, addr := range out.To {
		if !containsFold(managed, addr) {
			to = appendUnique(to, addr)
		}
	}
	cc := []string{}
	for _, addr := range out.CC {
		if !containsFold(managed, addr) {
			cc = appendUnique(cc, addr)
		}
	}

	out.Priority = PriorityNormal
	if a.HasHighSeverity() {
		out.Priority = PriorityHigh
		cc = append(cc, recipients.RiskAssessor)
		if !strings.HasPrefix(strings.ToUpper(strings.TrimSpace(out.Subject)), "URGENT") {
			out.Subject = strings.TrimSpace("URGENT: " + out.Subject)
		}
	}
	if requiresFamily(a.NotificationsRequired) {
		to = append(to, recipients.FamilyContact)
	}
	out.To = to
	out.CC = cc
	if len(out.Attachments) == 0 {
		out.Attachments = []string{reportAttachment}
	}
	return out
}

func containsFold(list []string, item string) bool {
	item = strings.TrimSpace(item)
	for _, v := range list {
		if strings.EqualFold(strings.TrimSpace(v), item) {
			return true
		}
	}
	return false
}

func requiresFamily(notifications []string) bool {
	for _, n := range notifications {
		lower := strings.ToLower(n)
		if strings.Contains(lower, "family") || strings.Contains(lower, "next of kin") {
			return true
		}
	}
	return false
}

func emailBody(a Analysis, report IncidentReport, priority Priority, signature string) string {
	var lines []string
	add := func(l ...string) { lines = append(lines, l...) }

	if priority == PriorityHigh {
		add("This email requires immediate attention.", "")
	}
	add("Dear Team,", "")
	add(fmt.Sprintf("I am writing to inform you of an incident involving %s that occurred on %s.",
		orDefault(report.ServiceUserName, "a service user"), formatDateTime(report.DateTime)), "")

	add("**Incident Summary:**",
		"- Type: "+orDefault(report.IncidentType, unknownPlaceholder),
		"- Location: "+orDefault(report.Location, unknownPlaceholder),
		"- Description: "+orDefault(report.Description, "No description available"),
		"")

	add("**Immediate Actions Taken:**", orDefault(report.ImmediateActions, "Standard support protocol initiated"), "")

	if len(a.Violations) > 0 {
		add("**Policy Concerns Identified:**")
		for _, v := range a.Violations {
			add(fmt.Sprintf("- %s: %s", orDefault(v.PolicySection, "Policy"), v.Description))
		}
		add("")
	}

	add("**Required Follow-up Actions:**")
	for _, v := range a.Violations {
		if v.RequiredAction != "" {
			add("- " + v.RequiredAction)
		}
	}
	if report.RiskAssessmentNeeded {
		add("- " + orDefault(report.RiskAssessmentType, "Risk assessment") + " required")
	}
	add("")

	add("**Agreed Next Steps:**", orDefault(report.AgreedNextSteps, "To be determined"), "")

	add("Please review the attached incident report for full details. If you have any questions or require additional information, please contact me immediately.",
		"",
		"Best regards,",
		signature)
	return strings.Join(lines, "\n")
}

func formatDateTime(raw string) string {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.Format("January 02, 2006 at 03:04 PM")
	}
	return orDefault(raw, "Unknown time")
}
