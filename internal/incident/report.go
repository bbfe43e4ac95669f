package incident

import (
	"strings"
	"time"
)

const defaultImmediateActions = "Provided reassurance and comfort. Assessed physical condition. Initiated support protocol."

// DeriveReport maps an analysis and transcript facts onto the report template.
// It never fails; missing data degrades to placeholders.
func DeriveReport(a Analysis, facts TranscriptFacts, now time.Time) IncidentReport {
	facts = facts.Overlay(a.ExtractedFacts)

	report := IncidentReport{
		DateTime:                   now.Format(time.RFC3339),
		ServiceUserName:            orDefault(facts.ServiceUserName, unknownPlaceholder),
		Location:                   orDefault(facts.Location, unknownPlaceholder),
		IncidentType:               incidentType(a, facts),
		Description:                describe(a, facts),
		ImmediateActions:           immediateActions(facts),
		FirstAidAdministered:       facts.FirstAid,
		EmergencyServicesContacted: facts.EmergencyServices,
		WhoWasNotified:             strings.Join(a.NotificationsRequired, ", "),
		Witnesses:                  orDefault(strings.Join(facts.Witnesses, ", "), "None"),
		AgreedNextSteps:            nextSteps(a, facts),
		RiskAssessmentNeeded:       len(a.RiskAssessments) > 0 || facts.RepeatedIncident,
		RiskAssessmentType:         strings.Join(a.RiskAssessments, ", "),
	}
	if report.RiskAssessmentNeeded && report.RiskAssessmentType == "" {
		report.RiskAssessmentType = "General risk assessment"
		if hasFall(a, facts) {
			report.RiskAssessmentType = "Moving and handling risk assessment"
		}
	}
	return report
}

func incidentType(a Analysis, facts TranscriptFacts) string {
	types := append([]string{}, facts.IncidentTypes...)
	for _, v := range a.Violations {
		kind := strings.ToLower(v.ViolationType + " " + v.PolicySection)
		switch {
		case strings.Contains(kind, "fall"):
			types = appendUnique(types, TypeFall)
		case strings.Contains(kind, "mental") || strings.Contains(kind, "cognitive"):
			types = appendUnique(types, TypeMentalHealth)
		}
	}
	if len(types) == 0 {
		return TypeGeneral
	}
	return strings.Join(types, ", ")
}

func describe(a Analysis, facts TranscriptFacts) string {
	if facts.Description != "" {
		return facts.Description
	}
	if a.Summary != "" && a.Summary != FallbackSummary {
		return a.Summary
	}
	return defaultNoDetails
}

func immediateActions(facts TranscriptFacts) string {
	actions := defaultImmediateActions
	if facts.FirstAid {
		actions += " First aid administered."
	}
	if facts.EmergencyServices {
		actions += " Emergency services contacted."
	}
	return actions
}

func nextSteps(a Analysis, facts TranscriptFacts) string {
	var steps []string
	for _, v := range a.Violations {
		kind := strings.ToLower(v.ViolationType)
		switch {
		case strings.Contains(kind, "recurring fall") || strings.Contains(kind, "repeated fall"):
			steps = appendUnique(steps, "Arrange immediate moving and handling risk assessment")
		case strings.Contains(kind, "fall"):
			steps = appendUnique(steps, "Monitor for additional falls")
		}
		if strings.Contains(kind, "mental health") || strings.Contains(kind, "cognitive") {
			steps = appendUnique(steps, "Contact family to discuss cognitive concerns")
			steps = appendUnique(steps, "Consider cognitive assessment referral")
		}
	}
	if len(steps) == 0 && facts.Fall {
		if facts.RepeatedIncident {
			steps = append(steps, "Arrange immediate moving and handling risk assessment")
		} else {
			steps = append(steps, "Monitor for additional falls")
		}
	}
	for _, rec := range a.Recommendations {
		if rec == fallbackRecommendation {
			continue
		}
		steps = appendUnique(steps, rec)
	}
	if len(steps) == 0 {
		return "Continue regular monitoring and support"
	}
	return strings.Join(steps, "; ")
}

func hasFall(a Analysis, facts TranscriptFacts) bool {
	if facts.Fall {
		return true
	}
	for _, t := range facts.IncidentTypes {
		if t == TypeFall {
			return true
		}
	}
	for _, v := range a.Violations {
		if strings.Contains(strings.ToLower(v.ViolationType+" "+v.PolicySection), "fall") {
			return true
		}
	}
	return false
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
