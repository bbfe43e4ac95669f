package incident

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrMalformedResponse means no decodable JSON object was found in the model output.
	ErrMalformedResponse = errors.New("incident: malformed response")
	// ErrSchemaViolation means the object decoded but a field could not be coerced.
	ErrSchemaViolation = errors.New("incident: schema violation")
)

// PartialFailure carries the raw model output next to the parse error.
type PartialFailure struct {
	Raw string
	Err error
}

func (p *PartialFailure) Error() string {
	return fmt.Sprintf("incident: unusable model output: %v", p.Err)
}

func (p *PartialFailure) Unwrap() error { return p.Err }

func partial(raw string, err error) error {
	return &PartialFailure{Raw: raw, Err: err}
}

func schemaErr(field, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrSchemaViolation, field, fmt.Sprintf(format, args...))
}

func decodeObject(raw string) (map[string]any, error) {
	span, err := extractObject(raw)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(span)))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return obj, nil
}

// unwrapEnvelope handles models that nest the payload under a single named key.
func unwrapEnvelope(obj map[string]any, keys ...string) map[string]any {
	if len(obj) != 1 {
		return obj
	}
	for _, k := range keys {
		if inner, ok := obj[k].(map[string]any); ok {
			return inner
		}
	}
	return obj
}

// ParseAnalysis decodes model output into a canonical Analysis.
func ParseAnalysis(raw string) (Analysis, error) {
	obj, err := decodeObject(raw)
	if err != nil {
		return Analysis{}, partial(raw, err)
	}
	obj = unwrapEnvelope(obj, "analysis")

	a, err := analysisFromMap(obj)
	if err != nil {
		return Analysis{}, partial(raw, err)
	}
	return a, nil
}

func analysisFromMap(obj map[string]any) (Analysis, error) {
	rawSummary, ok := obj["summary"]
	if !ok {
		return Analysis{}, schemaErr("summary", "required key missing")
	}
	summary, err := coerceString("summary", rawSummary)
	if err != nil {
		return Analysis{}, err
	}
	if strings.TrimSpace(summary) == "" {
		return Analysis{}, schemaErr("summary", "empty")
	}

	a := Analysis{Summary: strings.TrimSpace(summary)}

	if a.Violations, err = coerceViolations(obj["violations"]); err != nil {
		return Analysis{}, err
	}
	notifications, err := coerceList("notifications_required", obj["notifications_required"])
	if err != nil {
		return Analysis{}, err
	}
	a.NotificationsRequired = dedupe(notifications)
	if a.RiskAssessments, err = coerceList("risk_assessments", obj["risk_assessments"]); err != nil {
		return Analysis{}, err
	}
	if a.Recommendations, err = coerceList("recommendations", obj["recommendations"]); err != nil {
		return Analysis{}, err
	}
	a.ExtractedFacts = coerceFacts(obj["extracted_facts"])
	return a, nil
}

func coerceViolations(v any) ([]Violation, error) {
	var items []any
	switch t := v.(type) {
	case nil:
		return []Violation{}, nil
	case []any:
		items = t
	case map[string]any:
		items = []any{t}
	case string:
		items = []any{t}
	default:
		return nil, schemaErr("violations", "expected list, got %T", v)
	}

	out := make([]Violation, 0, len(items))
	for i, item := range items {
		if text, ok := item.(string); ok {
			// A bare description; severity takes the blank-value default.
			if text = strings.TrimSpace(text); text != "" {
				out = append(out, Violation{Description: text, Severity: SeverityMedium})
			}
			continue
		}
		m, ok := item.(map[string]any)
		if !ok {
			return nil, schemaErr(fmt.Sprintf("violations[%d]", i), "expected object, got %T", item)
		}
		field := func(name string) (string, error) {
			return coerceString(fmt.Sprintf("violations[%d].%s", i, name), m[name])
		}
		var viol Violation
		var err error
		if viol.PolicySection, err = field("policy_section"); err != nil {
			return nil, err
		}
		if viol.ViolationType, err = field("violation_type"); err != nil {
			return nil, err
		}
		if viol.Description, err = field("description"); err != nil {
			return nil, err
		}
		if viol.RequiredAction, err = field("required_action"); err != nil {
			return nil, err
		}
		sev, err := field("severity")
		if err != nil {
			return nil, err
		}
		if viol.Severity, err = ParseSeverity(sev); err != nil {
			return nil, schemaErr(fmt.Sprintf("violations[%d].severity", i), "%v", err)
		}
		out = append(out, viol)
	}
	return out, nil
}

// ParseSeverity case-folds s into the severity enum. A blank value means medium.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return SeverityHigh, nil
	case "medium", "":
		return SeverityMedium, nil
	case "low":
		return SeverityLow, nil
	default:
		return "", fmt.Errorf("unknown severity %q", s)
	}
}

func coerceFacts(v any) *ExtractedFacts {
	m, ok := v.(map[string]any)
	if !ok || len(m) == 0 {
		return nil
	}
	str := func(key string) string {
		s, err := coerceString(key, m[key])
		if err != nil {
			return ""
		}
		return strings.TrimSpace(s)
	}
	list := func(key string) []string {
		l, err := coerceList(key, m[key])
		if err != nil || len(l) == 0 {
			return nil
		}
		return l
	}
	flag := func(key string) bool {
		b, err := coerceBool(key, m[key])
		return err == nil && b
	}
	facts := &ExtractedFacts{
		ServiceUserName:   str("service_user_name"),
		Location:          str("location"),
		IncidentType:      str("incident_type"),
		IncidentTime:      str("incident_time"),
		RepeatedIncident:  flag("repeated_incident"),
		Injuries:          list("injuries_mentioned"),
		FirstAid:          flag("first_aid_administered"),
		EmergencyServices: flag("emergency_services_contacted"),
		Witnesses:         list("witnesses"),
	}
	if facts.empty() {
		return nil
	}
	return facts
}

// ParseReport applies the fields present in raw on top of base.
func ParseReport(raw string, base IncidentReport) (IncidentReport, error) {
	obj, err := decodeObject(raw)
	if err != nil {
		return base, partial(raw, err)
	}
	obj = unwrapEnvelope(obj, "incident_report", "report")

	out := base
	textFields := map[string]*string{
		"date_time":            &out.DateTime,
		"service_user_name":    &out.ServiceUserName,
		"location":             &out.Location,
		"incident_type":        &out.IncidentType,
		"description":          &out.Description,
		"immediate_actions":    &out.ImmediateActions,
		"who_was_notified":     &out.WhoWasNotified,
		"witnesses":            &out.Witnesses,
		"agreed_next_steps":    &out.AgreedNextSteps,
		"risk_assessment_type": &out.RiskAssessmentType,
	}
	flagFields := map[string]*bool{
		"first_aid_administered":       &out.FirstAidAdministered,
		"emergency_services_contacted": &out.EmergencyServicesContacted,
		"risk_assessment_needed":       &out.RiskAssessmentNeeded,
	}

	matched := 0
	for key, dst := range textFields {
		v, ok := obj[key]
		if !ok {
			continue
		}
		matched++
		s, err := coerceJoined(key, v)
		if err != nil {
			return base, partial(raw, err)
		}
		*dst = s
	}
	for key, dst := range flagFields {
		v, ok := obj[key]
		if !ok {
			continue
		}
		matched++
		b, err := coerceBool(key, v)
		if err != nil {
			return base, partial(raw, err)
		}
		*dst = b
	}
	if matched == 0 {
		return base, partial(raw, schemaErr("incident_report", "no report fields present"))
	}
	return out, nil
}

// ParseEmail applies the fields present in raw on top of base.
func ParseEmail(raw string, base EmailDraft) (EmailDraft, error) {
	obj, err := decodeObject(raw)
	if err != nil {
		return base, partial(raw, err)
	}
	obj = unwrapEnvelope(obj, "email_draft", "email")

	out := base.clone()
	matched := 0
	for _, key := range []string{"to", "cc", "attachments"} {
		v, ok := obj[key]
		if !ok {
			continue
		}
		matched++
		list, err := coerceAddressList(key, v)
		if err != nil {
			return base, partial(raw, err)
		}
		switch key {
		case "to":
			out.To = list
		case "cc":
			out.CC = list
		case "attachments":
			out.Attachments = list
		}
	}
	for _, key := range []string{"subject", "body"} {
		v, ok := obj[key]
		if !ok {
			continue
		}
		matched++
		s, err := coerceString(key, v)
		if err != nil {
			return base, partial(raw, err)
		}
		if key == "subject" {
			out.Subject = strings.TrimSpace(s)
		} else {
			out.Body = s
		}
	}
	if v, ok := obj["priority"]; ok {
		matched++
		s, err := coerceString("priority", v)
		if err != nil {
			return base, partial(raw, err)
		}
		if out.Priority, err = ParsePriority(s); err != nil {
			return base, partial(raw, schemaErr("priority", "%v", err))
		}
	}
	if matched == 0 {
		return base, partial(raw, schemaErr("email_draft", "no email fields present"))
	}
	return out, nil
}

// ParsePriority folds vendor wording onto the two-level priority enum.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high", "urgent", "critical":
		return PriorityHigh, nil
	case "normal", "medium", "low", "":
		return PriorityNormal, nil
	default:
		return "", fmt.Errorf("unknown priority %q", s)
	}
}

func coerceString(field string, v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case json.Number:
		return t.String(), nil
	case bool:
		return strconv.FormatBool(t), nil
	default:
		return "", schemaErr(field, "expected string, got %T", v)
	}
}

// coerceJoined accepts a string or a list of strings; lists are joined with ", ".
func coerceJoined(field string, v any) (string, error) {
	if items, ok := v.([]any); ok {
		list, err := coerceList(field, items)
		if err != nil {
			return "", err
		}
		return strings.Join(list, ", "), nil
	}
	return coerceString(field, v)
}

// coerceList normalizes singular/plural drift: a lone string becomes a
// one-element list, blanks are dropped.
func coerceList(field string, v any) ([]string, error) {
	switch t := v.(type) {
	case nil:
		return []string{}, nil
	case string:
		if strings.TrimSpace(t) == "" {
			return []string{}, nil
		}
		return []string{strings.TrimSpace(t)}, nil
	case []any:
		out := make([]string, 0, len(t))
		for i, item := range t {
			s, err := coerceString(fmt.Sprintf("%s[%d]", field, i), item)
			if err != nil {
				return nil, err
			}
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out, nil
	default:
		return nil, schemaErr(field, "expected list, got %T", v)
	}
}

// coerceAddressList is coerceList that also splits "a@x, b@y" strings.
func coerceAddressList(field string, v any) ([]string, error) {
	if s, ok := v.(string); ok {
		parts := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' })
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out, nil
	}
	return coerceList(field, v)
}

func coerceBool(field string, v any) (bool, error) {
	switch t := v.(type) {
	case nil:
		return false, nil
	case bool:
		return t, nil
	case json.Number:
		return t.String() != "0", nil
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes", "y", "1":
			return true, nil
		case "false", "no", "n", "0", "", "none", "n/a":
			return false, nil
		}
		return false, schemaErr(field, "cannot read %q as boolean", t)
	default:
		return false, schemaErr(field, "expected boolean, got %T", v)
	}
}

func dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		key := strings.ToLower(item)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, item)
	}
	return out
}
