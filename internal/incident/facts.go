package incident

import (
	"regexp"
	"strings"
)

// TranscriptFacts are details read from the transcript without a model.
type TranscriptFacts struct {
	ServiceUserName   string
	Location          string
	IncidentTypes     []string
	IncidentTime      string
	RepeatedIncident  bool
	Fall              bool
	Confusion         bool
	Injuries          []string
	FirstAid          bool
	EmergencyServices bool
	Witnesses         []string
	Description       string
}

const (
	TypeFall           = "Fall"
	TypeMentalHealth   = "Mental Health Concern"
	TypeMedical        = "Medical"
	TypeGeneral        = "General Concern"
	defaultNoDetails   = "Service user contacted support line with concerns."
	unknownPlaceholder = "Unknown"
)

var (
	namePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?:\b[Ii] am|\bI'm|\b[Tt]his is|\b[Mm]y name is|\b[Ii]t's)\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)?)`),
		regexp.MustCompile(`(?m)^\s*([A-Z][a-z]+(?:\s+[A-Z][a-z]+)?):\s*["']?(?:Hi|Hello|Help)`),
	}
	notNames = map[string]bool{
		"support": true, "worker": true, "carer": true, "caller": true, "user": true, "client": true,
		"sorry": true, "fine": true, "okay": true, "not": true, "calling": true, "here": true,
	}

	locations = []string{"living room", "dining room", "bedroom", "bathroom", "kitchen", "garden", "hallway", "stairs", "lounge"}

	fallPattern       = regexp.MustCompile(`(?i)\b(fall|falls|fallen|fell|falling|slipped|tripped)\b`)
	confusionPattern  = regexp.MustCompile(`(?i)\b(confused|confusion|disoriented|disorientated|can't remember|cannot remember|forgetful|don't know where)\b`)
	mentalPattern     = regexp.MustCompile(`(?i)\b(anxious|panicking|depressed|low mood|suicidal|distressed)\b`)
	medicalPattern    = regexp.MustCompile(`(?i)\b(chest pain|can't breathe|breathless|bleeding|dizzy|unwell|fever|seizure|diabetic|medication|tablets|overdose)\b`)
	repeatPattern     = regexp.MustCompile(`(?i)\b(second|third|fourth|fifth|2nd|3rd|4th|5th)\s+time\b|\b(twice|three times|several times|multiple times|again)\b|\bkeeps?\s+(falling|happening)\b`)
	timePattern       = regexp.MustCompile(`(?i)\b(?:this|last|yesterday)\s+(?:morning|afternoon|evening|night)\b|\b\d{1,2}(?::\d{2})?\s?(?:am|pm)\b`)
	injuryPattern     = regexp.MustCompile(`(?i)\b(bruise[sd]?|bruising|cut|bleeding|sprain(?:ed)?|broken|fracture[d]?|sore|swollen|hurt|bump(?:ed)?)\b`)
	firstAidPattern   = regexp.MustCompile(`(?i)\bfirst aid (?:was )?(?:given|administered|applied|provided)\b|\b(?:applied|put on)\s+(?:a\s+)?(?:plaster|bandage|dressing|ice pack)\b`)
	noFirstAidPattern = regexp.MustCompile(`(?i)\b(?:no first aid|first aid (?:was )?not)\b`)
	emergencyPattern  = regexp.MustCompile(`(?i)\b(?:called|phoned|rang|contacted)\s+(?:an?\s+|the\s+)?(?:ambulance|999|911|paramedics|emergency services)\b|\bambulance\s+(?:was\s+)?(?:called|on its way|arrived)\b|\bparamedics\s+(?:arrived|attended)\b`)
	witnessPattern    = regexp.MustCompile(`(?i)\b(?:my|her|his)\s+(daughter|son|neighbou?r|husband|wife|carer|friend)\s+(?:saw|was there|witnessed|found)\b`)
)

// ExtractFacts applies keyword heuristics to transcript.
func ExtractFacts(transcript string) TranscriptFacts {
	lower := strings.ToLower(transcript)
	f := TranscriptFacts{
		ServiceUserName:   extractName(transcript),
		Location:          extractLocation(lower),
		IncidentTime:      strings.TrimSpace(timePattern.FindString(transcript)),
		RepeatedIncident:  repeatPattern.MatchString(transcript),
		Fall:              fallPattern.MatchString(transcript),
		Confusion:         confusionPattern.MatchString(transcript),
		FirstAid:          firstAidPattern.MatchString(transcript) && !noFirstAidPattern.MatchString(transcript),
		EmergencyServices: emergencyPattern.MatchString(transcript),
	}

	if f.Fall {
		f.IncidentTypes = append(f.IncidentTypes, TypeFall)
	}
	if f.Confusion || mentalPattern.MatchString(transcript) {
		f.IncidentTypes = append(f.IncidentTypes, TypeMentalHealth)
	}
	if medicalPattern.MatchString(transcript) {
		f.IncidentTypes = append(f.IncidentTypes, TypeMedical)
	}

	for _, m := range injuryPattern.FindAllString(transcript, -1) {
		f.Injuries = appendUnique(f.Injuries, strings.ToLower(m))
	}
	for _, m := range witnessPattern.FindAllStringSubmatch(transcript, -1) {
		f.Witnesses = appendUnique(f.Witnesses, titleCase(m[1]))
	}

	var parts []string
	if f.Fall {
		parts = append(parts, "Service user reported falling and being unable to get up independently.")
	}
	if f.Confusion {
		parts = append(parts, "Service user exhibited signs of confusion and memory difficulties.")
	}
	if f.RepeatedIncident {
		parts = append(parts, "This is a recurring incident.")
		if strings.Contains(lower, "third time") {
			parts[len(parts)-1] = "This is a recurring incident (third time this week)."
		}
	}
	f.Description = strings.Join(parts, " ")
	return f
}

// Overlay returns f with non-empty model-extracted facts taking precedence.
func (f TranscriptFacts) Overlay(m *ExtractedFacts) TranscriptFacts {
	if m == nil {
		return f
	}
	if name := strings.TrimSpace(m.ServiceUserName); name != "" && !isPlaceholderName(name) {
		f.ServiceUserName = name
	}
	if loc := strings.TrimSpace(m.Location); loc != "" && !strings.EqualFold(loc, "not specified") && !strings.EqualFold(loc, unknownPlaceholder) {
		f.Location = loc
	}
	if typ := strings.TrimSpace(m.IncidentType); typ != "" && !strings.EqualFold(typ, unknownPlaceholder) {
		f.IncidentTypes = []string{typ}
	}
	if m.IncidentTime != "" {
		f.IncidentTime = m.IncidentTime
	}
	f.RepeatedIncident = f.RepeatedIncident || m.RepeatedIncident
	f.FirstAid = f.FirstAid || m.FirstAid
	f.EmergencyServices = f.EmergencyServices || m.EmergencyServices
	for _, inj := range m.Injuries {
		f.Injuries = appendUnique(f.Injuries, inj)
	}
	for _, w := range m.Witnesses {
		f.Witnesses = appendUnique(f.Witnesses, w)
	}
	return f
}

func extractName(transcript string) string {
	for _, pattern := range namePatterns {
		for _, m := range pattern.FindAllStringSubmatch(transcript, -1) {
			name := m[1]
			first := strings.ToLower(strings.Fields(name)[0])
			if notNames[first] || notNames[strings.ToLower(name)] {
				continue
			}
			return name
		}
	}
	return ""
}

func extractLocation(lower string) string {
	for _, loc := range locations {
		if !strings.Contains(lower, loc) {
			continue
		}
		for _, prep := range []string{"in the ", "in my ", "at the ", "down the ", "on the "} {
			if strings.Contains(lower, prep+loc) {
				return titleCase(loc)
			}
		}
	}
	return ""
}

func isPlaceholderName(name string) bool {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "unknown", "not found", "service user", "[name]", "n/a":
		return true
	}
	return false
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}

func appendUnique(list []string, item string) []string {
	item = strings.TrimSpace(item)
	if item == "" {
		return list
	}
	for _, existing := range list {
		if strings.EqualFold(existing, item) {
			return list
		}
	}
	return append(list, item)
}
