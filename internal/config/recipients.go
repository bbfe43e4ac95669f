package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Recipients is the notification directory used when drafting incident emails.
type Recipients struct {
	Supervisor    string `yaml:"supervisor"`
	RiskAssessor  string `yaml:"risk_assessor"`
	FamilyContact string `yaml:"family_contact"`
	Signature     string `yaml:"signature"`
}

// DefaultRecipients builds the directory from environment defaults.
func (c *Config) DefaultRecipients() Recipients {
	return Recipients{
		Supervisor:    c.SupervisorEmail,
		RiskAssessor:  c.RiskAssessorEmail,
		FamilyContact: c.FamilyContactEmail,
		Signature:     c.OrganizationName,
	}
}

// LoadRecipients returns the env defaults overlaid with RECIPIENTS_FILE when set.
// Blank entries in the file keep the env value.
func (c *Config) LoadRecipients() (Recipients, error) {
	base := c.DefaultRecipients()
	path := strings.TrimSpace(c.RecipientsFile)
	if path == "" {
		return base, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("config: read recipients file: %w", err)
	}

	var file Recipients
	if err := yaml.Unmarshal(data, &file); err != nil {
		return base, fmt.Errorf("config: parse recipients file: %w", err)
	}

	if v := strings.TrimSpace(file.Supervisor); v != "" {
		base.Supervisor = v
	}
	if v := strings.TrimSpace(file.RiskAssessor); v != "" {
		base.RiskAssessor = v
	}
	if v := strings.TrimSpace(file.FamilyContact); v != "" {
		base.FamilyContact = v
	}
	if v := strings.TrimSpace(file.Signature); v != "" {
		base.Signature = v
	}
	return base, nil
}
