package domain

import (
	"fmt"
	"strings"
)

// Patient is a discharge record looked up by name.
type Patient struct {
	PatientID             string   `yaml:"patient_id" json:"patient_id"`
	Name                  string   `yaml:"patient_name" json:"patient_name"`
	DischargeDate         string   `yaml:"discharge_date" json:"discharge_date"`
	Age                   int      `yaml:"age" json:"age"`
	PrimaryDiagnosis      string   `yaml:"primary_diagnosis" json:"primary_diagnosis"`
	Medications           []string `yaml:"medications" json:"medications"`
	DietaryRestrictions   string   `yaml:"dietary_restrictions" json:"dietary_restrictions"`
	FollowUp              string   `yaml:"follow_up" json:"follow_up"`
	WarningSigns          string   `yaml:"warning_signs" json:"warning_signs"`
	DischargeInstructions string   `yaml:"discharge_instructions" json:"discharge_instructions"`
}

// WarningSignList splits the comma-separated warning signs.
func (p Patient) WarningSignList() []string {
	var signs []string
	for _, s := range strings.Split(p.WarningSigns, ",") {
		if s = strings.TrimSpace(s); s != "" {
			signs = append(signs, s)
		}
	}
	return signs
}

// MonitoredTerms returns lower-cased terms describing what this patient is
// being watched for: diagnosis words and warning signs.
func (p Patient) MonitoredTerms() []string {
	terms := make([]string, 0, len(p.WarningSignList())+1)
	if d := strings.TrimSpace(strings.ToLower(p.PrimaryDiagnosis)); d != "" {
		terms = append(terms, d)
	}
	for _, s := range p.WarningSignList() {
		terms = append(terms, strings.ToLower(s))
	}
	return terms
}

// Report formats the discharge record for display.
func (p Patient) Report() string {
	var b strings.Builder
	b.WriteString("--- DISCHARGE REPORT ---\n")
	fmt.Fprintf(&b, "Patient Name: %s\n", p.Name)
	fmt.Fprintf(&b, "Patient ID: %s\n", p.PatientID)
	fmt.Fprintf(&b, "Discharge Date: %s\n", p.DischargeDate)
	fmt.Fprintf(&b, "Age: %d years\n\n", p.Age)
	fmt.Fprintf(&b, "PRIMARY DIAGNOSIS:\n%s\n\n", p.PrimaryDiagnosis)
	b.WriteString("MEDICATIONS:\n")
	for _, m := range p.Medications {
		fmt.Fprintf(&b, "  • %s\n", m)
	}
	fmt.Fprintf(&b, "\nDIETARY RESTRICTIONS:\n%s\n\n", p.DietaryRestrictions)
	fmt.Fprintf(&b, "FOLLOW-UP APPOINTMENTS:\n%s\n\n", p.FollowUp)
	b.WriteString("WARNING SIGNS TO WATCH:\n")
	for _, s := range p.WarningSignList() {
		fmt.Fprintf(&b, "  • %s\n", s)
	}
	fmt.Fprintf(&b, "\nDISCHARGE INSTRUCTIONS:\n%s\n", p.DischargeInstructions)
	return b.String()
}
