package model

// Stakeholder is an audience perspective the site is evaluated from.
type Stakeholder struct {
	// Name is the display name, e.g. "Donors". It also keys every
	// per-stakeholder map and names the per-stakeholder report file.
	Name string `json:"name" yaml:"name"`

	// Description is the short prose handed to the model alongside the name.
	Description string `json:"description" yaml:"description"`
}

// Stakeholders is an ordered stakeholder list. Report output follows this order.
type Stakeholders []Stakeholder

// Names returns the stakeholder names in order.
func (s Stakeholders) Names() []string {
	names := make([]string, len(s))
	for i, st := range s {
		names[i] = st.Name
	}
	return names
}

// Find returns the stakeholder with the given name.
func (s Stakeholders) Find(name string) (Stakeholder, bool) {
	for _, st := range s {
		if st.Name == name {
			return st, true
		}
	}
	return Stakeholder{}, false
}

// DefaultStakeholders returns the audiences a nonprofit site is audited for
// when the site configuration does not list its own.
func DefaultStakeholders() Stakeholders {
	return Stakeholders{
		{Name: "Board of Directors", Description: "Responsible for governance and strategic direction."},
		{Name: "Staff", Description: "Employees who carry out the day-to-day operations."},
		{Name: "Volunteers", Description: "Individuals who offer their time and skills without pay."},
		{Name: "Donors", Description: "Individuals or entities that provide financial support."},
		{Name: "Beneficiaries", Description: "The people or communities that the nonprofit serves."},
		{Name: "Government Agencies", Description: "Regulatory bodies and potential funders."},
		{Name: "Grant-Making Foundations", Description: "Organizations that provide grants to nonprofits."},
		{Name: "Partners", Description: "Other organizations that collaborate with the nonprofit."},
		{Name: "Media", Description: "Outlets that cover the nonprofit's activities and impact."},
		{Name: "Community Members", Description: "Local residents and groups affected by the nonprofit's work."},
	}
}
