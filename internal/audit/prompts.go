package audit

import (
	"fmt"
	"strings"

	"github.com/nao1215/siteaudit/internal/model"
)

// MissionInstruction asks for a mission statement derived from the homepage.
const MissionInstruction = "Create a mission statement for this organization"

const reviewTemplate = `Tags refer to opening and closing XML tags.
All benefits and drawbacks sit inside %[1]s tags.
Cover the benefits and drawbacks from the perspective of %[1]s: %[2]s.
Provide specific examples as to how the content affects or informs %[1]s.
%[3]sFirst state all the benefits where each benefit is between opening and closing benefit tags.
Second state all the drawbacks where each drawback is between opening and closing drawback tags.
List all benefits first and then all drawbacks second.
Provide no introduction, no precursor and no post cursor.
`

// websitePrompt is the system instruction for reviewing one page's text.
func websitePrompt(st model.Stakeholder, mission string) string {
	lens := ""
	if mission = strings.TrimSpace(strings.ReplaceAll(mission, "\n", " ")); mission != "" {
		lens = fmt.Sprintf("Keep this in the lens of the mission statement %s.\n", mission)
	}
	return fmt.Sprintf(reviewTemplate, st.Name, st.Description, lens)
}

// imagePrompt is the system instruction for reviewing one page's image captions.
func imagePrompt(st model.Stakeholder) string {
	return fmt.Sprintf(reviewTemplate, st.Name, st.Description, "")
}

// summaryInstruction asks for a structured finding per chunk of merged reviews.
func summaryInstruction(stakeholder string) string {
	return fmt.Sprintf("Provide a list of unique benefits and drawbacks for the stakeholder %s: ", stakeholder)
}

// findingPrompt asks for the final structured finding over all chunk results.
func findingPrompt(stakeholder, evidence string) string {
	return fmt.Sprintf("Analyze the following text and provide the unique benefits and drawbacks for the stakeholder %s: %s", stakeholder, evidence)
}

// reportInstruction is the system instruction for a stakeholder report.
func reportInstruction(stakeholder string) string {
	return fmt.Sprintf(`Provide the benefits and drawbacks of how %[1]s view the nonprofit.
Provide specific benefits and drawbacks with links to the website and how certain links have drawbacks or benefits.
Explain how the non-profit could highlight its strengths better and how it can improve its image with regards to its drawbacks.
Provide in-depth examples.
Make recommendations on how to improve.
A detailed report with sections.
The report should be in raw markdown.
Provide no precursor or post cursor text.
`, stakeholder)
}
