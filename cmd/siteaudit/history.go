package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/nao1215/siteaudit/internal/config"
	"github.com/nao1215/siteaudit/internal/database"
	"github.com/nao1215/siteaudit/internal/model"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [organization]",
		Short: "Show past audits and compare the latest two",
		Long: `History reads the audit database written by 'siteaudit audit'.

Without flags it lists the recorded runs of an organization, newest first.
With --compare it compares the two most recent complete runs: the change in
benefits and drawbacks per stakeholder, and the drawbacks that appeared or
were resolved since the previous audit.

Examples:
  # List organizations in the database
  siteaudit history --list-organizations

  # List the runs of one organization
  siteaudit history green-futures

  # Compare the latest two complete runs
  siteaudit history green-futures --compare

  # Compare in JSON
  siteaudit history green-futures --compare --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().BoolP("list-organizations", "L", false, "List every organization in the database")
	cmd.Flags().BoolP("compare", "C", false, "Compare the latest two complete runs")
	cmd.Flags().BoolP("json", "j", false, "Print the comparison as JSON")
	cmd.Flags().String("db-dir", config.XDGDataDir(), "Directory of the history database")

	return cmd
}

func runHistoryCmd(cmd *cobra.Command, args []string) error {
	listOrgs, err := cmd.Flags().GetBool("list-organizations")
	if err != nil {
		return err
	}
	compare, err := cmd.Flags().GetBool("compare")
	if err != nil {
		return err
	}
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}

	// Validate arguments before touching the database.
	if !listOrgs && len(args) == 0 {
		return errors.New("organization is required (use --list-organizations to see recorded organizations)")
	}

	opts := database.DefaultOptions()
	opts.CreateIfNotExists = false
	db, err := database.Open(dbDir, opts)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	switch {
	case listOrgs:
		return listOrganizations(ctx, out, db)
	case compare:
		return compareLatest(ctx, out, db, args[0], jsonOutput)
	default:
		return listHistory(ctx, out, db, args[0])
	}
}

func listOrganizations(ctx context.Context, out io.Writer, db *database.AuditDB) error {
	orgs, err := db.ListOrganizations(ctx)
	if err != nil {
		return err
	}
	if len(orgs) == 0 {
		fmt.Fprintln(out, "No audits recorded yet.")
		fmt.Fprintln(out, "\nUse 'siteaudit audit <organization|site-url>' to audit a site.")
		return nil
	}

	fmt.Fprintf(out, "Audited organizations (%d):\n\n", len(orgs))
	for _, org := range orgs {
		fmt.Fprintf(out, "  • %s\n", org)
	}
	return nil
}

func listHistory(ctx context.Context, out io.Writer, db *database.AuditDB, org string) error {
	runs, err := db.History(ctx, org)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintf(out, "No audits recorded for %s\n", org)
		return nil
	}

	fmt.Fprintf(out, "Audit history for %s (%d runs):\n\n", org, len(runs))
	fmt.Fprintf(out, "  %-8s  %-19s  %-9s  %5s  %8s  %9s\n", "ID", "Date", "Status", "Pages", "Benefits", "Drawbacks")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 67))
	for _, run := range runs {
		benefits, drawbacks := sumTotals(run.Totals)
		fmt.Fprintf(out, "  %-8s  %-19s  %-9s  %5d  %8d  %9d\n",
			run.ID[:min(8, len(run.ID))],
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			run.Status,
			run.Pages,
			benefits,
			drawbacks,
		)
	}
	fmt.Fprintf(out, "\nUse 'siteaudit history %s --compare' to compare the latest two audits.\n", org)
	return nil
}

func sumTotals(totals map[string]database.StakeholderTotals) (benefits, drawbacks int) {
	for _, t := range totals {
		benefits += t.Benefits
		drawbacks += t.Drawbacks
	}
	return benefits, drawbacks
}

// StakeholderChange is the difference between two runs for one stakeholder.
type StakeholderChange struct {
	Stakeholder       string   `json:"stakeholder"`
	PreviousBenefits  int      `json:"previous_benefits"`
	CurrentBenefits   int      `json:"current_benefits"`
	PreviousDrawbacks int      `json:"previous_drawbacks"`
	CurrentDrawbacks  int      `json:"current_drawbacks"`
	NewDrawbacks      []string `json:"new_drawbacks"`
	ResolvedDrawbacks []string `json:"resolved_drawbacks"`
}

// Comparison is the result of comparing two runs of one organization.
type Comparison struct {
	Organization string              `json:"organization"`
	PreviousID   string              `json:"previous_id"`
	CurrentID    string              `json:"current_id"`
	PreviousDate string              `json:"previous_date"`
	CurrentDate  string              `json:"current_date"`
	Stakeholders []StakeholderChange `json:"stakeholders"`
}

func compareLatest(ctx context.Context, out io.Writer, db *database.AuditDB, org string, jsonOutput bool) error {
	runs, err := db.History(ctx, org)
	if err != nil {
		return err
	}
	complete := slices.DeleteFunc(runs, func(r database.RunMetadata) bool {
		return r.Status != database.StatusComplete
	})
	if len(complete) < 2 {
		return fmt.Errorf("need at least two complete audits of %s to compare, found %d", org, len(complete))
	}
	current, previous := complete[0], complete[1]

	currentFindings, err := db.Findings(ctx, current.ID)
	if err != nil {
		return err
	}
	previousFindings, err := db.Findings(ctx, previous.ID)
	if err != nil {
		return err
	}

	result := compareRuns(previous, current, previousFindings, currentFindings)
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	return writeComparison(out, result)
}

// compareRuns diffs two runs. Drawbacks are matched by page URL and exact
// text. Stakeholders are listed in sorted order.
func compareRuns(previous, current database.RunMetadata, previousFindings, currentFindings model.Findings) *Comparison {
	result := &Comparison{
		Organization: current.Organization,
		PreviousID:   previous.ID,
		CurrentID:    current.ID,
		PreviousDate: previous.StartedAt.Format("2006-01-02 15:04:05"),
		CurrentDate:  current.StartedAt.Format("2006-01-02 15:04:05"),
	}

	names := make([]string, 0, len(current.Totals)+len(previous.Totals))
	for name := range current.Totals {
		names = append(names, name)
	}
	for name := range previous.Totals {
		if _, ok := current.Totals[name]; !ok {
			names = append(names, name)
		}
	}
	slices.Sort(names)

	for _, name := range names {
		prevSet := drawbackSet(previousFindings, name)
		currSet := drawbackSet(currentFindings, name)
		result.Stakeholders = append(result.Stakeholders, StakeholderChange{
			Stakeholder:       name,
			PreviousBenefits:  previous.Totals[name].Benefits,
			CurrentBenefits:   current.Totals[name].Benefits,
			PreviousDrawbacks: previous.Totals[name].Drawbacks,
			CurrentDrawbacks:  current.Totals[name].Drawbacks,
			NewDrawbacks:      setDifference(currSet, prevSet),
			ResolvedDrawbacks: setDifference(prevSet, currSet),
		})
	}
	return result
}

// drawbackSet keys every drawback of stakeholder as "url: text".
func drawbackSet(findings model.Findings, stakeholder string) map[string]bool {
	set := make(map[string]bool)
	for _, url := range findings.URLs() {
		for _, d := range findings.Get(url, stakeholder).Drawbacks {
			set[url+": "+d] = true
		}
	}
	return set
}

func setDifference(a, b map[string]bool) []string {
	diff := make([]string, 0)
	for k := range a {
		if !b[k] {
			diff = append(diff, k)
		}
	}
	slices.Sort(diff)
	return diff
}

func writeComparison(out io.Writer, c *Comparison) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Comparing audits of %s\n", c.Organization)
	fmt.Fprintf(&sb, "  previous: %s (%s)\n", c.PreviousDate, c.PreviousID)
	fmt.Fprintf(&sb, "  current:  %s (%s)\n\n", c.CurrentDate, c.CurrentID)

	width := runewidth.StringWidth("Stakeholder")
	for _, s := range c.Stakeholders {
		width = max(width, runewidth.StringWidth(s.Stakeholder))
	}
	fmt.Fprintf(&sb, "  %s  %10s  %10s\n", runewidth.FillRight("Stakeholder", width), "Benefits", "Drawbacks")
	sb.WriteString("  " + strings.Repeat("-", width+24) + "\n")
	for _, s := range c.Stakeholders {
		fmt.Fprintf(&sb, "  %s  %10s  %10s\n",
			runewidth.FillRight(s.Stakeholder, width),
			formatDelta(s.PreviousBenefits, s.CurrentBenefits),
			formatDelta(s.PreviousDrawbacks, s.CurrentDrawbacks),
		)
	}

	for _, s := range c.Stakeholders {
		if len(s.NewDrawbacks) == 0 && len(s.ResolvedDrawbacks) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "\n%s\n", s.Stakeholder)
		for _, d := range s.NewDrawbacks {
			fmt.Fprintf(&sb, "  [+] %s\n", d)
		}
		for _, d := range s.ResolvedDrawbacks {
			fmt.Fprintf(&sb, "  [-] %s\n", d)
		}
	}

	_, err := io.WriteString(out, sb.String())
	return err
}

// formatDelta renders a count with its change, e.g. "7 (+2)".
func formatDelta(previous, current int) string {
	switch delta := current - previous; {
	case delta > 0:
		return fmt.Sprintf("%d (+%d)", current, delta)
	case delta < 0:
		return fmt.Sprintf("%d (%d)", current, delta)
	default:
		return fmt.Sprintf("%d", current)
	}
}
