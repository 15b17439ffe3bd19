package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ovidijusr/shieldai/internal/services"
)

func newAuditCmd() *cobra.Command {
	var (
		mode     string
		saveFile string
	)

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Audit the local container infrastructure",
		Long: `Audit collects a snapshot of the local container infrastructure and
evaluates it. Quick mode runs the deterministic checks only; deep mode also
sends the snapshot through the configured model provider for remediation
content. Saved reports are the input to 'shieldai fix'.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}

			run, err := a.service.Run(cmd.Context(), mode)
			if err != nil {
				return err
			}

			if saveFile != "" {
				data, err := json.MarshalIndent(run, "", "  ")
				if err != nil {
					return err
				}
				if err := os.WriteFile(saveFile, data, 0o600); err != nil {
					return fmt.Errorf("failed to save report: %w", err)
				}
				fmt.Printf("Report saved to %s\n", saveFile)
			}

			return renderRun(run)
		},
	}

	cmd.Flags().StringVarP(&mode, "mode", "m", services.ModeQuick, "audit mode: quick or deep")
	cmd.Flags().StringVarP(&saveFile, "save", "s", "", "save the full run as JSON to this file")

	return cmd
}

func renderRun(run *services.AuditContext) error {
	if getOutputFormat() != "table" {
		return printOutput(run)
	}

	rep := run.Report
	fmt.Printf("Run:      %s (%s)\n", run.ID, run.Mode)
	fmt.Printf("Score:    %d/100\n", rep.Score)
	if rep.Degraded {
		fmt.Println("Note:     deep analysis was unusable, showing deterministic findings only")
	}
	fmt.Printf("Summary:  %s\n\n", rep.Summary)

	if len(rep.Findings) == 0 {
		fmt.Println("No findings.")
	} else {
		t := NewTable("ID", "SEVERITY", "CATEGORY", "CONTAINER", "TITLE", "FIXABLE")
		for _, f := range rep.Findings {
			fixable := "no"
			if f.Fix != nil {
				fixable = string(f.Fix.Kind)
			}
			t.AddRow(truncate(f.ID, 8), string(f.Severity), string(f.Category), f.Container, truncate(f.Title, 60), fixable)
		}
		t.Render()
	}

	if len(rep.Practices) > 0 {
		fmt.Println()
		t := NewTable("GOOD PRACTICE", "CATEGORY")
		for _, p := range rep.Practices {
			t.AddRow(truncate(p.Title, 70), p.Category)
		}
		t.Render()
	}

	if len(rep.Recommendations) > 0 {
		fmt.Println()
		t := NewTable("PRIORITY", "RECOMMENDATION")
		for _, r := range rep.Recommendations {
			t.AddRow(r.Priority, truncate(r.Title, 70))
		}
		t.Render()
	}

	return nil
}
