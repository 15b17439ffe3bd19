package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ovidijusr/shieldai/internal/domain/finding"
	"github.com/ovidijusr/shieldai/internal/pkg/errors"
)

// savedRun is the subset of a saved audit run the fix commands need.
type savedRun struct {
	ID     string               `json:"id"`
	Report *finding.AuditReport `json:"report"`
}

func newFixCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fix",
		Short: "Preview and apply fixes from a saved audit report",
	}

	cmd.AddCommand(newFixPreviewCmd())
	cmd.AddCommand(newFixApplyCmd())

	return cmd
}

func newFixPreviewCmd() *cobra.Command {
	var (
		reportFile string
		findingID  string
	)

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Show the diff a fix would apply",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := loadFinding(reportFile, findingID)
			if err != nil {
				return err
			}

			a, err := buildApp()
			if err != nil {
				return err
			}

			preview, err := a.fixer.Preview(cmd.Context(), f)
			if err != nil {
				return err
			}

			if getOutputFormat() != "table" {
				return printOutput(preview)
			}
			renderPreview(preview)
			return nil
		},
	}

	cmd.Flags().StringVarP(&reportFile, "report", "r", "", "saved audit report file (required)")
	cmd.Flags().StringVarP(&findingID, "finding", "f", "", "finding ID to preview (required)")
	_ = cmd.MarkFlagRequired("report")
	_ = cmd.MarkFlagRequired("finding")

	return cmd
}

func newFixApplyCmd() *cobra.Command {
	var (
		reportFile string
		findingID  string
		yes        bool
	)

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply a fix with backup and restart verification",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := loadFinding(reportFile, findingID)
			if err != nil {
				return err
			}

			a, err := buildApp()
			if err != nil {
				return err
			}

			preview, err := a.fixer.Preview(cmd.Context(), f)
			if err != nil {
				return err
			}
			renderPreview(preview)

			if !yes && !confirm(fmt.Sprintf("Apply this fix to %s?", preview.TargetPath)) {
				fmt.Println("Aborted.")
				return nil
			}

			result, err := a.fixer.Apply(cmd.Context(), f)
			if err != nil {
				if result != nil && result.BackupPath != "" {
					fmt.Printf("Apply failed, backup kept at %s\n", result.BackupPath)
				}
				return err
			}

			fmt.Printf("Fix applied. Backup: %s\n", result.BackupPath)
			if result.RestartedContainer != "" {
				fmt.Printf("Restarted container %s and verified it is running.\n", result.RestartedContainer)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&reportFile, "report", "r", "", "saved audit report file (required)")
	cmd.Flags().StringVarP(&findingID, "finding", "f", "", "finding ID to apply (required)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "apply without confirmation")
	_ = cmd.MarkFlagRequired("report")
	_ = cmd.MarkFlagRequired("finding")

	return cmd
}

func loadFinding(reportFile, findingID string) (*finding.Finding, error) {
	data, err := os.ReadFile(reportFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}

	var run savedRun
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	if run.Report == nil {
		return nil, errors.ValidationError("report file carries no findings", nil)
	}

	for i := range run.Report.Findings {
		if run.Report.Findings[i].ID == findingID ||
			strings.HasPrefix(run.Report.Findings[i].ID, findingID) {
			return &run.Report.Findings[i], nil
		}
	}
	return nil, errors.NotFound("finding " + findingID)
}

func renderPreview(p *finding.DiffPreview) {
	for _, l := range p.Lines {
		switch l.Tag {
		case finding.DiffTagAdded:
			fmt.Println("+ " + l.Text)
		case finding.DiffTagRemoved:
			fmt.Println("- " + l.Text)
		case finding.DiffTagHeader:
			fmt.Println(l.Text)
		default:
			fmt.Println("  " + l.Text)
		}
	}
	if len(p.SideEffects) > 0 {
		fmt.Println("\nSide effects:")
		for _, s := range p.SideEffects {
			fmt.Println("  - " + s)
		}
	}
}

func confirm(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
