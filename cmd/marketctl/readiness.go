package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/danceforge/backoffice/internal/checklist"
	"github.com/danceforge/backoffice/internal/models"
)

func newReadinessCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "readiness",
		Aliases: []string{"ready"},
		Short:   "Show and run the launch readiness checklist",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "status",
			Short: "Print the checklist hydrated from the last saved run",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				engine, err := a.engine(cmd)
				if err != nil {
					return err
				}
				if _, err := engine.LoadSavedResults(cmd.Context()); err != nil {
					return err
				}
				return a.printSnapshot(cmd, engine.Snapshot())
			},
		},
		&cobra.Command{
			Use:   "run <testId>",
			Short: "Run a single test",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.runAndPrint(cmd, func(e *checklist.Engine) (map[string]*models.TestResult, error) {
					result, err := e.RunSingle(cmd.Context(), args[0])
					if err != nil {
						return nil, err
					}
					return map[string]*models.TestResult{args[0]: result}, nil
				})
			},
		},
		&cobra.Command{
			Use:   "run-category <categoryId>",
			Short: "Run every test of a category",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.runAndPrint(cmd, func(e *checklist.Engine) (map[string]*models.TestResult, error) {
					return e.RunCategory(cmd.Context(), args[0])
				})
			},
		},
		&cobra.Command{
			Use:   "run-all",
			Short: "Run the whole checklist",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.runAndPrint(cmd, func(e *checklist.Engine) (map[string]*models.TestResult, error) {
					return e.RunAll(cmd.Context())
				})
			},
		},
		&cobra.Command{
			Use:   "categories",
			Short: "List category ids",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				engine, err := a.engine(cmd)
				if err != nil {
					return err
				}
				if a.jsonOutput() {
					return printJSON(cmd.OutOrStdout(), engine.CategoryIDs())
				}
				for _, id := range engine.CategoryIDs() {
					fmt.Fprintln(cmd.OutOrStdout(), id)
				}
				return nil
			},
		},
	)

	return cmd
}

// runAndPrint hydrates the engine first so the printed tree reflects both
// the saved run and the new results
func (a *app) runAndPrint(cmd *cobra.Command, run func(*checklist.Engine) (map[string]*models.TestResult, error)) error {
	engine, err := a.engine(cmd)
	if err != nil {
		return err
	}
	if _, err := engine.LoadSavedResults(cmd.Context()); err != nil {
		a.log.Warn("saved results unavailable", zap.Error(err))
	}

	results, err := run(engine)
	if err != nil {
		return err
	}

	if a.jsonOutput() {
		return printJSON(cmd.OutOrStdout(), struct {
			Results  map[string]*models.TestResult `json:"results"`
			Counters models.ChecklistCounters      `json:"counters"`
		}{results, engine.Counters()})
	}
	printResults(cmd.OutOrStdout(), results)
	printCounters(cmd.OutOrStdout(), engine.Counters())
	return nil
}

func (a *app) printSnapshot(cmd *cobra.Command, snap *models.ChecklistSnapshot) error {
	if a.jsonOutput() {
		return printJSON(cmd.OutOrStdout(), snap)
	}
	printChecklist(cmd.OutOrStdout(), snap)
	printCounters(cmd.OutOrStdout(), snap.Counters)
	return nil
}
