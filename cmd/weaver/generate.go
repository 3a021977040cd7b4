package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/weavekit/weaver/internal/config"
	"github.com/weavekit/weaver/internal/orchestrator"
)

func newGenerateCommand() *cobra.Command {
	var (
		userID string
		deploy bool
	)

	cmd := &cobra.Command{
		Use:   "generate <intent>",
		Short: "Generate a workflow from a plain-language request",
		Long: `Generate converts a free-text request into a validated workflow graph
and prints it as JSON. With --deploy the workflow is also pushed to the
configured engine and activated.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfigFromFile(configPath)
			if err != nil {
				return err
			}

			app, err := buildApp(cfg)
			if err != nil {
				return err
			}
			defer app.close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
			defer cancel()

			result := app.orchestrator.Generate(ctx, orchestrator.Request{
				UserID: userID,
				Intent: strings.Join(args, " "),
			})

			if deploy {
				if err := deployResult(ctx, app, result); err != nil {
					return err
				}
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "cli", "User ID to scope the workflow to")
	cmd.Flags().BoolVar(&deploy, "deploy", false, "Deploy and activate the workflow on the configured engine")
	return cmd
}

// deployResult pushes the generated workflow to the engine and records the
// deployment outcome for both scoring and the pattern table.
func deployResult(ctx context.Context, app *app, result *orchestrator.Result) error {
	if app.engine == nil {
		return fmt.Errorf("no engine configured, set engine.base_url or WEAVER_ENGINE_URL")
	}

	id, err := app.engine.Deploy(ctx, result.Workflow)
	if err != nil {
		app.loop.RecordDeploymentOutcome(result.TemplateID, false)
		app.persistStats()
		return fmt.Errorf("deployment failed: %w", err)
	}
	if err := app.engine.Activate(ctx, id); err != nil {
		app.loop.RecordDeploymentOutcome(result.TemplateID, false)
		app.persistStats()
		return fmt.Errorf("activation failed: %w", err)
	}

	app.loop.RecordDeploymentOutcome(result.TemplateID, true)
	app.persistStats()
	log.Printf("[Generate] Deployed workflow %s (template %s)", id, result.TemplateID)
	return nil
}
