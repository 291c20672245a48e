package cli

import (
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/finplan-core/internal/adapters/driven/formfile"
	"github.com/custodia-labs/finplan-core/internal/adapters/driven/postgres"
	redisadapter "github.com/custodia-labs/finplan-core/internal/adapters/driven/redis"
	"github.com/custodia-labs/finplan-core/internal/core/domain"
	"github.com/custodia-labs/finplan-core/internal/formlint"
)

var lintJSON bool

var lintFormCmd = &cobra.Command{
	Use:   "lint-form [file]",
	Short: "Check a form schema file for mistakes",
	Long: `Parses a YAML form schema and reports structural problems. Errors make the
command fail; warnings are printed but allowed. Without a file argument the
configured FORM_SCHEMA_FILE is checked.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLintForm,
}

var importFormCmd = &cobra.Command{
	Use:   "import-form <file>",
	Short: "Replace the form schema stored in PostgreSQL",
	Long: `Lints a YAML form schema and, when it has no errors, replaces the schema
served by FORM_SCHEMA_SOURCE=postgres in a single transaction. Open sessions keep
the schema they were opened with.`,
	Args: cobra.ExactArgs(1),
	RunE: runImportForm,
}

func init() {
	lintFormCmd.Flags().BoolVar(&lintJSON, "json", false, "print the lint result as JSON")
	rootCmd.AddCommand(lintFormCmd)
	rootCmd.AddCommand(importFormCmd)
}

func runLintForm(cmd *cobra.Command, args []string) error {
	var path string
	if len(args) == 1 {
		path = args[0]
	} else {
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		path = cfg.FormSchemaFile
	}

	form, result, err := formfile.ReadFile(path)
	if err != nil {
		return err
	}

	if lintJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return err
		}
		return result.Err()
	}

	for _, issue := range result.Issues {
		cmd.Println(issue.String())
	}
	if err := result.Err(); err != nil {
		return err
	}
	cmd.Printf("%s: ok (%s)\n", path, describeForm(form, result))
	return nil
}

func runImportForm(cmd *cobra.Command, args []string) error {
	form, result, err := formfile.ReadFile(args[0])
	if err != nil {
		return err
	}
	for _, issue := range result.Issues {
		cmd.Println(issue.String())
	}
	if err := result.Err(); err != nil {
		return err
	}

	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)

	db, err := connectDB(cmd, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := postgres.NewFormSchemaStore(db).Save(ctx, form); err != nil {
		return fmt.Errorf("import form schema: %w", err)
	}
	logger.Info("form schema imported", "path", args[0], "version", form.Version)

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		defer client.Close()
		if err := redisadapter.NewFormCache(client, nil, 0, logger).Invalidate(ctx); err != nil {
			logger.Warn("form schema cache not invalidated, it expires on its own", "error", err)
		}
	}

	cmd.Printf("imported %s (%s)\n", args[0], describeForm(form, result))
	return nil
}

func describeForm(form *domain.FormSchema, result *formlint.Result) string {
	version := form.Version
	if version == "" {
		version = "unversioned"
	}
	return fmt.Sprintf("version %s, %d sections, %d fields, %d warnings",
		version, len(form.Sections), len(form.AllFields()), len(result.Issues)-len(result.Errors()))
}
