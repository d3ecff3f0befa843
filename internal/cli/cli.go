package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/vk/modanalysis/internal/app"
)

// Version is overridden at build time with -ldflags "-X ...cli.Version=...".
var Version = "dev"

// Exit codes.
const (
	ExitRuntime       = 1
	ExitUsage         = 2
	ExitFailedModules = 3
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Execute parses args, runs the selected command and maps every failure to
// an *ExitError. Help output is not an error.
func Execute(ctx context.Context, args []string, outW, errW io.Writer) error {
	root := NewRootCommand(outW, errW)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return nil
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr
	}
	return &ExitError{Code: ExitUsage, Message: err.Error()}
}

// flagBinding ties a command-line flag to its configuration key.
type flagBinding struct {
	flag string
	key  string
}

var bindings = []flagBinding{
	{"modules-path", "modules_path"},
	{"data-path", "data_path"},
	{"dataset", "dataset"},
	{"output", "output"},
	{"output-format", "output_format"},
	{"log-level", "log_level"},
	{"log-format", "log_format"},
	{"log-file", "log_file"},
	{"only", "only"},
	{"fail-on-error", "fail_on_error"},
	{"publish-url", "publish_url"},
	{"publish-namespace", "publish_namespace"},
	{"sample-rows", "sample_rows"},
	{"sample-seed", "sample_seed"},
}

// NewRootCommand builds the command tree. Each call has its own viper
// instance, so commands can be built and run side by side in tests.
func NewRootCommand(outW, errW io.Writer) *cobra.Command {
	v := viper.New()
	var configFile string

	root := &cobra.Command{
		Use:   "modanalysis",
		Short: "Run pluggable analysis modules against a tabular dataset",
		Long: `modanalysis discovers analysis modules (a directory holding config.hcl,
model.star and engine.star), runs each of them against one dataset and
writes a report with a result or an error per module.

Running without a subcommand is the same as 'modanalysis run'.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(v, configFile)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalysis(cmd, v, outW, errW)
		},
	}
	root.SetOut(outW)
	root.SetErr(errW)

	flags := root.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Path to a configuration file (yaml, toml or json).")
	flags.String("modules-path", "modules", "Directory containing the analysis modules.")
	flags.String("data-path", "data", "Directory holding the persisted sample dataset.")
	flags.String("dataset", "", "CSV or JSON dataset to analyze instead of the sample dataset.")
	flags.StringP("output", "o", "output.json", "Report file to write.")
	flags.String("output-format", "", "Report format: 'json' or 'yaml'. Defaults to the output file extension.")
	flags.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	flags.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	flags.String("log-file", "", "Write logs to this rotating file instead of the console.")
	flags.StringSlice("only", nil, "Run only the named modules (comma separated).")
	flags.Bool("fail-on-error", false, "Exit with code 3 when any module fails.")
	flags.String("publish-url", "", "socket.io server that receives live module results.")
	flags.String("publish-namespace", "/", "socket.io namespace for published results.")
	flags.Int("sample-rows", 100, "Number of rows in a generated sample dataset.")
	flags.Uint64("sample-seed", 42, "Random seed of the generated sample dataset.")

	for _, b := range bindings {
		_ = v.BindPFlag(b.key, flags.Lookup(b.flag))
	}

	root.AddCommand(
		newRunCommand(v, outW, errW),
		newListCommand(v, outW, errW),
		newValidateCommand(v, outW, errW),
		newSampleCommand(v, outW, errW),
		newVersionCommand(outW),
	)
	return root
}

// initConfig layers defaults, an optional config file and MODANALYSIS_*
// environment variables under the bound flags.
func initConfig(v *viper.Viper, configFile string) error {
	app.SetDefaults(v)
	v.SetEnvPrefix("MODANALYSIS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return &ExitError{Code: ExitUsage, Message: fmt.Sprintf("failed to read config file: %v", err)}
		}
	}
	return nil
}

// newApp decodes the configuration and assembles the application.
func newApp(v *viper.Viper, outW, errW io.Writer) (*app.App, error) {
	cfg, err := app.LoadConfig(v)
	if err != nil {
		return nil, &ExitError{Code: ExitUsage, Message: fmt.Sprintf("invalid configuration: %v", err)}
	}
	a, err := app.NewApp(outW, cfg, app.WithLogWriter(errW))
	if err != nil {
		return nil, &ExitError{Code: ExitUsage, Message: err.Error()}
	}
	return a, nil
}

func runAnalysis(cmd *cobra.Command, v *viper.Viper, outW, errW io.Writer) error {
	a, err := newApp(v, outW, errW)
	if err != nil {
		return err
	}
	defer a.Close()

	rep, err := a.Run(cmd.Context())
	if err != nil {
		return &ExitError{Code: ExitRuntime, Message: err.Error()}
	}
	fmt.Fprintf(outW, "%d module(s) succeeded, %d failed; report written to %s\n", rep.Succeeded(), rep.Failed(), a.Config().Output)
	if rep.Failed() > 0 && a.Config().FailOnError {
		return &ExitError{Code: ExitFailedModules, Message: fmt.Sprintf("%d module(s) failed", rep.Failed())}
	}
	return nil
}

func newRunCommand(v *viper.Viper, outW, errW io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run every discovered module and write the report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalysis(cmd, v, outW, errW)
		},
	}
}

func newListCommand(v *viper.Viper, outW, errW io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List discovered modules and skipped directories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(v, outW, errW)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.List(cmd.Context()); err != nil {
				return &ExitError{Code: ExitRuntime, Message: err.Error()}
			}
			return nil
		},
	}
}

func newValidateCommand(v *viper.Viper, outW, errW io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load every module and check its contract without running it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(v, outW, errW)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.Validate(cmd.Context()); err != nil {
				return &ExitError{Code: ExitRuntime, Message: err.Error()}
			}
			return nil
		},
	}
}

func newSampleCommand(v *viper.Viper, outW, errW io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "sample",
		Short: "Generate the sample dataset under the data path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(v, outW, errW)
			if err != nil {
				return err
			}
			defer a.Close()
			path, err := a.Sample(cmd.Context())
			if err != nil {
				return &ExitError{Code: ExitRuntime, Message: err.Error()}
			}
			fmt.Fprintf(outW, "sample dataset written to %s\n", path)
			return nil
		},
	}
}

func newVersionCommand(outW io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(outW, "modanalysis %s\n", Version)
		},
	}
}
