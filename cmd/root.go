// -- cmd/root.go --
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/parkbook/internal/browser"
	"github.com/xkilldash9x/parkbook/internal/config"
	"github.com/xkilldash9x/parkbook/internal/observability"
	"github.com/xkilldash9x/parkbook/internal/runner"
)

const (
	envPrefix      = "PARKBOOK"
	defaultEnvFile = ".env"
	// configKeyAnnotation names the config key a flag overrides.
	configKeyAnnotation = "parkbook_config_key"
)

// factoryFunc builds the session factory for a run. Tests swap it for a fake site.
type factoryFunc func(cfg config.BrowserConfig, logger *zap.Logger) runner.SessionFactory

func newBrowserFactory(cfg config.BrowserConfig, logger *zap.Logger) runner.SessionFactory {
	return browser.NewManager(cfg, logger)
}

// app carries the state shared by every subcommand of one root command.
type app struct {
	v          *viper.Viper
	cfgFile    string
	envFile    string
	cfg        *config.Config
	logger     *zap.Logger
	newFactory factoryFunc
	// initLogger is false in tests, which set logger themselves.
	initLogger bool
	now        func() time.Time
}

// NewRootCommand builds a fresh command tree with its own viper instance.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&app{
		v:          viper.New(),
		newFactory: newBrowserFactory,
		initLogger: true,
		now:        time.Now,
	})
}

func newRootCommand(a *app) *cobra.Command {
	config.SetDefaults(a.v)

	rootCmd := &cobra.Command{
		Use:           "parkbook",
		Short:         "Parkbook books car park spaces on the office booking site.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}
	rootCmd.SetVersionTemplate(`{{printf "%s version %s\n" .Name .Version}}`)

	rootCmd.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&a.envFile, "env-file", defaultEnvFile, "dotenv file loaded before reading the environment")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	_ = a.v.BindPFlag("logger.level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.AddCommand(newBookCmd(a))
	rootCmd.AddCommand(newPlanCmd(a))
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

// Execute runs the root command with the signal-aware context from main.
func Execute(ctx context.Context) error {
	return execute(ctx, NewRootCommand(), nil)
}

func execute(ctx context.Context, rootCmd *cobra.Command, stderr io.Writer) error {
	if stderr != nil {
		rootCmd.SetErr(stderr)
	}
	defer observability.Sync()
	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		observability.GetLogger().Warn("Command aborted by signal.")
		return err
	}
	observability.GetLogger().Error("Command execution failed.", zap.Error(err))
	rootCmd.PrintErrln("Error:", err)
	return err
}

// load reads the dotenv file, the config file and the environment, then sets
// up logging. Flags bound to viper keys override all three.
func (a *app) load(cmd *cobra.Command) error {
	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if keys := f.Annotations[configKeyAnnotation]; len(keys) > 0 && bindErr == nil {
			bindErr = a.v.BindPFlag(keys[0], f)
		}
	})
	if bindErr != nil {
		return bindErr
	}
	if err := initializeConfig(a.v, a.cfgFile, a.envFile); err != nil {
		return err
	}
	cfg, err := config.NewConfigFromViper(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg

	if a.initLogger {
		observability.InitializeLogger(cfg.Logger())
		a.logger = observability.GetLogger()
	}
	a.logger.Debug("Configuration loaded.",
		zap.String("command", cmd.Name()),
		zap.String("config_file", a.v.ConfigFileUsed()),
		zap.String("version", Version),
	)
	return nil
}

// initializeConfig reads in the config file and ENV variables if set.
func initializeConfig(v *viper.Viper, cfgFile, envFile string) error {
	if envFile != "" {
		// A missing default dotenv file is normal; the variables may already be exported.
		if err := godotenv.Load(envFile); err != nil && envFile != defaultEnvFile {
			return fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; proceed with defaults/env vars.
	}
	return nil
}
