package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vk/mrtpipelines/internal/app"
	"github.com/vk/mrtpipelines/internal/pipelines"
)

const (
	envPrefix         = "MRT"
	defaultConfigFile = ".mrtpipelines.yaml"
	defaultWorkDir    = "work"
)

// Setting keys, shared by flags, the config file and MRT_* variables.
const (
	keyWorkDir         = "wdir"
	keyNThreads        = "nthreads"
	keyNFibers         = "nfibers"
	keyWorkers         = "workers"
	keyRerun           = "rerun"
	keyRetries         = "retries"
	keyLogLevel        = "log-level"
	keyLogFormat       = "log-format"
	keyLogFile         = "log-file"
	keyHealthcheckPort = "healthcheck-port"
	keyMRtrixBin       = "mrtrix-bin"
)

func addPersistentFlags(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.String("config", "", "Config file (default "+defaultConfigFile+" in the current directory)")
	f.String(keyWorkDir, defaultWorkDir, "Working directory for intermediate and output files")
	f.Int(keyNThreads, 0, "Threads passed to each MRtrix tool (0 lets MRtrix decide)")
	f.Int(keyNFibers, pipelines.DefaultNFibers, "Streamlines generated for template tractography")
	f.Int(keyWorkers, 0, "Number of node instances run at once (0 means one per CPU)")
	f.Bool(keyRerun, false, "Ignore cached results and run every node again")
	f.Int(keyRetries, 2, "Retries for failures that may be transient")
	f.String(keyLogLevel, "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	f.String(keyLogFormat, "text", "Log output format. Options: 'text' or 'json'.")
	f.String(keyLogFile, "", "Also write logs to this file; bare names go to <wdir>/logs")
	f.Int(keyHealthcheckPort, 0, "Port for the HTTP health and status server. 0 is disabled.")
	f.String(keyMRtrixBin, "", "Directory holding the MRtrix3 binaries (default: PATH)")
	f.StringToString("var", nil, "Set a study file variable (name=value, HCL studies only)")
}

// newViper layers flags over MRT_* variables over the config file.
func newViper(cmd *cobra.Command) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	path, _ := cmd.Flags().GetString("config")
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else {
		v.SetConfigFile(defaultConfigFile)
		v.SetConfigType("yaml")
		// The default config file is optional.
		_ = v.ReadInConfig()
	}

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, err
	}
	return v, nil
}

// loadConfig builds the app configuration for a command.
func loadConfig(cmd *cobra.Command, studyPath string, workflows []string) (*app.Config, error) {
	v, err := newViper(cmd)
	if err != nil {
		return nil, err
	}
	vars, err := cmd.Flags().GetStringToString("var")
	if err != nil {
		return nil, err
	}

	wdir := v.GetString(keyWorkDir)
	if wdir == "" {
		return nil, errors.New("--wdir must not be empty")
	}
	// Cached results record absolute paths.
	wdir, err = filepath.Abs(wdir)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(studyPath); err != nil {
		return nil, fmt.Errorf("study file: %w", err)
	}

	return app.NewConfig(app.Config{
		StudyPath:       studyPath,
		Vars:            vars,
		Workflows:       workflows,
		WorkDir:         wdir,
		NThreads:        v.GetInt(keyNThreads),
		NFibers:         v.GetInt(keyNFibers),
		Workers:         v.GetInt(keyWorkers),
		Rerun:           v.GetBool(keyRerun),
		MaxRetries:      v.GetInt(keyRetries),
		MRtrixBin:       v.GetString(keyMRtrixBin),
		LogFormat:       v.GetString(keyLogFormat),
		LogLevel:        v.GetString(keyLogLevel),
		LogFile:         v.GetString(keyLogFile),
		HealthcheckPort: v.GetInt(keyHealthcheckPort),
	})
}
