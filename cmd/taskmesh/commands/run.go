package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/taskmesh/taskmesh/src/taskmesh"
)

//NewRunCmd returns the command that starts a taskmesh node
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run node",
		PreRunE: loadConfig,
		RunE:    runTaskmesh,
	}
	AddRunFlags(cmd)
	return cmd
}

/*******************************************************************************
* RUN
*******************************************************************************/

func runTaskmesh(cmd *cobra.Command, args []string) error {
	engine := taskmesh.NewTaskmesh(_config)

	if err := engine.Init(); err != nil {
		_config.Logger().Error("Cannot initialize engine:", err)
		return err
	}

	// one cancellation path: the signal shuts the node down, Run returns
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		engine.Node.Shutdown()
	}()

	engine.Run()

	return nil
}

/*******************************************************************************
* CONFIG
*******************************************************************************/

//AddRunFlags adds flags to the Run command
func AddRunFlags(cmd *cobra.Command) {

	cmd.Flags().String("datadir", _config.DataDir, "Top-level directory for configuration and data")
	cmd.Flags().String("log", _config.LogLevel, "debug, info, warn, error, fatal, panic")
	cmd.Flags().String("log-file", _config.LogFile, "Optional file to duplicate log output into")
	cmd.Flags().String("moniker", _config.Moniker, "Optional name")

	// Network
	cmd.Flags().StringSliceP("listen", "l", _config.ListenAddrs, "Multiaddrs to listen on")
	cmd.Flags().StringSliceP("bootstrap", "b", _config.BootstrapPeers, "Multiaddrs of bootstrap peers")
	cmd.Flags().Int("conn-low", _config.ConnLow, "Connection manager low watermark")
	cmd.Flags().Int("conn-high", _config.ConnHigh, "Connection manager high watermark")

	// Executor
	cmd.Flags().StringP("executor-connect", "c", _config.ExecutorURL, "URL of the external executor; echo inputs when empty")

	// Service
	cmd.Flags().StringP("service-listen", "s", _config.ServiceAddr, "Listen IP:Port for HTTP diagnostics")
	cmd.Flags().Bool("no-service", _config.NoService, "Disable the HTTP diagnostics service")

	// Node configuration
	cmd.Flags().Duration("heartbeat", _config.HeartbeatInterval, "Time between capacity reports")
	cmd.Flags().Duration("specs-interval", _config.SpecsInterval, "Time between host capacity snapshots")
	cmd.Flags().Uint("batch-size", _config.BatchSize, "Queue capacity advertised in heartbeats")
	cmd.Flags().Int("max-inflight", _config.MaxInflight, "Max concurrently running executions")
	cmd.Flags().Int("cache-size", _config.CacheSize, "Number of entries in the seen-task cache")

	// Admission
	cmd.Flags().Uint("admission-capacity", _config.AdmissionCapacity, "Expected member count of admission filters built here")
	cmd.Flags().Float64("admission-fp", _config.AdmissionFPRate, "False-positive rate of admission filters built here")
}

func loadConfig(cmd *cobra.Command, args []string) error {

	err := bindFlagsLoadViper(cmd)
	if err != nil {
		return err
	}

	_config.SetDataDir(_config.DataDir)

	logFields := logrus.Fields{
		"DataDir":           _config.DataDir,
		"ListenAddrs":       _config.ListenAddrs,
		"BootstrapPeers":    _config.BootstrapPeers,
		"ServiceAddr":       _config.ServiceAddr,
		"NoService":         _config.NoService,
		"LogLevel":          _config.LogLevel,
		"Moniker":           _config.Moniker,
		"HeartbeatInterval": _config.HeartbeatInterval,
		"BatchSize":         _config.BatchSize,
		"MaxInflight":       _config.MaxInflight,
		"CacheSize":         _config.CacheSize,
		"AdmissionCapacity": _config.AdmissionCapacity,
		"AdmissionFPRate":   _config.AdmissionFPRate,
		"ExecutorURL":       _config.ExecutorURL,
	}

	_config.Logger().WithFields(logFields).Debug("RUN")

	return nil
}

func bindFlagsLoadViper(cmd *cobra.Command) error {
	// Register flags with viper. Include flags from this command and all other
	// persistent flags from the parent
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// first unmarshal to read from CLI flags
	if err := viper.Unmarshal(_config); err != nil {
		return err
	}

	// look for config file in [datadir]/taskmesh.toml (.json, .yaml also work)
	viper.SetConfigName("taskmesh")      // name of config file (without extension)
	viper.AddConfigPath(_config.DataDir) // search root directory

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		_config.Logger().Debugf("Using config file: %s", viper.ConfigFileUsed())
	} else if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		_config.Logger().Debugf("No config file found in: %s", _config.DataDir)
	} else {
		return err
	}

	// second unmarshal to read from config file
	return viper.Unmarshal(_config)
}
