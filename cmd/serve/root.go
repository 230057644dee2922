package serve

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	cmdUtil "github.com/ValentinKolb/mcbs/cmd/util"
	"github.com/ValentinKolb/mcbs/proto/common"
	"github.com/ValentinKolb/mcbs/proto/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// time the server gets to close all sessions after a signal
const shutdownTimeout = 10 * time.Second

var (
	serveCmdConfig = common.DefaultServerConfig()
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the memcached server",
		Long:    `Start the memcached binary protocol server with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is MCBS_<flag> (e.g. MCBS_MAX_CONNECTIONS=64)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	defaults := common.DefaultServerConfig()

	key := "endpoint"
	ServeCmd.PersistentFlags().String(key, defaults.Endpoint, cmdUtil.WrapString("The address on which the server will listen (e.g. 127.0.0.1:11212, /tmp/mcbs.sock, ...)"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, defaults.TimeoutSecond, cmdUtil.WrapString("Read and write timeout of a connection in seconds, 0 disables it"))

	key = "max-connections"
	ServeCmd.PersistentFlags().Int(key, defaults.MaxConnections, cmdUtil.WrapString("Maximum number of connections served at the same time, further connections are closed after accept"))

	key = "max-body-length"
	ServeCmd.PersistentFlags().Uint32(key, defaults.MaxBodyLength, cmdUtil.WrapString("Maximum body length of a request frame in bytes, larger frames close the connection (0 = unlimited)"))

	key = "stats-interval"
	ServeCmd.PersistentFlags().Int64(key, defaults.StatsIntervalSecond, cmdUtil.WrapString("Interval in seconds of the per-connection STATUS log line, 0 disables it"))

	key = "metrics-endpoint"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Address of the http endpoint serving /metrics (e.g. 127.0.0.1:9100), empty disables it"))

	key = "socket-read-buffer"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("Socket receive buffer in KB (0 = os default)"))

	key = "socket-write-buffer"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("Socket send buffer in KB (0 = os default)"))

	key = "tcp-nodelay"
	ServeCmd.PersistentFlags().Bool(key, defaults.Transport.TCPNoDelay, cmdUtil.WrapString("Whether to enable TCP_NODELAY (only for tcp)"))

	key = "tcp-keepalive"
	ServeCmd.PersistentFlags().Int(key, defaults.Transport.TCPKeepAliveSec, cmdUtil.WrapString("The keepalive period in seconds, 0 disables keepalive (only for tcp)"))

	key = "tcp-linger"
	ServeCmd.PersistentFlags().Int(key, defaults.Transport.TCPLingerSec, cmdUtil.WrapString("The linger time in seconds, -1 keeps the os default (only for tcp)"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, defaults.LogLevel, cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	if err := cmdUtil.BindCommandFlags(cmd); err != nil {
		return err
	}

	serveCmdConfig.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.MaxConnections = viper.GetInt("max-connections")
	serveCmdConfig.MaxBodyLength = viper.GetUint32("max-body-length")
	serveCmdConfig.StatsIntervalSecond = viper.GetInt64("stats-interval")
	serveCmdConfig.MetricsEndpoint = viper.GetString("metrics-endpoint")
	serveCmdConfig.LogLevel = viper.GetString("log-level")
	serveCmdConfig.Version = cmd.Root().Version
	serveCmdConfig.Transport = common.ServerTransportConfig{
		SocketConf: common.SocketConf{
			ReadBufferSize:  viper.GetInt("socket-read-buffer") * 1024,
			WriteBufferSize: viper.GetInt("socket-write-buffer") * 1024,
		},
		TCPConf: common.TCPConf{
			TCPNoDelay:      viper.GetBool("tcp-nodelay"),
			TCPKeepAliveSec: viper.GetInt("tcp-keepalive"),
			TCPLingerSec:    viper.GetInt("tcp-linger"),
		},
	}

	if err := serveCmdConfig.Validate(); err != nil {
		return err
	}
	return common.InitLoggers(serveCmdConfig.LogLevel)
}

// run starts the server and stops it on SIGINT/SIGTERM
func run(_ *cobra.Command, _ []string) error {
	t, err := cmdUtil.GetServerTransport()
	if err != nil {
		return err
	}

	serv := server.NewServer(serveCmdConfig, t)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- serv.Serve() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		server.Logger.Infof("Received signal, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return errors.Join(serv.Shutdown(shutdownCtx), <-errCh)
}
