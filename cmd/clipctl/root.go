package main

import (
	"fmt"
	"os"

	"github.com/DRSN-tech/clip-backend/internal/cfg"
	"github.com/DRSN-tech/clip-backend/internal/cli"
	"github.com/DRSN-tech/clip-backend/internal/engine"
	"github.com/DRSN-tech/clip-backend/internal/infrastructure/clipcpp"
	ml_service "github.com/DRSN-tech/clip-backend/internal/infrastructure/ml-service"
	"github.com/DRSN-tech/clip-backend/internal/rpc"
	"github.com/DRSN-tech/clip-backend/internal/usecase"
	"github.com/DRSN-tech/clip-backend/pkg/clients"
	"github.com/DRSN-tech/clip-backend/pkg/logger"
	"github.com/spf13/cobra"
)

var (
	configPath  string
	flagBackend string
	flagModel   string
	flagAddr    string
	flagThreads int

	globalConfig *cli.Config
	globalEngine *engine.Engine
	globalClip   *usecase.ClipUseCase
)

var rootCmd = &cobra.Command{
	Use:           "clipctl",
	Short:         "CLIP embeddings from the command line",
	Long:          "Encode images and texts, score them against each other and run zero-shot classification with a CLIP model.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "similarity" {
			return nil
		}

		c, err := cli.Load(configPath)
		if err != nil {
			return err
		}
		applyFlags(cmd, c)
		if err := c.Validate(); err != nil {
			return err
		}
		globalConfig = c

		log := logger.New(os.Stderr, c.LogLevel, "text")
		eng, err := newEngine(c, log)
		if err != nil {
			return err
		}
		globalEngine = eng
		globalClip = usecase.NewClipUC(eng, nil, c.MaxImageSide, log)

		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if globalEngine != nil {
			_ = globalEngine.Close()
			globalEngine = nil
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/"+cli.DefaultConfigName+")")
	rootCmd.PersistentFlags().StringVar(&flagBackend, "backend", "", "engine backend: clipcpp or remote")
	rootCmd.PersistentFlags().StringVarP(&flagModel, "model", "m", "", "path to the GGUF model")
	rootCmd.PersistentFlags().StringVar(&flagAddr, "addr", "", "EmbeddingService address for the remote backend")
	rootCmd.PersistentFlags().IntVarP(&flagThreads, "threads", "t", 0, "number of CPU threads")

	rootCmd.AddCommand(infoCmd, scoreCmd, zslCmd, encodeCmd, similarityCmd)
}

// applyFlags переопределяет значения из файла явно заданными флагами.
func applyFlags(cmd *cobra.Command, c *cli.Config) {
	flags := cmd.Flags()
	if flags.Changed("backend") {
		c.Backend = flagBackend
	}
	if flags.Changed("model") {
		c.ModelPath = flagModel
	}
	if flags.Changed("addr") {
		c.MLAddr = flagAddr
	}
	if flags.Changed("threads") {
		c.Threads = flagThreads
	}
}

func newEngine(c *cli.Config, log logger.Logger) (*engine.Engine, error) {
	var backend engine.Backend

	switch c.Backend {
	case cfg.BackendClipCpp:
		backend = clipcpp.New(log)
	case cfg.BackendRemote:
		conn, err := clients.NewEmbeddingServiceConn(c.MLAddr)
		if err != nil {
			return nil, err
		}
		backend = ml_service.NewMLService(rpc.NewEmbeddingServiceClient(conn), conn, c.MLServiceCfg(), log)
	default:
		return nil, fmt.Errorf("unknown backend %q", c.Backend)
	}

	eng := engine.New(backend, log, engine.WithDefaultThreads(c.Threads))
	if _, err := eng.Load(c.ModelPath, c.Verbosity); err != nil {
		_ = eng.Close()
		return nil, fmt.Errorf("failed to load model: %w", err)
	}

	return eng, nil
}
