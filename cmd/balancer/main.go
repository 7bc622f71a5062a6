package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/virtstack/vmfs-balancer/internal/balancer"
	"github.com/virtstack/vmfs-balancer/internal/config"
	"github.com/virtstack/vmfs-balancer/pkg/log"
)

func main() {
	command := NewBalancerCommand()
	if err := command.Execute(); err != nil {
		os.Exit(1)
	}
}

type balancerCmd struct {
	config     *config.Config
	configFile string
}

func NewBalancerCommand() *balancerCmd {
	logger := log.InitLog(zap.NewAtomicLevelAt(zapcore.InfoLevel))
	defer func() { _ = logger.Sync() }()

	undo := zap.ReplaceGlobals(logger)
	defer undo()

	b := &balancerCmd{
		config: config.NewDefault(),
	}

	flag.StringVar(&b.configFile, "config", config.DefaultConfigFile, "Path to the balancer's configuration file.")

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage of %s:\n", os.Args[0])
		fmt.Println("This program starts the vmfs balancer with the specified configuration. Below are the available flags:")
		flag.PrintDefaults()
	}

	flag.Parse()

	if err := b.config.ParseConfigFile(b.configFile); err != nil {
		zap.S().Fatalf("Error parsing config: %v", err)
	}
	if err := b.config.Validate(); err != nil {
		zap.S().Fatalf("Error validating config: %v", err)
	}

	return b
}

func (b *balancerCmd) Execute() error {
	logger := log.InitLog(log.AtomicLevel(b.config.LogLevel))
	defer func() { _ = logger.Sync() }()

	undo := zap.ReplaceGlobals(logger)
	defer undo()

	instance := balancer.New(b.config)
	if err := instance.Run(context.Background()); err != nil {
		zap.S().Fatalf("running vmfs balancer: %v", err)
	}
	return nil
}
