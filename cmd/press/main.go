package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/andybalholm/press/cmd/press/config"
)

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		fmt.Println("ERROR: ", err)
		os.Exit(1)
	}

	if cfg.CLI.Debug {
		logrus.Info("debug mode enabled")
		logrus.SetLevel(logrus.DebugLevel)
	} else if cfg.CLI.Quiet {
		logrus.SetLevel(logrus.WarnLevel)
	}

	displayConfig(cfg)

	switch cfg.Command() {
	case "compress":
		err = compressFiles(&cfg.CLI.Compress, os.Stdout)
	case "decompress":
		err = decompressFiles(&cfg.CLI.Decompress, os.Stdout)
	case "bench":
		err = benchFiles(&cfg.CLI.Bench, os.Stdout)
	default:
		err = errors.Errorf("unknown command %q", cfg.Command())
	}

	if err != nil {
		logrus.Errorf("%s failed: %s", cfg.Command(), err)
		os.Exit(1)
	}
}

func displayConfig(cfg *config.Config) {
	if cfg == nil {
		return
	}

	logrus.Info("press settings:")
	logrus.Infof("  version: %s", config.VERSION)
	logrus.Infof("  command: %s", cfg.Command())
	logrus.Infof("  config file: %s", cfg.CLI.ConfigFile)
	logrus.Infof("  quiet: %v", cfg.CLI.Quiet)
	logrus.Info("")

	switch cfg.Command() {
	case "compress":
		c := cfg.CLI.Compress
		logrus.Infof("  level: %d", c.Level)
		logrus.Infof("  suffix: %s", c.Suffix)
		logrus.Infof("  stdout: %v", c.Stdout)
		logrus.Infof("  force: %v", c.Force)
		logrus.Infof("  keep: %v", c.Keep)
	case "decompress":
		d := cfg.CLI.Decompress
		logrus.Infof("  suffix: %s", d.Suffix)
		logrus.Infof("  stdout: %v", d.Stdout)
		logrus.Infof("  force: %v", d.Force)
		logrus.Infof("  keep: %v", d.Keep)
	case "bench":
		b := cfg.CLI.Bench
		logrus.Infof("  level: %d", b.Level)
		logrus.Infof("  chunk size: %d", b.ChunkSize)
		logrus.Infof("  wrapper: %s", b.Wrapper)
		logrus.Infof("  engine: %s", b.Engine)
		logrus.Infof("  min time: %s", b.MinTime)
		logrus.Infof("  guard pages: %v", b.Guard)
		logrus.Infof("  dump: %v", b.Dump)
		logrus.Infof("  parser: %s", b.Parser)
	}
}
