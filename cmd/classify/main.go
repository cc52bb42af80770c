package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/Brownie44l1/crack-api/internal/detector"
	"github.com/Brownie44l1/crack-api/internal/features"
	"github.com/Brownie44l1/crack-api/internal/logging"
	"github.com/Brownie44l1/crack-api/internal/model"
)

func main() {
	modelPath := flag.String("model", "models/final_crack_detector_rf.onnx", "Path to model artifact (.onnx or .json)")
	metadataPath := flag.String("metadata", "", "Path to ONNX metadata (defaults to model_metadata.json next to the model)")
	logLevel := flag.String("log-level", "warn", "Log level")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] image...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	logger, err := logging.NewLogger(*logLevel, true)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer logger.Sync() //nolint:errcheck

	engine := model.NewEngine(logger)
	if state := engine.Load(model.LoadOptions{ModelPath: *modelPath, MetadataPath: *metadataPath}); state != model.StateReady {
		logger.Warn("model unavailable", zap.Error(engine.LoadError()))
	}
	defer engine.Close() //nolint:errcheck

	d := detector.New(features.NewDefaultExtractor(), engine, logger)

	failed := false
	for _, path := range flag.Args() {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Printf("%s\tError: %v\n", path, err)
			failed = true
			continue
		}

		res := d.DetectBytes(context.Background(), data)
		fmt.Printf("%s\t%s\t%s\t%s\n", path, res.Message(), res.ConfidenceText(), res.ElapsedText())
		if !res.OK() {
			failed = true
		}
	}

	if failed {
		os.Exit(1)
	}
}
