// Command mudra-video classifies a video file offline and prints the verdict
// as JSON.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/cheggaaa/pb/v3"
	jsoniter "github.com/json-iterator/go"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/pkg/log"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func main() {
	stride := flag.Int("stride", 0, "sample every n-th frame (default from MUDRA_SAMPLE_STRIDE)")
	quiet := flag.Bool("quiet", false, "hide the progress bar")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <video>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	if err := run(flag.Arg(0), *stride, *quiet); err != nil {
		fmt.Fprintf(os.Stderr, "Video prediction failed: %v\n", err)
		os.Exit(1)
	}
}

func run(path string, stride int, quiet bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if stride <= 0 {
		stride = cfg.SampleStride
	}

	logger := log.Init(log.Options{Level: cfg.LogLevel, File: cfg.LogFile})

	recognizer, tracker, err := app.NewRecognizer(cfg, app.TrackerFactory(cfg, logger), logger)
	if err != nil {
		return err
	}
	defer tracker.Close()

	src, err := capture.OpenVideoFile(path)
	if err != nil {
		return err
	}

	opts := gesture.VideoOptions{Stride: stride}
	if !quiet {
		bar := pb.New(src.FrameCount())
		bar.SetWriter(os.Stderr)
		bar.Start()
		defer bar.Finish()
		opts.OnFrame = func(int) { bar.Increment() }
	}

	verdict, err := recognizer.PredictVideo(src, opts)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(verdict, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
