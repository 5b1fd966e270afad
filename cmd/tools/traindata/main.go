// Command traindata works with worm training-data XML files: validate or
// inspect an existing file, train a new one from labelled samples, or
// score a candidate shape against one. The migrate subcommand carries
// schema maintenance for a service database.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/wormlab/untangle/internal/config"
	"github.com/wormlab/untangle/internal/db"
	"github.com/wormlab/untangle/internal/worm"
	"github.com/wormlab/untangle/internal/wormfile"
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: traindata <command> [flags]

Commands:
  validate -in FILE             check a training-data file (structure + semantics)
  inspect  -in FILE             print a summary of a training-data file
  train    -samples FILE -out FILE [-config FILE] [-n N]
                                derive a training-data file from labelled samples
  score    -in FILE -angles a1,a2,... -area A -path-length L
                                score one candidate against a training-data file
  migrate  -db FILE -op up|down|version|force [-version N]
                                schema maintenance on a service database
`)
	os.Exit(2)
}

func main() {
	log.SetFlags(0)
	if len(os.Args) < 2 {
		usage()
	}

	switch os.Args[1] {
	case "validate":
		runValidate(os.Args[2:])
	case "inspect":
		runInspect(os.Args[2:])
	case "train":
		runTrain(os.Args[2:])
	case "score":
		runScore(os.Args[2:])
	case "migrate":
		runMigrate(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		usage()
	}
}

func loadParams(path string) (*worm.TrainingParams, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return wormfile.Decode(f)
}

func runValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	in := fs.String("in", "", "training-data XML file")
	fs.Parse(args)
	if *in == "" {
		log.Fatal("validate: -in is required")
	}

	params, err := loadParams(*in)
	var ferrs wormfile.FormatErrors
	if errors.As(err, &ferrs) {
		log.Printf("%s: %d structural violation(s):", *in, len(ferrs))
		for _, fe := range ferrs {
			log.Printf("  [%s] %s", fe.Code, fe.Error())
		}
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("validate: %v", err)
	}

	if err := params.Validate(); err != nil {
		log.Printf("%s: structurally valid but semantically inconsistent:", *in)
		log.Printf("  %v", err)
		os.Exit(1)
	}
	log.Printf("✓ %s is valid", *in)
}

func runInspect(args []string) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	in := fs.String("in", "", "training-data XML file")
	fs.Parse(args)
	if *in == "" {
		log.Fatal("inspect: -in is required")
	}

	p, err := loadParams(*in)
	if err != nil {
		log.Fatalf("inspect: %v", err)
	}

	log.Printf("file:               %s", *in)
	log.Printf("version:            %d", p.Version)
	log.Printf("control points:     %d", p.NumControlPoints)
	log.Printf("training set size:  %d", p.TrainingSetSize)
	log.Printf("cost threshold:     %g", p.CostThreshold)
	log.Printf("area bounds:        [%g, %g] (median %g)", p.MinArea, p.MaxArea, p.MedianWormArea)
	log.Printf("path length bounds: [%g, %g]", p.MinPathLength, p.MaxPathLength)
	log.Printf("max skel length:    %g", p.MaxSkelLength)
	log.Printf("max radius:         %g", p.MaxRadius)
	log.Printf("weights:            overlap=%g leftover=%g", p.OverlapWeight, p.LeftoverWeight)
	if err := p.Validate(); err != nil {
		log.Printf("WARNING: %v", err)
	}
}

func runTrain(args []string) {
	fs := flag.NewFlagSet("train", flag.ExitOnError)
	samplesPath := fs.String("samples", "", "JSON file holding an array of labelled samples")
	out := fs.String("out", "", "output training-data XML file")
	configPath := fs.String("config", "", "optional JSON training config")
	numPoints := fs.Int("n", 0, "number of control points (overrides config)")
	fs.Parse(args)
	if *samplesPath == "" || *out == "" {
		log.Fatal("train: -samples and -out are required")
	}

	data, err := os.ReadFile(*samplesPath)
	if err != nil {
		log.Fatalf("train: %v", err)
	}
	var samples []worm.Sample
	if err := json.Unmarshal(data, &samples); err != nil {
		log.Fatalf("train: parse samples: %v", err)
	}

	cfg := worm.TrainConfig{}
	if *configPath != "" {
		fileCfg, err := config.LoadTrainingConfig(*configPath)
		if err != nil {
			log.Fatalf("train: %v", err)
		}
		cfg = fileCfg.TrainConfig()
	}
	if *numPoints > 0 {
		cfg.NumControlPoints = *numPoints
	}

	params, err := worm.Train(samples, cfg)
	if err != nil {
		log.Fatalf("train: %v", err)
	}

	f, err := os.Create(*out)
	if err != nil {
		log.Fatalf("train: %v", err)
	}
	defer f.Close()
	if err := wormfile.Encode(f, params); err != nil {
		log.Fatalf("train: %v", err)
	}
	log.Printf("✓ trained on %d samples, wrote %s", len(samples), *out)
}

func runScore(args []string) {
	fs := flag.NewFlagSet("score", flag.ExitOnError)
	in := fs.String("in", "", "training-data XML file")
	anglesArg := fs.String("angles", "", "comma-separated candidate angle vector")
	area := fs.Float64("area", 0, "candidate area (pixels^2)")
	pathLength := fs.Float64("path-length", 0, "candidate path length")
	fs.Parse(args)
	if *in == "" || *anglesArg == "" {
		log.Fatal("score: -in and -angles are required")
	}

	angles, err := parseAngles(*anglesArg)
	if err != nil {
		log.Fatalf("score: %v", err)
	}

	params, err := loadParams(*in)
	if err != nil {
		log.Fatalf("score: %v", err)
	}
	scorer, err := worm.NewScorer(params)
	if err != nil {
		log.Fatalf("score: %v", err)
	}

	v := scorer.Accept(worm.Candidate{Angles: angles, Area: *area, PathLength: *pathLength})
	log.Printf("cost:     %g (threshold %g)", v.Cost, params.CostThreshold)
	log.Printf("verdict:  %s", v.Reason)
	if !v.Accepted {
		os.Exit(1)
	}
}

func runMigrate(args []string) {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	dbPath := fs.String("db", "", "service SQLite database")
	op := fs.String("op", "version", "one of up, down, version, force")
	version := fs.Int("version", -1, "target version for -op force")
	fs.Parse(args)
	if *dbPath == "" {
		log.Fatal("migrate: -db is required")
	}

	database, err := db.Open(*dbPath)
	if err != nil {
		log.Fatalf("migrate: %v", err)
	}
	defer database.Close()

	switch *op {
	case "up":
		if err := database.MigrateUp(); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		log.Printf("✓ migrated %s up", *dbPath)
	case "down":
		if err := database.MigrateDown(); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		log.Printf("✓ rolled back one migration on %s", *dbPath)
	case "version":
		v, dirty, err := database.MigrateVersion()
		if err != nil {
			log.Fatalf("migrate: %v", err)
		}
		log.Printf("%s: schema version %d (dirty=%t)", *dbPath, v, dirty)
	case "force":
		if *version < 0 {
			log.Fatal("migrate: -op force requires -version")
		}
		if err := database.MigrateForce(*version); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		log.Printf("✓ forced %s to version %d", *dbPath, *version)
	default:
		log.Fatalf("migrate: unknown -op %q", *op)
	}
}

func parseAngles(arg string) ([]float64, error) {
	parts := strings.Split(arg, ",")
	angles := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("bad angle %q: %w", p, err)
		}
		angles[i] = v
	}
	return angles, nil
}
