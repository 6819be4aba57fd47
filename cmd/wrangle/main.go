// Command wrangle fetches the indicators once and writes the wide table as
// CSV, optionally with the dashboard figures as JSON.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/jessevdk/go-flags"
	"github.com/mauv0809/landuse-dashboard/internal/config"
	"github.com/mauv0809/landuse-dashboard/internal/pipeline"
)

type CmdArgs struct {
	Countries string `long:"countries" default:"" description:"Optional comma separated list of ISO country codes. Defaults to the configured countries"`
	Start     int    `long:"start" description:"First year of the range (inclusive)"`
	End       int    `long:"end" description:"Last year of the range (inclusive)"`
	Workers   int    `long:"workers" description:"Number of indicators fetched concurrently"`
	Out       string `long:"out" short:"o" default:"-" description:"CSV output path, '-' for stdout"`
	Figures   string `long:"figures" default:"" description:"Optional path for the figures JSON"`
}

func processArgs() (*CmdArgs, error) {
	args := CmdArgs{}
	_, err := flags.Parse(&args)

	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, err
			}
		}
		fmt.Println("Type 'wrangle -h' for help")
		return nil, err
	}

	return &args, nil
}

func applyArgs(cfg *config.Config, args *CmdArgs) {
	if args.Countries != "" {
		cfg.Countries = nil
		for _, c := range strings.Split(args.Countries, ",") {
			if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
				cfg.Countries = append(cfg.Countries, c)
			}
		}
	}
	if args.Start != 0 {
		cfg.Years.Start = args.Start
	}
	if args.End != 0 {
		cfg.Years.End = args.End
		cfg.SnapshotYear = args.End
	}
	if args.Workers > 0 {
		cfg.Workers = args.Workers
	}
}

func main() {
	args, err := processArgs()
	if err != nil {
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	applyArgs(&cfg, args)

	snap, err := pipeline.NewRunner(cfg, pipeline.NewClient(cfg)).Run(context.Background())
	if err != nil {
		log.Fatalf("Refresh failed: %v", err)
	}

	if err := writeTo(args.Out, func(w io.Writer) error { return snap.Table.WriteCSV(w) }); err != nil {
		log.Fatalf("Could not write table: %v", err)
	}

	if args.Figures != "" {
		err := writeTo(args.Figures, func(w io.Writer) error {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(snap.Figures)
		})
		if err != nil {
			log.Fatalf("Could not write figures: %v", err)
		}
		log.Printf("Figures written to %s", args.Figures)
	}
}

func writeTo(path string, write func(io.Writer) error) error {
	if path == "-" {
		return write(os.Stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
