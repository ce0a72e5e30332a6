package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
	"gopkg.in/yaml.v3"

	spedec "example.com/spedec"
	"example.com/spedec/internal/common"
	"example.com/spedec/internal/export"
	"example.com/spedec/internal/report"
	"example.com/spedec/spe"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

type logConfig struct {
	Directory  string `yaml:"directory"`
	MaxSizeMB  int    `yaml:"maxSizeMB"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
	MaxBackups int    `yaml:"maxBackups"`
	Compress   bool   `yaml:"compress"`
}

type config struct {
	Concurrency int       `yaml:"concurrency"`
	Strict      *bool     `yaml:"strict"`
	Logs        logConfig `yaml:"logs"`
}

func loadConfig(path string) (config, error) {
	var cfg config
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()
	dec := yaml.NewDecoder(f)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, err
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = runtime.NumCPU()
	}
	if cfg.Logs.MaxSizeMB <= 0 {
		cfg.Logs.MaxSizeMB = 25
	}
	if cfg.Logs.MaxAgeDays <= 0 {
		cfg.Logs.MaxAgeDays = 7
	}
	if cfg.Logs.MaxBackups <= 0 {
		cfg.Logs.MaxBackups = 5
	}
	return cfg, nil
}

func setupLogging(cfg config) error {
	if cfg.Logs.Directory == "" {
		return nil
	}
	if err := os.MkdirAll(cfg.Logs.Directory, 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.Logs.Directory, "spedump.log"),
		MaxSize:    cfg.Logs.MaxSizeMB,
		MaxAge:     cfg.Logs.MaxAgeDays,
		MaxBackups: cfg.Logs.MaxBackups,
		Compress:   cfg.Logs.Compress,
	}
	log.SetOutput(io.MultiWriter(os.Stdout, rotator))
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	return nil
}

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}
	switch os.Args[1] {
	case "inspect":
		inspectCmd(os.Args[2:])
	case "decode":
		decodeCmd(os.Args[2:])
	default:
		usage()
	}
}

func usage() {
	fmt.Printf(`spedump %s (built %s) <command> [options]

Commands:
  inspect  --in <file> [--strict=false] [--diag <violations.ndjson>] [--report <report.json>] [--pdf <report.pdf>]
  decode   --in <file> [--strict=false] [--workers <n>] [--out <dataset.cbor>] [--diag <violations.ndjson>] [--report <report.json>] [--pdf <report.pdf>] [--metrics] [--progress]
`, version, buildDate)
}

type commonFlags struct {
	in      *string
	cfgPath *string
	strict  *bool
	diag    *string
	repJSON *string
	repPDF  *string
}

func registerCommonFlags(fs *flag.FlagSet) commonFlags {
	return commonFlags{
		in:      fs.String("in", "", "input .spe file"),
		cfgPath: fs.String("config", "", "optional YAML configuration file"),
		strict:  fs.Bool("strict", true, "require header magic fields to match"),
		diag:    fs.String("diag", "", "schema violations output (ndjson)"),
		repJSON: fs.String("report", "", "decode report output (json)"),
		repPDF:  fs.String("pdf", "", "decode report output (pdf)"),
	}
}

func (cf commonFlags) applyConfig() config {
	var cfg config
	if *cf.cfgPath != "" {
		loaded, err := loadConfig(*cf.cfgPath)
		if err != nil {
			common.Fatalf("load config: %v", err)
		}
		cfg = loaded
		if err := setupLogging(cfg); err != nil {
			common.Fatalf("setup logging: %v", err)
		}
		if cfg.Strict != nil {
			*cf.strict = *cfg.Strict
		}
	}
	if *cf.in == "" {
		fmt.Println("required: --in")
		os.Exit(1)
	}
	return cfg
}

func inspectCmd(args []string) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	cf := registerCommonFlags(fs)
	fs.Parse(args)
	cf.applyConfig()

	f, err := spedec.Inspect(*cf.in, spedec.Options{Strict: *cf.strict})
	if err != nil {
		common.Fatalf("inspect %s: %v", *cf.in, err)
	}
	printSummary(f)
	writeOutputs(cf, f, "")
}

func decodeCmd(args []string) {
	fs := flag.NewFlagSet("decode", flag.ExitOnError)
	cf := registerCommonFlags(fs)
	workers := fs.Int("workers", 0, "decode worker count (default: one per CPU)")
	out := fs.String("out", "", "decoded dataset output (cbor)")
	metricsFlag := fs.Bool("metrics", false, "print decode throughput metrics")
	progressFlag := fs.Bool("progress", false, "display decode progress updates")
	fs.Parse(args)
	cfg := cf.applyConfig()
	if *workers <= 0 {
		if cfg.Concurrency > 0 {
			*workers = cfg.Concurrency
		} else {
			*workers = runtime.NumCPU()
		}
	}

	r, err := spe.NewReaderOptions(*cf.in, spe.Options{Strict: *cf.strict})
	if err != nil {
		common.Fatalf("open %s: %v", *cf.in, err)
	}
	defer r.Close()

	var metrics *common.Metrics
	if *metricsFlag || *progressFlag {
		metrics = common.NewMetrics()
		r.SetMetrics(metrics)
		metrics.Start()
	}
	var stopProgress func()
	if metrics != nil && *progressFlag {
		stopProgress = common.StartProgressPrinter(os.Stderr, metrics, 500*time.Millisecond)
	}
	f, err := spedec.Decode(r, *workers)
	if stopProgress != nil {
		stopProgress()
	}
	if metrics != nil {
		metrics.Stop()
	}
	if err != nil {
		common.Fatalf("decode %s: %v", *cf.in, err)
	}

	digest := ""
	if *cf.repJSON != "" || *cf.repPDF != "" {
		if digest, err = common.FileSHA256(*cf.in); err != nil {
			common.Logf("digest: %v", err)
		}
	}
	printSummary(f)
	if *out != "" {
		if err := export.WriteFile(*out, f.Dataset); err != nil {
			common.Fatalf("write dataset: %v", err)
		}
		common.Logf("dataset written to %s", *out)
	}
	writeOutputs(cf, f, digest)

	if metrics != nil && *metricsFlag {
		snap := metrics.Snapshot()
		fmt.Printf("Metrics: duration=%s frames=%d processed=%s throughput=%.2f MB/s\n",
			snap.Duration.Round(10*time.Millisecond),
			snap.Frames,
			common.FormatBytes(snap.Bytes),
			snap.ThroughputBytesPerSecond()/1_000_000,
		)
	}
}

func printSummary(f *spedec.File) {
	md := f.Metadata
	fmt.Printf("%s: %s, %d frame(s), %d region(s), pixel %s\n",
		filepath.Base(f.Report.File), md.Version, md.FrameCount, len(md.ROIs), md.Pixel)
	for _, roi := range md.ROIs {
		fmt.Printf("  %s: %dx%d px, binning %dx%d, origin (%d,%d)\n",
			roi.Name, roi.Width, roi.Height, roi.XBin, roi.YBin, roi.OriginX, roi.OriginY)
	}
	if len(md.TrackFields) > 0 {
		fmt.Printf("  tracking: %d field(s), %d byte(s)/frame\n", len(md.TrackFields), md.TrackBlockSize)
	}
	fmt.Printf("  schema: errors=%d warnings=%d\n", f.Report.Errors(), f.Report.Warnings())
}

func writeOutputs(cf commonFlags, f *spedec.File, digest string) {
	if *cf.diag != "" {
		if err := f.Report.WriteNDJSON(*cf.diag); err != nil {
			common.Fatalf("write diagnostics: %v", err)
		}
	}
	if *cf.repJSON == "" && *cf.repPDF == "" {
		return
	}
	rep := report.Build(f.Report.File, digest, f.Metadata, f.Report, f.Dataset)
	if *cf.repJSON != "" {
		if err := report.SaveJSON(rep, *cf.repJSON); err != nil {
			common.Fatalf("write report: %v", err)
		}
	}
	if *cf.repPDF != "" {
		if err := report.SaveDecodePDF(rep, *cf.repPDF); err != nil {
			common.Fatalf("write pdf: %v", err)
		}
	}
}
