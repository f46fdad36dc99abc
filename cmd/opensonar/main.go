package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/mdobak/go-xerrors"

	"opensonar/internal/config"
	"opensonar/internal/replay"
	"opensonar/internal/surveylog"
)

func main() {
	_ = godotenv.Load()

	defaultConfig := "./opensonar.yaml"
	if p := strings.TrimSpace(os.Getenv(config.EnvPath)); p != "" {
		defaultConfig = p
	}

	var (
		configPath    string
		summaryPath   string
		offsetsPath   string
		exportPath    string
		dbPath        string
		reprocessPath string
		metadataPath  string
	)
	flag.StringVar(&configPath, "config", defaultConfig, "Path to YAML config")
	flag.StringVar(&summaryPath, "summary", "", "Print a summary of a raw log and exit")
	flag.StringVar(&offsetsPath, "offsets", "", "Project the sonar lever arm for every RMC fix of a raw log and exit")
	flag.StringVar(&exportPath, "export", "", "Export a raw log into the SQLite database given by -db and exit")
	flag.StringVar(&dbPath, "db", "opensonar.db", "SQLite database for -export")
	flag.StringVar(&reprocessPath, "reprocess", "", "Reduce a raw log to a new simple log and exit")
	flag.StringVar(&metadataPath, "metadata", "", "Survey configuration overriding the raw log header for -reprocess")
	flag.Parse()

	switch {
	case summaryPath != "":
		if err := printLogSummary(os.Stdout, summaryPath); err != nil {
			fatal("summary failed", err)
		}
		return
	case offsetsPath != "":
		out, n, err := writeOffsets(offsetsPath)
		if err != nil {
			fatal("offsets failed", err)
		}
		log.Printf("offsets written path=%s rows=%d", out, n)
		return
	case exportPath != "":
		if err := exportLog(context.Background(), exportPath, dbPath); err != nil {
			fatal("export failed", err)
		}
		return
	case reprocessPath != "":
		if err := reprocess(reprocessPath, metadataPath); err != nil {
			fatal("reprocess failed", err)
		}
		return
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fatal("config load failed", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Printf("opensonar starting config=%s", configPath)
	if err := runSession(ctx, cfg); err != nil {
		fatal("session failed", err)
	}
	log.Printf("opensonar stopping")
}

func fatal(msg string, err error) {
	log.Fatalf("%s: %v", msg, xerrors.New(err))
}

func reprocess(rawPath, metadataPath string) error {
	var md *surveylog.Metadata
	if metadataPath != "" {
		m, err := surveylog.LoadMetadata(metadataPath)
		if err != nil {
			return err
		}
		md = &m
	}
	out := siblingPath(rawPath, "_reduced")
	res, err := replay.ReduceFile(rawPath, out, md)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %d fixes, %d skipped\n", out, len(res.Fixes), res.Skipped)
	return nil
}

// siblingPath turns dir/name_raw.csv into dir/name_raw<suffix>.csv.
func siblingPath(path, suffix string) string {
	ext := surveylog.Ext
	if strings.HasSuffix(path, ext) {
		return strings.TrimSuffix(path, ext) + suffix + ext
	}
	return path + suffix + ext
}
