package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/JoacoLucen/EPH-Insight-App/internal/codebook"
	"github.com/JoacoLucen/EPH-Insight-App/internal/dataset"
	"github.com/JoacoLucen/EPH-Insight-App/internal/microdata"
	"github.com/JoacoLucen/EPH-Insight-App/platform/config"
	"github.com/JoacoLucen/EPH-Insight-App/platform/logger"
)

// normalize loads every extract in DATA_DIR once and writes the normalized
// hogares.csv and individuos.csv, derived columns included, to
// NORMALIZED_OUT_DIR (DATA_DIR when unset).
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	outDir := getEnv("NORMALIZED_OUT_DIR", cfg.GetDataDir())
	log.Info("starting normalization", "dataDir", cfg.GetDataDir(), "outDir", outDir)

	ctx := context.Background()
	cb, err := codebook.Load(cfg.GetCodebookPath())
	if err != nil {
		log.Error("failed to load codebook", "error", err)
		panic("failed to load codebook: " + err.Error())
	}

	loader := dataset.NewLoader(dataset.NewDirSource(cfg.GetDataDir()), cb, log)
	fingerprint, entries, err := loader.Fingerprint(ctx)
	if err != nil {
		log.Error("failed to list extracts", "error", err)
		panic("failed to list extracts: " + err.Error())
	}
	ds, err := loader.Load(ctx, entries)
	if err != nil {
		log.Error("failed to load extracts", "error", err)
		panic("failed to load extracts: " + err.Error())
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		panic("failed to create output directory: " + err.Error())
	}
	if err := writeFile(filepath.Join(outDir, microdata.HouseholdsFile), func(w io.Writer) error {
		return microdata.WriteHouseholds(w, ds.Households)
	}); err != nil {
		log.Error("failed to write households", "error", err)
		panic("failed to write households: " + err.Error())
	}
	if err := writeFile(filepath.Join(outDir, microdata.IndividualsFile), func(w io.Writer) error {
		return microdata.WriteIndividuals(w, ds.Individuals)
	}); err != nil {
		log.Error("failed to write individuals", "error", err)
		panic("failed to write individuals: " + err.Error())
	}

	log.Info("normalization complete",
		"fingerprint", fingerprint,
		"households", len(ds.Households),
		"individuals", len(ds.Individuals),
		"excluded", ds.Report.Exclusions.Total(),
	)
}

// writeFile writes to a temporary file and renames it into place, so readers
// never see a partial table.
func writeFile(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := write(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}
