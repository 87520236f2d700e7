package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"testharvest/internal/adapters/archive"
	"testharvest/internal/connector"
	"testharvest/internal/platform/config"
	"testharvest/internal/platform/datetime"
	"testharvest/internal/platform/logger"
	harvestdom "testharvest/internal/services/harvest/domain"
	harvestsvc "testharvest/internal/services/harvest/service"
	"testharvest/internal/services/harvest/sink"

	// registered backends
	_ "testharvest/internal/connector/functest"
)

func main() {
	root := config.New()
	hvCfg := root.Prefix("HARVEST_")

	l := logger.Get()

	var (
		fBackend  = flag.String("backend", hvCfg.MayString("BACKEND", "functest"), "backend to fetch with")
		fCategory = flag.String("category", hvCfg.MayString("CATEGORY", "functest"), "category of items to fetch")
		fFrom     = flag.String("from-date", "", "fetch items updated since this date (default: epoch)")
		fTo       = flag.String("to-date", "", "fetch items updated before this date (default: now)")
		fTag      = flag.String("tag", hvCfg.MayString("TAG", ""), "label stamped on every item (default: the url)")
		fArchive  = flag.String("archive-path", hvCfg.MayString("ARCHIVE_PATH", ""), "sqlite archive recording raw pages")
		fReplay   = flag.Bool("replay", false, "serve the run from the archive instead of the network")
		fOut      = flag.String("out", "-", "jsonl output path, - for stdout")
		fStore    = flag.String("store", hvCfg.MayString("STORE_PATH", ""), "optional sqlite item store")
		fList     = flag.Bool("backends", false, "list registered backends and exit")
	)
	flag.Parse()

	if *fList {
		for _, n := range connector.Names() {
			fmt.Println(n)
		}
		return
	}

	url := flag.Arg(0)
	if url == "" {
		l.Fatal().Msg("usage: testharvest-fetch [flags] URL")
	}

	opts := harvestdom.RunOptions{
		Backend:  *fBackend,
		URL:      url,
		Category: *fCategory,
		Tag:      *fTag,
	}
	if *fFrom != "" {
		t, err := datetime.Parse(*fFrom)
		if err != nil {
			l.Fatal().Err(err).Msg("bad -from-date")
		}
		opts.From = t
	}
	if *fTo != "" {
		t, err := datetime.Parse(*fTo)
		if err != nil {
			l.Fatal().Err(err).Msg("bad -to-date")
		}
		opts.To = t
	}

	var (
		pages    connector.PageArchive
		sessions harvestdom.SessionPort
	)
	if *fArchive != "" {
		st, err := archive.Open(*fArchive)
		if err != nil {
			l.Fatal().Err(err).Msg("archive open failed")
		}
		defer func() {
			if err := st.Close(); err != nil {
				l.Error().Err(err).Msg("failed to close archive")
			}
		}()
		pages, sessions = st, st
	}
	if *fReplay && pages == nil {
		l.Fatal().Msg("-replay requires -archive-path")
	}

	var out io.Writer = os.Stdout
	if *fOut != "-" {
		f, err := os.Create(*fOut)
		if err != nil {
			l.Fatal().Err(err).Msg("output open failed")
		}
		out = f
	}
	sinks := []harvestdom.SinkPort{sink.NewJSONL(out)}
	if *fStore != "" {
		st, err := sink.OpenSQLite(*fStore)
		if err != nil {
			l.Fatal().Err(err).Msg("item store open failed")
		}
		sinks = append(sinks, st)
	}
	dest := sink.NewMulti(sinks...)
	defer func() {
		if err := dest.Close(); err != nil {
			l.Error().Err(err).Msg("failed to close sinks")
		}
	}()

	svc := harvestsvc.New(dest, sessions, harvestsvc.Config{
		Archive: pages,
		Replay:  *fReplay,
	})

	sum, err := svc.Run(context.Background(), opts)
	if err != nil {
		l.Fatal().Err(err).Int("items", sum.Items).Msg("harvest failed")
	}
	l.Info().
		Str("backend", sum.Backend).
		Str("origin", sum.Origin).
		Str("category", sum.Category).
		Str("session", sum.Session).
		Int("items", sum.Items).
		Msg("harvest finished")
}
