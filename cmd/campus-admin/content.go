package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/target/campus-portal/internal/data"
	"github.com/target/campus-portal/internal/domain/model"
	"github.com/target/campus-portal/internal/service"
)

type dumpContentOptions struct {
	Section string
	Compact bool
}

func parseDumpContentFlags(args []string) (dumpContentOptions, error) {
	fs := flag.NewFlagSet("dump-content", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts dumpContentOptions
	fs.StringVar(&opts.Section, "section", "", "Only print this section")
	fs.BoolVar(&opts.Compact, "compact", false, "Print one JSON document per line")
	if err := fs.Parse(args); err != nil {
		return dumpContentOptions{}, err
	}
	return opts, nil
}

func runDumpContent(cmdCtx *commandContext, args []string) error {
	opts, err := parseDumpContentFlags(args)
	if err != nil {
		return err
	}

	return withDatabase(cmdCtx, func(ctx context.Context, db *sql.DB) error {
		svc := service.NewContentService(service.ContentServiceOptions{
			Repo:   data.NewContentRepo(db),
			Logger: cmdCtx.Logger,
		})

		var sections []*model.ContentSection
		if opts.Section != "" {
			one, err := svc.Get(ctx, opts.Section)
			if err != nil {
				return err
			}
			sections = []*model.ContentSection{one}
		} else if sections, err = svc.List(ctx); err != nil {
			return fmt.Errorf("list content: %w", err)
		}
		return writeSections(os.Stdout, sections, opts.Compact)
	})
}

func writeSections(w io.Writer, sections []*model.ContentSection, compact bool) error {
	enc := json.NewEncoder(w)
	if !compact {
		enc.SetIndent("", "  ")
		if sections == nil {
			sections = []*model.ContentSection{}
		}
		if err := enc.Encode(sections); err != nil {
			return fmt.Errorf("encode content: %w", err)
		}
		return nil
	}
	for _, s := range sections {
		if err := enc.Encode(s); err != nil {
			return fmt.Errorf("encode section %q: %w", s.Section, err)
		}
	}
	return nil
}
