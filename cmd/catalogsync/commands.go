package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/catalogsync/batchjob"
	"github.com/poiesic/catalogsync/core"
	"github.com/poiesic/catalogsync/indexbuild"
	"github.com/poiesic/catalogsync/matching"
	"github.com/poiesic/catalogsync/migrate"
	"github.com/poiesic/catalogsync/progress"
	"github.com/poiesic/catalogsync/reembed"
	"github.com/poiesic/catalogsync/search"
)

func migrateProductsCommand(c *cli.Context) error {
	var phase migrate.Phase
	if name := c.String("phase"); name != "" {
		p, err := parsePhase(name)
		if err != nil {
			return err
		}
		phase = p
	}

	cat, cfg, err := openCatalog(c)
	if err != nil {
		return err
	}
	defer cat.Close()

	opts := []migrate.Option{
		migrate.WithChunkSize(intOr(c, "chunk-size", cfg.Migrate.ChunkSize)),
		migrate.WithWorkers(intOr(c, "workers", cfg.Migrate.Workers)),
		migrate.WithProgress(os.Stderr),
	}
	if c.Bool("no-embeddings") {
		opts = append(opts, migrate.WithoutEmbeddings())
	}
	orch, err := cat.NewOrchestrator(c.Context, opts...)
	if err != nil {
		return err
	}
	defer orch.Release()

	var report migrate.Report
	if phase != 0 {
		pr, runErr := orch.RunPhase(c.Context, phase, make(map[core.NaturalKey]struct{}))
		report.Phases = []migrate.PhaseReport{pr}
		report.Total = pr.Stats
		report.Canceled = c.Context.Err() != nil
		err = runErr
	} else {
		report, err = orch.Run(c.Context)
	}

	var rows [][2]string
	for _, pr := range report.Phases {
		rows = append(rows, [2]string{pr.Phase.String(), fmt.Sprintf("%d records, %s", pr.Records, pr.Stats)})
	}
	rows = append(rows, [2]string{"total", report.Total.String()})
	if report.Canceled {
		rows = append(rows, [2]string{"status", "canceled; rerun to continue"})
	}
	progress.WriteSummary(os.Stderr, "Product migration", rows)
	if err != nil {
		return fmt.Errorf("product migration failed: %w", err)
	}
	return nil
}

func migrateInventoryCommand(c *cli.Context) error {
	cat, cfg, err := openCatalog(c)
	if err != nil {
		return err
	}
	defer cat.Close()

	m, err := cat.NewInventoryMigrator(c.Context, migrate.WithChunkSize(cfg.Migrate.ChunkSize))
	if err != nil {
		return err
	}
	report, err := m.Run(c.Context)
	writeInventorySummary("Inventory migration", report)
	if err != nil {
		return fmt.Errorf("inventory migration failed: %w", err)
	}
	return nil
}

func linkInventoryCommand(c *cli.Context) error {
	cat, cfg, err := openCatalog(c)
	if err != nil {
		return err
	}
	defer cat.Close()

	m, err := cat.NewInventoryMigrator(c.Context, migrate.WithChunkSize(cfg.Migrate.ChunkSize))
	if err != nil {
		return err
	}
	report, err := m.Relink(c.Context)
	writeInventorySummary("Inventory relink", report)
	if err != nil {
		return fmt.Errorf("inventory relink failed: %w", err)
	}
	return nil
}

func writeInventorySummary(title string, r migrate.InventoryReport) {
	progress.WriteSummary(os.Stderr, title, [][2]string{
		{"units", strconv.Itoa(r.Total)},
		{"written", strconv.Itoa(r.Written)},
		{"failed", strconv.Itoa(r.Failed)},
		{"linked by platform id", strconv.Itoa(r.PlatformID)},
		{"linked by name", strconv.Itoa(r.Exact)},
		{"linked by style hint", strconv.Itoa(r.Hinted)},
		{"ambiguous (review)", strconv.Itoa(r.Ambiguous)},
		{"unlinked", strconv.Itoa(r.Unlinked)},
	})
}

func batchEmbedCommand(c *cli.Context) error {
	if c.Bool("regenerate") {
		if err := confirmDestructive(c, "Replace every stored embedding"); err != nil {
			return err
		}
	}

	cat, cfg, err := openCatalog(c)
	if err != nil {
		return err
	}
	defer cat.Close()

	opts := []batchjob.Option{
		batchjob.WithShardSize(intOr(c, "shard-size", cfg.Batch.ShardSize)),
		batchjob.WithCooldown(cfg.Batch.Cooldown),
		batchjob.WithSubmitLimit(intOr(c, "submit-limit", cfg.Batch.SubmitLimit)),
		batchjob.WithDimensions(cfg.AI.Dimensions),
		batchjob.WithProgress(os.Stderr),
	}
	if c.IsSet("cooldown") {
		opts = append(opts, batchjob.WithCooldown(c.Duration("cooldown")))
	}
	if c.Bool("regenerate") {
		opts = append(opts, batchjob.WithRegenerate())
	}
	coord, err := cat.NewCoordinator(opts...)
	if err != nil {
		return err
	}

	report, err := coord.Run(c.Context)
	status := "in progress; rerun later to poll"
	if report.Finished {
		status = "finished"
	}
	progress.WriteSummary(os.Stderr, "Batch embedding", [][2]string{
		{"run", report.RunID},
		{"shards", strconv.Itoa(report.Shards)},
		{"planned", strconv.Itoa(report.Planned)},
		{"submitted", strconv.Itoa(report.Submitted)},
		{"resubmitted", strconv.Itoa(report.Resubmitted)},
		{"applied shards", strconv.Itoa(report.Applied)},
		{"vectors written", strconv.Itoa(report.Vectors)},
		{"failed requests", strconv.Itoa(report.Failed)},
		{"malformed lines", strconv.Itoa(report.Malformed)},
		{"in flight", strconv.Itoa(report.InFlight)},
		{"pending", strconv.Itoa(report.Pending)},
		{"expired results", strconv.Itoa(report.Expired)},
		{"shard errors", strconv.Itoa(report.Errored)},
		{"status", status},
	})
	if err != nil {
		return fmt.Errorf("batch embedding failed: %w", err)
	}
	return nil
}

func reembedCommand(c *cli.Context) error {
	cfg := &reembed.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
	}
	if cfg.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if cfg.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if cfg.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	cat, _, err := openCatalog(c)
	if err != nil {
		return err
	}
	defer cat.Close()

	report, err := cat.NewReembedder(cfg, os.Stderr).Run(c.Context)
	progress.WriteSummary(os.Stderr, "Reembedding", [][2]string{
		{"stale", strconv.Itoa(report.Stale)},
		{"updated", strconv.Itoa(report.Updated)},
		{"failed", strconv.Itoa(report.Failed)},
		{"no text", strconv.Itoa(report.Empty)},
		{"elapsed", report.Elapsed.String()},
	})
	if err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}
	return nil
}

func matchCommand(c *cli.Context) error {
	if c.Bool("rematch") {
		if err := confirmDestructive(c, "Delete every product mapping"); err != nil {
			return err
		}
	}

	cat, cfg, err := openCatalog(c)
	if err != nil {
		return err
	}
	defer cat.Close()

	threshold := cfg.Matching.Threshold
	if c.IsSet("threshold") {
		threshold = c.Float64("threshold")
	}
	opts := []matching.Option{
		matching.WithThreshold(threshold),
		matching.WithCommitEvery(intOr(c, "commit-every", cfg.Matching.CommitEvery)),
		matching.WithProgress(os.Stderr),
	}
	if c.Bool("rematch") {
		opts = append(opts, matching.WithRematch())
	}
	engine, err := cat.NewMatchingEngine(opts...)
	if err != nil {
		return err
	}

	report, err := engine.Run(c.Context)
	progress.WriteSummary(os.Stderr, "Matching", [][2]string{
		{"secondary products", strconv.Itoa(report.Secondary)},
		{"already mapped", strconv.Itoa(report.AlreadyMapped)},
		{"exact key", strconv.Itoa(report.Exact)},
		{"embedding similarity", strconv.Itoa(report.Similarity)},
		{"unmatched", strconv.Itoa(report.Unmatched)},
		{"no embedding", strconv.Itoa(report.NoEmbedding)},
		{"defaults", strconv.Itoa(report.Defaults)},
	})
	if err != nil {
		return fmt.Errorf("matching failed: %w", err)
	}
	return nil
}

func buildIndexesCommand(c *cli.Context) error {
	if c.Bool("rebuild") {
		if err := confirmDestructive(c, "Drop and rebuild the vector index"); err != nil {
			return err
		}
	}

	cat, _, err := openCatalog(c)
	if err != nil {
		return err
	}
	defer cat.Close()

	builder, err := cat.NewIndexBuilder()
	if err != nil {
		return err
	}

	result, err := builder.BuildVectorIndex(c.Context, c.Bool("rebuild"))
	if err != nil {
		return fmt.Errorf("vector index build failed: %w", err)
	}
	rows := [][2]string{
		{"embedded records", strconv.FormatInt(result.Embedded, 10)},
		{"attempts", strconv.Itoa(len(result.Attempts))},
	}
	switch {
	case result.Existing:
		rows = append(rows, [2]string{"vector index", "already present"})
	case result.Built:
		rows = append(rows, [2]string{"vector index", "built with " + result.Rung.String()})
	case result.Exhausted():
		rows = append(rows, [2]string{"vector index", "not built; similarity queries will scan"})
	}

	if !c.Bool("vector-only") {
		if err := builder.BuildStandardIndexes(c.Context); err != nil {
			progress.WriteSummary(os.Stderr, "Indexes", rows)
			return fmt.Errorf("standard index build failed: %w", err)
		}
		rows = append(rows, [2]string{"standard indexes", strconv.Itoa(len(indexbuild.StandardIndexes))})
	}
	progress.WriteSummary(os.Stderr, "Indexes", rows)
	return nil
}

func searchCommand(c *cli.Context) error {
	text := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("a query is required")
	}
	q := search.Query{
		Text:          text,
		Limit:         c.Int("limit"),
		MinSimilarity: c.Float64("min-similarity"),
	}
	if name := c.String("platform"); name != "" {
		p, err := core.ParsePlatform(name)
		if err != nil {
			return fmt.Errorf("%w: %q", err, name)
		}
		q.Platform = p
	}

	cat, _, err := openCatalog(c)
	if err != nil {
		return err
	}
	defer cat.Close()

	searcher, err := cat.NewSearcher()
	if err != nil {
		return err
	}
	results, err := searcher.FindSimilar(c.Context, q)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SCORE\tSIMILARITY\tPLATFORM\tID\tSTYLE\tNAME")
	for _, r := range results {
		fmt.Fprintf(w, "%.3f\t%.3f\t%s\t%s\t%s\t%s\n",
			r.Score, r.Similarity, r.Product.Platform, r.Product.PlatformID, deref(r.Product.StyleKeyRaw), r.Product.DisplayName)
	}
	return w.Flush()
}

func probeThresholdCommand(c *cli.Context) error {
	thresholds := c.Float64Slice("threshold")
	if len(thresholds) == 0 {
		thresholds = search.DefaultThresholds
	}

	cat, _, err := openCatalog(c)
	if err != nil {
		return err
	}
	defer cat.Close()

	report, err := cat.Probe(c.Context, thresholds, c.Int("sample"), c.Uint64("seed"))
	if err != nil {
		return fmt.Errorf("probe failed: %w", err)
	}

	fmt.Fprintf(os.Stdout, "Sampled %d secondary products\n\n", report.Sampled)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "THRESHOLD\tMATCHES\tSTYLE AGREE\tSTYLE DISAGREE\tNO STYLE\tAGREEMENT")
	for _, t := range report.Thresholds {
		fmt.Fprintf(w, "%.2f\t%d\t%d\t%d\t%d\t%.1f%%\n",
			t.Threshold, t.Matches, t.StyleMatches, t.StyleMismatches, t.NoStyle, t.StyleMatchRate())
	}
	if err := w.Flush(); err != nil {
		return err
	}

	show := min(c.Int("show"), len(report.Matches))
	if show <= 0 {
		return nil
	}
	fmt.Fprintln(os.Stdout)
	w = tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SIMILARITY\tSECONDARY\tPRIMARY\tSTYLE")
	for _, m := range report.Matches[:show] {
		style := "-"
		if m.StyleMatch != nil {
			style = strconv.FormatBool(*m.StyleMatch)
		}
		fmt.Fprintf(w, "%.3f\t%s\t%s\t%s\n", m.Similarity, m.Source.DisplayName, m.Target.DisplayName, style)
	}
	return w.Flush()
}

func parsePhase(name string) (migrate.Phase, error) {
	for _, p := range migrate.Phases {
		if strings.EqualFold(p.String(), name) {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown phase %q: must be one of priority, styled, remainder", name)
}

// intOr returns the flag value when it was given on the command line.
func intOr(c *cli.Context, name string, fallback int) int {
	if c.IsSet(name) {
		return c.Int(name)
	}
	return fallback
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
