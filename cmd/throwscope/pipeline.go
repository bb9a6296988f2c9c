package main

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tinytelemetry/throwscope/internal/aggregate"
	"github.com/tinytelemetry/throwscope/internal/audit"
	"github.com/tinytelemetry/throwscope/internal/config"
	"github.com/tinytelemetry/throwscope/internal/dispatch"
	"github.com/tinytelemetry/throwscope/internal/history"
	"github.com/tinytelemetry/throwscope/internal/ingest"
	"github.com/tinytelemetry/throwscope/internal/modclass"
	"github.com/tinytelemetry/throwscope/internal/model"
	"github.com/tinytelemetry/throwscope/internal/patterns"
	"github.com/tinytelemetry/throwscope/internal/resolver"
	"github.com/tinytelemetry/throwscope/internal/snapshot"
	"github.com/tinytelemetry/throwscope/internal/symtab"
)

type pipelineOptions struct {
	// audit enables the audit file sink.
	audit bool
	// history enables the DuckDB sink when the config also enables it.
	history bool
}

// pipeline is one wired engine instance: resolver, aggregator, sinks and
// dispatcher behind a line processor.
type pipeline struct {
	cfg    config.Config
	logger *zap.Logger

	symbols    *symtab.Table
	agg        *aggregate.Aggregator
	dispatcher *dispatch.Dispatcher
	producer   *snapshot.Producer
	processor  *ingest.Processor
	miner      *patterns.Miner

	auditSink *audit.FileSink
	store     *history.Store
	inserts   *history.InsertBuffer
	retention *history.RetentionCleaner
	runID     string
}

func newPipeline(cfg config.Config, logger *zap.Logger, opts pipelineOptions) (*pipeline, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &pipeline{cfg: cfg, logger: logger}

	symbols, err := symtab.LoadManifest(cfg.SymbolTable)
	if err != nil {
		return nil, fmt.Errorf("load symbol table: %w", err)
	}
	p.symbols = symbols

	classifier := modclass.New(cfg.ModuleTables())
	res := resolver.New(symbols, classifier, cfg.ResolverConfig(), logger.Named("resolver"))
	p.agg = aggregate.New(cfg.AggregateSettings())

	var sinks audit.Tee
	if opts.audit {
		fs, err := audit.NewFileSink(cfg.AuditLog, logger.Named("audit"))
		if err != nil {
			return nil, err
		}
		if err := fs.Init(cfg.ContentRoot); err != nil {
			logger.Warn("audit log header failed", zap.String("path", cfg.AuditLog), zap.Error(err))
		}
		p.auditSink = fs
		p.runID = fs.RunID()
		sinks = append(sinks, fs)
	}

	if opts.history && cfg.History.Enabled {
		if err := p.openHistory(); err != nil {
			p.Close()
			return nil, err
		}
		sinks = append(sinks, p.inserts)
	}

	p.dispatcher = dispatch.New(cfg.Filter(), p.agg, res, sinks, dispatch.WithLogger(logger.Named("dispatch")))
	var snapOpts []snapshot.Option
	if cfg.PatternRows > 0 {
		miner, err := patterns.New(logger.Named("patterns"))
		if err != nil {
			logger.Warn("message patterns disabled", zap.Error(err))
		} else {
			p.miner = miner
			snapOpts = append(snapOpts, snapshot.WithPatterns(miner, cfg.PatternRows))
		}
	}
	p.producer = snapshot.New(p.agg, model.SystemClock{}, snapOpts...)
	p.processor = ingest.NewProcessor(p.dispatcher, model.SystemClock{}, logger.Named("ingest"))

	logger.Info("pipeline ready",
		zap.Int("modules", symbols.Len()),
		zap.Int("double_pass_rules", len(cfg.DoublePass)),
		zap.Int("single_pass_rules", len(cfg.SinglePass)),
		zap.Bool("audit", p.auditSink != nil),
		zap.Bool("history", p.store != nil),
		zap.Bool("patterns", p.miner != nil),
	)
	return p, nil
}

func (p *pipeline) openHistory() error {
	store, err := history.NewStore(p.cfg.History.DBPath, p.logger.Named("history"))
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	p.store = store
	if p.runID == "" {
		p.runID = uuid.NewString()
	}
	p.inserts = history.NewInsertBuffer(store, p.runID, history.InsertBufferConfig{
		BatchSize:     p.cfg.History.BatchSize,
		FlushInterval: p.cfg.History.FlushInterval,
		Logger:        p.logger.Named("history"),
	})
	p.retention = history.NewRetentionCleaner(store, history.RetentionConfig{
		RetentionDays: p.cfg.History.RetentionDays,
		Logger:        p.logger.Named("retention"),
	})
	return nil
}

// Reload applies a changed config to the running engine. Paths and the
// symbol table are fixed for the life of the process.
func (p *pipeline) Reload(cfg config.Config) {
	p.dispatcher.Reload(cfg.Filter(), cfg.AggregateSettings())
}

// Close flushes pending records and releases the sinks.
func (p *pipeline) Close() {
	if p.processor != nil {
		p.processor.FlushAll()
	}
	p.retention.Stop()
	if p.inserts != nil {
		p.inserts.Stop()
	}
	if p.store != nil {
		if err := p.store.Close(); err != nil {
			p.logger.Warn("close history", zap.Error(err))
		}
	}
	if p.dispatcher != nil {
		st := p.dispatcher.Stats()
		p.logger.Info("pipeline closed",
			zap.Uint64("dispatched", st.Dispatched),
			zap.Uint64("reentrant", st.Reentrant),
			zap.Uint64("faults", st.Faults),
		)
	}
	if p.miner != nil {
		templates, covered := p.miner.Stats()
		p.logger.Debug("message patterns", zap.Int("templates", templates), zap.Uint64("occurrences", covered))
	}
}
