package container

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"schoolprep/adapters/datareadiness/coercer"
	"schoolprep/adapters/excel"
	"schoolprep/adapters/rng"
	"schoolprep/adapters/sqlstore"
	"schoolprep/internal"
	"schoolprep/internal/config"
	"schoolprep/internal/dataset"
	"schoolprep/internal/errors"
	"schoolprep/ports"
)

// AnalysisBaseName is the file name, without extension, of the analysis dataset
const AnalysisBaseName = "analysis"

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config
	Logger *internal.Logger

	// Infrastructure
	DB *sqlx.DB

	// Adapters
	Source      ports.SourceReader
	Sinks       []ports.TableSink
	DatasetRepo ports.DatasetRepository

	// Pipeline stages
	Cleaner   *dataset.Cleaner
	Generator *dataset.Generator
	Assembler *dataset.Assembler
	Pipeline  *dataset.Pipeline
}

// New creates a new dependency injection container. The database is opened
// only when DATABASE_URL is set.
func New(ctx context.Context, cfg *config.Config, logger *internal.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		logger = internal.NewLogger(cfg.LogLevel)
	}

	c := &Container{
		Config: cfg,
		Logger: logger,
	}

	if cfg.Database.URL != "" {
		db, err := sqlstore.Open(ctx, cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		c.DB = db
		c.DatasetRepo = sqlstore.NewDatasetRepository(db, cfg.Prepare.Schema)
		logger.Debug("run ledger opened")
	}

	if cfg.Source.Path != "" {
		c.Source = excel.NewDataReader(cfg.Source.Path, cfg.Source.Sheet, logger)
	}

	sinks, err := BuildSinks(cfg.Output.Dir, cfg.Output.Formats)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Sinks = sinks

	if err := c.initPipeline(); err != nil {
		c.Close()
		return nil, err
	}

	logger.Info("container initialized",
		zap.String("input", cfg.Source.Path),
		zap.String("output_dir", cfg.Output.Dir),
		zap.Strings("formats", cfg.Output.Formats),
		zap.Bool("database", c.DB != nil))
	return c, nil
}

func (c *Container) initPipeline() error {
	cfg := c.Config

	c.Cleaner = dataset.NewCleaner(dataset.CleanerConfig{
		Schema:            cfg.Prepare.Schema,
		Coercion:          coercer.DefaultCoercionConfig(),
		EmptyColumnPolicy: dataset.EmptyColumnPolicy(cfg.Prepare.EmptyColumnPolicy),
	}, c.Logger)

	mode, err := dataset.ParseTopRaceMode(cfg.Prepare.TopRaceMode)
	if err != nil {
		return errors.ConfigInvalid(err.Error())
	}
	genConfig := dataset.DefaultGeneratorConfig(cfg.Prepare.Seed)
	genConfig.TopRaceMode = mode
	genConfig.EthnicityOrder = cfg.Prepare.Schema.EthnicityOrder
	c.Generator = dataset.NewGenerator(rng.NewSeededAdapter(), genConfig, c.Logger)

	c.Assembler = dataset.NewAssembler(c.Sinks, c.DatasetRepo, c.Logger)
	c.Pipeline = dataset.NewPipeline(c.Cleaner, c.Generator, c.Assembler, c.Logger)
	return nil
}

// BuildSinks returns one sink per output format, writing analysis.<format> into dir
func BuildSinks(dir string, formats []string) ([]ports.TableSink, error) {
	sinks := make([]ports.TableSink, 0, len(formats))
	for _, format := range formats {
		path := filepath.Join(dir, AnalysisBaseName+"."+format)
		switch format {
		case config.FormatCSV:
			sinks = append(sinks, excel.NewCSVSink(path))
		case config.FormatXLSX:
			sinks = append(sinks, excel.NewXLSXSink(path))
		default:
			return nil, errors.ConfigInvalid(fmt.Sprintf("unsupported output format %q", format))
		}
	}
	return sinks, nil
}

// Close releases the database connection, if any
func (c *Container) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
