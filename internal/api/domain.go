package api

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/JaimeStill/folio/internal/artifacts"
	"github.com/JaimeStill/folio/internal/checkpoints"
	"github.com/JaimeStill/folio/internal/stages"
	"github.com/JaimeStill/folio/internal/workflow"
	"github.com/JaimeStill/folio/pkg/mirror"
)

// Domain holds all domain systems that comprise the API.
type Domain struct {
	Engine      *workflow.Engine
	Artifacts   artifacts.System
	Checkpoints workflow.CheckpointStore
}

// NewDomain opens the content and checkpoint stores, pulling their replicas,
// and wires the stage executors into an engine. opts are applied after the
// configured step limit.
func NewDomain(ctx context.Context, runtime *Runtime, opts ...workflow.Option) (*Domain, error) {
	cfg := runtime.Config

	var artifactOpts []artifacts.Option
	if runtime.Generator.Embeds() {
		artifactOpts = append(artifactOpts, artifacts.WithEmbedder(runtime.Generator))
	}

	contentMirror := mirror.New(
		runtime.Storage,
		cfg.Content.Dir,
		cfg.Content.Prefix,
		cfg.Storage.Concurrency,
		runtime.Logger,
	)
	content, err := artifacts.Open(ctx, &cfg.Content, contentMirror, runtime.Pagination, runtime.Logger, artifactOpts...)
	if err != nil {
		return nil, fmt.Errorf("open content store: %w", err)
	}

	store, err := checkpoints.Open(ctx, &cfg.Checkpoints, checkpoints.Deps{
		Replica:     runtime.Storage,
		Database:    runtime.Database,
		Concurrency: cfg.Storage.Concurrency,
	}, runtime.Logger)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint store: %w", err)
	}

	prompts, err := stages.LoadPrompts(cfg.Stages.PromptsFile)
	if err != nil {
		return nil, err
	}

	executors := stages.New(&stages.Runtime{
		Generator: runtime.Generator,
		Artifacts: content,
		Prompts:   prompts,
		Config:    cfg.Stages,
		Timeout:   cfg.Generation.TimeoutDuration(),
		Logger:    runtime.Logger,
	})

	graph, err := workflow.NewGraph(executors, cfg.Stages.MaxIterations)
	if err != nil {
		return nil, err
	}

	engineOpts := append([]workflow.Option{workflow.WithStepLimit(cfg.Workflow.StepLimit)}, opts...)

	return &Domain{
		Engine:      workflow.New(graph, store, runtime.Logger, engineOpts...),
		Artifacts:   content,
		Checkpoints: store,
	}, nil
}

// Close releases stores that hold open handles.
func (d *Domain) Close() error {
	var errs []error
	if c, ok := d.Checkpoints.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
