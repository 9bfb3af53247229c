package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pbinitiative/zenexec/internal/appcontext"
	"github.com/pbinitiative/zenexec/internal/config"
	"github.com/pbinitiative/zenexec/internal/log"
	"github.com/pbinitiative/zenexec/internal/otel"
	"github.com/pbinitiative/zenexec/internal/rest"
	"github.com/pbinitiative/zenexec/pkg/bpmn"
	"github.com/pbinitiative/zenexec/pkg/bpmn/definition"
	"github.com/pbinitiative/zenexec/pkg/bpmn/exporter"
	"github.com/urfave/cli/v3"
)

func runNode(ctx context.Context, cmd *cli.Command) error {
	conf, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}
	if workers := cmd.Int("workers"); workers > 0 {
		conf.Engine.Workers = int(workers)
	}
	workerId := "worker-" + uuid.NewString()[:8]
	ctx = appcontext.WithWorker(ctx, workerId)

	openTelemetry, err := otel.SetupOtel(conf)
	if err != nil {
		return fmt.Errorf("failed to set up OTEL: %w", err)
	}
	defer openTelemetry.Stop(context.WithoutCancel(ctx))

	n, err := newNode(conf)
	if err != nil {
		return err
	}
	defer n.Close()
	go logEvents(ctx, n)

	if conf.Engine.Definitions != "" {
		if err := deployDirectory(ctx, n.engine, conf.Engine.Definitions); err != nil {
			return err
		}
	}

	pool := bpmn.NewWorkerPool(n.engine, conf.Engine.Workers)
	if err := pool.Start(ctx); err != nil {
		return err
	}
	defer pool.Stop()

	if conf.HttpServer.Addr != "" {
		srv, err := rest.NewServer(n.engine, conf)
		if err != nil {
			return fmt.Errorf("failed to create operator API: %w", err)
		}
		if _, err := srv.Start(); err != nil {
			return fmt.Errorf("failed to start operator API: %w", err)
		}
		defer srv.Stop(context.WithoutCancel(ctx))
	}

	log.Infof(ctx, "%s started with %d workers", workerId, conf.Engine.Workers)
	<-ctx.Done()
	log.Infof(ctx, "Received shutdown signal. Shutting down")
	return nil
}

// deployDirectory deploys every *.yaml file of dir in lexical order.
func deployDirectory(ctx context.Context, engine *bpmn.Engine, dir string) error {
	files, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return err
	}
	for _, file := range files {
		def, err := definition.LoadYAML(file)
		if err != nil {
			return err
		}
		if _, err := engine.DeployDefinition(ctx, def); err != nil {
			return fmt.Errorf("failed to deploy %s: %w", file, err)
		}
	}
	log.Infof(ctx, "deployed %d process definitions from %s", len(files), dir)
	return nil
}

// logEvents follows the engine's event stream until ctx is done.
func logEvents(ctx context.Context, n *node) {
	messages, err := n.events.Subscribe(ctx, exporter.DefaultTopic)
	if err != nil {
		log.Errorf(ctx, "failed to subscribe to engine events: %s", err)
		return
	}
	for msg := range messages {
		log.Debugf(ctx, "engine event %s: %s", msg.Metadata.Get(exporter.EventTypeMetadataKey), msg.Payload)
		msg.Ack()
	}
}

func startInstance(ctx context.Context, cmd *cli.Command) error {
	processId := cmd.Args().First()
	if processId == "" {
		return errors.New("missing process id")
	}
	var variables map[string]any
	if err := json.Unmarshal([]byte(cmd.String("variables")), &variables); err != nil {
		return fmt.Errorf("variables are not a JSON object: %w", err)
	}
	conf, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}
	if conf.Persistence.Type == config.PersistenceMemory || conf.Queue.Type == config.QueueMemory {
		return errors.New("start needs sqlite or redis backed persistence and queue shared with running nodes")
	}
	n, err := newNode(conf)
	if err != nil {
		return err
	}
	defer n.Close()
	pi, err := n.engine.StartProcessById(ctx, processId, variables)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "%d\n", pi.Key)
	return nil
}

func validateDefinitions(ctx context.Context, cmd *cli.Command) error {
	if cmd.NArg() == 0 {
		return errors.New("no definition files given")
	}
	var errJoin error
	for _, file := range cmd.Args().Slice() {
		def, err := definition.LoadYAML(file)
		if err != nil {
			errJoin = errors.Join(errJoin, err)
			continue
		}
		if len(def.StartNodes()) == 0 {
			errJoin = errors.Join(errJoin, fmt.Errorf("%s: process %s has no start event", file, def.Id))
			continue
		}
		fmt.Fprintf(os.Stdout, "%s: %s ok (%d flow nodes, %d transitions)\n", file, def.Id, len(def.FlowNodes), len(def.Transitions))
	}
	return errJoin
}
