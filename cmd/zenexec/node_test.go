package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pbinitiative/zenexec/internal/config"
	"github.com/pbinitiative/zenexec/pkg/bpmn"
	"github.com/pbinitiative/zenexec/pkg/bpmn/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"
)

func testConfig() config.Config {
	return config.Config{
		Name:   "zenexec-test",
		NodeId: "node-1",
		Engine: config.Engine{
			Workers:             1,
			MaxAttempts:         3,
			RetryDelay:          "PT1S",
			DefinitionCacheSize: 16,
		},
		Persistence: config.Persistence{Type: config.PersistenceMemory},
		Queue:       config.Queue{Type: config.QueueMemory},
		Lock:        config.Lock{Type: config.LockLocal, TTL: "PT30S"},
	}
}

func TestNodeDeploysDirectoryAndRunsInstances(t *testing.T) {
	// setup
	n, err := newNode(testConfig())
	require.NoError(t, err)
	defer n.Close()

	// when
	require.NoError(t, deployDirectory(t.Context(), n.engine, "../../pkg/bpmn/test-cases"))

	// then
	n.engine.NewTaskHandler().Type("simple").Handler(func(job bpmn.ActivatedJob) { job.Complete() })
	pi, err := n.engine.StartProcessById(t.Context(), "simple-task", nil)
	require.NoError(t, err)
	pool := bpmn.NewWorkerPool(n.engine, 1)
	require.NoError(t, pool.Start(t.Context()))
	defer pool.Stop()
	assert.Eventually(t, func() bool {
		res, err := n.engine.FindProcessInstance(context.Background(), pi.Key)
		return err == nil && res.State == runtime.ProcessInstanceCompleted
	}, 5*time.Second, 10*time.Millisecond)
}

func TestValidateDefinitions(t *testing.T) {
	dir := t.TempDir()
	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("id: broken\nflowNodes:\n  - id: start\n    kind: EVENT\n    eventType: START\ntransitions:\n  - id: t1\n    sourceRef: start\n    targetRef: nowhere\n"), 0o600))

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "valid", args: []string{"../../pkg/bpmn/test-cases/fork_join.yaml"}},
		{name: "dangling transition", args: []string{broken}, wantErr: "nowhere"},
		{name: "no files", wantErr: "no definition files given"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cmd := &cli.Command{Name: "validate", Action: validateDefinitions}
			err := cmd.Run(t.Context(), append([]string{"validate"}, test.args...))
			if test.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, test.wantErr)
		})
	}
}
