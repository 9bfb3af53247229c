// Copyright 2021-present ZenBPM Contributors
// (based on git commit history).
//
// ZenBPM project is available under two licenses:
//  - SPDX-License-Identifier: AGPL-3.0-or-later (See LICENSE-AGPL.md)
//  - Enterprise License (See LICENSE-ENTERPRISE.md)

package bpmn

import (
	"fmt"
	"testing"

	"github.com/pbinitiative/zenexec/pkg/bpmn/definition"
	"github.com/pbinitiative/zenexec/pkg/bpmn/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exclusiveSplit(toBig string, toSmall string, withDefault bool) string {
	defaultTransition := ""
	if withDefault {
		defaultTransition = "    defaultTransition: to-small\n"
	}
	return fmt.Sprintf(`id: feel-split
flowNodes:
  - id: start
    kind: EVENT
    eventType: START
  - id: split
    kind: GATEWAY
    gatewayType: EXCLUSIVE
%s  - id: big
    kind: ACTIVITY
    taskType: record
  - id: small
    kind: ACTIVITY
    taskType: record
  - id: end
    kind: EVENT
    eventType: END
transitions:
  - id: t1
    sourceRef: start
    targetRef: split
  - id: to-big
    sourceRef: split
    targetRef: big
    condition: %q
  - id: to-small
    sourceRef: split
    targetRef: small
    condition: %q
  - id: t2
    sourceRef: big
    targetRef: end
  - id: t3
    sourceRef: small
    targetRef: end
`, defaultTransition, toBig, toSmall)
}

func deployYAML(t *testing.T, engine *Engine, data string) *runtime.ProcessDefinition {
	t.Helper()
	def, err := definition.ParseYAML([]byte(data))
	require.NoError(t, err)
	deployed, err := engine.DeployDefinition(t.Context(), def)
	require.NoError(t, err)
	return deployed
}

func Test_exclusive_gateway_evaluates_feel_conditions(t *testing.T) {
	tests := []struct {
		amount   int
		expected string
	}{
		{amount: 150, expected: "big"},
		{amount: 100, expected: "small"},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("amount %d", test.amount), func(t *testing.T) {
			// setup
			bpmnEngine := newTestEngine(t)
			process := deployYAML(t, bpmnEngine, exclusiveSplit("= amount > 100", "= amount <= 100", false))
			cp := CallPath{}
			bpmnEngine.NewTaskHandler().Type("record").Handler(cp.TaskHandler)

			// when
			pi := startAndDrain(t, bpmnEngine, process, map[string]any{"amount": test.amount})

			// then
			assert.Equal(t, test.expected, cp.String())
			assert.Equal(t, runtime.ProcessInstanceCompleted, pi.State)
		})
	}
}

func Test_exclusive_gateway_takes_first_matching_flow_in_declaration_order(t *testing.T) {
	// setup
	bpmnEngine := newTestEngine(t)
	process := deployYAML(t, bpmnEngine, exclusiveSplit("= amount > 0", "= amount <= 100", false))
	cp := CallPath{}
	bpmnEngine.NewTaskHandler().Type("record").Handler(cp.TaskHandler)

	// when
	startAndDrain(t, bpmnEngine, process, map[string]any{"amount": 50})

	// then
	assert.Equal(t, "big", cp.String())
}

func Test_exclusive_gateway_without_match_nor_default_raises_incident(t *testing.T) {
	// setup
	bpmnEngine := newTestEngine(t)
	process := deployYAML(t, bpmnEngine, exclusiveSplit("= amount > 1000", "= amount < 0", false))
	cp := CallPath{}
	bpmnEngine.NewTaskHandler().Type("record").Handler(cp.TaskHandler)

	// when
	pi := startAndDrain(t, bpmnEngine, process, map[string]any{"amount": 50})

	// then
	assert.Equal(t, "", cp.String())
	assert.Equal(t, runtime.ProcessInstanceActive, pi.State)
	incidents, err := bpmnEngine.FindIncidents(t.Context(), pi.Key)
	assert.NoError(t, err)
	require.Len(t, incidents, 1)
	assert.Equal(t, runtime.IncidentExpressionEvaluation, incidents[0].Kind)
	assert.Contains(t, incidents[0].Message, "No default flow")
}

func Test_exclusive_gateway_falls_back_to_default_flow(t *testing.T) {
	// setup
	bpmnEngine := newTestEngine(t)
	process := deployYAML(t, bpmnEngine, exclusiveSplit("= amount > 1000", "= amount < 0", true))
	cp := CallPath{}
	bpmnEngine.NewTaskHandler().Type("record").Handler(cp.TaskHandler)

	// when
	pi := startAndDrain(t, bpmnEngine, process, map[string]any{"amount": 50})

	// then
	assert.Equal(t, "small", cp.String())
	assert.Equal(t, runtime.ProcessInstanceCompleted, pi.State)
}

func Test_condition_sees_variables_set_by_previous_task(t *testing.T) {
	// setup
	bpmnEngine := newTestEngine(t)
	process := deployYAML(t, bpmnEngine, exclusiveSplit("js: amount > 100", "js: amount <= 100", false))
	cp := CallPath{}
	bpmnEngine.NewTaskHandler().Type("record").Handler(cp.TaskHandler)

	// given
	pi, err := bpmnEngine.StartProcess(t.Context(), process.Key, map[string]any{"amount": 10})
	require.NoError(t, err)
	require.NoError(t, bpmnEngine.SetVariables(t.Context(), pi.Key, map[string]any{"amount": 500}))

	// when
	drain(t, bpmnEngine)

	// then
	assert.Equal(t, "big", cp.String())
}
