package bpmn

import "github.com/pbinitiative/zenexec/pkg/bpmn/runtime"

// TokenPosition is where a live token currently is. InFlight tokens were sent by
// FlowNodeDefinitionId and have not arrived anywhere yet. An empty id means unknown.
type TokenPosition struct {
	FlowNodeDefinitionId string
	InFlight             bool
}

// ReachabilityOracle tells an inclusive join which of its incoming transitions may
// still deliver a token.
type ReachabilityOracle interface {
	// PendingBranches returns the incoming transitions of gatewayId that have not arrived
	// yet but can still be reached from one of positions. decided is false when the answer
	// depends on tokens whose position is not settled.
	PendingBranches(def *runtime.ProcessDefinition, gatewayId string, arrived runtime.HitBys, positions []TokenPosition) (pending []string, decided bool)
}

// GraphReachabilityOracle answers from the static graph of the definition.
type GraphReachabilityOracle struct{}

var _ ReachabilityOracle = GraphReachabilityOracle{}

func (GraphReachabilityOracle) PendingBranches(def *runtime.ProcessDefinition, gatewayId string, arrived runtime.HitBys, positions []TokenPosition) ([]string, bool) {
	decided := true
	var pending []string
	for _, id := range def.Incoming(gatewayId) {
		if arrived.Contains(id) {
			continue
		}
		transition, ok := def.Transition(id)
		if !ok {
			continue
		}
		for _, p := range positions {
			if p.FlowNodeDefinitionId == "" || def.CanReach(p.FlowNodeDefinitionId, transition.SourceRef) {
				pending = append(pending, id)
				if p.InFlight || p.FlowNodeDefinitionId == "" {
					decided = false
				}
				break
			}
		}
	}
	return pending, decided
}
