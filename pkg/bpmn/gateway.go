package bpmn

import (
	"context"
	"errors"
	"fmt"

	"github.com/pbinitiative/zenexec/pkg/bpmn/runtime"
)

// GatewayMerger joins the tokens arriving at a gateway. Every call runs under the
// process instance lock, which guards the hitBys accumulators together with the tokens.
//
//   - PARALLEL fires once every incoming transition arrived.
//   - INCLUSIVE fires once no missing incoming transition can still be reached.
//   - EXCLUSIVE fires on the first arrival and discards the tokens of the
//     branches that were still pending at that moment.
type GatewayMerger struct {
	engine *Engine
}

// Arrive records the token arriving along transitionId and fires the gateway when it is satisfied.
// ErrUnreachableGatewayState means the gateway keeps waiting.
func (m *GatewayMerger) Arrive(ctx context.Context, batch *EngineBatch, def *runtime.ProcessDefinition, nodeDef *runtime.FlowNodeDefinition, token runtime.Token, transitionId string) (*runtime.FlowNodeInstance, error) {
	pi, err := batch.lockProcess(ctx, token.ProcessInstanceKey)
	if err != nil {
		return nil, err
	}
	instances, err := batch.flowNodes(ctx, pi.Key, func(n runtime.FlowNodeInstance) bool {
		return n.Kind == runtime.FlowNodeKindGateway && n.FlowNodeDefinitionId == nodeDef.Id
	})
	if err != nil {
		return nil, err
	}
	if nodeDef.GatewayType == runtime.GatewayTypeExclusive {
		return m.arriveExclusive(ctx, batch, pi, def, nodeDef, instances, token, transitionId)
	}

	var gw *runtime.FlowNodeInstance
	for _, n := range instances {
		if !n.Terminal && !n.Gateway.HitBys.Contains(transitionId) {
			gw = n
			break
		}
	}
	if gw == nil {
		gw, err = m.engine.createFlowNode(ctx, batch, pi, def, nodeDef, nil, runtime.FlowNodeKindGateway, 0)
		if err != nil {
			return nil, err
		}
	}
	gw.Gateway.HitBys[transitionId] = struct{}{}
	gw.Park()
	batch.saveNode(gw)
	remaining, err := m.engine.tokens.Retire(ctx, batch, token)
	if err != nil {
		return gw, err
	}

	satisfied, err := m.satisfied(ctx, batch, gw)
	if err != nil {
		return gw, err
	}
	if satisfied {
		return gw, m.fire(ctx, batch, pi, gw)
	}
	if remaining == 0 {
		return gw, m.engine.checkCompletion(ctx, batch, pi)
	}
	return gw, nil
}

func (m *GatewayMerger) arriveExclusive(ctx context.Context, batch *EngineBatch, pi *runtime.ProcessInstance, def *runtime.ProcessDefinition, nodeDef *runtime.FlowNodeDefinition, instances []*runtime.FlowNodeInstance, token runtime.Token, transitionId string) (*runtime.FlowNodeInstance, error) {
	for _, n := range instances {
		if !n.Gateway.Pending.Contains(transitionId) {
			continue
		}
		delete(n.Gateway.Pending, transitionId)
		batch.saveNode(n)
		m.engine.logger.Debug("token discarded by exclusive merge", "gateway", nodeDef.Id, "transition", transitionId, "processInstance", pi.Key)
		remaining, err := m.engine.tokens.Retire(ctx, batch, token)
		if err != nil {
			return n, err
		}
		if remaining == 0 {
			return n, m.engine.checkCompletion(ctx, batch, pi)
		}
		return n, nil
	}

	gw, err := m.engine.createFlowNode(ctx, batch, pi, def, nodeDef, nil, runtime.FlowNodeKindGateway, token.Key)
	if err != nil {
		return nil, err
	}
	gw.Gateway.HitBys[transitionId] = struct{}{}
	if _, err := m.engine.tokens.Move(ctx, batch, token, gw.Key); err != nil {
		return gw, err
	}
	if err := m.engine.transitionNode(ctx, batch, gw, runtime.EventExecute); err != nil {
		return gw, err
	}
	if err := m.engine.transitionNode(ctx, batch, gw, runtime.EventComplete); err != nil {
		return gw, err
	}
	positions, err := m.positions(ctx, batch, gw)
	if err != nil {
		return gw, err
	}
	pending, _ := m.engine.oracle.PendingBranches(def, nodeDef.Id, gw.Gateway.HitBys, positions)
	gw.Gateway.Pending = runtime.NewHitBys(pending...)
	batch.saveNode(gw)
	return gw, m.engine.leaveFlowNode(ctx, batch, gw)
}

// satisfied decides whether a parked join may fire now.
func (m *GatewayMerger) satisfied(ctx context.Context, batch *EngineBatch, gw *runtime.FlowNodeInstance) (bool, error) {
	def, err := batch.definition(ctx, gw.ProcessDefinitionKey())
	if err != nil {
		return false, err
	}
	switch gw.Gateway.GatewayType {
	case runtime.GatewayTypeParallel:
		return gw.Gateway.HitBys.ContainsAll(def.Incoming(gw.FlowNodeDefinitionId)), nil
	case runtime.GatewayTypeInclusive:
		if gw.Gateway.HitBys.Len() == 0 {
			return false, nil
		}
		positions, err := m.positions(ctx, batch, gw)
		if err != nil {
			return false, err
		}
		pending, decided := m.engine.oracle.PendingBranches(def, gw.FlowNodeDefinitionId, gw.Gateway.HitBys, positions)
		if len(pending) == 0 {
			return true, nil
		}
		if !decided {
			return false, fmt.Errorf("%w: %s still waits for %v", ErrUnreachableGatewayState, gw.FlowNodeDefinitionId, pending)
		}
		return false, nil
	}
	return false, newEngineErrorf("gateway %s of type %s does not join", gw.FlowNodeDefinitionId, gw.Gateway.GatewayType)
}

// positions lists where the other live tokens of the process instance are. Joins
// that are parked hold the tokens they merged, so they count as positions too.
func (m *GatewayMerger) positions(ctx context.Context, batch *EngineBatch, gw *runtime.FlowNodeInstance) ([]TokenPosition, error) {
	set, err := batch.tokenSet(ctx, gw.ProcessInstanceKey())
	if err != nil {
		return nil, err
	}
	var positions []TokenPosition
	for _, key := range sortedKeys(set.Live) {
		token := set.Live[key]
		if token.Holder == 0 {
			positions = append(positions, TokenPosition{InFlight: true})
			continue
		}
		holder, err := batch.node(ctx, token.Holder)
		if err != nil {
			return nil, fmt.Errorf("failed to load holder %d of token %d: %w", token.Holder, token.Key, err)
		}
		if holder.FlowNodeDefinitionId == gw.FlowNodeDefinitionId {
			continue
		}
		positions = append(positions, TokenPosition{FlowNodeDefinitionId: holder.FlowNodeDefinitionId, InFlight: holder.Terminal})
	}
	parked, err := batch.flowNodes(ctx, gw.ProcessInstanceKey(), func(n runtime.FlowNodeInstance) bool {
		return isParkedGateway(n) && n.FlowNodeDefinitionId != gw.FlowNodeDefinitionId
	})
	if err != nil {
		return nil, err
	}
	for _, p := range parked {
		positions = append(positions, TokenPosition{FlowNodeDefinitionId: p.FlowNodeDefinitionId})
	}
	return positions, nil
}

// fire completes the join and sends one new token along its outgoing transitions.
func (m *GatewayMerger) fire(ctx context.Context, batch *EngineBatch, pi *runtime.ProcessInstance, gw *runtime.FlowNodeInstance) error {
	if err := m.engine.transitionNode(ctx, batch, gw, runtime.EventExecute); err != nil {
		return err
	}
	if err := m.engine.transitionNode(ctx, batch, gw, runtime.EventComplete); err != nil {
		return err
	}
	token, err := m.engine.tokens.Spawn(ctx, batch, pi.Key, runtime.Token{})
	if err != nil {
		return err
	}
	token, err = m.engine.tokens.Move(ctx, batch, token, gw.Key)
	if err != nil {
		return err
	}
	gw.TokenKey = token.Key
	gw.TokenCount = gw.Gateway.HitBys.Len()
	gw.Gateway.HitBys = runtime.NewHitBys()
	batch.saveNode(gw)
	return m.engine.leaveFlowNode(ctx, batch, gw)
}

// reevaluate lets a parked inclusive join decide again after tokens moved elsewhere.
func (m *GatewayMerger) reevaluate(ctx context.Context, batch *EngineBatch) (runtime.FlowNodeState, error) {
	item := batch.item
	pi, err := batch.lockProcess(ctx, item.ProcessInstanceKey)
	if err != nil {
		return runtime.FlowNodeStateCreated, err
	}
	gw, err := batch.node(ctx, item.FlowNodeInstanceKey)
	if err != nil {
		return runtime.FlowNodeStateCreated, errors.Join(newEngineErrorf("failed to find gateway instance with key: %d", item.FlowNodeInstanceKey), err)
	}
	if !isParkedGateway(*gw) {
		return gw.State, nil
	}
	if pi.StateCategory.IsExiting() {
		return gw.State, m.engine.propagator.finalize(ctx, batch, pi)
	}
	satisfied, err := m.satisfied(ctx, batch, gw)
	if errors.Is(err, ErrUnreachableGatewayState) {
		return gw.State, nil
	}
	if err != nil {
		return gw.State, err
	}
	if satisfied {
		err = m.fire(ctx, batch, pi, gw)
		return gw.State, err
	}
	return gw.State, m.engine.checkCompletion(ctx, batch, pi)
}
