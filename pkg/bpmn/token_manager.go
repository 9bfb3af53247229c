package bpmn

import (
	"context"
	"errors"
	"fmt"

	"github.com/pbinitiative/zenexec/pkg/bpmn/runtime"
	"github.com/pbinitiative/zenexec/pkg/storage"
)

// TokenManager counts the independent execution paths of a process instance.
//
// All tokens of one process instance live in a single versioned TokenSet. Every
// mutation goes through an EngineBatch holding the process lock and the commit
// compares the set version, so two branches retiring their tokens concurrently
// cannot both observe themselves as the last one.
type TokenManager struct {
	engine *Engine
}

// Spawn adds a token to the process instance. The new token starts where its parent is.
func (m *TokenManager) Spawn(ctx context.Context, batch *EngineBatch, processInstanceKey int64, parent runtime.Token) (runtime.Token, error) {
	set, err := batch.tokenSet(ctx, processInstanceKey)
	if err != nil {
		return runtime.Token{}, err
	}
	token := runtime.Token{
		Key:                m.engine.generateKey(),
		ProcessInstanceKey: processInstanceKey,
		ParentKey:          parent.Key,
		Holder:             parent.Holder,
	}
	set.Live[token.Key] = token
	batch.saveTokenSet(set)
	batch.AddPostFlushAction(func() {
		m.engine.metrics.TokensActive.Add(context.WithoutCancel(ctx), 1)
	})
	return token, nil
}

// Retire removes a live token and returns how many remain. Retiring a token that
// is not live fails, the count can never drop below zero.
func (m *TokenManager) Retire(ctx context.Context, batch *EngineBatch, token runtime.Token) (int, error) {
	set, err := batch.tokenSet(ctx, token.ProcessInstanceKey)
	if err != nil {
		return 0, err
	}
	if !set.Contains(token.Key) {
		return set.Count(), fmt.Errorf("%w: token %d of process instance %d", ErrTokenNotLive, token.Key, token.ProcessInstanceKey)
	}
	delete(set.Live, token.Key)
	batch.saveTokenSet(set)
	batch.AddPostFlushAction(func() {
		m.engine.metrics.TokensActive.Add(context.WithoutCancel(ctx), -1)
	})
	return set.Count(), nil
}

// Move records that the token now sits in, or was last sent by, the given flow node.
func (m *TokenManager) Move(ctx context.Context, batch *EngineBatch, token runtime.Token, holder int64) (runtime.Token, error) {
	set, err := batch.tokenSet(ctx, token.ProcessInstanceKey)
	if err != nil {
		return runtime.Token{}, err
	}
	live, ok := set.Live[token.Key]
	if !ok {
		return runtime.Token{}, fmt.Errorf("%w: token %d of process instance %d", ErrTokenNotLive, token.Key, token.ProcessInstanceKey)
	}
	live.Holder = holder
	set.Live[token.Key] = live
	batch.saveTokenSet(set)
	return live, nil
}

// Token looks up a live token inside the batch.
func (m *TokenManager) Token(ctx context.Context, batch *EngineBatch, processInstanceKey int64, tokenKey int64) (runtime.Token, bool, error) {
	set, err := batch.tokenSet(ctx, processInstanceKey)
	if err != nil {
		return runtime.Token{}, false, err
	}
	token, ok := set.Live[tokenKey]
	return token, ok, nil
}

// ActiveCount returns the committed number of live tokens of a process instance.
func (m *TokenManager) ActiveCount(ctx context.Context, processInstanceKey int64) (int, error) {
	set, err := m.engine.persistence.FindTokenSet(ctx, processInstanceKey)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, fmt.Errorf("process instance %d has no tokens: %w", processInstanceKey, err)
	}
	if err != nil {
		return 0, err
	}
	return set.Count(), nil
}
