package bpmn

import (
	"context"
	"errors"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/pbinitiative/zenexec/pkg/bpmn/runtime"
	"github.com/pbinitiative/zenexec/pkg/storage"
)

// CachedDefinitions keeps indexed process definitions in front of the storage.
// Definitions are immutable once deployed so entries never go stale.
type CachedDefinitions struct {
	persistence storage.ProcessDefinitionStorageReader
	cache       *expirable.LRU[int64, *runtime.ProcessDefinition]
}

func NewCachedDefinitions(persistence storage.ProcessDefinitionStorageReader, size int) *CachedDefinitions {
	return &CachedDefinitions{
		persistence: persistence,
		cache:       expirable.NewLRU[int64, *runtime.ProcessDefinition](size, nil, 0),
	}
}

func (c *CachedDefinitions) Get(ctx context.Context, processDefinitionKey int64) (*runtime.ProcessDefinition, error) {
	if def, ok := c.cache.Get(processDefinitionKey); ok {
		return def, nil
	}
	def, err := c.persistence.FindProcessDefinitionByKey(ctx, processDefinitionKey)
	if err != nil {
		return nil, errors.Join(newEngineErrorf("failed to load process definition with key: %d", processDefinitionKey), err)
	}
	c.cache.Add(processDefinitionKey, def)
	return def, nil
}

// Latest always asks the storage, a newer version may have been deployed by another engine.
func (c *CachedDefinitions) Latest(ctx context.Context, processDefinitionId string) (*runtime.ProcessDefinition, error) {
	def, err := c.persistence.FindLatestProcessDefinitionById(ctx, processDefinitionId)
	if err != nil {
		return nil, errors.Join(newEngineErrorf("no process with id=%s was found", processDefinitionId), err)
	}
	if cached, ok := c.cache.Get(def.Key); ok {
		return cached, nil
	}
	c.cache.Add(def.Key, def)
	return def, nil
}

func (c *CachedDefinitions) Add(def *runtime.ProcessDefinition) {
	c.cache.Add(def.Key, def)
}

func (c *CachedDefinitions) Len() int {
	return c.cache.Len()
}
