package bpmn

// generateKey returns a new cluster unique key. Keys come from the storage so
// that its snowflake node id is encoded in them.
func (engine *Engine) generateKey() int64 {
	return engine.persistence.GenerateId()
}
