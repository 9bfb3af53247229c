package runtime

import "maps"

// Token marks one unit of concurrent control flow inside a process instance.
type Token struct {
	Key                int64 `json:"key"`
	ProcessInstanceKey int64 `json:"pik"`
	ParentKey          int64 `json:"pk,omitempty"`
	// Holder is the flow node instance the token sits in, or the one that sent it
	// while the delivering work item is in flight.
	Holder int64 `json:"h,omitempty"`
}

// TokenSet is the versioned record of all live tokens of a process instance.
type TokenSet struct {
	ProcessInstanceKey int64           `json:"pik"`
	Live               map[int64]Token `json:"live"`
	Version            int64           `json:"ver"`
}

func NewTokenSet(processInstanceKey int64) TokenSet {
	return TokenSet{
		ProcessInstanceKey: processInstanceKey,
		Live:               map[int64]Token{},
	}
}

func (s TokenSet) Count() int {
	return len(s.Live)
}

func (s TokenSet) Contains(key int64) bool {
	_, ok := s.Live[key]
	return ok
}

func (s TokenSet) Clone() TokenSet {
	s.Live = maps.Clone(s.Live)
	if s.Live == nil {
		s.Live = map[int64]Token{}
	}
	return s
}
