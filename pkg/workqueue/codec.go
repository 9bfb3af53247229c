package workqueue

import (
	"encoding/json"
	"fmt"

	"github.com/pbinitiative/zenexec/pkg/bpmn/runtime"
)

// EncodeItem serializes a work item for the persistent queues.
func EncodeItem(item runtime.WorkItem) ([]byte, error) {
	data, err := json.Marshal(item)
	if err != nil {
		return nil, fmt.Errorf("failed to encode work item %s: %w", item.Id, err)
	}
	return data, nil
}

func DecodeItem(data []byte) (runtime.WorkItem, error) {
	var item runtime.WorkItem
	if err := json.Unmarshal(data, &item); err != nil {
		return item, fmt.Errorf("failed to decode work item: %w", err)
	}
	return item, nil
}
