package worker

import (
	"encoding/json"
	"fmt"

	"github.com/notifyhub/pipeline/internal/domain"
)

func marshalWorkUnit(unit domain.WorkUnit) ([]byte, error) {
	body, err := json.Marshal(unit)
	if err != nil {
		return nil, fmt.Errorf("marshal work unit: %w", err)
	}
	return body, nil
}
