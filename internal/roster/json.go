package roster

import (
	"encoding/json"
	"fmt"
	"os"

	"shiftcal/internal/model"
)

// LoadJSON reads a JSON array of shifts from path. Missing IDs are left
// empty; type and status are normalized.
func LoadJSON(path string) ([]model.Shift, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var shifts []model.Shift
	if err := json.Unmarshal(data, &shifts); err != nil {
		return nil, fmt.Errorf("roster: decode %s: %w", path, err)
	}
	for i := range shifts {
		shifts[i].Type = model.ParseShiftType(string(shifts[i].Type))
		shifts[i].Status = model.ParseShiftStatus(string(shifts[i].Status))
	}
	return shifts, nil
}
