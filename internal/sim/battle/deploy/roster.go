package deploy

import (
	"encoding/json"
	"fmt"
	"os"

	"skirmish.dev/internal/sim/ruleset"
)

// ReadRoster loads a roster JSON file.
func ReadRoster(path string) (Roster, error) {
	var r Roster
	raw, err := os.ReadFile(path)
	if err != nil {
		return r, err
	}
	if err := json.Unmarshal(raw, &r); err != nil {
		return r, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

// Check reports roster entries the ruleset does not know. Unknown layout items
// are not errors; equipment skips them.
func (r Roster) Check(rules *ruleset.Ruleset) error {
	seen := map[string]bool{}
	for _, s := range r.Soldiers {
		if s.ID == "" {
			return fmt.Errorf("roster: soldier with empty id")
		}
		if seen[s.ID] {
			return fmt.Errorf("roster: duplicate soldier id %s", s.ID)
		}
		seen[s.ID] = true
		if rules.Units[s.Type] == nil {
			return fmt.Errorf("roster: soldier %s has unknown unit type %s", s.ID, s.Type)
		}
		if s.Craft != "" && rules.Transports[s.Craft] == nil {
			return fmt.Errorf("roster: soldier %s assigned to unknown craft %s", s.ID, s.Craft)
		}
	}
	for _, v := range r.Vehicles {
		it := rules.Items[v]
		if it == nil || it.VehicleUnit == "" {
			return fmt.Errorf("roster: %s is not a vehicle item", v)
		}
	}
	for id, n := range r.Items {
		if n < 0 {
			return fmt.Errorf("roster: negative count %d for %s", n, id)
		}
	}
	return nil
}
