package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	// Difficulty 0 (beginner) .. 4 (superhuman).
	Difficulty int `yaml:"difficulty"`

	LineRetries       int `yaml:"line_retries"`
	NearFriendRetries int `yaml:"near_friend_retries"`

	FacingDistance            int `yaml:"facing_distance"`
	FacingChancePerDifficulty int `yaml:"facing_chance_per_difficulty"`

	// AlienItemLevels[month] has 10 entries; one is drawn uniformly per hostile.
	AlienItemLevels [][]int `yaml:"alien_item_levels"`
}

func Defaults() Tuning {
	return Tuning{
		Difficulty:                0,
		LineRetries:               20,
		NearFriendRetries:         100,
		FacingDistance:            20,
		FacingChancePerDifficulty: 20,
		AlienItemLevels: [][]int{
			{0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
			{0, 0, 0, 0, 0, 0, 0, 0, 0, 1},
			{0, 0, 0, 0, 0, 0, 0, 0, 1, 1},
			{0, 0, 0, 0, 0, 0, 0, 1, 1, 1},
			{0, 0, 0, 0, 0, 0, 1, 1, 1, 2},
			{0, 0, 0, 0, 0, 1, 1, 1, 2, 2},
			{0, 0, 0, 0, 1, 1, 1, 2, 2, 2},
		},
	}
}

// Load reads tuning.yaml on top of Defaults.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.Difficulty < 0 || t.Difficulty > 4 {
		return fmt.Errorf("difficulty %d out of range 0..4", t.Difficulty)
	}
	if t.LineRetries <= 0 {
		return fmt.Errorf("line_retries must be positive")
	}
	if t.NearFriendRetries <= 0 {
		return fmt.Errorf("near_friend_retries must be positive")
	}
	for i, row := range t.AlienItemLevels {
		if len(row) != 10 {
			return fmt.Errorf("alien_item_levels[%d]: want 10 entries, got %d", i, len(row))
		}
	}
	return nil
}

// ItemLevelRow returns the level table row for an elapsed month, clamped to the last row.
func (t Tuning) ItemLevelRow(month int) []int {
	if len(t.AlienItemLevels) == 0 {
		return make([]int, 10)
	}
	if month < 0 {
		month = 0
	}
	if month >= len(t.AlienItemLevels) {
		month = len(t.AlienItemLevels) - 1
	}
	return t.AlienItemLevels[month]
}
