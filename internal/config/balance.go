package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed balance.yaml
var defaultBalanceYAML []byte

// Balance is the gameplay table: what can be built, what can spawn, and how hard each wave is.
type Balance struct {
	Version    int                  `yaml:"version" json:"version"`
	Towers     map[string]TowerSpec `yaml:"towers" json:"towers"`
	Enemies    map[string]EnemySpec `yaml:"enemies" json:"enemies"`
	Difficulty []float64            `yaml:"difficulty" json:"difficulty"`
}

// TowerSpec describes a buildable tower type at level 1.
type TowerSpec struct {
	Cost         int     `yaml:"cost" json:"cost"`
	Damage       int     `yaml:"damage" json:"damage"`
	Range        float64 `yaml:"range" json:"range"`
	FireRate     float64 `yaml:"fire_rate" json:"fireRate"` // shots per second, 0 = never fires
	MaxHealth    float64 `yaml:"max_health" json:"maxHealth"`
	MaxAmmo      int     `yaml:"max_ammo" json:"maxAmmo"`
	AmmoCost     int     `yaml:"ammo_cost" json:"ammoCost"`
	SplashRadius float64 `yaml:"splash_radius" json:"splashRadius,omitempty"`
	SlowAmount   float64 `yaml:"slow_amount" json:"slowAmount,omitempty"` // speed factor applied by a hit
	SlowDuration float64 `yaml:"slow_duration" json:"slowDuration,omitempty"`
	Income       int     `yaml:"income" json:"income,omitempty"`
	Maintenance  int     `yaml:"maintenance" json:"maintenance,omitempty"`
}

// EnemySpec describes an enemy type and when it starts appearing.
type EnemySpec struct {
	Health      int     `yaml:"health" json:"health"`
	Speed       float64 `yaml:"speed" json:"speed"` // cells per second
	CreditValue int     `yaml:"credit_value" json:"creditValue"`
	ContactDPS  float64 `yaml:"contact_dps" json:"contactDps"`
	UnlockWave  int     `yaml:"unlock_wave" json:"unlockWave"`
	Every       int     `yaml:"every" json:"every,omitempty"` // >0: only on waves divisible by Every
	Share       float64 `yaml:"share" json:"share"`
	PerWave     float64 `yaml:"per_wave" json:"perWave"`
}

// DefaultBalance returns the embedded balance table.
func DefaultBalance() Balance {
	b, err := ParseBalance(defaultBalanceYAML)
	if err != nil {
		panic(fmt.Sprintf("config: embedded balance.yaml is invalid: %v", err))
	}
	return b
}

// LoadBalance reads a balance file, or the embedded default when path is empty.
func LoadBalance(path string) (Balance, error) {
	if path == "" {
		return DefaultBalance(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Balance{}, fmt.Errorf("read balance %s: %w", path, err)
	}
	return ParseBalance(data)
}

// ParseBalance decodes and validates a balance document.
func ParseBalance(data []byte) (Balance, error) {
	var b Balance
	if err := yaml.Unmarshal(data, &b); err != nil {
		return Balance{}, fmt.Errorf("parse balance: %w", err)
	}
	if err := b.Validate(); err != nil {
		return Balance{}, err
	}
	return b, nil
}

// Validate rejects tables the simulation cannot run with.
func (b Balance) Validate() error {
	if len(b.Towers) == 0 {
		return errors.New("balance: no tower types")
	}
	if len(b.Enemies) == 0 {
		return errors.New("balance: no enemy types")
	}
	if len(b.Difficulty) < 2 {
		return errors.New("balance: difficulty curve needs at least 2 points")
	}
	for name, t := range b.Towers {
		if t.Cost <= 0 {
			return fmt.Errorf("balance: tower %q has non-positive cost", name)
		}
		if t.MaxHealth <= 0 {
			return fmt.Errorf("balance: tower %q has non-positive max_health", name)
		}
		if t.FireRate < 0 || t.Range < 0 || t.MaxAmmo < 0 {
			return fmt.Errorf("balance: tower %q has negative combat stats", name)
		}
		if t.SlowAmount < 0 || t.SlowAmount > 1 {
			return fmt.Errorf("balance: tower %q slow_amount must be within [0,1]", name)
		}
	}
	for name, e := range b.Enemies {
		if e.Health <= 0 || e.Speed <= 0 {
			return fmt.Errorf("balance: enemy %q needs positive health and speed", name)
		}
		if e.UnlockWave < 1 {
			return fmt.Errorf("balance: enemy %q unlock_wave must be >= 1", name)
		}
	}
	return nil
}

// TowerTypes returns tower type names in stable order.
func (b Balance) TowerTypes() []string {
	return sortedKeys(b.Towers)
}

// EnemyTypes returns enemy type names in stable order.
func (b Balance) EnemyTypes() []string {
	return sortedKeys(b.Enemies)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
