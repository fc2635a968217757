package config

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"nftstake/crypto"
)

// Duration wraps time.Duration to support YAML unmarshalling.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses human readable duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be string")
	}
	raw := strings.TrimSpace(value.Value)
	if raw == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalYAML renders the duration in Go notation.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// WholeSeconds returns the whole number of seconds in d.
func (d Duration) WholeSeconds() uint64 {
	if d.Duration <= 0 {
		return 0
	}
	return uint64(d.Duration / time.Second)
}

// RewardToken describes the reward asset created at genesis.
type RewardToken struct {
	Symbol string `yaml:"symbol"`
	Owner  string `yaml:"owner"`
}

// Mint assigns a collection token to an account at genesis.
type Mint struct {
	Owner   string `yaml:"owner"`
	TokenID uint64 `yaml:"token_id"`
	URI     string `yaml:"uri"`
}

// Genesis initialises the staking protocol state.
type Genesis struct {
	Collection       string      `yaml:"collection"`
	Vault            string      `yaml:"vault"`
	RewardToken      RewardToken `yaml:"reward_token"`
	InitialRate      string      `yaml:"initial_rate"`
	UnbondingDelay   Duration    `yaml:"unbonding_delay"`
	TimeUnit         Duration    `yaml:"time_unit"`
	SettleOnWithdraw *bool       `yaml:"settle_on_withdraw"`
	GenesisTime      int64       `yaml:"genesis_time"`
	Admins           []string    `yaml:"admins"`
	Minters          []string    `yaml:"minters"`
	Controllers      []string    `yaml:"controllers"`
	Mints            []Mint      `yaml:"mints"`
}

// LoadGenesis reads and validates a YAML genesis document.
func LoadGenesis(path string) (*Genesis, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("genesis: read %s: %w", path, err)
	}
	return ParseGenesis(raw)
}

// ParseGenesis decodes and validates a YAML genesis document.
func ParseGenesis(raw []byte) (*Genesis, error) {
	var g Genesis
	decoder := yaml.NewDecoder(strings.NewReader(string(raw)))
	decoder.KnownFields(true)
	if err := decoder.Decode(&g); err != nil {
		return nil, fmt.Errorf("genesis: decode: %w", err)
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return &g, nil
}

// Rate parses the initial rate.
func (g *Genesis) Rate() (*big.Int, error) {
	trimmed := strings.TrimSpace(g.InitialRate)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	rate, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("genesis: invalid initial_rate %q", g.InitialRate)
	}
	if rate.Sign() < 0 {
		return nil, errors.New("genesis: initial_rate must not be negative")
	}
	return rate, nil
}

// TimeUnitSeconds returns the number of seconds per rate unit, defaulting to one.
func (g *Genesis) TimeUnitSeconds() uint64 {
	if secs := g.TimeUnit.WholeSeconds(); secs > 0 {
		return secs
	}
	return 1
}

// Settle reports whether withdrawals pay the frozen balance. Defaults to true.
func (g *Genesis) Settle() bool {
	if g.SettleOnWithdraw == nil {
		return true
	}
	return *g.SettleOnWithdraw
}

func decodeAll(field string, values []string) ([][20]byte, error) {
	out := make([][20]byte, 0, len(values))
	for _, value := range values {
		raw, err := crypto.DecodeRaw(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("genesis: %s entry %q: %w", field, value, err)
		}
		out = append(out, raw)
	}
	return out, nil
}

// VaultAddress decodes the vault account.
func (g *Genesis) VaultAddress() ([20]byte, error) {
	raw, err := crypto.DecodeRaw(strings.TrimSpace(g.Vault))
	if err != nil {
		return [20]byte{}, fmt.Errorf("genesis: vault: %w", err)
	}
	return raw, nil
}

// RewardOwner decodes the reward token owner.
func (g *Genesis) RewardOwner() ([20]byte, error) {
	raw, err := crypto.DecodeRaw(strings.TrimSpace(g.RewardToken.Owner))
	if err != nil {
		return [20]byte{}, fmt.Errorf("genesis: reward_token.owner: %w", err)
	}
	return raw, nil
}

// AdminAddresses decodes the administrator list.
func (g *Genesis) AdminAddresses() ([][20]byte, error) { return decodeAll("admins", g.Admins) }

// MinterAddresses decodes accounts allowed to mint collection tokens.
func (g *Genesis) MinterAddresses() ([][20]byte, error) { return decodeAll("minters", g.Minters) }

// ControllerAddresses decodes extra reward token controllers. The vault is
// always registered as a controller.
func (g *Genesis) ControllerAddresses() ([][20]byte, error) {
	return decodeAll("controllers", g.Controllers)
}

// Validate checks the genesis document for inconsistencies.
func (g *Genesis) Validate() error {
	if _, err := g.VaultAddress(); err != nil {
		return err
	}
	if _, err := g.RewardOwner(); err != nil {
		return err
	}
	if _, err := g.Rate(); err != nil {
		return err
	}
	if g.TimeUnit.Duration < 0 || g.UnbondingDelay.Duration < 0 {
		return errors.New("genesis: durations must not be negative")
	}
	if g.TimeUnit.Duration > 0 && g.TimeUnit.Duration%time.Second != 0 {
		return errors.New("genesis: time_unit must be a whole number of seconds")
	}
	if g.GenesisTime < 0 {
		return errors.New("genesis: genesis_time must not be negative")
	}
	admins, err := g.AdminAddresses()
	if err != nil {
		return err
	}
	if len(admins) == 0 {
		return errors.New("genesis: at least one admin required")
	}
	if _, err := g.MinterAddresses(); err != nil {
		return err
	}
	if _, err := g.ControllerAddresses(); err != nil {
		return err
	}
	seen := make(map[uint64]struct{}, len(g.Mints))
	for _, mint := range g.Mints {
		if _, err := crypto.DecodeRaw(strings.TrimSpace(mint.Owner)); err != nil {
			return fmt.Errorf("genesis: mint %d owner: %w", mint.TokenID, err)
		}
		if _, ok := seen[mint.TokenID]; ok {
			return fmt.Errorf("genesis: token %d minted twice", mint.TokenID)
		}
		seen[mint.TokenID] = struct{}{}
	}
	return nil
}
