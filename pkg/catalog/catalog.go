// Package catalog loads the declared set of deployment targets from a
// configuration file. The catalog is ordered and immutable for the
// duration of a run; reconciliation always walks it in file order.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultDisplayNameKey is the parameter key used for human-readable
// target names in log output. It never participates in target identity.
const DefaultDisplayNameKey = "AccountName"

// Parameter is a single key/value override applied to a target's instances.
type Parameter struct {
	Key   string `json:"ParameterKey" yaml:"ParameterKey" validate:"required"`
	Value string `json:"ParameterValue" yaml:"ParameterValue"`
}

// Target is one account/region/parameter combination to be provisioned
// or updated. The account id is the target's unique key.
type Target struct {
	// AccountID uniquely identifies the target.
	AccountID string `json:"accountId" yaml:"accountId" validate:"required"`

	// Regions lists the regions the target's instances cover, in order.
	// All regions of one target share fate within a single operation.
	Regions []string `json:"regions" yaml:"regions" validate:"required,min=1,dive,required"`

	// Parameters are the ordered parameter overrides for this target.
	// Keys are unique within a target.
	Parameters []Parameter `json:"parameters" yaml:"parameters" validate:"dive"`
}

// DisplayName returns the value of the designated display-name parameter,
// falling back to the account id when the parameter is absent.
func (t Target) DisplayName(key string) string {
	for _, p := range t.Parameters {
		if p.Key == key {
			return p.Value
		}
	}
	return t.AccountID
}

// Parameter returns the value of a parameter override and whether it is set.
func (t Target) Parameter(key string) (string, bool) {
	for _, p := range t.Parameters {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

// Catalog is the ordered, immutable set of desired targets for a run.
type Catalog struct {
	// Targets in declaration order. Selection policy is always
	// first-unprocessed in this order.
	Targets []Target `json:"accounts" yaml:"accounts" validate:"required,min=1,dive"`

	// DisplayNameKey designates the parameter used for log lines.
	DisplayNameKey string `json:"displayNameKey,omitempty" yaml:"displayNameKey,omitempty"`
}

// Find returns the target with the given account id, or nil.
func (c *Catalog) Find(accountID string) *Target {
	for i := range c.Targets {
		if c.Targets[i].AccountID == accountID {
			return &c.Targets[i]
		}
	}
	return nil
}

// IDs returns the account ids in catalog order.
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.Targets))
	for _, t := range c.Targets {
		ids = append(ids, t.AccountID)
	}
	return ids
}

// Load reads and validates a catalog from a JSON or YAML file, chosen by
// extension (.yaml/.yml for YAML, JSON otherwise).
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	var c Catalog
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("failed to parse catalog YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("failed to parse catalog JSON: %w", err)
		}
	}

	if c.DisplayNameKey == "" {
		c.DisplayNameKey = DefaultDisplayNameKey
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return &c, nil
}

// Validate checks structural validity plus the uniqueness constraints the
// struct tags cannot express: account ids are unique across the catalog and
// parameter keys are unique within each target.
func (c *Catalog) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid catalog: %w", err)
	}

	seen := make(map[string]struct{}, len(c.Targets))
	for _, t := range c.Targets {
		if _, dup := seen[t.AccountID]; dup {
			return fmt.Errorf("invalid catalog: duplicate target %s", t.AccountID)
		}
		seen[t.AccountID] = struct{}{}

		keys := make(map[string]struct{}, len(t.Parameters))
		for _, p := range t.Parameters {
			if _, dup := keys[p.Key]; dup {
				return fmt.Errorf("invalid catalog: target %s has duplicate parameter key %s",
					t.AccountID, p.Key)
			}
			keys[p.Key] = struct{}{}
		}
	}

	return nil
}
