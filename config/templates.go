package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"agones-battleground/battleground"

	"gopkg.in/yaml.v3"
)

//go:embed defaults/battlegrounds.yaml
var defaultBattlegrounds []byte

// Battlegrounds is the content of a templates file.
type Battlegrounds struct {
	Rewards   RewardCatalog           `yaml:"rewards"`
	Templates []battleground.Template `yaml:"battlegrounds"`
}

// RewardCatalog resolves reward ids. It implements battleground.Rewards.
type RewardCatalog map[uint32]battleground.RewardDef

func (c RewardCatalog) Lookup(id uint32) (battleground.RewardDef, bool) {
	def, ok := c[id]
	return def, ok
}

// UnmarshalYAML reads the catalog from a list of reward definitions.
func (c *RewardCatalog) UnmarshalYAML(node *yaml.Node) error {
	var defs []battleground.RewardDef
	if err := node.Decode(&defs); err != nil {
		return err
	}
	out := make(RewardCatalog, len(defs))
	for _, def := range defs {
		if def.ID == 0 {
			return fmt.Errorf("line %d: reward id is required", node.Line)
		}
		if _, dup := out[def.ID]; dup {
			return fmt.Errorf("line %d: reward %d defined twice", node.Line, def.ID)
		}
		out[def.ID] = def
	}
	*c = out
	return nil
}

// LoadTemplates reads the templates file at path, or the built-in templates
// when path is empty.
func LoadTemplates(path string) (*Battlegrounds, error) {
	if strings.TrimSpace(path) == "" {
		return ParseTemplates(bytes.NewReader(defaultBattlegrounds))
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open templates: %w", err)
	}
	defer f.Close()
	return ParseTemplates(f)
}

// ParseTemplates decodes and validates a templates document. Unknown fields
// are rejected.
func ParseTemplates(r io.Reader) (*Battlegrounds, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var out Battlegrounds
	if err := dec.Decode(&out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("templates: empty document")
		}
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	if len(out.Templates) == 0 {
		return nil, fmt.Errorf("templates: no battlegrounds defined")
	}
	for i, tpl := range out.Templates {
		tpl = tpl.WithDefaults()
		if err := tpl.Validate(); err != nil {
			return nil, err
		}
		for _, id := range []uint32{tpl.Rewards.AllianceWin, tpl.Rewards.AllianceLose, tpl.Rewards.HordeWin, tpl.Rewards.HordeLose} {
			if id == 0 {
				continue
			}
			if _, ok := out.Rewards.Lookup(id); !ok {
				return nil, fmt.Errorf("template %q: reward %d: %w", tpl.Name, id, battleground.ErrUnknownReward)
			}
		}
		out.Templates[i] = tpl
	}
	return &out, nil
}
