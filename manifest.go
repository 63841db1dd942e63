package resolver

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Manifest is the decoded shape of a composer.json file - the subset of
// fields spec.md §6 names as relevant to dependency resolution. Fields
// use OrderedMap rather than map[string]string so that ContentHash can
// reproduce Composer's own bit-exact content hash (spec.md §8).
type Manifest struct {
	Name              string      `json:"name,omitempty"`
	Version           string      `json:"version,omitempty"`
	Require           *OrderedMap `json:"require,omitempty"`
	RequireDev        *OrderedMap `json:"require-dev,omitempty"`
	Conflict          *OrderedMap `json:"conflict,omitempty"`
	Replace           *OrderedMap `json:"replace,omitempty"`
	Provide           *OrderedMap `json:"provide,omitempty"`
	MinimumStability  string      `json:"minimum-stability,omitempty"`
	PreferStable      bool        `json:"prefer-stable,omitempty"`
	Repositories      json.RawMessage `json:"repositories,omitempty"`
	Extra             json.RawMessage `json:"extra,omitempty"`
	ConfigPlatform    *OrderedMap `json:"-"`
	Abandoned         json.RawMessage `json:"abandoned,omitempty"`
}

// manifestConfig peels out the one nested config.platform field the
// content hash also consumes (spec.md §8).
type manifestConfig struct {
	Config struct {
		Platform *OrderedMap `json:"platform,omitempty"`
	} `json:"config,omitempty"`
}

// ParseManifest decodes a composer.json document.
func ParseManifest(data []byte) (Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, errors.Wrap(err, "parsing composer.json")
	}
	var cfg manifestConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Manifest{}, errors.Wrap(err, "parsing composer.json config block")
	}
	m.ConfigPlatform = cfg.Config.Platform
	return m, nil
}

// ToPackage converts this manifest into a Package candidate, parsing
// every constraint string through ParseConstraint. An unparseable
// constraint turns into MatchNone rather than aborting the whole
// conversion, so that a single malformed entry in a large manifest
// doesn't block resolution of everything else - callers that want
// stricter behavior can re-validate with ParseConstraint themselves.
func (m Manifest) ToPackage() Package {
	v, err := ParseVersion(m.Version)
	if err != nil {
		v = Zero()
	}

	opts := PackageOptions{
		Require:    linksFromOrderedMap(m.Require, LinkRequire),
		RequireDev: linksFromOrderedMap(m.RequireDev, LinkRequireDev),
		Conflict:   linksFromOrderedMap(m.Conflict, LinkConflict),
		Replace:    linksFromOrderedMap(m.Replace, LinkReplace),
		Provide:    linksFromOrderedMap(m.Provide, LinkProvide),
	}
	return NewPackage(m.Name, v, opts)
}

func linksFromOrderedMap(om *OrderedMap, kind LinkKind) []Link {
	if om.Len() == 0 {
		return nil
	}
	out := make([]Link, 0, om.Len())
	for _, name := range om.Keys() {
		raw, _ := om.Get(name)
		var c Constraint
		if raw == "self.version" {
			c = SelfVersion()
		} else {
			parsed, err := ParseConstraint(raw)
			if err != nil {
				parsed = MatchNone()
			}
			c = parsed
		}
		out = append(out, NewLink(kind, name, c))
	}
	return out
}
