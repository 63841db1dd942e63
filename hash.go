package resolver

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
)

// relevantContent mirrors Composer's own Locker::getContentHash field
// selection: only these keys, skipping any that were absent from the
// source manifest. ContentHash re-sorts the top-level keys before
// hashing, so the field order here does not affect the digest.
type relevantContent struct {
	Name             string          `json:"name,omitempty"`
	Version          string          `json:"version,omitempty"`
	Require          *OrderedMap     `json:"require,omitempty"`
	RequireDev       *OrderedMap     `json:"require-dev,omitempty"`
	Conflict         *OrderedMap     `json:"conflict,omitempty"`
	Replace          *OrderedMap     `json:"replace,omitempty"`
	Provide          *OrderedMap     `json:"provide,omitempty"`
	MinimumStability string          `json:"minimum-stability,omitempty"`
	PreferStable     bool            `json:"prefer-stable,omitempty"`
	Repositories     json.RawMessage `json:"repositories,omitempty"`
	Extra            json.RawMessage `json:"extra,omitempty"`
}

// ContentHash computes the MD5 content hash of a manifest the same way
// Composer's Locker does: json-encode a fixed subset of the manifest's
// fields with the top-level keys sorted (escaping forward slashes, since
// that's PHP json_encode's default behavior, unlike Go's), then take the hex MD5
// digest. This is what composer.lock's "content-hash" field stores, and
// what a caller compares against to decide whether a lock file is stale
// relative to its manifest (spec.md §6/§8).
func ContentHash(m Manifest) (string, error) {
	rc := relevantContent{
		Name:             m.Name,
		Version:          m.Version,
		Require:          m.Require,
		RequireDev:       m.RequireDev,
		Conflict:         m.Conflict,
		Replace:          m.Replace,
		Provide:          m.Provide,
		MinimumStability: m.MinimumStability,
		PreferStable:     m.PreferStable,
		Repositories:     m.Repositories,
		Extra:            m.Extra,
	}

	encoded, err := json.Marshal(rc)
	if err != nil {
		return "", err
	}
	if m.ConfigPlatform.Len() > 0 {
		encoded, err = injectConfigPlatform(encoded, m.ConfigPlatform)
		if err != nil {
			return "", err
		}
	}

	// Composer ksorts the top-level keys; nested maps keep their order.
	var top map[string]json.RawMessage
	if err := json.Unmarshal(encoded, &top); err != nil {
		return "", err
	}
	if encoded, err = json.Marshal(top); err != nil {
		return "", err
	}

	encoded = escapeSlashes(encoded)

	sum := md5.Sum(encoded)
	return hex.EncodeToString(sum[:]), nil
}

// injectConfigPlatform appends a trailing "config":{"platform":{...}}
// entry to an already-encoded JSON object, matching Composer's own
// special-cased inclusion of config.platform; ContentHash then sorts it
// into place among the other top-level keys.
func injectConfigPlatform(encoded []byte, platform *OrderedMap) ([]byte, error) {
	platformJSON, err := platform.MarshalJSON()
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSuffix(bytes.TrimSpace(encoded), []byte("}"))
	var buf bytes.Buffer
	buf.Write(trimmed)
	if len(trimmed) > 1 {
		buf.WriteByte(',')
	}
	buf.WriteString(`"config":{"platform":`)
	buf.Write(platformJSON)
	buf.WriteString("}}")
	return buf.Bytes(), nil
}

// escapeSlashes rewrites "/" as "\/" throughout a JSON document, to
// match PHP's json_encode default (JSON_UNESCAPED_SLASHES is opt-in in
// PHP but Composer's locker never sets it).
func escapeSlashes(data []byte) []byte {
	return bytes.ReplaceAll(data, []byte("/"), []byte(`\/`))
}
