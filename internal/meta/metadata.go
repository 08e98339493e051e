// Package meta holds the free-form attributes the UI attaches to accounts
// (cost center, external ERP code, report labels).
package meta

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/tinoosan/bizledger/internal/slug"
)

// Metadata is a small string map with bounded size and deterministic JSON.
type Metadata map[string]string

const (
	MaxPairs     = 20
	MaxKeyLen    = slug.MaxLen
	MaxValLen    = 256
	MaxTotalJSON = 4096
)

// New copies m. A nil map yields an empty Metadata.
func New(m map[string]string) Metadata {
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (m Metadata) Clone() Metadata { return New(m) }

// NormalizeKeys slugifies every key of m ("Cost Center" -> "cost_center").
// Values are kept as given; on collisions the last key in sorted order wins.
func NormalizeKeys(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for _, k := range Metadata(m).Keys() {
		out[slug.Slugify(k)] = m[k]
	}
	return out
}

// Keys returns the keys in ascending order.
func (m Metadata) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Patch returns a copy of m with patch applied: an empty value removes the key.
func (m Metadata) Patch(patch map[string]string) Metadata {
	out := m.Clone()
	for k, v := range patch {
		if v == "" {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	return out
}

func (m Metadata) Validate() error {
	if len(m) > MaxPairs {
		return fmt.Errorf("metadata: more than %d pairs", MaxPairs)
	}
	for k, v := range m {
		if k == "" || len(k) > MaxKeyLen {
			return fmt.Errorf("metadata: key %q empty or longer than %d", k, MaxKeyLen)
		}
		if !slug.IsSlug(k) {
			return fmt.Errorf("metadata: key %q must use lowercase letters, digits and underscores", k)
		}
		if len(v) > MaxValLen {
			return fmt.Errorf("metadata: value for %q longer than %d", k, MaxValLen)
		}
	}
	b, err := m.MarshalJSON()
	if err != nil {
		return err
	}
	if len(b) > MaxTotalJSON {
		return fmt.Errorf("metadata: encoded size %d exceeds %d", len(b), MaxTotalJSON)
	}
	return nil
}

// MarshalJSON writes keys in sorted order so stored blobs compare byte-for-byte.
func (m Metadata) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(m[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (m *Metadata) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*m = Metadata{}
		return nil
	}
	var tmp map[string]string
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*m = New(tmp)
	return nil
}
