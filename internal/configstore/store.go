// Package configstore persists the two payout addresses shown on the
// dashboard in a small JSON file.
package configstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"soulvan-gateway/internal/errs"
)

const (
	minAddressLen = 48
	maxAddressLen = 60
)

var addressChars = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidAddress reports whether addr looks like a TON user-friendly address:
// EQ or UQ prefix, 48 to 60 characters from [A-Za-z0-9_-].
func ValidAddress(addr string) bool {
	if !strings.HasPrefix(addr, "EQ") && !strings.HasPrefix(addr, "UQ") {
		return false
	}
	if len(addr) < minAddressLen || len(addr) > maxAddressLen {
		return false
	}
	return addressChars.MatchString(addr)
}

type Addresses struct {
	TonAddress string `json:"tonAddress"`
	FeeAddress string `json:"feeAddress"`
}

// Patch carries the fields present in an update request.
type Patch struct {
	TonAddress *string
	FeeAddress *string
}

// ParsePatch decodes a JSON object, requiring every present address field
// to be a valid address string. Unknown fields are ignored.
func ParsePatch(body []byte) (Patch, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		return Patch{}, errs.Validation("request body must be a JSON object")
	}
	var p Patch
	for key, target := range map[string]**string{"tonAddress": &p.TonAddress, "feeAddress": &p.FeeAddress} {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil || !ValidAddress(s) {
			return Patch{}, errs.Validation("Invalid %s", fieldLabel(key))
		}
		*target = &s
	}
	return p, nil
}

func fieldLabel(key string) string {
	if key == "feeAddress" {
		return "fee address"
	}
	return "TON address"
}

// Store loads and saves Addresses. Missing fields fall back to the
// defaults; nothing invalid is ever written.
type Store struct {
	path     string
	defaults Addresses
	mu       sync.Mutex
}

// New builds a store. An empty fee default falls back to the ton default.
func New(path string, defaults Addresses) *Store {
	if defaults.FeeAddress == "" {
		defaults.FeeAddress = defaults.TonAddress
	}
	return &Store{path: path, defaults: defaults}
}

func (s *Store) Load() (Addresses, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Update applies p and saves the result.
func (s *Store) Update(p Patch) (Addresses, error) {
	if p.TonAddress != nil && !ValidAddress(*p.TonAddress) {
		return Addresses{}, errs.Validation("Invalid TON address")
	}
	if p.FeeAddress != nil && !ValidAddress(*p.FeeAddress) {
		return Addresses{}, errs.Validation("Invalid fee address")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cur, err := s.load()
	if err != nil {
		return Addresses{}, err
	}
	if p.TonAddress != nil {
		cur.TonAddress = *p.TonAddress
	}
	if p.FeeAddress != nil {
		cur.FeeAddress = *p.FeeAddress
	}
	if err := s.save(cur); err != nil {
		return Addresses{}, err
	}
	return cur, nil
}

func (s *Store) load() (Addresses, error) {
	var stored struct {
		TonAddress *string `json:"tonAddress"`
		FeeAddress *string `json:"feeAddress"`
	}
	raw, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return Addresses{}, fmt.Errorf("read config %s: %w", s.path, err)
	default:
		if err := json.Unmarshal(raw, &stored); err != nil {
			return Addresses{}, fmt.Errorf("decode config %s: %w", s.path, err)
		}
	}

	out := s.defaults
	if stored.TonAddress != nil {
		out.TonAddress = *stored.TonAddress
		if stored.FeeAddress == nil && s.defaults.FeeAddress == "" {
			out.FeeAddress = out.TonAddress
		}
	}
	if stored.FeeAddress != nil {
		out.FeeAddress = *stored.FeeAddress
	}
	return out, nil
}

// save writes through a temp file so readers never see a partial document.
func (s *Store) save(a Addresses) error {
	raw, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".config-*.json")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close config: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace config: %w", err)
	}
	return nil
}
