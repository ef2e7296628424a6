package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const defaultCreatorName = "Product Owner"

// Profile is the identity a client keeps between visits: who created the
// session on this device, the owner token they were handed, and the
// participant they joined as.
type Profile struct {
	CreatorName   string `json:"creatorName,omitempty"`
	OwnerToken    string `json:"ownerToken,omitempty"`
	ParticipantID string `json:"participantId,omitempty"`
	Name          string `json:"name,omitempty"`
	Observer      bool   `json:"observer,omitempty"`
}

func (p Profile) creatorName() string {
	if p.CreatorName != "" {
		return p.CreatorName
	}
	return defaultCreatorName
}

// LoadProfile reads a profile saved by SaveProfile. A missing file yields
// the zero profile.
func LoadProfile(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Profile{}, nil
	}
	if err != nil {
		return Profile{}, fmt.Errorf("read profile: %w", err)
	}
	var profile Profile
	if err := json.Unmarshal(data, &profile); err != nil {
		return Profile{}, fmt.Errorf("decode profile %s: %w", path, err)
	}
	return profile, nil
}

func SaveProfile(path string, profile Profile) error {
	data, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create profile dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write profile: %w", err)
	}
	return nil
}
