package toml

import "fmt"

const currentProfilesSchemaVersion = 1

type profilesFileSchema struct {
	Version  int             `toml:"version"`
	Profiles []profileSchema `toml:"profiles"`
}

func (s *profilesFileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentProfilesSchemaVersion
	}
}

func (s profilesFileSchema) validateVersion() error {
	if s.Version > currentProfilesSchemaVersion {
		return fmt.Errorf("unsupported profiles schema version %d (current %d)", s.Version, currentProfilesSchemaVersion)
	}

	return nil
}

type profileSchema struct {
	Name             string       `toml:"name"`
	ClientID         string       `toml:"client_id"`
	SourceEndpointID string       `toml:"source_endpoint"`
	DestEndpointID   string       `toml:"dest_endpoint,omitempty"`
	Label            string       `toml:"label,omitempty"`
	SyncLevel        string       `toml:"sync_level,omitempty"`
	CredentialKey    string       `toml:"credential_key"`
	Wait             bool         `toml:"wait"`
	Items            []itemSchema `toml:"items,omitempty"`
	FilterRules      []ruleSchema `toml:"filter_rules,omitempty"`
}

type itemSchema struct {
	Source    string `toml:"source"`
	Dest      string `toml:"dest"`
	Recursive bool   `toml:"recursive"`
}

type ruleSchema struct {
	Name   string `toml:"name"`
	Method string `toml:"method"`
	Type   string `toml:"type"`
}
