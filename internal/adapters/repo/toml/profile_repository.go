package toml

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	"github.com/psu-rc/rcops/internal/domain"
	"github.com/psu-rc/rcops/internal/ports"
)

const (
	ProfilesPathKey     = "profiles.path"
	profilesFile        = "profiles.toml"
	profilesTempPattern = ".profiles-*.toml.tmp"
)

type ProfileRepository struct {
	path string
	mu   *sync.RWMutex
}

var _ ports.ProfileRepository = (*ProfileRepository)(nil)

func NewProfileRepository(cfg *viper.Viper) (*ProfileRepository, error) {
	path, err := resolveStorePath(cfg, ProfilesPathKey, profilesFile)
	if err != nil {
		return nil, err
	}

	return &ProfileRepository{path: path, mu: lockForPath(path)}, nil
}

func (r *ProfileRepository) Path() string {
	return r.path
}

func (r *ProfileRepository) Save(ctx context.Context, profile domain.TransferProfile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := profile.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	file, err := r.readSchema()
	if err != nil {
		return err
	}

	encoded := toProfileSchema(profile)
	updated := false
	for i := range file.Profiles {
		if file.Profiles[i].Name == encoded.Name {
			file.Profiles[i] = encoded
			updated = true
			break
		}
	}
	if !updated {
		file.Profiles = append(file.Profiles, encoded)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	return r.writeSchema(file)
}

func (r *ProfileRepository) GetByName(ctx context.Context, name string) (domain.TransferProfile, error) {
	if err := ctx.Err(); err != nil {
		return domain.TransferProfile{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	file, err := r.readSchema()
	if err != nil {
		return domain.TransferProfile{}, err
	}

	for _, entry := range file.Profiles {
		if entry.Name == name {
			return fromProfileSchema(entry), nil
		}
	}

	return domain.TransferProfile{}, fmt.Errorf("%w: %s", domain.ErrProfileNotFound, name)
}

func (r *ProfileRepository) List(ctx context.Context) ([]domain.TransferProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	file, err := r.readSchema()
	if err != nil {
		return nil, err
	}

	profiles := make([]domain.TransferProfile, 0, len(file.Profiles))
	for _, entry := range file.Profiles {
		profiles = append(profiles, fromProfileSchema(entry))
	}
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].Name < profiles[j].Name })

	return profiles, nil
}

func (r *ProfileRepository) readSchema() (profilesFileSchema, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			file := profilesFileSchema{}
			file.applyDefaults()
			return file, nil
		}
		return profilesFileSchema{}, fmt.Errorf("read profiles file: %w", err)
	}

	var file profilesFileSchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return profilesFileSchema{}, fmt.Errorf("decode profiles file: %w", err)
	}
	if err := file.validateVersion(); err != nil {
		return profilesFileSchema{}, err
	}
	file.applyDefaults()

	return file, nil
}

func (r *ProfileRepository) writeSchema(file profilesFileSchema) error {
	file.applyDefaults()

	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode profiles file: %w", err)
	}

	if err := writeFileAtomic(r.path, data, profilesTempPattern); err != nil {
		return fmt.Errorf("write profiles file: %w", err)
	}

	return nil
}

func toProfileSchema(profile domain.TransferProfile) profileSchema {
	items := make([]itemSchema, 0, len(profile.Items))
	for _, item := range profile.Items {
		items = append(items, itemSchema{Source: item.Source, Dest: item.Dest, Recursive: item.Recursive})
	}

	rules := make([]ruleSchema, 0, len(profile.FilterRules))
	for _, rule := range profile.FilterRules {
		rules = append(rules, ruleSchema{Name: rule.Name, Method: string(rule.Method), Type: string(rule.Type)})
	}

	return profileSchema{
		Name:             profile.Name,
		ClientID:         profile.ClientID,
		SourceEndpointID: profile.SourceEndpointID,
		DestEndpointID:   profile.DestEndpointID,
		Label:            profile.Label,
		SyncLevel:        profile.SyncLevel,
		CredentialKey:    profile.CredentialKey,
		Wait:             profile.Wait,
		Items:            items,
		FilterRules:      rules,
	}
}

func fromProfileSchema(entry profileSchema) domain.TransferProfile {
	var items []domain.ItemTemplate
	for _, item := range entry.Items {
		items = append(items, domain.ItemTemplate{Source: item.Source, Dest: item.Dest, Recursive: item.Recursive})
	}

	var rules []domain.RuleTemplate
	for _, rule := range entry.FilterRules {
		rules = append(rules, domain.RuleTemplate{
			Name:   rule.Name,
			Method: domain.FilterMethod(rule.Method),
			Type:   domain.FilterType(rule.Type),
		})
	}

	return domain.TransferProfile{
		Name:             entry.Name,
		ClientID:         entry.ClientID,
		SourceEndpointID: entry.SourceEndpointID,
		DestEndpointID:   entry.DestEndpointID,
		Label:            entry.Label,
		SyncLevel:        entry.SyncLevel,
		CredentialKey:    entry.CredentialKey,
		Wait:             entry.Wait,
		Items:            items,
		FilterRules:      rules,
	}
}
