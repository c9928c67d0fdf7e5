package domain

import (
	"fmt"
	"strings"
)

const (
	placeholderLocation = "{location}"
	placeholderToday    = "{today}"
)

type ItemTemplate struct {
	Source    string
	Dest      string
	Recursive bool
}

type RuleTemplate struct {
	Name   string
	Method FilterMethod
	Type   FilterType
}

// TransferProfile is a named, reusable transfer job.
type TransferProfile struct {
	Name             string
	ClientID         string
	SourceEndpointID string
	DestEndpointID   string
	Label            string
	SyncLevel        string
	// CredentialKey names the token cache entry in the credential backend.
	CredentialKey string
	Items         []ItemTemplate
	FilterRules   []RuleTemplate
	Wait          bool
}

// TransferArgs are the positional DATA_LOCATION and TODAY arguments.
type TransferArgs struct {
	Location string
	Today    string
}

func (p TransferProfile) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if strings.TrimSpace(p.ClientID) == "" {
		return fmt.Errorf("profile %s: client id is required", p.Name)
	}
	if strings.TrimSpace(p.SourceEndpointID) == "" {
		return fmt.Errorf("profile %s: source endpoint is required", p.Name)
	}
	if strings.TrimSpace(p.CredentialKey) == "" {
		return fmt.Errorf("profile %s: credential key is required", p.Name)
	}
	return nil
}

func (p TransferProfile) RequiresArgs() bool {
	for _, item := range p.Items {
		if hasPlaceholder(item.Source) || hasPlaceholder(item.Dest) {
			return true
		}
	}
	for _, rule := range p.FilterRules {
		if hasPlaceholder(rule.Name) {
			return true
		}
	}
	return hasPlaceholder(p.Label)
}

func (p TransferProfile) Expand(args TransferArgs) (TransferRequest, error) {
	if p.RequiresArgs() && (args.Location == "" || args.Today == "") {
		return TransferRequest{}, fmt.Errorf("profile %s requires DATA_LOCATION and TODAY arguments", p.Name)
	}

	r := strings.NewReplacer(placeholderLocation, args.Location, placeholderToday, args.Today)

	req := TransferRequest{
		SourceEndpointID: p.SourceEndpointID,
		DestEndpointID:   p.DestEndpointID,
		Label:            r.Replace(p.Label),
		SyncLevel:        p.SyncLevel,
		Items:            make([]TransferItem, 0, len(p.Items)),
		FilterRules:      make([]FilterRule, 0, len(p.FilterRules)),
	}
	for _, item := range p.Items {
		req.Items = append(req.Items, TransferItem{
			SourcePath: r.Replace(item.Source),
			DestPath:   r.Replace(item.Dest),
			Recursive:  item.Recursive,
		})
	}
	for _, rule := range p.FilterRules {
		req.FilterRules = append(req.FilterRules, FilterRule{
			Name:   r.Replace(rule.Name),
			Method: rule.Method,
			Type:   rule.Type,
		})
	}

	return req, nil
}

func hasPlaceholder(s string) bool {
	return strings.Contains(s, placeholderLocation) || strings.Contains(s, placeholderToday)
}
