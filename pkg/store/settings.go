package store

import (
	"context"
	"errors"
	"fmt"
)

// ClientDataCollection holds one settings document per application.
const ClientDataCollection = "client_data"

type commandSetting struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

type clientData struct {
	ID              string           `json:"_id"`
	CommandSettings []commandSetting `json:"commandSettings"`
}

// ClientSettings persists command enablement in the client_data collection.
type ClientSettings struct {
	coll *Collection
}

// NewClientSettings returns settings backed by s.
func NewClientSettings(s *Store) *ClientSettings {
	return &ClientSettings{coll: s.Collection(ClientDataCollection)}
}

// LoadCommandSettings returns the stored overrides for appID. A missing
// document yields an empty map.
func (c *ClientSettings) LoadCommandSettings(ctx context.Context, appID string) (map[string]bool, error) {
	doc, err := c.load(ctx, appID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(doc.CommandSettings))
	for _, s := range doc.CommandSettings {
		out[s.Name] = s.Enabled
	}
	return out, nil
}

// SaveCommandSetting records one command's enablement for appID.
func (c *ClientSettings) SaveCommandSetting(ctx context.Context, appID, name string, enabled bool) error {
	doc, err := c.load(ctx, appID)
	if err != nil {
		return err
	}

	found := false
	for i := range doc.CommandSettings {
		if doc.CommandSettings[i].Name == name {
			doc.CommandSettings[i].Enabled = enabled
			found = true
			break
		}
	}
	if !found {
		doc.CommandSettings = append(doc.CommandSettings, commandSetting{Name: name, Enabled: enabled})
	}

	if err := c.coll.ReplaceOne(ctx, Filter{IDField: appID}, doc, true); err != nil {
		return fmt.Errorf("saving client data: %w", err)
	}
	return nil
}

func (c *ClientSettings) load(ctx context.Context, appID string) (clientData, error) {
	doc := clientData{ID: appID}
	err := c.coll.FindOne(ctx, Filter{IDField: appID}, &doc)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return clientData{}, fmt.Errorf("loading client data: %w", err)
	}
	return doc, nil
}
