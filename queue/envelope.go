// Copyright 2025-2026 Datalode, Inc.
// This software is released under an MIT/X11 open source license.

package queue

import (
	"encoding/json"

	"github.com/mitchellh/mapstructure"
)

// Envelope is the canonical wire form of a work item as it appears in
// enqueue requests and seed files.  All fields are optional except the
// classification tuple and one of the two payload forms.
type Envelope struct {
	SourceSystem string `mapstructure:"source_system"`
	SourceName   string `mapstructure:"source_name"`
	ResourceType string `mapstructure:"resource_type"`
	ResourceID   string `mapstructure:"resource_id"`
	Variant      string `mapstructure:"variant"`

	RequestURI     string            `mapstructure:"request_uri"`
	RequestMethod  string            `mapstructure:"request_method"`
	RequestHeaders map[string]string `mapstructure:"request_headers"`
	RequestBody    string            `mapstructure:"request_body"`

	InterrogationKey string                 `mapstructure:"interrogation_key"`
	InputJSON        map[string]interface{} `mapstructure:"input_json"`

	Priority       int     `mapstructure:"priority"`
	RunID          string  `mapstructure:"run_id"`
	DiscoveredFrom string  `mapstructure:"discovered_from"`
	Rank           float64 `mapstructure:"rank"`
}

// ItemFromMap decodes a free-form dictionary, as delivered by a REST
// body or a YAML seed file, into a WorkItem.  The classification tuple
// is required, as is either a request URI or an interrogation key.
// Status defaults to Pending and the item ID is left empty for the
// store to assign.
func ItemFromMap(m map[string]interface{}) (*WorkItem, error) {
	env := Envelope{}
	config := mapstructure.DecoderConfig{Result: &env}
	decoder, err := mapstructure.NewDecoder(&config)
	if err != nil {
		return nil, err
	}
	if err = decoder.Decode(m); err != nil {
		return nil, err
	}
	return env.Item()
}

// Item validates an envelope and converts it to a WorkItem.
func (env Envelope) Item() (*WorkItem, error) {
	if env.SourceSystem == "" || env.SourceName == "" ||
		env.ResourceType == "" || env.ResourceID == "" {
		return nil, ErrMissingClassification
	}
	if env.RequestURI == "" && env.InterrogationKey == "" {
		return nil, ErrMissingPayload
	}

	item := &WorkItem{
		SourceSystem:     env.SourceSystem,
		SourceName:       env.SourceName,
		ResourceType:     env.ResourceType,
		ResourceID:       env.ResourceID,
		Variant:          Variant(env.Variant),
		RequestURI:       env.RequestURI,
		RequestMethod:    env.RequestMethod,
		RequestHeaders:   env.RequestHeaders,
		InterrogationKey: env.InterrogationKey,
		Priority:         env.Priority,
		RunID:            env.RunID,
		DiscoveredFrom:   env.DiscoveredFrom,
		Rank:             env.Rank,
		Status:           Pending,
	}
	if env.RequestBody != "" {
		item.RequestBody = []byte(env.RequestBody)
	}
	if env.RequestURI != "" && env.RequestMethod == "" {
		item.RequestMethod = "GET"
	}
	if env.InputJSON != nil {
		payload, err := json.Marshal(env.InputJSON)
		if err != nil {
			return nil, err
		}
		item.InputJSON = payload
	}

	// Validate the dedupe key up front so enqueue callers get the
	// length error before hitting the store.
	if _, err := item.DedupeKey(); err != nil {
		return nil, err
	}
	return item, nil
}

// ToMap renders a work item back into its wire dictionary.  Lifecycle
// and claim fields are included read-only; zero-valued fields are
// omitted.
func (item *WorkItem) ToMap() map[string]interface{} {
	m := map[string]interface{}{
		"work_item_id":  item.ID,
		"source_system": item.SourceSystem,
		"source_name":   item.SourceName,
		"resource_type": item.ResourceType,
		"resource_id":   item.ResourceID,
		"priority":      item.Priority,
		"status":        item.Status.String(),
		"attempt":       item.Attempt,
	}
	if item.Variant != "" {
		m["variant"] = string(item.Variant)
	}
	if item.RequestURI != "" {
		m["request_uri"] = item.RequestURI
		m["request_method"] = item.RequestMethod
	}
	if len(item.RequestHeaders) > 0 {
		m["request_headers"] = item.RequestHeaders
	}
	if item.InterrogationKey != "" {
		m["interrogation_key"] = item.InterrogationKey
	}
	if len(item.InputJSON) > 0 {
		var payload map[string]interface{}
		if err := json.Unmarshal(item.InputJSON, &payload); err == nil {
			m["input_json"] = payload
		}
	}
	if item.RunID != "" {
		m["run_id"] = item.RunID
	}
	if item.DiscoveredFrom != "" {
		m["discovered_from"] = item.DiscoveredFrom
	}
	if item.Rank != 0 {
		m["rank"] = item.Rank
	}
	if item.LastError != "" {
		m["last_error"] = item.LastError
	}
	if !item.CreatedAt.IsZero() {
		m["created_at"] = item.CreatedAt
	}
	if !item.NextRetryAt.IsZero() {
		m["next_retry_at"] = item.NextRetryAt
	}
	if item.ClaimedBy != "" {
		m["claimed_by"] = item.ClaimedBy
		m["lease_expires_at"] = item.LeaseExpiresAt
	}
	return m
}
