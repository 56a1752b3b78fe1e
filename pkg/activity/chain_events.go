package activity

import (
	"strings"
	"time"
)

// LevelContext captures the chain level an event concerns.
type LevelContext struct {
	Name     string
	Label    string
	Position int
	Mode     string
}

// ChainEventInput describes the common fields for chain lifecycle events.
type ChainEventInput struct {
	ActorID        string
	UserID         string
	TenantID       string
	Channel        string
	DefinitionCode string
	Recipients     []string
	Metadata       map[string]any
	Level          LevelContext
	ParentKey      string
	OptionIDs      []string
	Removed        []string
	Reason         string
	OccurredAt     time.Time
}

// BuildSelectionChangedEvent constructs an activity event for a selection
// change at a chain level.
func BuildSelectionChangedEvent(input ChainEventInput) Event {
	return buildChainEvent("selection.changed", input)
}

// BuildSelectionPrunedEvent constructs an activity event for selected ids
// removed because they left the level's option set.
func BuildSelectionPrunedEvent(input ChainEventInput) Event {
	return buildChainEvent("selection.pruned", input)
}

// BuildOptionsLoadedEvent constructs an activity event for an option set that
// was fetched and applied.
func BuildOptionsLoadedEvent(input ChainEventInput) Event {
	return buildChainEvent("options.loaded", input)
}

// BuildOptionsFailedEvent constructs an activity event for a failed option
// fetch.
func BuildOptionsFailedEvent(input ChainEventInput) Event {
	return buildChainEvent("options.failed", input)
}

// BuildOptionsStaleEvent constructs an activity event for a fetch result
// discarded because a newer request superseded it.
func BuildOptionsStaleEvent(input ChainEventInput) Event {
	return buildChainEvent("options.stale", input)
}

func buildChainEvent(verb string, input ChainEventInput) Event {
	metadata := cloneMap(input.Metadata)
	if input.Level.Name != "" {
		metadata = ensureMetadata(metadata)
		metadata["level_name"] = input.Level.Name
		metadata["level_position"] = input.Level.Position
		if input.Level.Label != "" {
			metadata["level_label"] = input.Level.Label
		}
		if input.Level.Mode != "" {
			metadata["level_mode"] = input.Level.Mode
		}
	}
	if input.ParentKey != "" {
		metadata = ensureMetadata(metadata)
		metadata["parent_key"] = input.ParentKey
	}
	if len(input.OptionIDs) > 0 {
		metadata = ensureMetadata(metadata)
		metadata["option_ids"] = append([]string{}, input.OptionIDs...)
	}
	if len(input.Removed) > 0 {
		metadata = ensureMetadata(metadata)
		metadata["removed_ids"] = append([]string{}, input.Removed...)
	}
	if input.Reason != "" {
		metadata = ensureMetadata(metadata)
		metadata["reason"] = input.Reason
	}

	recipients := input.Recipients
	if len(recipients) > 0 {
		recipients = append([]string{}, input.Recipients...)
	}

	objectID := strings.TrimSpace(input.Level.Name)
	if objectID == "" {
		objectID = "chain.level"
	}

	return Event{
		Verb:           verb,
		ActorID:        strings.TrimSpace(input.ActorID),
		UserID:         strings.TrimSpace(input.UserID),
		TenantID:       strings.TrimSpace(input.TenantID),
		ObjectType:     "chain.level",
		ObjectID:       objectID,
		Channel:        strings.TrimSpace(input.Channel),
		DefinitionCode: strings.TrimSpace(input.DefinitionCode),
		Recipients:     recipients,
		Metadata:       metadata,
		OccurredAt:     input.OccurredAt,
	}
}

func ensureMetadata(meta map[string]any) map[string]any {
	if meta == nil {
		return map[string]any{}
	}
	return meta
}
