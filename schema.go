package cascade

// Descriptor is a serialisable description of a chain's shape, suitable for
// driving form renderers or documentation generators.
type Descriptor struct {
	Levels []LevelDescriptor `json:"levels"`
}

// LevelDescriptor describes one level of a chain.
type LevelDescriptor struct {
	Name     string         `json:"name"`
	Label    string         `json:"label,omitempty"`
	Mode     string         `json:"mode"`
	Param    string         `json:"param,omitempty"`
	Filter   string         `json:"filter,omitempty"`
	Position int            `json:"position"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Describe returns the chain's level structure.
func (c *Chain) Describe() Descriptor {
	desc := Descriptor{Levels: make([]LevelDescriptor, len(c.levels))}
	for i, level := range c.levels {
		desc.Levels[i] = LevelDescriptor{
			Name:     level.Name,
			Label:    level.Label,
			Mode:     level.Mode.String(),
			Param:    level.Param,
			Filter:   level.FilterRule,
			Position: i,
			Metadata: copyMetadata(level.Metadata),
		}
	}
	return desc
}
