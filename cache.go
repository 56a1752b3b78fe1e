package cascade

// optionCache stores the most recently applied OptionSet per level. It is a
// plain in-memory store; currency checks against in-flight parent keys belong
// to the reconciler, which is the only writer.
type optionCache struct {
	sets []OptionSet
}

func newOptionCache(levels int) *optionCache {
	sets := make([]OptionSet, levels)
	for i := range sets {
		sets[i] = OptionSet{Level: i}
	}
	return &optionCache{sets: sets}
}

func (c *optionCache) get(level int) OptionSet {
	return c.sets[level]
}

func (c *optionCache) replace(level int, set OptionSet) {
	set.Level = level
	c.sets[level] = set
}

// invalidate clears the option set for level and every level below it.
func (c *optionCache) invalidate(level int) {
	for i := level; i < len(c.sets); i++ {
		c.sets[i] = OptionSet{Level: i}
	}
}
