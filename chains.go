package cascade

// QuoteChain builds the four-level single-select chain used by quote forms:
// country, facility, unit type, unit size. Deep-link parameters match the
// quote page URLs (facility=12&unitType=3&size=9).
func QuoteChain(loader Loader, opts ...ChainOption) (*Chain, error) {
	levels := []Level{
		NewLevel("country", SingleSelect, WithLevelLabel("Country"), WithLevelParam("country")),
		NewLevel("facility", SingleSelect, WithLevelLabel("Facility"), WithLevelParam("facility")),
		NewLevel("unitType", SingleSelect, WithLevelLabel("Unit Type"), WithLevelParam("unitType")),
		NewLevel("unitSize", SingleSelect, WithLevelLabel("Unit Size"), WithLevelParam("size")),
	}
	return New(levels, append([]ChainOption{WithLoader(loader)}, opts...)...)
}

// StaffAssignmentChain builds the two-level multi-select chain used for staff
// scoping: countries feeding the union of their facilities, with select-all
// support at both levels.
func StaffAssignmentChain(loader Loader, opts ...ChainOption) (*Chain, error) {
	levels := []Level{
		NewLevel("country", MultiSelect, WithLevelLabel("Countries")),
		NewLevel("facility", MultiSelect, WithLevelLabel("Facilities")),
	}
	return New(levels, append([]ChainOption{WithLoader(loader)}, opts...)...)
}
