package profile

////////////////////////////////////////////////////////////////////////////////

// locationKey identifies one deduplicated source position. Two keys with
// identical field values always name the same location, regardless of
// insertion order.
type locationKey struct {
	className    string
	functionName string
	fileName     string
	line         int64
}

type functionKey struct {
	name       string
	systemName string
	fileName   string
	startLine  int64
}

////////////////////////////////////////////////////////////////////////////////

// locationTable deduplicates the locations and functions of one profile.
// Ids are 1-based, dense and assigned in first-seen order; they are never
// reused. The table is owned by exactly one builder and is not safe for
// concurrent use.
type locationTable struct {
	profile         *Profile
	locations       map[locationKey]*Location
	nativeLocations map[uint64]*Location
	functions       map[functionKey]*Function
}

func newLocationTable(p *Profile) *locationTable {
	return &locationTable{
		profile:         p,
		locations:       make(map[locationKey]*Location),
		nativeLocations: make(map[uint64]*Location),
		functions:       make(map[functionKey]*Function),
	}
}

func (t *locationTable) locationFor(className, functionName, fileName string, line int64) *Location {
	key := locationKey{className, functionName, fileName, line}
	if l, ok := t.locations[key]; ok {
		return l
	}

	l := &Location{
		ID: uint64(len(t.profile.Location) + 1),
		Line: []Line{{
			Function: t.functionFor(functionName, "", fileName, 0),
			Line:     line,
		}},
	}
	t.profile.Location = append(t.profile.Location, l)
	t.locations[key] = l
	return l
}

// nativeLocationFor interns one location per native address. Unnamed frames
// produce address-only locations; symbolization can fill them in later.
func (t *locationTable) nativeLocationFor(name string, address uint64) *Location {
	if l, ok := t.nativeLocations[address]; ok {
		return l
	}

	l := &Location{
		ID:      uint64(len(t.profile.Location) + 1),
		Address: address,
	}
	if name != "" {
		l.Line = []Line{{Function: t.functionFor(name, "", "", 0)}}
	}
	t.profile.Location = append(t.profile.Location, l)
	t.nativeLocations[address] = l
	return l
}

func (t *locationTable) functionFor(name, systemName, fileName string, startLine int64) *Function {
	key := functionKey{name, systemName, fileName, startLine}
	if f, ok := t.functions[key]; ok {
		return f
	}

	f := &Function{
		ID:         uint64(len(t.profile.Function) + 1),
		Name:       name,
		SystemName: systemName,
		Filename:   fileName,
		StartLine:  startLine,
	}
	t.profile.Function = append(t.profile.Function, f)
	t.functions[key] = f
	return f
}
