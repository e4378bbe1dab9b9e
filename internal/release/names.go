package release

// Names is the naming convention for one package's artifact slot.
//
// At rest only Canonical exists. During a run the new upload lives under
// New and the previous artifact under Old. LegacyOld and LegacyNew are
// the temp names of the older "old-"/"new-" prefix convention; they mean
// the same thing as Old and New when found on a release.
type Names struct {
	Canonical string
	Old       string
	New       string
	LegacyOld string
	LegacyNew string
}

// NamesFor returns the asset names for pkg with file extension ext
// (without the dot).
func NamesFor(pkg, ext string) Names {
	return Names{
		Canonical: pkg + "." + ext,
		Old:       pkg + "_old." + ext,
		New:       pkg + "_new." + ext,
		LegacyOld: "old-" + pkg + "." + ext,
		LegacyNew: "new-" + pkg + "." + ext,
	}
}

// StaleOld returns the names that mark a run that renamed the canonical
// asset away but never deleted it.
func (n Names) StaleOld() []string { return []string{n.Old, n.LegacyOld} }

// StaleNew returns the names that mark a run that uploaded but never
// promoted its artifact.
func (n Names) StaleNew() []string { return []string{n.New, n.LegacyNew} }
