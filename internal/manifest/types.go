package manifest

// DefaultExt is the artifact extension used when a package does not name one.
const DefaultExt = "7z"

// File is a decoded packages.yaml.
type File struct {
	// Requires is an optional semver constraint on the publisher version.
	Requires string    `yaml:"requires,omitempty" json:"requires,omitempty"`
	Packages []Package `yaml:"packages" json:"packages"`
}

// Package describes one artifact slot on the release.
type Package struct {
	Name        string `yaml:"name" json:"name"`
	Ext         string `yaml:"ext,omitempty" json:"ext,omitempty"`
	ContentType string `yaml:"content_type,omitempty" json:"content_type,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Build       *Build `yaml:"build,omitempty" json:"build,omitempty"`
	Verify      *bool  `yaml:"verify,omitempty" json:"verify,omitempty"`
}

// Build is the external command that writes <name>.<ext>.
type Build struct {
	Command          []string `yaml:"command" json:"command"`
	Dir              string   `yaml:"dir,omitempty" json:"dir,omitempty"`
	NoChangeExitCode int      `yaml:"no_change_exit_code,omitempty" json:"no_change_exit_code,omitempty"`
}

// contentTypes maps known archive extensions to upload media types.
var contentTypes = map[string]string{
	"7z":      "application/x-7z-compressed",
	"zip":     "application/zip",
	"tar":     "application/x-tar",
	"tar.gz":  "application/gzip",
	"tgz":     "application/gzip",
	"tar.xz":  "application/x-xz",
	"tar.zst": "application/zstd",
}

// Extension returns the artifact extension without the leading dot.
func (p Package) Extension() string {
	if p.Ext == "" {
		return DefaultExt
	}
	return p.Ext
}

// MediaType returns the content type the artifact is uploaded with.
func (p Package) MediaType() string {
	if p.ContentType != "" {
		return p.ContentType
	}
	if ct, ok := contentTypes[p.Extension()]; ok {
		return ct
	}
	return "application/octet-stream"
}

// FileName is the local artifact file, which is also the canonical asset name.
func (p Package) FileName() string {
	return p.Name + "." + p.Extension()
}

// VerifyEnabled reports whether the download probe runs after a swap.
func (p Package) VerifyEnabled() bool {
	return p.Verify == nil || *p.Verify
}

// Lookup returns the package called name. A package that is not listed
// gets the defaults and ok is false.
func (f *File) Lookup(name string) (pkg Package, ok bool) {
	if f != nil {
		for _, p := range f.Packages {
			if p.Name == name {
				return p, true
			}
		}
	}
	return Package{Name: name}, false
}

// Names returns the listed package names in file order.
func (f *File) Names() []string {
	if f == nil {
		return nil
	}
	names := make([]string, 0, len(f.Packages))
	for _, p := range f.Packages {
		names = append(names, p.Name)
	}
	return names
}
