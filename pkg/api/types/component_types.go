package types

// Classification mirrors the CycloneDX component types used by this tool.
type Classification string

const (
	ClassificationLibrary     Classification = "library"
	ClassificationApplication Classification = "application"
	ClassificationFramework   Classification = "framework"
)

// Hash is a content digest of the package artifact, hex-encoded.
type Hash struct {
	Algorithm string `json:"alg"`
	Value     string `json:"content"`
}

// LicenseSource records which step of the precedence produced a license.
type LicenseSource string

const (
	LicenseSourceNone    LicenseSource = ""
	LicenseSourcePackage LicenseSource = "package"
	LicenseSourceCache   LicenseSource = "cache"
	LicenseSourceRemote  LicenseSource = "remote"
)

// License is the resolved license of a component. An empty Expression means unresolved.
type License struct {
	Expression string        `json:"expression,omitempty"`
	URL        string        `json:"url,omitempty"`
	Source     LicenseSource `json:"source,omitempty"`
}

func (l License) Resolved() bool { return l.Expression != "" }

// Component is the canonical, deduplicated representation of one package.
type Component struct {
	Name           string         `json:"name"`
	Version        string         `json:"version"`
	Kind           ReferenceKind  `json:"kind"`
	Classification Classification `json:"type"`

	// IsDevelopmentDependency is true only when every reference to the package was development-only.
	IsDevelopmentDependency bool `json:"isDevelopmentDependency,omitempty"`
	// Direct is true when any unit declared the package directly.
	Direct bool `json:"direct,omitempty"`

	Sha512      string `json:"-"`
	PackagePath string `json:"-"`

	PURL        string  `json:"purl,omitempty"`
	Hashes      []Hash  `json:"hashes,omitempty"`
	License     License `json:"license"`
	Description string  `json:"description,omitempty"`
	Authors     string  `json:"authors,omitempty"`
	ProjectURL  string  `json:"projectUrl,omitempty"`
	VCSURL      string  `json:"vcsUrl,omitempty"`
}

func (c *Component) Key() Key {
	return NewKey(c.Name, c.Version)
}

// Warning is a non-fatal problem recorded during a run.
type Warning struct {
	Stage     string `json:"stage"`
	Unit      string `json:"unit,omitempty"`
	Framework string `json:"framework,omitempty"`
	Runtime   string `json:"runtime,omitempty"`
	Message   string `json:"message"`
}
