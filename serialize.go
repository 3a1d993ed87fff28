package litdrive

// Spec is the flat, serializable form of a Drive for crossing process
// boundaries. It carries everything a receiving process needs to
// reconstruct an equivalent handle; root folder and backend state are
// session-local and re-derived on the receiving side.
type Spec struct {
	Protocol        string `json:"protocol" yaml:"protocol"`
	ID              string `json:"id" yaml:"id"`
	AllowDuplicates bool   `json:"allow_duplicates" yaml:"allow_duplicates"`
	ComponentName   string `json:"component_name,omitempty" yaml:"component_name,omitempty"`
}

// Spec returns the serializable form of the handle.
func (d *Drive) Spec() Spec {
	return Spec{
		Protocol:        d.identity.Protocol,
		ID:              d.identity.ID,
		AllowDuplicates: d.allowDuplicates,
		ComponentName:   d.componentName,
	}
}

// FromSpec reconstructs a handle from its serialized form. componentName is
// the name of the component receiving the handle; when empty, the component
// name recorded in the spec is kept. The reconstructed handle's identity
// equals the original's.
func FromSpec(spec Spec, componentName string, options ...Option) (*Drive, error) {
	d, err := New(spec.Protocol+spec.ID, append([]Option{AllowDuplicates(spec.AllowDuplicates)}, options...)...)
	if err != nil {
		return nil, err
	}

	if componentName == "" {
		componentName = spec.ComponentName
	}
	d.BindComponent(componentName)

	return d, nil
}
