package hub

// ModelInfo is the subset of the hub model description used at startup.
type ModelInfo struct {
	ID          string    `json:"id"`
	SHA         string    `json:"sha,omitempty"`
	PipelineTag string    `json:"pipeline_tag,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	Siblings    []Sibling `json:"siblings,omitempty"`
}

// Sibling is a file listed in the repository.
type Sibling struct {
	RFilename string `json:"rfilename"`
}

// HasFile reports whether the repository lists name.
func (m *ModelInfo) HasFile(name string) bool {
	if m == nil {
		return false
	}
	for _, s := range m.Siblings {
		if s.RFilename == name {
			return true
		}
	}
	return false
}
