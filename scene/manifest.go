// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package scene

// Manifest lists the documents a scene is loaded from.
type Manifest struct {
	Programs []string `json:"programs,omitempty" yaml:"programs,omitempty" toml:"programs,omitempty"`
	Shaders  []string `json:"shaders,omitempty" yaml:"shaders,omitempty" toml:"shaders,omitempty"`
	Objects  []string `json:"objects,omitempty" yaml:"objects,omitempty" toml:"objects,omitempty"`
}

// Len returns the number of documents listed.
func (m Manifest) Len() int {
	return len(m.Programs) + len(m.Shaders) + len(m.Objects)
}
