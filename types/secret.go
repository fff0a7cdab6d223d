// secret.go defines Secret, a secret.String which can be loaded from YAML.

package types

import (
	"github.com/xaionaro-go/secret"
	"gopkg.in/yaml.v3"
)

const hiddenValue = "<HIDDEN>"

// Secret is a value (a password, a stream key) which is never printed.
type Secret struct {
	value secret.String
}

func NewSecret(v string) Secret {
	return Secret{value: secret.New(v)}
}

func (s Secret) Get() string {
	return s.value.Get()
}

// Secret returns the value as secret.String to pass it to the libraries.
func (s Secret) Secret() secret.String {
	return s.value
}

func (s Secret) String() string {
	return hiddenValue
}

func (s Secret) GoString() string {
	return hiddenValue
}

func (s *Secret) UnmarshalYAML(node *yaml.Node) error {
	var v string
	if err := node.Decode(&v); err != nil {
		return err
	}
	s.value = secret.New(v)
	return nil
}

func (s Secret) MarshalYAML() (any, error) {
	if s.Get() == "" {
		return "", nil
	}
	return hiddenValue, nil
}
