package domain

import (
	"bytes"
	"encoding/json"
)

// DisplayName is an optional human readable alias, like an ENS name.
// The zero value is None.
type DisplayName struct {
	name  string
	isSet bool
}

func SomeDisplayName(name string) DisplayName {
	return DisplayName{name: name, isSet: true}
}

func NoDisplayName() DisplayName {
	return DisplayName{}
}

func (d DisplayName) Get() (string, bool) {
	return d.name, d.isSet
}

func (d DisplayName) IsSet() bool {
	return d.isSet
}

func (d DisplayName) String() string {
	if !d.isSet {
		return "<none>"
	}
	return d.name
}

func (d DisplayName) MarshalJSON() ([]byte, error) {
	if !d.isSet {
		return []byte("null"), nil
	}
	return json.Marshal(d.name)
}

func (d *DisplayName) UnmarshalJSON(buf []byte) error {
	if bytes.Equal(bytes.TrimSpace(buf), []byte("null")) {
		*d = NoDisplayName()
		return nil
	}
	var name string
	if err := json.Unmarshal(buf, &name); err != nil {
		return err
	}
	*d = SomeDisplayName(name)
	return nil
}
