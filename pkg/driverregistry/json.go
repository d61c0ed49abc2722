package driverregistry

import gojson "github.com/goccy/go-json"

func unmarshalManifest(raw []byte, out any) error {
	return gojson.Unmarshal(raw, out)
}
