package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// UnmarshalStrict decodes a statuspeek YAML document into v, rejecting keys
// Config does not declare. An empty document leaves v untouched.
func UnmarshalStrict(data []byte, v interface{}) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	err := decoder.Decode(v)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF):
		// empty document keeps the defaults
		return nil
	case strings.Contains(err.Error(), "not found in type"):
		return fmt.Errorf("unknown configuration field (valid sections: %s; check for typos): %w",
			strings.Join(sections, ", "), err)
	default:
		return err
	}
}

// sections are the top-level keys of Config, in file order.
var sections = []string{"resolver", "http", "runner", "log", "metrics"}
