package pipelineconfig

import "gopkg.in/yaml.v2"

// DumpYAML renders c as YAML using the struct's own yaml tags, backing
// --dump-config (print the fully resolved configuration, including every
// default, and exit without processing input). Grounded on the teacher's
// own config package shipping a yaml-tagged types.Config even though the
// CLI only ever builds one from flags: a resolved config is worth being
// able to show a user verbatim, the same way `kubectl ... -o yaml` or
// `helm template` surface a fully-resolved object instead of the flags
// that produced it.
func DumpYAML(c Config) ([]byte, error) {
	return yaml.Marshal(c)
}
