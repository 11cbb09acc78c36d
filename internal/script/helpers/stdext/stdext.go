// Package stdext registers cel-go's own extension bundles (the ext
// sub-package shipped inside the same google/cel-go module already
// required for the expression engine itself) rather than hand-rolling
// string/list/math helpers that the ecosystem already provides.
package stdext

import (
	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/ext"

	"kelora/internal/script"
)

// Factory wires the string/math/encoding/set/list extension bundles,
// covering most of spec.md §4.3's "Strings", "Arrays/Maps", and
// "Math/encoding" helper contracts (case, trim, substring, split, join,
// replace; numeric min/max/abs/round; base64 encode/decode; set
// containment; list flatten/slice/distinct) without a single hand-rolled
// binding.
func Factory() script.HelperFactory {
	return func(eng *script.Engine) []cel.EnvOption {
		return []cel.EnvOption{
			ext.Strings(),
			ext.Math(),
			ext.Encoders(),
			ext.Sets(),
			ext.Lists(),
		}
	}
}
