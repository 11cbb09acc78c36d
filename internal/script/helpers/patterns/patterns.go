// Package patterns registers the glob/regex string-matching contract of
// spec.md §4.3: like/ilike (full-string glob anchoring via gobwas/glob)
// and matches_pattern/regex_replace/regex_capture (stdlib regexp, compiled
// patterns cached in a process-wide bounded LRU per spec.md's "LRU
// cache of ≤1000 compiled patterns").
package patterns

import (
	"regexp"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/gobwas/glob"
	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"

	"kelora/internal/script"
)

const cacheSize = 1000

// cache is process-wide: compiling a glob/regex is pure with respect to
// its pattern text, so sharing one bounded cache across every worker's
// Engine is safe and avoids recompiling the same pattern once per worker.
var (
	globCache  *lru.Cache[string, glob.Glob]
	regexCache *lru.Cache[string, *regexp.Regexp]
	cacheOnce  sync.Once
)

func caches() (*lru.Cache[string, glob.Glob], *lru.Cache[string, *regexp.Regexp]) {
	cacheOnce.Do(func() {
		globCache, _ = lru.New[string, glob.Glob](cacheSize)
		regexCache, _ = lru.New[string, *regexp.Regexp](cacheSize)
	})
	return globCache, regexCache
}

func compileGlob(pattern string) (glob.Glob, error) {
	gc, _ := caches()
	if g, ok := gc.Get(pattern); ok {
		return g, nil
	}
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, err
	}
	gc.Add(pattern, g)
	return g, nil
}

func compileRegex(pattern string) (*regexp.Regexp, error) {
	_, rc := caches()
	if re, ok := rc.Get(pattern); ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	rc.Add(pattern, re)
	return re, nil
}

func Factory() script.HelperFactory {
	return func(eng *script.Engine) []cel.EnvOption {
		return []cel.EnvOption{
			cel.Function("like",
				cel.Overload("like_string_string", []*cel.Type{cel.StringType, cel.StringType}, cel.BoolType,
					cel.BinaryBinding(likeFn(false)))),
			cel.Function("ilike",
				cel.Overload("ilike_string_string", []*cel.Type{cel.StringType, cel.StringType}, cel.BoolType,
					cel.BinaryBinding(likeFn(true)))),
			cel.Function("matches_pattern",
				cel.Overload("matches_pattern_string_string", []*cel.Type{cel.StringType, cel.StringType}, cel.BoolType,
					cel.BinaryBinding(matchesFn))),
			cel.Function("regex_capture",
				cel.Overload("regex_capture_string_string", []*cel.Type{cel.StringType, cel.StringType}, cel.ListType(cel.StringType),
					cel.BinaryBinding(regexCaptureFn))),
			cel.Function("regex_replace",
				cel.Overload("regex_replace_string_string_string", []*cel.Type{cel.StringType, cel.StringType, cel.StringType}, cel.StringType,
					cel.FunctionBinding(regexReplaceFn))),
		}
	}
}

func likeFn(caseInsensitive bool) func(ref.Val, ref.Val) ref.Val {
	return func(sv, pv ref.Val) ref.Val {
		s, ok1 := sv.Value().(string)
		pattern, ok2 := pv.Value().(string)
		if !ok1 || !ok2 {
			return types.NewErr("like: expected (string, pattern string)")
		}
		if caseInsensitive {
			s = strings.ToLower(s)
			pattern = strings.ToLower(pattern)
		}
		g, err := compileGlob(pattern)
		if err != nil {
			return types.NewErr("like: invalid pattern %q: %v", pattern, err)
		}
		return types.Bool(g.Match(s))
	}
}

func matchesFn(sv, pv ref.Val) ref.Val {
	s, ok1 := sv.Value().(string)
	pattern, ok2 := pv.Value().(string)
	if !ok1 || !ok2 {
		return types.NewErr("matches_pattern: expected (string, pattern string)")
	}
	re, err := compileRegex(pattern)
	if err != nil {
		return types.NewErr("matches_pattern: invalid regex %q: %v", pattern, err)
	}
	return types.Bool(re.MatchString(s))
}

func regexCaptureFn(sv, pv ref.Val) ref.Val {
	s, ok1 := sv.Value().(string)
	pattern, ok2 := pv.Value().(string)
	if !ok1 || !ok2 {
		return types.NewErr("regex_capture: expected (string, pattern string)")
	}
	re, err := compileRegex(pattern)
	if err != nil {
		return types.NewErr("regex_capture: invalid regex %q: %v", pattern, err)
	}
	m := re.FindStringSubmatch(s)
	if m == nil {
		m = []string{}
	}
	return types.NewStringList(types.DefaultTypeAdapter, m)
}

func regexReplaceFn(args ...ref.Val) ref.Val {
	if len(args) != 3 {
		return types.NewErr("regex_replace: expected (string, pattern string, replacement string)")
	}
	s, ok1 := args[0].Value().(string)
	pattern, ok2 := args[1].Value().(string)
	replacement, ok3 := args[2].Value().(string)
	if !ok1 || !ok2 || !ok3 {
		return types.NewErr("regex_replace: expected (string, pattern string, replacement string)")
	}
	re, err := compileRegex(pattern)
	if err != nil {
		return types.NewErr("regex_replace: invalid regex %q: %v", pattern, err)
	}
	return types.String(re.ReplaceAllString(s, replacement))
}
