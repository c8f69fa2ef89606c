package sandbox

import (
	"fmt"
	"regexp"
	"strings"

	"go.starlark.net/lib/json"
	"go.starlark.net/lib/math"
	"go.starlark.net/lib/time"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// Modules returns the allow-list of modules generated Starlark code may
// load. Each entry is loaded with e.g. load("re", "re").
func Modules() map[string]starlark.StringDict {
	return map[string]starlark.StringDict{
		"re":   {"re": reModule},
		"json": {"json": json.Module},
		"math": {"math": math.Module},
		"time": {"time": time.Module},
	}
}

// reModule exposes a subset of Python's re module backed by Go's RE2 engine.
// Patterns that need backtracking features (lookaround, backreferences) fail
// with an invalid pattern error.
var reModule = &starlarkstruct.Module{
	Name: "re",
	Members: starlark.StringDict{
		"search":    starlark.NewBuiltin("re.search", reSearch),
		"match":     starlark.NewBuiltin("re.match", reMatch),
		"fullmatch": starlark.NewBuiltin("re.fullmatch", reFullmatch),
		"findall":   starlark.NewBuiltin("re.findall", reFindall),
		"sub":       starlark.NewBuiltin("re.sub", reSub),
		"split":     starlark.NewBuiltin("re.split", reSplit),
		"escape":    starlark.NewBuiltin("re.escape", reEscape),
	},
}

func compilePattern(fnName, pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid pattern %q: %v", fnName, pattern, err)
	}
	return re, nil
}

func patternAndString(b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (*regexp.Regexp, string, error) {
	var pattern, s string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "pattern", &pattern, "string", &s); err != nil {
		return nil, "", err
	}
	re, err := compilePattern(b.Name(), pattern)
	return re, s, err
}

func reSearch(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	re, s, err := patternAndString(b, args, kwargs)
	if err != nil {
		return nil, err
	}
	return newMatch(re, s, re.FindStringSubmatchIndex(s)), nil
}

func reMatch(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	return anchoredMatch(b, args, kwargs, `^(?:%s)`)
}

func reFullmatch(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	return anchoredMatch(b, args, kwargs, `^(?:%s)$`)
}

// anchoredMatch wraps the pattern in a non-capturing group, so group numbers
// and names are unchanged.
func anchoredMatch(b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple, wrap string) (starlark.Value, error) {
	re, s, err := patternAndString(b, args, kwargs)
	if err != nil {
		return nil, err
	}
	anchored, err := compilePattern(b.Name(), fmt.Sprintf(wrap, re.String()))
	if err != nil {
		return nil, err
	}
	return newMatch(anchored, s, anchored.FindStringSubmatchIndex(s)), nil
}

func reFindall(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	re, s, err := patternAndString(b, args, kwargs)
	if err != nil {
		return nil, err
	}

	var out []starlark.Value
	for _, m := range re.FindAllStringSubmatch(s, -1) {
		switch re.NumSubexp() {
		case 0:
			out = append(out, starlark.String(m[0]))
		case 1:
			out = append(out, starlark.String(m[1]))
		default:
			groups := make(starlark.Tuple, len(m)-1)
			for i, g := range m[1:] {
				groups[i] = starlark.String(g)
			}
			out = append(out, groups)
		}
	}
	return starlark.NewList(out), nil
}

func reSub(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var pattern, repl, s string
	count := 0
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "pattern", &pattern, "repl", &repl, "string", &s, "count?", &count); err != nil {
		return nil, err
	}
	re, err := compilePattern(b.Name(), pattern)
	if err != nil {
		return nil, err
	}

	template := pythonTemplate(repl)
	if count <= 0 {
		return starlark.String(re.ReplaceAllString(s, template)), nil
	}

	var sb strings.Builder
	last := 0
	for _, loc := range re.FindAllStringSubmatchIndex(s, count) {
		sb.WriteString(s[last:loc[0]])
		sb.Write(re.ExpandString(nil, template, s, loc))
		last = loc[1]
	}
	sb.WriteString(s[last:])
	return starlark.String(sb.String()), nil
}

// pythonTemplate converts \1 and \g<name> references to Go's ${1} form and
// escapes literal dollars.
func pythonTemplate(repl string) string {
	var sb strings.Builder
	for i := 0; i < len(repl); i++ {
		c := repl[i]
		switch {
		case c == '$':
			sb.WriteString("$$")
		case c == '\\' && i+1 < len(repl) && repl[i+1] >= '0' && repl[i+1] <= '9':
			j := i + 1
			for j < len(repl) && repl[j] >= '0' && repl[j] <= '9' {
				j++
			}
			sb.WriteString("${" + repl[i+1:j] + "}")
			i = j - 1
		case c == '\\' && strings.HasPrefix(repl[i:], `\g<`):
			end := strings.IndexByte(repl[i:], '>')
			if end < 0 {
				sb.WriteByte(c)
				continue
			}
			sb.WriteString("${" + repl[i+3:i+end] + "}")
			i += end
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

func reSplit(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var pattern, s string
	maxsplit := 0
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "pattern", &pattern, "string", &s, "maxsplit?", &maxsplit); err != nil {
		return nil, err
	}
	re, err := compilePattern(b.Name(), pattern)
	if err != nil {
		return nil, err
	}
	n := -1
	if maxsplit > 0 {
		n = maxsplit + 1
	}
	parts := re.Split(s, n)
	out := make([]starlark.Value, len(parts))
	for i, p := range parts {
		out[i] = starlark.String(p)
	}
	return starlark.NewList(out), nil
}

func reEscape(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var s string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &s); err != nil {
		return nil, err
	}
	return starlark.String(regexp.QuoteMeta(s)), nil
}

// newMatch builds a match object, or None when loc is nil.
// Match objects expose group(), groups(), groupdict(), start() and end().
func newMatch(re *regexp.Regexp, s string, loc []int) starlark.Value {
	if loc == nil {
		return starlark.None
	}

	group := func(i int) starlark.Value {
		if i < 0 || 2*i+1 >= len(loc) || loc[2*i] < 0 {
			return starlark.None
		}
		return starlark.String(s[loc[2*i]:loc[2*i+1]])
	}

	groupFn := starlark.NewBuiltin("group", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
		if len(args) == 0 {
			return group(0), nil
		}
		if len(args) > 1 {
			vals := make(starlark.Tuple, len(args))
			for i, a := range args {
				idx, err := groupIndex(re, a)
				if err != nil {
					return nil, fmt.Errorf("%s: %v", b.Name(), err)
				}
				vals[i] = group(idx)
			}
			return vals, nil
		}
		idx, err := groupIndex(re, args[0])
		if err != nil {
			return nil, fmt.Errorf("%s: %v", b.Name(), err)
		}
		return group(idx), nil
	})

	groupsFn := starlark.NewBuiltin("groups", func(_ *starlark.Thread, _ *starlark.Builtin, _ starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
		out := make(starlark.Tuple, re.NumSubexp())
		for i := range out {
			out[i] = group(i + 1)
		}
		return out, nil
	})

	groupdictFn := starlark.NewBuiltin("groupdict", func(_ *starlark.Thread, _ *starlark.Builtin, _ starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
		d := starlark.NewDict(re.NumSubexp())
		for i, name := range re.SubexpNames() {
			if name == "" {
				continue
			}
			if err := d.SetKey(starlark.String(name), group(i)); err != nil {
				return nil, err
			}
		}
		return d, nil
	})

	startFn := starlark.NewBuiltin("start", func(_ *starlark.Thread, _ *starlark.Builtin, _ starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
		return starlark.MakeInt(loc[0]), nil
	})
	endFn := starlark.NewBuiltin("end", func(_ *starlark.Thread, _ *starlark.Builtin, _ starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
		return starlark.MakeInt(loc[1]), nil
	})

	return starlarkstruct.FromStringDict(starlark.String("match"), starlark.StringDict{
		"group":     groupFn,
		"groups":    groupsFn,
		"groupdict": groupdictFn,
		"start":     startFn,
		"end":       endFn,
		"string":    starlark.String(s),
	})
}

func groupIndex(re *regexp.Regexp, v starlark.Value) (int, error) {
	switch x := v.(type) {
	case starlark.Int:
		i, ok := x.Int64()
		if !ok || i < 0 || int(i) > re.NumSubexp() {
			return 0, fmt.Errorf("no such group: %s", x)
		}
		return int(i), nil
	case starlark.String:
		if idx := re.SubexpIndex(string(x)); idx >= 0 {
			return idx, nil
		}
		return 0, fmt.Errorf("no such group: %q", string(x))
	}
	return 0, fmt.Errorf("group index must be int or string, got %s", v.Type())
}
