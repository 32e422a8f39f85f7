package celengine

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	"go.uber.org/zap"
)

var envCache sync.Map

// envKey identifies an attribute set by its names and Go types so different shapes never share an env.
func envKey(attrs map[string]any) string {
	keys := make([]string, 0, len(attrs))
	for k, v := range attrs {
		keys = append(keys, fmt.Sprintf("%s:%T", k, v))
	}
	sort.Strings(keys)
	return strings.Join(keys, ",")
}

// GetOrBuildEnv returns a cached env declaring one variable per attribute.
func GetOrBuildEnv(attrs map[string]any) (*cel.Env, error) {
	key := envKey(attrs)
	if v, ok := envCache.Load(key); ok {
		return v.(*cel.Env), nil
	}

	env, err := NewEnv(attrs)
	if err != nil {
		return nil, err
	}
	actual, _ := envCache.LoadOrStore(key, env)
	return actual.(*cel.Env), nil
}

func NewEnv(attrs map[string]any) (*cel.Env, error) {
	opts := make([]cel.EnvOption, 0, len(attrs))
	for name, val := range attrs {
		opts = append(opts, cel.Variable(name, typeOf(name, val)))
	}
	return cel.NewEnv(opts...)
}

func typeOf(name string, val any) *cel.Type {
	switch val.(type) {
	case string:
		return cel.StringType
	case int, int32, int64:
		return cel.IntType
	case float32, float64:
		return cel.DoubleType
	case bool:
		return cel.BoolType
	case []string:
		return cel.ListType(cel.StringType)
	case map[string]any:
		return cel.MapType(cel.StringType, cel.DynType)
	default:
		zap.L().Debug("cel attribute declared as dyn", zap.String("name", name), zap.String("type", fmt.Sprintf("%T", val)))
		return cel.DynType
	}
}

// Compile type-checks expr and requires it to produce a bool.
func Compile(env *cel.Env, expr string) (cel.Program, error) {
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	if t := ast.OutputType(); !t.IsExactType(cel.BoolType) && !t.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("expression %q must evaluate to bool, got %s", expr, t)
	}
	return env.Program(ast)
}

func EvalBool(prg cel.Program, attrs map[string]any) (bool, error) {
	out, _, err := prg.Eval(attrs)
	if err != nil {
		return false, err
	}

	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expected bool from expression, got %T (%v)", out.Value(), out.Value())
	}
	return b, nil
}

// Evaluate compiles and runs expr once; callers evaluating repeatedly should Compile.
func Evaluate(env *cel.Env, expr string, attrs map[string]any) (bool, error) {
	prg, err := Compile(env, expr)
	if err != nil {
		return false, err
	}
	return EvalBool(prg, attrs)
}
