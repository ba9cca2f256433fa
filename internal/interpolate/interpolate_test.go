package interpolate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rakaly/cli/internal/document"
	"github.com/rakaly/cli/internal/text"
)

func apply(t *testing.T, src string) *document.Object {
	t.Helper()
	doc, err := text.Parse([]byte(src))
	require.NoError(t, err)
	require.NoError(t, Apply(doc))
	return doc
}

func values(doc *document.Object) map[string]string {
	out := make(map[string]string)
	for _, e := range doc.Entries {
		if s, ok := e.Value.(document.Scalar); ok {
			out[e.Key.Text] = s.Text
		}
	}
	return out
}

func TestApply_Basic(t *testing.T) {
	doc := apply(t, `
@my_var = 10
my_obj = {
  pos_x = @[100-my_var]
  pos_y = @my_var
}
`)
	require.Len(t, doc.Entries, 1)
	obj := doc.Entries[0].Value.(*document.Object)
	assert.Equal(t, map[string]string{"pos_x": "90", "pos_y": "10"}, values(obj))
}

func TestApply_Arithmetic(t *testing.T) {
	doc := apply(t, `
@half = @[1/2]
scale = @[1-half]
scale_mul = @[1*half]
scale_add = @[1+half]
scale_div = @[1/half]
my_list = { @[1-half] @half }
`)
	assert.Equal(t, map[string]string{
		"scale":     "0.5",
		"scale_mul": "0.5",
		"scale_add": "1.5",
		"scale_div": "2",
	}, values(doc))
	list := doc.Entries[4].Value.(*document.Array)
	assert.Equal(t, []document.Node{document.String("0.5", false), document.String("0.5", false)}, list.Values)
}

func TestApply_ExpressionVectors(t *testing.T) {
	doc := apply(t, `
@half = @[1/2]
@width = 768
@cross_x = @[ ( 333 / width ) + 0.001 ]
my_calc = @[(-half-half)*half]
test_value = @cross_x
result1 = @[1/3/2]
result2 = @[8/4/2]
result3 = @[12/3/2/2]
test1 = @[-half+2]
test2 = @[-half + half]
test3 = @[-2+half]
test4 = @[-half*2+1]
test5 = @[-(half)+2]
`)
	assert.Equal(t, map[string]string{
		"my_calc":    "-0.5",
		"test_value": "0.43459375",
		"result1":    "0.16666666666666666",
		"result2":    "1",
		"result3":    "1",
		"test1":      "1.5",
		"test2":      "0",
		"test3":      "-1.5",
		"test4":      "0",
		"test5":      "1.5",
	}, values(doc))
}

func TestApply_NestedDeclarationsAreRemoved(t *testing.T) {
	doc := apply(t, `
obj = { @half = 0.5 pos_x=@half pos_y=@[half*2] }
scale = @[1-0.25]
`)
	obj := doc.Entries[0].Value.(*document.Object)
	assert.Equal(t, map[string]string{"pos_x": "0.5", "pos_y": "1"}, values(obj))
	assert.Equal(t, "0.75", values(doc)["scale"])
}

func TestApply_ForwardAndChainedReferences(t *testing.T) {
	doc := apply(t, `
@derived_value = @base_value
@base_value = 42
@var_a = 0.7
@var_b = @var_a
result = @derived_value
edge = @var_b
`)
	assert.Equal(t, map[string]string{"result": "42", "edge": "0.7"}, values(doc))
}

func TestApply_OperatorsNormalized(t *testing.T) {
	doc := apply(t, `
@width = 768
test_gt > @[ width ]
test_exact == @[ 42 ]
test_exists ?= @[ 100 ]
`)
	require.Len(t, doc.Entries, 3)
	assert.Equal(t, document.OpGreater, doc.Entries[0].Op)
	assert.Equal(t, document.OpEqual, doc.Entries[1].Op)
	assert.Equal(t, document.OpEqual, doc.Entries[2].Op)
	assert.Equal(t, "768", doc.Entries[0].Value.(document.Scalar).Text)
}

func TestApply_UnresolvedReference(t *testing.T) {
	doc, err := text.Parse([]byte("@missing_ref = @nonexistent_var\ntest = @missing_ref"))
	require.NoError(t, err)
	err = Apply(doc)
	var ie *Error
	require.True(t, errors.As(err, &ie))
	assert.Contains(t, err.Error(), "Unresolved variable references")
	assert.Contains(t, err.Error(), "@missing_ref -> @nonexistent_var")
}

func TestApply_Errors(t *testing.T) {
	for _, src := range []string{
		"x = @[1/0]",
		"x = @[nope+1]",
		"x = @[(1+2]",
		"x = @[1 +]",
	} {
		doc, err := text.Parse([]byte(src))
		require.NoError(t, err)
		err = Apply(doc)
		var ie *Error
		assert.True(t, errors.As(err, &ie), "%s: %v", src, err)
	}
}

func TestApply_QuotedValuesUntouched(t *testing.T) {
	doc := apply(t, "@a = 1\nname = \"@a\"")
	assert.Equal(t, document.String("@a", true), doc.Entries[0].Value)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "2", Format(2))
	assert.Equal(t, "-0.5", Format(-0.5))
	assert.Equal(t, "0.16666666666666666", Format(1.0/3/2))
}
