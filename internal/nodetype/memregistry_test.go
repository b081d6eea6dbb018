package nodetype

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itemstate/core/internal/itemid"
	"github.com/itemstate/core/internal/values"
)

func TestNewMemRegistryDeclaresPrimaryType(t *testing.T) {
	r := NewMemRegistry("rep:root")
	assert.Equal(t, "rep:root", r.RootType())

	defs := r.MandatoryProperties("rep:root")
	require.Len(t, defs, 1)
	assert.Equal(t, itemid.NewQName(JCRNamespace, "primaryType"), defs[0].Name)
	assert.Equal(t, values.TypeName, defs[0].Type)
}

func TestDeclareMandatoryAppends(t *testing.T) {
	r := NewMemRegistry("rep:root")
	r.DeclareMandatory("nt:unstructured", PropertyDefinition{Name: itemid.NewQName("", "x"), Type: values.TypeString})

	defs := r.MandatoryProperties("nt:unstructured")
	require.Len(t, defs, 1)
	assert.Equal(t, "x", defs[0].Name.Local)
}

func TestUnknownTypeHasNoMandatoryProperties(t *testing.T) {
	r := NewMemRegistry("rep:root")
	assert.Empty(t, r.MandatoryProperties("unknown:type"))
}
