package dag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/graph/encoding"
)

func TestGraphConnectAndExport(t *testing.T) {
	g := New()

	a := g.NewNode()
	a.SetDOTID("a")
	require.NoError(t, a.SetAttribute(encoding.Attribute{Key: "label", Value: `"Step A"`}))
	g.AddNode(a)

	b := g.NewNode()
	b.SetDOTID("b")
	g.AddNode(b)

	require.NoError(t, g.Connect(a.ID(), b.ID()))
	assert.True(t, g.HasEdgeFromTo(a.ID(), b.ID()))
	assert.Equal(t, `"Step A"`, a.Attribute("label"))
	assert.Equal(t, "", b.Attribute("label"))

	assert.Error(t, g.Connect(a.ID(), 999))
	assert.Error(t, g.Connect(a.ID(), a.ID()))

	out, err := g.ExportToDot("plan")
	require.NoError(t, err)
	assert.Contains(t, out, "digraph plan")
	assert.Contains(t, out, "a -> b")
	assert.Contains(t, out, `label="Step A"`)
}

func TestDefaultDOTID(t *testing.T) {
	g := New()
	n := g.NewNode()
	assert.Equal(t, "n0", n.DOTID())
}
