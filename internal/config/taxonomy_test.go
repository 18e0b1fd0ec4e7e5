package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadTaxonomy_Default(t *testing.T) {
	tax, err := LoadTaxonomy("")
	require.NoError(t, err)

	require.NotEmpty(t, tax.Categories)
	require.Equal(t, "top10", tax.Categories[0].Name)

	_, denied := tax.Denied("dQw4w9WgXcQ")
	require.True(t, denied)
	_, denied = tax.Denied("zzzzzzzzzzz")
	require.False(t, denied)

	require.True(t, tax.IsGeneric("ship"))
	require.False(t, tax.IsGeneric("icon"))

	var general []string
	for _, c := range tax.Categories {
		if c.General {
			general = append(general, c.Name)
		}
	}
	require.Equal(t, []string{"cruise_tips", "port_guide"}, general)
}

func TestParseTaxonomy_Rejects(t *testing.T) {
	cases := map[string]string{
		"missing name":     "categories:\n  - keywords: [x]\n",
		"duplicate name":   "categories:\n  - name: a\n    keywords: [x]\n  - name: a\n    keywords: [y]\n",
		"no keywords":      "categories:\n  - name: a\n",
		"bad denied id":    "denylist:\n  - id: short\n",
		"not yaml mapping": "- just\n- a list\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseTaxonomy([]byte(body))
			require.Error(t, err)
		})
	}
}

func TestTaxonomy_NilSafe(t *testing.T) {
	var tax *Taxonomy
	_, ok := tax.Denied("dQw4w9WgXcQ")
	require.False(t, ok)
	require.Nil(t, tax.DeniedIDs())
	require.False(t, tax.IsGeneric("ship"))
}
