package site

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/dsg/internal/testutil"
	"github.com/leapstack-labs/dsg/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadLayout_Default(t *testing.T) {
	layout, err := LoadLayout(filepath.Join(t.TempDir(), "templates"))
	require.NoError(t, err)
	assert.Empty(t, layout.Source)

	page := &core.Page{ID: "about", Title: "About Us", Route: "/pages/about.html", Content: "<p>hi</p>\n", Description: "Who & why"}
	links := core.LinkIndex{"Zeta": "/pages/zeta.html", "About Us": "/pages/about.html"}

	var buf bytes.Buffer
	require.NoError(t, layout.Render(&buf, pageData(page, "Acme", links)))
	html := buf.String()

	assert.Contains(t, html, "<title>About Us | Acme</title>")
	assert.Contains(t, html, `<meta name="description" content="Who &amp; why">`)
	assert.Contains(t, html, "cdn.plot.ly")
	assert.Contains(t, html, `document.querySelectorAll(".dsg-chart[data-figure]")`, "layout draws chart placeholders")
	assert.Contains(t, html, "<main>\n<p>hi</p>\n\n</main>", "content is not escaped")
	assert.Contains(t, html, `<a href="/pages/about.html" aria-current="page">About Us</a>`)
	assert.Contains(t, html, `<a href="/pages/zeta.html">Zeta</a>`)
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("About Us</a>")), bytes.Index(buf.Bytes(), []byte("Zeta</a>")),
		"navigation is sorted by title")
}

func TestLoadLayout_ProjectOverride(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteTree(t, dir, map[string]string{
		"page.html": `<h1>{{ .Title }}</h1>{{ range $t, $r := .Pages }}[{{ $t }}]{{ end }}{{ .Content }}`,
	})

	layout, err := LoadLayout(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "page.html"), layout.Source)

	var buf bytes.Buffer
	page := &core.Page{Title: "Home", Route: "/", Home: true, Content: "<b>x</b>"}
	require.NoError(t, layout.Render(&buf, pageData(page, "Acme", core.LinkIndex{"B": "/b", "A": "/a"})))
	assert.Equal(t, "<h1>Home</h1>[A][B]<b>x</b>", buf.String())
}

func TestLoadLayout_Errors(t *testing.T) {
	t.Run("invalid template", func(t *testing.T) {
		dir := t.TempDir()
		testutil.WriteTree(t, dir, map[string]string{"page.html": "{{ .Title "})

		_, err := LoadLayout(dir)
		var tplErr *core.TemplateError
		require.True(t, errors.As(err, &tplErr), "got %T: %v", err, err)
		assert.Equal(t, filepath.Join(dir, "page.html"), tplErr.File)
	})

	t.Run("unknown field", func(t *testing.T) {
		dir := t.TempDir()
		testutil.WriteTree(t, dir, map[string]string{"page.html": "{{ .Nav }}"})

		layout, err := LoadLayout(dir)
		require.NoError(t, err)

		var buf bytes.Buffer
		err = layout.Render(&buf, pageData(&core.Page{Route: "/"}, "Acme", nil))
		var tplErr *core.TemplateError
		require.True(t, errors.As(err, &tplErr), "got %T: %v", err, err)
	})
}
