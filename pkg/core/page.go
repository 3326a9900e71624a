package core

// Page is one parsed content file.
// Pages are created by the page parser and never mutated afterwards.
type Page struct {
	// ID is the content file's base name without extension.
	ID string
	// Title is the resolved display title (front matter title or ID).
	Title string
	// Description is the optional front matter description.
	Description string
	// Route is the site-relative URL path ("/" for the home page).
	Route string
	// Content is the rendered HTML body.
	Content string
	// Home marks the single page mapped to the site root.
	Home bool
	// Source is the path of the content file the page was parsed from.
	Source string
}

// LinkIndex maps page display titles to their site-relative routes.
// It covers every non-home page and is shared by every wrapper render.
type LinkIndex map[string]string
