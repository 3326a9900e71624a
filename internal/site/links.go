package site

import (
	"log/slog"

	"github.com/leapstack-labs/dsg/pkg/core"
)

// BuildLinkIndex maps the title of every non-home page to its route. Pages
// are taken in the given order, so when two pages share a title the later
// one wins. Each such collision is logged.
func BuildLinkIndex(pages []*core.Page, logger *slog.Logger) core.LinkIndex {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	links := make(core.LinkIndex, len(pages))
	for _, page := range pages {
		if page == nil || page.Home {
			continue
		}
		if prev, ok := links[page.Title]; ok && prev != page.Route {
			logger.Warn("duplicate page title, later page replaces earlier link",
				slog.String("title", page.Title),
				slog.String("replaced", prev),
				slog.String("route", page.Route))
		}
		links[page.Title] = page.Route
	}
	return links
}
