// Package crawler builds the content map of a website.
//
// # Components
//
//   - Fetcher: HTTP GET with a fixed User-Agent, size limit, charset decoding
//     and an LRU of successful bodies
//   - Extract, ExtractText, ExtractLinks: visible text and same-origin links
//   - Spider: homepage fetch, liveness probe of its links, concurrent
//     expansion into a model.ContentMap
//   - LoadRobots: robots.txt rules for the configured User-Agent
//
// # Crawl Depth
//
// The spider fetches the homepage and the pages it links to. Links found on
// those pages are recorded but not followed, so the map holds at most one
// level below the root. Every key and every recorded link starts with the
// base URL.
//
// # Failure Handling
//
// A page that cannot be fetched is logged and skipped. Only a failure to
// fetch the base URL fails the crawl, with ErrBaseUnavailable.
//
// # Usage
//
//	client := &http.Client{Timeout: cfg.Timeout}
//	defer client.CloseIdleConnections()
//
//	fetcher := crawler.NewFetcher(client, crawler.WithUserAgent(cfg.UserAgent))
//	spider := crawler.NewSpider(fetcher, crawler.WithConcurrency(16))
//	contentMap, err := spider.BuildMap(ctx, "https://example.org/")
package crawler
