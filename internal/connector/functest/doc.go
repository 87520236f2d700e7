// Package functest is the backend for Functest CI result servers (REST API v1)
//
// Design choices:
//   - One category only ("functest"); anything else is rejected before I/O
//   - Pages are walked lazily as the stream is consumed, starting at page 1 and
//     stopping when current_page reaches total_pages
//   - The raw page body is the archive unit. Live fetches tee every body into
//     the archive; replay serves the same bodies back keyed by request
//     signature, so both modes yield identical items
//   - A record missing _id or start_date aborts the stream; partial pages are
//     worse than loud failures for downstream dedup
package functest
