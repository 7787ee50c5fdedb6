// Package docs carries the OpenAPI document served by the swagger UI.
// The document is maintained by hand; keep it in sync with routes/.
package docs

import _ "embed"

//go:embed openapi.json
var OpenAPI []byte
