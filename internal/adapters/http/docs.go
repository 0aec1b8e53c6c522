package http

import (
	"os"

	"github.com/gofiber/fiber/v2"
)

// docsHTML renders Swagger UI for the REST surface. The websocket protocol has no
// OpenAPI form, so its message catalogue is listed above the UI.
const docsHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>MiniGuide API - Swagger UI</title>
  <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui.css">
  <style>body{margin:0;background:#fafafa;font-family:sans-serif}#ws{padding:12px 24px;border-bottom:1px solid #ddd}#ws code{background:#eee;padding:0 3px}</style>
</head>
<body>
  <section id="ws">
    <h3>Navigation sessions: <code>GET /ws/location</code></h3>
    <p>Send: <code>location{lat,lng,accuracy}</code> <code>start_nav{dest_lat,dest_lng,label}</code>
      <code>stop_nav</code> <code>follow{device}</code> <code>query{text}</code> <code>focus{focused}</code>
      <code>select{index}</code></p>
    <p>Receive: <code>session</code> <code>primitive{op,id,kind}</code> <code>viewport{op}</code>
      <code>route_update{state,summary,reason}</code> <code>nav_stopped</code> <code>suggestions</code>
      <code>error{detail}</code></p>
  </section>
  <div id="swagger-ui"></div>
  <script src="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({
      url: '/docs/openapi.yaml',
      dom_id: '#swagger-ui',
      deepLinking: true,
      presets: [SwaggerUIBundle.presets.apis, SwaggerUIBundle.SwaggerUIStandalonePreset],
      layout: 'BaseLayout',
    });
  </script>
</body>
</html>`

// SetupDocs registers Swagger UI at /docs and serves the OpenAPI file at specPath.
func SetupDocs(app *fiber.App, specPath string) {
	app.Get("/docs", func(c *fiber.Ctx) error {
		c.Set("Content-Type", "text/html; charset=utf-8")
		return c.SendString(docsHTML)
	})

	app.Get("/docs/openapi.yaml", func(c *fiber.Ctx) error {
		data, err := os.ReadFile(specPath)
		if err != nil {
			return errNotFound(c, "openapi.yaml not found")
		}
		c.Set("Content-Type", "application/yaml")
		return c.Send(data)
	})
}
