package httptransport

import (
	"net/http"

	"blog-image-server/internal/platform/logging"

	"github.com/gin-gonic/gin"
	"github.com/swaggo/swag"
)

const scalarHTML = `<!DOCTYPE html>
<html lang="zh-CN">
	<head>
		<meta charset="utf-8" />
		<title>Blog Image Server API Reference</title>
		<meta name="viewport" content="width=device-width, initial-scale=1" />
	</head>
	<body>
		<script
			id="api-reference"
			data-url="/openapi.json"
			data-layout="modern"
			src="https://cdn.jsdelivr.net/npm/@scalar/api-reference"
		></script>
	</body>
</html>`

// RegisterDocs serves the registered swag document at /openapi.json and a viewer at /docs.
func RegisterDocs(engine *gin.Engine, logger *logging.Logger) {
	engine.GET("/openapi.json", func(c *gin.Context) {
		doc, err := swag.ReadDoc()
		if err != nil {
			logger.ErrorTag("HTTP", "生成 OpenAPI 文档失败: %v", err)
			RespondError(c, http.StatusInternalServerError, "failed to generate openapi spec", gin.H{"error": err.Error()})
			return
		}
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(doc))
	})

	engine.GET("/docs", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(scalarHTML))
	})
}
