// @title 博客图片服务 API 文档
// @version 1.0
// @description 博客图片上传、变体生成与按需分发
// @host localhost:8000
// @BasePath /
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"blog-image-server/internal/bootstrap"
)

func main() {
	fmt.Printf("[%s] [INFO] [引导] 开始启动 blog-image-server...\n", time.Now().Format("2006-01-02 15:04:05.000"))
	if err := bootstrap.Run(context.Background()); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "blog-image-server failed: %v\n", err)
		os.Exit(1)
	}
}
