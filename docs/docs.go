// Package docs registers the OpenAPI document of the image server with swag.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/api/uploads": {
            "post": {
                "description": "保存原图并生成该类型对应的变体，优化失败不影响上传结果",
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "tags": ["Media"],
                "summary": "上传图片",
                "parameters": [
                    {"type": "file", "description": "图片文件", "name": "file", "in": "formData", "required": true},
                    {"type": "string", "description": "图片类型 avatar|cover|hero|post", "name": "type", "in": "formData"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/httptransport.APIResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/httptransport.APIResponse"}}
                }
            }
        },
        "/uploads/optimized/{filename}": {
            "get": {
                "description": "优先返回缓存变体，缺失时同步生成，格式不可用时返回原图",
                "produces": ["image/webp", "image/jpeg", "image/avif", "image/png"],
                "tags": ["Media"],
                "summary": "获取图片变体",
                "parameters": [
                    {"type": "string", "description": "原图文件名", "name": "filename", "in": "path", "required": true},
                    {"type": "string", "default": "medium", "description": "变体名称", "name": "variant", "in": "query"},
                    {"type": "string", "default": "webp", "description": "输出格式", "name": "format", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "file"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/httptransport.APIResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/httptransport.APIResponse"}}
                }
            }
        },
        "/api/images/{filename}/variants": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Media"],
                "summary": "查询图片变体",
                "parameters": [
                    {"type": "string", "description": "原图文件名", "name": "filename", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/httptransport.APIResponse"}}
                }
            }
        },
        "/api/variants": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Media"],
                "summary": "变体目录",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/httptransport.APIResponse"}}
                }
            }
        },
        "/api/status": {
            "get": {
                "description": "变体目录、索引统计与上传目录磁盘占用",
                "produces": ["application/json"],
                "tags": ["Maintenance"],
                "summary": "服务状态",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/httptransport.APIResponse"}}
                }
            }
        },
        "/api/maintenance/sweep": {
            "post": {
                "produces": ["application/json"],
                "tags": ["Maintenance"],
                "summary": "清理过期变体",
                "parameters": [
                    {"type": "string", "description": "保留时长，例如 720h", "name": "max_age", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/httptransport.APIResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/httptransport.APIResponse"}}
                }
            }
        }
    },
    "definitions": {
        "httptransport.APIResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "integer"},
                "data": {},
                "message": {"type": "string"},
                "success": {"type": "boolean"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Blog Image Server API",
	Description:      "Image variant generation and delivery for the blog CMS.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
