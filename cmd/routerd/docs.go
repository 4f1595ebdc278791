package main

// General API documentation for swaggo. The registered schema lives in
// internal/httpapi/docs.go and is printed by `routerd print-schema`.
//
// @title           routerd API
// @version         1.0
// @description     Router API of an LLM inference server.
//
// @contact.name   routerd maintainers
//
// @license.name   Apache 2.0
// @license.url    https://www.apache.org/licenses/LICENSE-2.0
//
// @BasePath  /
//
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
//
// @schemes http
