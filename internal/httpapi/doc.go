// Package httpapi is the router's HTTP surface once bootstrap has finished.
//
//   - server.go: Server.Run (API and metrics listeners), routes and auth
//   - config.go: Options and CORS setup
//   - logging.go: per-request logging levels
//   - metrics.go: request metrics middleware
//   - docs.go: registered API schema and PrintSchema
//   - swagger.go / swagger_stub.go: Swagger UI behind -tags=swagger
package httpapi
