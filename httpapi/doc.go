// Package httpapi exposes the engine over HTTP. Every response is a JSON
// envelope {"statusCode","data","message"}; errors omit data. Access and
// refresh tokens are returned in the body and set as HttpOnly cookies.
package httpapi
