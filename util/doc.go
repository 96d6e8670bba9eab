// Package util provides small helpers shared across the gateway: byte-size
// parsing for configuration and string cleanup for logs and env values.
package util
