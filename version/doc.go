// Package version exposes build metadata for the /info endpoint, the version
// command and telemetry resources.
//
//	go build -ldflags "-X github.com/kbukum/speechgate/version.Version=1.2.0"
package version
