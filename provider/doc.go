// Package provider is a generic registry of named backend factories.
//
// Inference backends register a Factory under a name; the gateway creates
// one instance per worker from configuration selected at startup.
//
// # Usage
//
//	reg := provider.NewRegistry[MyBackend]()
//	reg.RegisterFactory("stub", stub.Factory())
//	b, err := reg.Create("stub", cfg)
package provider
