// Package stack holds the normalized runtime model of a project: the
// stack with its services and applications, the supported-service
// catalog, and the relationship resolver.
//
// Normalization (New) converts the raw discovered configuration into an
// immutable model, applying catalog defaults and failing fast on
// configuration errors. Resolution (Resolve) maps each application's
// declared relationship names onto providing services; services are
// scanned in declaration order and the first declaration of a name
// wins. Resolution never mutates the model, so it can be repeated with
// different cached payloads.
package stack
