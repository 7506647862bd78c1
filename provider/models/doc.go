// Package models fetches provider model listings and normalizes their
// heterogeneous schemas into one descriptor. A priority-ordered rule engine
// then enriches descriptors with group and capability metadata matched by
// model-id pattern; rule sets can be loaded from YAML.
package models
