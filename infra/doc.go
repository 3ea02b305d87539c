// Package infra contains technical adapters: SQL storage, model artifact
// loading, claim locks, MQTT notifications and metrics exporters. These
// packages should depend only on the interfaces defined in the core packages.
package infra
